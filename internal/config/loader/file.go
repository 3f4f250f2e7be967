package loader

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"
)

// IncludeKey names the top-level setting listing files to read before the
// file that contains it.
const IncludeKey = "include"

// ErrIncludeCycle is returned when a file includes itself, directly or
// through other files.
var ErrIncludeCycle = errors.New("config include cycle")

// Format is a configuration file format.
type Format string

// Supported formats.
const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

// FormatFor returns the format of path by extension. Unknown extensions
// are TOML.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatTOML
	}
}

func (f Format) decode(source string, data []byte) (map[string]any, error) {
	if f == FormatYAML {
		return decodeYAML(source, data)
	}
	return decodeTOML(source, data)
}

// FileLoader loads one configuration file and the files it includes.
//
// A file may list other files under IncludeKey, as a string or a list of
// strings. Relative names are resolved against the including file's
// directory and each included file is read in its own format. Included
// files are merged in order beneath the including file, so the including
// file wins on conflicts. A missing top-level file is not an error; a
// missing included file is.
type FileLoader struct {
	fs     FileSystem
	path   string
	format Format
}

// NewFileLoader creates a loader for path. A nil fsys reads the OS file
// system.
func NewFileLoader(fsys FileSystem, path string) *FileLoader {
	if fsys == nil {
		fsys = DefaultFS()
	}
	return &FileLoader{fs: fsys, path: path, format: FormatFor(path)}
}

// Format returns the format of the top-level file.
func (l *FileLoader) Format() Format { return l.format }

// Load reads the file and its includes.
func (l *FileLoader) Load() (map[string]any, error) {
	return l.load(l.path, nil, true)
}

func (l *FileLoader) load(path string, chain []string, optional bool) (map[string]any, error) {
	clean := filepath.Clean(path)
	if slices.Contains(chain, clean) {
		return nil, fmt.Errorf("%w: %s", ErrIncludeCycle, strings.Join(append(chain, clean), " -> "))
	}
	chain = append(chain, clean)

	data, err := l.fs.ReadFile(path)
	if err != nil {
		if optional && errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	config, err := FormatFor(path).decode(path, data)
	if err != nil {
		return nil, err
	}

	includes, err := includeList(path, config)
	if err != nil {
		return nil, err
	}
	delete(config, IncludeKey)

	merged := make(map[string]any)
	for _, inc := range includes {
		if !filepath.IsAbs(inc) {
			inc = filepath.Join(filepath.Dir(path), inc)
		}
		incConfig, err := l.load(inc, chain, false)
		if err != nil {
			return nil, err
		}
		merged = DeepMerge(merged, incConfig)
	}
	return DeepMerge(merged, config), nil
}

func includeList(path string, config map[string]any) ([]string, error) {
	v, ok := config[IncludeKey]
	if !ok {
		return nil, nil
	}
	switch v := v.(type) {
	case string:
		return []string{v}, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%s: %s must be a string or a list of strings", path, IncludeKey)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%s: %s must be a string or a list of strings, got %T", path, IncludeKey, v)
	}
}
