package plugin

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Inspect locates a scripted plugin on disk and returns its manifest.
//
// path may be a .lua file, or a directory holding plugin.json, init.lua or
// plugin.lua, checked in that order. Without plugin.json the plugin is named
// after the file or directory.
func Inspect(path string) (*Manifest, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrPluginNotFound, path)
		}
		return nil, err
	}

	if !info.IsDir() {
		if filepath.Ext(path) != ".lua" {
			return nil, fmt.Errorf("%w: %s", ErrNoEntryPoint, path)
		}
		name := strings.TrimSuffix(filepath.Base(path), ".lua")
		return NewManifestMinimal(name, filepath.Dir(path), filepath.Base(path)), nil
	}

	manifestPath := filepath.Join(path, "plugin.json")
	if _, err := os.Stat(manifestPath); err == nil {
		m, err := LoadManifest(manifestPath)
		if err != nil {
			return nil, fmt.Errorf("invalid manifest: %w", err)
		}
		return m, nil
	}

	name := filepath.Base(path)
	for _, main := range []string{"init.lua", "plugin.lua"} {
		if _, err := os.Stat(filepath.Join(path, main)); err == nil {
			return NewManifestMinimal(name, path, main), nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoEntryPoint, path)
}
