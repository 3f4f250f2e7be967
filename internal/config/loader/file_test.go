package loader

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFileLoader_Include(t *testing.T) {
	memfs := NewMemFS()
	memfs.AddFile("/etc/composer/composer.toml", `
include = ["base.toml", "plugins/extra.yaml"]

[app]
name = "local"
`)
	memfs.AddFile("/etc/composer/base.toml", `
[app]
name = "base"
preloader = false

[logging]
level = "debug"
`)
	memfs.AddFile("/etc/composer/plugins/extra.yaml", `
logging:
  level: warn
pluginConfigs:
  outline:
    depth: 2
`)

	config, err := NewFileLoader(memfs, "/etc/composer/composer.toml").Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	want := map[string]any{
		"app":           map[string]any{"name": "local", "preloader": false},
		"logging":       map[string]any{"level": "warn"},
		"pluginConfigs": map[string]any{"outline": map[string]any{"depth": int64(2)}},
	}
	if diff := cmp.Diff(want, config); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestFileLoader_IncludeString(t *testing.T) {
	memfs := NewMemFS()
	memfs.AddFile("/a.yaml", "include: /shared/b.toml\nname: a\n")
	memfs.AddFile("/shared/b.toml", `size = 4`)

	config, err := NewFileLoader(memfs, "/a.yaml").Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if diff := cmp.Diff(map[string]any{"name": "a", "size": int64(4)}, config); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestFileLoader_IncludeCycle(t *testing.T) {
	memfs := NewMemFS()
	memfs.AddFile("/a.toml", `include = "b.toml"`)
	memfs.AddFile("/b.toml", `include = "./a.toml"`)

	_, err := NewFileLoader(memfs, "/a.toml").Load()
	if !errors.Is(err, ErrIncludeCycle) {
		t.Fatalf("expected ErrIncludeCycle, got %v", err)
	}
}

func TestFileLoader_IncludeErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing file", `include = "gone.toml"`},
		{"wrong type", `include = 3`},
		{"wrong element type", `include = ["ok.toml", 1]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			memfs := NewMemFS()
			memfs.AddFile("/main.toml", tt.content)
			memfs.AddFile("/ok.toml", `x = 1`)

			if _, err := NewFileLoader(memfs, "/main.toml").Load(); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestFileLoader_EmptyFile(t *testing.T) {
	memfs := NewMemFS()
	memfs.AddFile("/empty.yaml", "")

	config, err := NewFileLoader(memfs, "/empty.yaml").Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(config) != 0 {
		t.Errorf("config = %v, want empty", config)
	}
}
