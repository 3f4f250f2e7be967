package main

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dshills/composer/internal/command"
	"github.com/dshills/composer/internal/plugins/palette"
)

func TestParseArgs(t *testing.T) {
	got, err := parseArgs([]string{"query=save", "limit=5", "ratio=0.5", "all=true", "empty="})
	if err != nil {
		t.Fatalf("parseArgs: %v", err)
	}
	want := map[string]any{
		"query": "save",
		"limit": int64(5),
		"ratio": 0.5,
		"all":   true,
		"empty": "",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("args mismatch (-want +got):\n%s", diff)
	}
}

func TestParseArgsInvalid(t *testing.T) {
	for _, in := range []string{"novalue", "=x", " =x"} {
		if _, err := parseArgs([]string{in}); err == nil {
			t.Errorf("parseArgs(%q) should fail", in)
		}
	}
}

func TestPrintResults(t *testing.T) {
	var buf bytes.Buffer
	printResults(&buf)(palette.CommandList, []palette.Result{
		{Command: command.Command{ID: "file.save", Title: "Save File"}},
		{Command: command.Command{ID: "edit.undo"}},
	})

	want := "file.save                    Save File\n" +
		"edit.undo                    edit.undo\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}
