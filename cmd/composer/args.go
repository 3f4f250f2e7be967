package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dshills/composer/internal/plugins/palette"
)

// parseArgs turns key=value pairs into command arguments. Values that
// parse as integers, floats or booleans keep that type; everything else
// is a string.
func parseArgs(pairs []string) (map[string]any, error) {
	args := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid argument %q (want key=value)", pair)
		}
		args[key] = parseValue(value)
	}
	return args, nil
}

func parseValue(s string) any {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}

// printResults writes palette listings one command per line.
func printResults(w io.Writer) palette.Sink {
	return func(_ string, results []palette.Result) {
		for _, r := range results {
			title := r.Command.Title
			if title == "" {
				title = r.Command.ID
			}
			if r.Command.Shortcut != "" {
				fmt.Fprintf(w, "%-28s %-32s %s\n", r.Command.ID, title, r.Command.Shortcut)
			} else {
				fmt.Fprintf(w, "%-28s %s\n", r.Command.ID, title)
			}
		}
	}
}
