package app

import (
	"errors"
	"testing"

	"github.com/dshills/composer/internal/plugin"
)

func TestOperationError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *OperationError
		expected string
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: "",
		},
		{
			name:     "op only",
			err:      &OperationError{Op: "activate"},
			expected: "activate",
		},
		{
			name:     "op and target",
			err:      &OperationError{Op: "register command", Target: "file.save"},
			expected: "register command file.save",
		},
		{
			name:     "full error chain",
			err:      &OperationError{Op: "register command", Target: "file.save", Context: "outline", Err: errors.New("duplicate")},
			expected: "register command file.save (outline): duplicate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = '%s', expected '%s'", got, tt.expected)
			}
		})
	}
}

func TestOperationError_WithContext_Nil(t *testing.T) {
	var err *OperationError
	if err.WithContext("x") != nil {
		t.Error("WithContext on nil receiver should return nil")
	}
}

func TestOperationError_Unwrap(t *testing.T) {
	err := NewOperationError("resolve", "app.plugins", plugin.ErrInvalidPlugin).WithContext("entry 0")

	if !errors.Is(err, plugin.ErrInvalidPlugin) {
		t.Error("errors.Is should find the wrapped error")
	}
	var opErr *OperationError
	if !errors.As(err, &opErr) || opErr.Context != "entry 0" {
		t.Errorf("errors.As = %+v", opErr)
	}
}

func TestInitError(t *testing.T) {
	cause := errors.New("bad option")
	err := &InitError{Plugin: "outline", Err: cause}

	if err.Error() != "init plugin outline: bad option" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the cause")
	}
}
