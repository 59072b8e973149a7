package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewDefaultsUnparseableLevelToInfo(t *testing.T) {
	l, err := New(Config{Level: "not-a-level", Format: "console"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !l.Core().Enabled(zapcore.InfoLevel) {
		t.Fatal("expected info level to be enabled by default")
	}
}

func TestNewConsoleFormat(t *testing.T) {
	l, err := New(Config{Level: "debug", Format: "console"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if l == nil {
		t.Fatal("expected a non-nil logger")
	}
}

func TestNewJSONFormatIsDefault(t *testing.T) {
	l, err := New(Config{Level: "info"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if l == nil {
		t.Fatal("expected a non-nil logger")
	}
}
