package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":    zapcore.DebugLevel,
		"warn":     zapcore.WarnLevel,
		"warning":  zapcore.WarnLevel,
		"error":    zapcore.ErrorLevel,
		"info":     zapcore.InfoLevel,
		"":         zapcore.InfoLevel,
		"verbose!": zapcore.InfoLevel,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestDebugOverridesLevel(t *testing.T) {
	log := New("error", true)
	if !log.Desugar().Core().Enabled(zapcore.DebugLevel) {
		t.Fatal("debug mode should enable debug-level logging")
	}
}

func TestNopIsSilent(t *testing.T) {
	log := Nop()
	log.Infow("discarded", "k", "v")
}
