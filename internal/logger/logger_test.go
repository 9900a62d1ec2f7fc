package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected logrus.Level
	}{
		{"debug", logrus.DebugLevel},
		{"INFO", logrus.InfoLevel},
		{"warn", logrus.WarnLevel},
		{"error", logrus.ErrorLevel},
		{"verbose", logrus.InfoLevel},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.level); got != tt.expected {
			t.Errorf("ParseLevel(%q) = %v, expected %v", tt.level, got, tt.expected)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	Init("warn", "text")
	var buf bytes.Buffer
	Logrus().SetOutput(&buf)

	Info("hidden %d", 1)
	Warn("shown %d", 2)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info message should be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, "shown 2") {
		t.Errorf("warn message missing from output: %s", out)
	}

	SetLevel("debug")
	buf.Reset()
	Debug("now visible")
	if !strings.Contains(buf.String(), "now visible") {
		t.Errorf("debug message missing after SetLevel: %s", buf.String())
	}
}
