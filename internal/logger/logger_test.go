package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestSetLevel(t *testing.T) {
	defer SetLevel("info")

	tests := []struct {
		input    string
		expected logrus.Level
	}{
		{"debug", logrus.DebugLevel},
		{"WARN", logrus.WarnLevel},
		{" error ", logrus.ErrorLevel},
		{"verbose", logrus.InfoLevel},
		{"", logrus.InfoLevel},
	}

	for _, tt := range tests {
		SetLevel(tt.input)
		if Logger.GetLevel() != tt.expected {
			t.Errorf("SetLevel(%q): expected %v, got %v", tt.input, tt.expected, Logger.GetLevel())
		}
	}
}

func TestWithFields_WritesJSON(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stdout)

	WithFields(logrus.Fields{"method": "layer-aware"}).Info("placement completed")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Expected JSON log line, got %q: %v", buf.String(), err)
	}
	if entry["method"] != "layer-aware" {
		t.Errorf("Expected method field, got %v", entry["method"])
	}
	if entry["msg"] != "placement completed" {
		t.Errorf("Expected msg field, got %v", entry["msg"])
	}
}
