package services

import (
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		level, format string
		wantLevel     logrus.Level
		wantJSON      bool
	}{
		{"debug", "text", logrus.DebugLevel, false},
		{"warn", "JSON", logrus.WarnLevel, true},
		{"nonsense", "", logrus.InfoLevel, false},
	}

	for _, tt := range tests {
		logger := NewLogger(tt.level, tt.format)
		if logger.GetLevel() != tt.wantLevel {
			t.Errorf("%s: got level %v, want %v", tt.level, logger.GetLevel(), tt.wantLevel)
		}
		_, isJSON := logger.Formatter.(*logrus.JSONFormatter)
		if isJSON != tt.wantJSON {
			t.Errorf("%s: json formatter %v, want %v", tt.format, isJSON, tt.wantJSON)
		}
	}
}
