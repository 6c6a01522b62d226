package logger

import (
	"path/filepath"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"console", Config{Level: "info", Format: "console"}, false},
		{"json", Config{Level: "debug", Format: "json"}, false},
		{"bad level", Config{Level: "verbose", Format: "json"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := New(tt.config)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && log == nil {
				t.Fatal("New() returned nil logger")
			}
		})
	}
}

func TestNewWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "did.log")
	log, err := New(Config{
		Level:  "info",
		Format: "json",
		File:   &FileConfig{Enabled: true, Path: path},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	log.Info("entry")
	log.Sync()
}

func TestWithContext(t *testing.T) {
	log := Nop()
	if log.WithComponent("detect") == nil {
		t.Fatal("WithComponent() = nil")
	}
	if log.WithFile("case.txt") == nil {
		t.Fatal("WithFile() = nil")
	}
}
