package settings

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestRead(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
		want    bool
		wantErr bool
	}{
		{"enabled", "sound:\n  enabled: true\n", true, false},
		{"disabled", "sound:\n  enabled: false\n", false, false},
		{"unset", "network: slow\n", true, false},
		{"malformed", "sound: [\n", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".yml")
			if err := os.WriteFile(path, []byte(tt.content), 0o600); err != nil {
				t.Fatal(err)
			}
			s, err := Read(path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Read() error = %v, wantErr %v", err, tt.wantErr)
			}
			if s.SoundEnabled != tt.want {
				t.Errorf("SoundEnabled = %v, want %v", s.SoundEnabled, tt.want)
			}
		})
	}

	s, err := Read(filepath.Join(dir, "missing.yml"))
	if err != nil || !s.SoundEnabled {
		t.Errorf("missing file = %+v, %v; want defaults", s, err)
	}
}

func TestWatcher(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wordsprout.yml")
	if err := os.WriteFile(path, []byte("sound:\n  enabled: true\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	w, err := NewWatcher(path, nil)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	defer w.Close()

	if !w.Current().SoundEnabled {
		t.Fatal("initial settings should have sound enabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan Settings, 4)
	go w.Run(ctx, func(s Settings) { changes <- s })

	if err := os.WriteFile(path, []byte("sound:\n  enabled: false\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	select {
	case s := <-changes:
		if s.SoundEnabled {
			t.Error("change should disable sound")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no change delivered")
	}

	if w.Current().SoundEnabled {
		t.Error("Current() should reflect the edit")
	}
}
