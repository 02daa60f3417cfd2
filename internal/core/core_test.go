package core

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseAge(t *testing.T) {
	cases := []struct {
		input string
		want  time.Duration
		ok    bool
	}{
		{"30d", 30 * 24 * time.Hour, true},
		{"2w", 14 * 24 * time.Hour, true},
		{"36h", 36 * time.Hour, true},
		{"90m", 90 * time.Minute, true},
		{"0d", 0, false},
		{"d", 0, false},
		{"-1h", 0, false},
		{"3x", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseAge(tc.input)
		if tc.ok && err != nil {
			t.Fatalf("%q: unexpected error %v", tc.input, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("%q: expected error", tc.input)
		}
		if tc.ok && got != tc.want {
			t.Fatalf("%q: expected %v, got %v", tc.input, tc.want, got)
		}
	}
}

func TestEnsureLayout(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	layout, err := EnsureLayout(dir)
	if err != nil {
		t.Fatalf("ensure layout: %v", err)
	}
	if layout.DBPath != filepath.Join(layout.Root, "cache.db") {
		t.Fatalf("unexpected db path %s", layout.DBPath)
	}
	if layout.VaultDir != filepath.Join(layout.Root, "vault") {
		t.Fatalf("unexpected vault dir %s", layout.VaultDir)
	}

	data, err := os.ReadFile(filepath.Join(layout.Root, ".gitignore"))
	if err != nil {
		t.Fatalf("read gitignore: %v", err)
	}
	for _, entry := range []string{"*.db", "*.db-wal", "vault/"} {
		if !strings.Contains(string(data), entry) {
			t.Fatalf("gitignore missing %s", entry)
		}
	}

	if _, err := ResolveLayout(" "); err == nil {
		t.Fatal("expected error for blank dir")
	}
}

func TestEnsureGitignoreAppendsMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".gitignore")
	if err := os.WriteFile(path, []byte("*.db"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	EnsureGitignore(dir)
	EnsureGitignore(dir)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if strings.Count(string(data), "*.db\n") != 1 {
		t.Fatalf("duplicate entries:\n%s", data)
	}
	if !strings.Contains(string(data), "*.db-shm") {
		t.Fatalf("missing appended entry:\n%s", data)
	}
}

func TestShortID(t *testing.T) {
	cases := []struct {
		id     string
		count  int
		expect string
	}{
		{"0f8fad5b-d9cb-469f-a165-70867728950e", 10, "0f8fad"},
		{"0f8fad5b-d9cb-469f-a165-70867728950e", 1200, "0f8fad5b"},
		{"0f8fad5b-d9cb-469f-a165-70867728950e", 9000, "0f8fad5b-d"},
		{"m1", 10, "m1"},
	}
	for _, tc := range cases {
		if got := ShortID(tc.id, DisplayIDLength(tc.count)); got != tc.expect {
			t.Fatalf("ShortID(%q, %d) = %q, want %q", tc.id, tc.count, got, tc.expect)
		}
	}
}
