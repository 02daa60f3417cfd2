package core

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

const (
	dbFileName   = "cache.db"
	vaultDirName = "vault"
)

// Layout is the on-disk arrangement of a chatcache data directory.
type Layout struct {
	Root     string
	DBPath   string
	VaultDir string
}

// DefaultDataDir returns ~/.local/share/chatcache, or .chatcache in the working
// directory when no home directory is available.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".chatcache"
	}
	return filepath.Join(home, ".local", "share", "chatcache")
}

// ResolveLayout computes the layout for dir without touching the filesystem.
func ResolveLayout(dir string) (Layout, error) {
	if strings.TrimSpace(dir) == "" {
		return Layout{}, errors.New("data directory is required")
	}
	root, err := filepath.Abs(dir)
	if err != nil {
		return Layout{}, err
	}
	return Layout{
		Root:     root,
		DBPath:   filepath.Join(root, dbFileName),
		VaultDir: filepath.Join(root, vaultDirName),
	}, nil
}

// EnsureLayout resolves dir and creates it with private permissions.
func EnsureLayout(dir string) (Layout, error) {
	layout, err := ResolveLayout(dir)
	if err != nil {
		return Layout{}, err
	}
	if err := os.MkdirAll(layout.Root, 0o700); err != nil {
		return Layout{}, err
	}
	EnsureGitignore(layout.Root)
	return layout, nil
}

// EnsureGitignore keeps the database files and vault out of version control when the
// data directory lives inside a repository.
func EnsureGitignore(dir string) {
	gitignore := filepath.Join(dir, ".gitignore")
	entries := []string{"*.db", "*.db-wal", "*.db-shm", vaultDirName + "/"}

	data, err := os.ReadFile(gitignore)
	if err != nil {
		_ = os.WriteFile(gitignore, []byte(strings.Join(entries, "\n")+"\n"), 0o600)
		return
	}
	content := string(data)

	present := map[string]bool{}
	for _, line := range strings.Split(content, "\n") {
		present[strings.TrimSpace(line)] = true
	}

	var missing []string
	for _, entry := range entries {
		if !present[entry] {
			missing = append(missing, entry)
		}
	}
	if len(missing) == 0 {
		return
	}
	if len(content) > 0 && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	content += strings.Join(missing, "\n") + "\n"
	_ = os.WriteFile(gitignore, []byte(content), 0o600)
}
