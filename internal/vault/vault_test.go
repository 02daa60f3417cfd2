package vault

import (
	"bytes"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestPutGetSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	v, err := Open(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := v.Put("session/token", []byte("secret")); err != nil {
		t.Fatalf("put: %v", err)
	}

	reopened, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, ok, err := reopened.Get("session/token")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok || !bytes.Equal(got, []byte("secret")) {
		t.Fatalf("expected stored value, got %q ok=%v", got, ok)
	}
	if keys := reopened.Keys(); len(keys) != 1 || keys[0] != "session/token" {
		t.Fatalf("unexpected key index: %v", keys)
	}

	err = filepath.WalkDir(filepath.Join(dir, storeDirName), func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if bytes.Contains(content, []byte("secret")) {
			t.Fatalf("plaintext value found in %s", path)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk store: %v", err)
	}
}

func TestMasterKeyIsPrivate(t *testing.T) {
	dir := t.TempDir()
	if _, err := Open(dir); err != nil {
		t.Fatalf("open: %v", err)
	}
	info, err := os.Stat(filepath.Join(dir, keyFileName))
	if err != nil {
		t.Fatalf("stat key: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("expected 0600 key file, got %o", perm)
	}
}

func TestLostKeyMakesStoreUnavailable(t *testing.T) {
	dir := t.TempDir()

	v, err := Open(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := v.Put("session/token", []byte("secret")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := os.Remove(filepath.Join(dir, keyFileName)); err != nil {
		t.Fatalf("remove key: %v", err)
	}

	_, err = Open(dir)
	if err == nil {
		t.Fatal("expected open to fail without the original key")
	}
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}

	// The lost key must stay lost: no replacement key is written for a populated store.
	if _, err := os.Stat(filepath.Join(dir, keyFileName)); !os.IsNotExist(err) {
		t.Fatalf("expected no regenerated key file, stat err=%v", err)
	}
	if _, err := Open(dir); !errors.Is(err, errKeyLost) || !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected lost key on second open, got %v", err)
	}
}

func TestStoreReopenedUnderDifferentKey(t *testing.T) {
	dir := t.TempDir()

	v, err := Open(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := v.Put("session/token", []byte("secret")); err != nil {
		t.Fatalf("put: %v", err)
	}

	other := bytes.Repeat([]byte{0xab}, keySize)
	if err := os.WriteFile(filepath.Join(dir, keyFileName), []byte(hex.EncodeToString(other)), 0o600); err != nil {
		t.Fatalf("replace key: %v", err)
	}
	_, err = Open(dir)
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable under a different key, got %v", err)
	}
}

func TestRawBytesCopiesOnUnmarshal(t *testing.T) {
	src := []byte("abc")
	var dst rawBytes
	if err := dst.Unmarshal(src); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	src[0] = 'z'
	if string(dst) != "abc" || string(rawBytes("abc").Marshal()) != "abc" {
		t.Fatalf("unexpected raw bytes %q", dst)
	}
}

func TestCorruptKeyFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, keyFileName), []byte("not-hex"), 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}
	_, err := Open(dir)
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
}

func TestGetMissingAndClear(t *testing.T) {
	v := OpenMemory()

	if _, ok, err := v.Get("absent"); err != nil || ok {
		t.Fatalf("expected absent key, ok=%v err=%v", ok, err)
	}

	if err := v.Put("a", []byte("1")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := v.Put("a", []byte("2")); err != nil {
		t.Fatalf("put again: %v", err)
	}
	got, ok, err := v.Get("a")
	if err != nil || !ok || string(got) != "2" {
		t.Fatalf("expected overwrite, got %q ok=%v err=%v", got, ok, err)
	}

	if err := v.Clear("a", "never-written"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, ok, err := v.Get("a"); err != nil || ok {
		t.Fatalf("expected cleared key, ok=%v err=%v", ok, err)
	}
}

func TestClearPrefixAndClearAll(t *testing.T) {
	v := OpenMemory()
	for _, key := range []string{"readpos/1/a", "readpos/2/b", "session/credential"} {
		if err := v.Put(key, []byte("x")); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}

	if err := v.ClearPrefix("readpos/"); err != nil {
		t.Fatalf("clear prefix: %v", err)
	}
	if keys := v.Keys(); len(keys) != 1 || keys[0] != "session/credential" {
		t.Fatalf("unexpected keys after prefix clear: %v", keys)
	}

	if err := v.ClearAll(); err != nil {
		t.Fatalf("clear all: %v", err)
	}
	if keys := v.Keys(); len(keys) != 0 {
		t.Fatalf("expected empty vault, got %v", keys)
	}
	if _, ok, _ := v.Get("session/credential"); ok {
		t.Fatal("credential survived ClearAll")
	}
}

func TestReservedKeysRejected(t *testing.T) {
	v := OpenMemory()
	err := v.Put(indexKey, []byte("[]"))
	if !errors.Is(err, ErrReservedKey) {
		t.Fatalf("expected ErrReservedKey, got %v", err)
	}
	if _, _, err := v.Get(checkKey); !errors.Is(err, ErrReservedKey) {
		t.Fatalf("expected ErrReservedKey on get, got %v", err)
	}
}

func TestJSONHelpers(t *testing.T) {
	v := OpenMemory()
	type record struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	if err := v.PutJSON("rec", record{Name: "x", Count: 3}); err != nil {
		t.Fatalf("put json: %v", err)
	}
	var got record
	ok, err := v.GetJSON("rec", &got)
	if err != nil || !ok {
		t.Fatalf("get json: ok=%v err=%v", ok, err)
	}
	if got.Name != "x" || got.Count != 3 {
		t.Fatalf("unexpected record: %+v", got)
	}
}
