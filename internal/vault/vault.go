package vault

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"gitlab.com/elixxir/ekv"
)

const (
	keyFileName  = "master.key"
	storeDirName = "store"
	keySize      = 32

	reservedPrefix = "vault/"
	indexKey       = reservedPrefix + "index"
	checkKey       = reservedPrefix + "check"
	checkValue     = "chatcache-vault-v1"
)

// ErrStorageUnavailable is returned when the encrypted store cannot be opened or read.
var ErrStorageUnavailable = errors.New("secure storage unavailable")

// ErrReservedKey is returned for keys inside the vault's internal namespace.
var ErrReservedKey = errors.New("reserved vault key")

// Vault is a small encrypted key-value store. Entries are independent; there are no
// cross-key transactions.
type Vault struct {
	kv ekv.KeyValue

	mu    sync.Mutex
	index map[string]struct{}
}

type storageError struct {
	cause error
}

func (e *storageError) Error() string {
	return ErrStorageUnavailable.Error() + ": " + e.cause.Error()
}

func (e *storageError) Unwrap() []error {
	return []error{ErrStorageUnavailable, e.cause}
}

func unavailable(err error, message string) error {
	return &storageError{cause: errors.WithMessage(err, message)}
}

// Open loads or creates the vault under dir. The master key lives in dir/master.key and
// the encrypted entries in dir/store. A store that cannot be decrypted with the key on
// disk is reported as ErrStorageUnavailable.
func Open(dir string) (*Vault, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, unavailable(err, "create vault directory")
	}
	storeDir := filepath.Join(dir, storeDirName)
	key, err := loadOrCreateKey(filepath.Join(dir, keyFileName), storeDir)
	if err != nil {
		return nil, unavailable(err, "load master key")
	}
	store, err := ekv.NewFilestore(storeDir, hex.EncodeToString(key))
	if err != nil {
		return nil, unavailable(err, "open encrypted store")
	}
	return newVault(store)
}

// OpenMemory returns a vault backed by an in-memory store.
func OpenMemory() *Vault {
	v, err := newVault(ekv.MakeMemstore())
	if err != nil {
		// a fresh memstore has no entries to fail on
		panic(err)
	}
	return v
}

// rawBytes carries an opaque value through ekv's Marshaler interfaces.
type rawBytes []byte

func (b rawBytes) Marshal() []byte {
	return b
}

func (b *rawBytes) Unmarshal(data []byte) error {
	*b = append((*b)[:0], data...)
	return nil
}

func (v *Vault) getBytes(key string) ([]byte, error) {
	var data rawBytes
	if err := v.kv.Get(key, &data); err != nil {
		return nil, err
	}
	return data, nil
}

func (v *Vault) setBytes(key string, value []byte) error {
	return v.kv.Set(key, rawBytes(value))
}

func newVault(kv ekv.KeyValue) (*Vault, error) {
	v := &Vault{kv: kv, index: make(map[string]struct{})}
	if err := v.verify(); err != nil {
		return nil, err
	}
	if err := v.loadIndex(); err != nil {
		return nil, err
	}
	return v, nil
}

// verify checks the marker entry written on creation so a mismatched key is caught at
// open time rather than on first read.
func (v *Vault) verify() error {
	data, err := v.getBytes(checkKey)
	if err != nil {
		if ekv.Exists(err) {
			return unavailable(err, "verify store key")
		}
		if err := v.setBytes(checkKey, []byte(checkValue)); err != nil {
			return unavailable(err, "write store marker")
		}
		return nil
	}
	if string(data) != checkValue {
		return unavailable(errors.New("marker mismatch"), "verify store key")
	}
	return nil
}

func (v *Vault) loadIndex() error {
	data, err := v.getBytes(indexKey)
	if err != nil {
		if ekv.Exists(err) {
			return unavailable(err, "read key index")
		}
		return nil
	}
	var keys []string
	if err := json.Unmarshal(data, &keys); err != nil {
		return unavailable(err, "decode key index")
	}
	for _, key := range keys {
		v.index[key] = struct{}{}
	}
	return nil
}

func (v *Vault) saveIndexLocked() error {
	keys := make([]string, 0, len(v.index))
	for key := range v.index {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	data, err := json.Marshal(keys)
	if err != nil {
		return err
	}
	if err := v.setBytes(indexKey, data); err != nil {
		return unavailable(err, "write key index")
	}
	return nil
}

func checkUserKey(key string) error {
	if key == "" {
		return errors.New("vault key is empty")
	}
	if strings.HasPrefix(key, reservedPrefix) {
		return errors.Wrapf(ErrReservedKey, "key %q", key)
	}
	return nil
}

// Put stores value under key, replacing any previous value.
func (v *Vault) Put(key string, value []byte) error {
	if err := checkUserKey(key); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.setBytes(key, value); err != nil {
		return unavailable(err, "write "+key)
	}
	if _, ok := v.index[key]; ok {
		return nil
	}
	v.index[key] = struct{}{}
	return v.saveIndexLocked()
}

// Get returns the value stored under key. ok is false when the key was never written
// or has been cleared.
func (v *Vault) Get(key string) ([]byte, bool, error) {
	if err := checkUserKey(key); err != nil {
		return nil, false, err
	}
	data, err := v.getBytes(key)
	if err != nil {
		if ekv.Exists(err) {
			return nil, false, unavailable(err, "read "+key)
		}
		return nil, false, nil
	}
	return data, true, nil
}

// PutJSON stores the JSON encoding of value under key.
func (v *Vault) PutJSON(key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return errors.WithMessagef(err, "encode %s", key)
	}
	return v.Put(key, data)
}

// GetJSON decodes the value under key into dest.
func (v *Vault) GetJSON(key string, dest any) (bool, error) {
	data, ok, err := v.Get(key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, errors.WithMessagef(err, "decode %s", key)
	}
	return true, nil
}

// Clear removes the given keys. Absent keys are ignored.
func (v *Vault) Clear(keys ...string) error {
	for _, key := range keys {
		if err := checkUserKey(key); err != nil {
			return err
		}
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.clearLocked(keys)
}

// ClearPrefix removes every key written through this vault that starts with prefix.
func (v *Vault) ClearPrefix(prefix string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	var keys []string
	for key := range v.index {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return v.clearLocked(keys)
}

// ClearAll removes every key written through this vault.
func (v *Vault) ClearAll() error {
	return v.ClearPrefix("")
}

// Keys lists the keys currently stored, sorted.
func (v *Vault) Keys() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	keys := make([]string, 0, len(v.index))
	for key := range v.index {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (v *Vault) clearLocked(keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	for _, key := range keys {
		if err := v.kv.Delete(key); err != nil && ekv.Exists(err) {
			return unavailable(err, "delete "+key)
		}
		delete(v.index, key)
	}
	return v.saveIndexLocked()
}

// errKeyLost is reported when the store has entries but its master key is gone.
var errKeyLost = errors.New("master key missing for existing store")

func loadOrCreateKey(path, storeDir string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		key, err := hex.DecodeString(strings.TrimSpace(string(data)))
		if err != nil {
			return nil, errors.WithMessage(err, "decode master key")
		}
		if len(key) != keySize {
			return nil, errors.Errorf("master key has %d bytes, want %d", len(key), keySize)
		}
		return key, nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}
	populated, err := dirHasEntries(storeDir)
	if err != nil {
		return nil, errors.WithMessage(err, "inspect store")
	}
	if populated {
		return nil, errKeyLost
	}

	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return nil, errors.WithMessage(err, "generate master key")
	}
	if err := os.WriteFile(path, []byte(hex.EncodeToString(key)+"\n"), 0o600); err != nil {
		return nil, err
	}
	return key, nil
}

func dirHasEntries(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return len(entries) > 0, nil
}
