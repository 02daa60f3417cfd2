package session

import (
	"errors"
	"time"

	"github.com/adamavenir/chatcache/internal/types"
)

const credentialKey = "session/credential"

// Store is the subset of the vault the credential store needs.
type Store interface {
	PutJSON(key string, value any) error
	GetJSON(key string, dest any) (bool, error)
	Clear(keys ...string) error
}

// Credentials keeps the single live session credential.
type Credentials struct {
	store Store
	now   func() time.Time
}

// New returns a credential store persisting into store.
func New(store Store) *Credentials {
	return &Credentials{store: store, now: time.Now}
}

// Save overwrites the credential and stamps the login time.
func (c *Credentials) Save(token, userID string) (*types.Credential, error) {
	if token == "" {
		return nil, errors.New("token is required")
	}
	if userID == "" {
		return nil, errors.New("user id is required")
	}
	cred := types.Credential{Token: token, UserID: userID, LastLoginMs: c.now().UnixMilli()}
	if err := c.store.PutJSON(credentialKey, cred); err != nil {
		return nil, err
	}
	return &cred, nil
}

// Get returns the stored credential or nil when logged out.
func (c *Credentials) Get() (*types.Credential, error) {
	var cred types.Credential
	ok, err := c.store.GetJSON(credentialKey, &cred)
	if err != nil || !ok {
		return nil, err
	}
	return &cred, nil
}

// HasValidToken reports whether a non-empty token is stored.
func (c *Credentials) HasValidToken() (bool, error) {
	cred, err := c.Get()
	if err != nil {
		return false, err
	}
	return cred != nil && cred.Token != "", nil
}

// Clear erases the credential.
func (c *Credentials) Clear() error {
	return c.store.Clear(credentialKey)
}
