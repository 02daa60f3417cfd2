package readpos

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/adamavenir/chatcache/internal/types"
)

// KeyPrefix namespaces read positions inside the vault.
const KeyPrefix = "readpos/"

// noSeq is the stored sentinel for "no sequence number".
const noSeq = -1

// Store is the subset of the vault the tracker needs.
type Store interface {
	PutJSON(key string, value any) error
	GetJSON(key string, dest any) (bool, error)
	Clear(keys ...string) error
	ClearPrefix(prefix string) error
}

// Tracker records the last message seen per conversation.
type Tracker struct {
	store Store
}

// New returns a tracker persisting into store.
func New(store Store) *Tracker {
	return &Tracker{store: store}
}

// StorageKey encodes a conversation key. The chat type is numeric, so the separator after
// it is unambiguous for any chat id.
func StorageKey(key types.ConversationKey) string {
	return KeyPrefix + strconv.Itoa(int(key.ChatType)) + "/" + key.ChatID
}

func validate(key types.ConversationKey) error {
	if key.ChatID == "" {
		return errors.New("read position: chat id is required")
	}
	if !key.ChatType.Valid() {
		return fmt.Errorf("read position: invalid chat type %d", int(key.ChatType))
	}
	return nil
}

// Save overwrites the read position of key.
func (t *Tracker) Save(key types.ConversationKey, msgID string, seq int64) error {
	if err := validate(key); err != nil {
		return err
	}
	if seq < 0 {
		seq = noSeq
	}
	return t.store.PutJSON(StorageKey(key), types.ReadPosition{MsgID: msgID, Seq: seq})
}

// Get returns the stored position or nil when none is recorded. A record carrying the
// sentinel seq or an empty message id decodes as absent.
func (t *Tracker) Get(key types.ConversationKey) (*types.ReadPosition, error) {
	if err := validate(key); err != nil {
		return nil, err
	}
	var pos types.ReadPosition
	ok, err := t.store.GetJSON(StorageKey(key), &pos)
	if err != nil {
		return nil, err
	}
	if !ok || pos.MsgID == "" || pos.Seq == noSeq {
		return nil, nil
	}
	return &pos, nil
}

// Clear forgets the position of key.
func (t *Tracker) Clear(key types.ConversationKey) error {
	if err := validate(key); err != nil {
		return err
	}
	return t.store.Clear(StorageKey(key))
}

// ClearAll forgets every recorded position.
func (t *Tracker) ClearAll() error {
	return t.store.ClearPrefix(KeyPrefix)
}

// UnreadCount estimates the unread badge from the newest known sequence number. Without a
// latest seq or a saved position the conversation counts as one unread.
func (t *Tracker) UnreadCount(key types.ConversationKey, latestSeq *int64) (int, error) {
	if latestSeq == nil {
		return 1, nil
	}
	pos, err := t.Get(key)
	if err != nil {
		return 0, err
	}
	return Unread(pos, *latestSeq), nil
}

// Unread computes the badge for a known latest seq.
func Unread(pos *types.ReadPosition, latestSeq int64) int {
	if pos == nil {
		return 1
	}
	diff := latestSeq - pos.Seq
	if diff < 0 {
		return 0
	}
	return int(diff)
}
