// Package ingest reads sync deltas in JSONL form and applies them to the cache.
package ingest

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/adamavenir/chatcache/internal/db"
	"github.com/adamavenir/chatcache/internal/types"
)

const (
	RecordConversation = "conversation"
	RecordMessage      = "message"
	RecordIncoming     = "incoming"
)

const maxLineSize = 10 * 1024 * 1024

// Incoming is a delivered message together with its mention flag.
type Incoming struct {
	Message   types.CachedMessage
	Mentioned bool
}

// Batch holds the records of one delta file in file order per kind.
type Batch struct {
	Conversations []types.ConversationSummary
	Messages      []types.CachedMessage
	Incoming      []Incoming

	Skipped   int
	Unknown   int
	Truncated bool
}

// Len returns the number of usable records.
func (b *Batch) Len() int {
	return len(b.Conversations) + len(b.Messages) + len(b.Incoming)
}

type envelope struct {
	Type string `json:"type"`
}

type incomingRecord struct {
	types.CachedMessage
	Mentioned bool `json:"mentioned"`
}

// ParseFile reads a delta file. A missing file is an error.
func ParseFile(path string) (*Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return Parse(bytes.NewReader(data), len(data) > 0 && data[len(data)-1] != '\n')
}

// Parse decodes one record per line. Blank lines are ignored. Malformed lines and
// records missing their identifiers count as skipped, unknown record types as unknown.
// When truncated is set the last non-blank line is dropped as a partial write.
func Parse(r io.Reader, truncated bool) (*Batch, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var lines [][]byte
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		lines = append(lines, append([]byte(nil), line...))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	batch := &Batch{}
	if truncated && len(lines) > 0 {
		lines = lines[:len(lines)-1]
		batch.Truncated = true
	}
	for _, line := range lines {
		batch.add(line)
	}
	return batch, nil
}

func (b *Batch) add(line []byte) {
	var env envelope
	if err := json.Unmarshal(line, &env); err != nil {
		b.Skipped++
		return
	}
	switch env.Type {
	case RecordConversation:
		var conv types.ConversationSummary
		if err := json.Unmarshal(line, &conv); err != nil || conv.ChatID == "" {
			b.Skipped++
			return
		}
		b.Conversations = append(b.Conversations, conv)
	case RecordMessage:
		var msg types.CachedMessage
		if err := json.Unmarshal(line, &msg); err != nil || !validMessage(msg) {
			b.Skipped++
			return
		}
		b.Messages = append(b.Messages, normalize(msg))
	case RecordIncoming:
		var rec incomingRecord
		if err := json.Unmarshal(line, &rec); err != nil || !validMessage(rec.CachedMessage) {
			b.Skipped++
			return
		}
		b.Incoming = append(b.Incoming, Incoming{Message: normalize(rec.CachedMessage), Mentioned: rec.Mentioned})
	default:
		b.Unknown++
	}
}

func validMessage(m types.CachedMessage) bool {
	return m.MsgID != "" && m.ChatID != ""
}

func normalize(m types.CachedMessage) types.CachedMessage {
	m.Direction = types.NormalizeDirection(string(m.Direction))
	return m
}

// Sink receives parsed records. *cache.Cache satisfies it.
type Sink interface {
	UpsertConversations(ctx context.Context, conversations []types.ConversationSummary) error
	UpsertMessages(ctx context.Context, messages []types.CachedMessage) error
	ReceiveMessage(ctx context.Context, message types.CachedMessage, mentioned bool) (db.IncomingResult, error)
}

// Result counts what Apply wrote.
type Result struct {
	Conversations int `json:"conversations"`
	Messages      int `json:"messages"`
	Incoming      int `json:"incoming"`
	MissingChats  int `json:"missing_chats"`
	Redelivered   int `json:"redelivered"`
	AlreadyRead   int `json:"already_read"`
	Skipped       int `json:"skipped"`
	Unknown       int `json:"unknown"`
}

// Apply writes conversations first, then plain messages as one batch, then incoming
// messages in file order so counters advance once per new message.
func Apply(ctx context.Context, sink Sink, batch *Batch) (Result, error) {
	result := Result{Skipped: batch.Skipped, Unknown: batch.Unknown}
	if batch.Truncated {
		result.Skipped++
	}
	if len(batch.Conversations) > 0 {
		if err := sink.UpsertConversations(ctx, batch.Conversations); err != nil {
			return result, fmt.Errorf("apply conversations: %w", err)
		}
		result.Conversations = len(batch.Conversations)
	}
	if len(batch.Messages) > 0 {
		if err := sink.UpsertMessages(ctx, batch.Messages); err != nil {
			return result, fmt.Errorf("apply messages: %w", err)
		}
		result.Messages = len(batch.Messages)
	}
	for _, in := range batch.Incoming {
		applied, err := sink.ReceiveMessage(ctx, in.Message, in.Mentioned)
		if err != nil {
			return result, fmt.Errorf("apply incoming %s: %w", in.Message.MsgID, err)
		}
		result.Incoming++
		switch {
		case applied.Redelivered:
			result.Redelivered++
		case applied.AlreadyRead:
			result.AlreadyRead++
		case !applied.SummaryUpdated:
			result.MissingChats++
		}
	}
	return result, nil
}
