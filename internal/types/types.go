package types

import "fmt"

// ChatType identifies the kind of conversation. Values match the upstream service codes.
type ChatType int

const (
	ChatTypeDirect ChatType = 1
	ChatTypeGroup  ChatType = 2
	ChatTypeBot    ChatType = 3
)

func (t ChatType) String() string {
	switch t {
	case ChatTypeDirect:
		return "direct"
	case ChatTypeGroup:
		return "group"
	case ChatTypeBot:
		return "bot"
	default:
		return fmt.Sprintf("chat-type-%d", int(t))
	}
}

// Valid reports whether t is a known chat type.
func (t ChatType) Valid() bool {
	return t == ChatTypeDirect || t == ChatTypeGroup || t == ChatTypeBot
}

// ParseChatType accepts either the symbolic name or the numeric code.
func ParseChatType(value string) (ChatType, error) {
	switch value {
	case "direct", "user", "1":
		return ChatTypeDirect, nil
	case "group", "2":
		return ChatTypeGroup, nil
	case "bot", "3":
		return ChatTypeBot, nil
	}
	return 0, fmt.Errorf("unknown chat type: %q", value)
}

// Direction is the side of the conversation a message came from.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// NormalizeDirection maps upstream "left"/"right" markers onto Direction.
func NormalizeDirection(value string) Direction {
	switch value {
	case "right", "outbound", "out":
		return DirectionOutbound
	default:
		return DirectionInbound
	}
}

// ContentType is the upstream message content code. Unknown codes are preserved as-is.
type ContentType int

const (
	ContentText     ContentType = 1
	ContentImage    ContentType = 2
	ContentMarkdown ContentType = 3
	ContentFile     ContentType = 4
	ContentForm     ContentType = 5
	ContentPost     ContentType = 6
	ContentSticker  ContentType = 7
	ContentHTML     ContentType = 8
	ContentAudio    ContentType = 11
	ContentCall     ContentType = 13
)

func (c ContentType) String() string {
	switch c {
	case ContentText:
		return "text"
	case ContentImage:
		return "image"
	case ContentMarkdown:
		return "markdown"
	case ContentFile:
		return "file"
	case ContentForm:
		return "form"
	case ContentPost:
		return "post"
	case ContentSticker:
		return "sticker"
	case ContentHTML:
		return "html"
	case ContentAudio:
		return "audio"
	case ContentCall:
		return "call"
	default:
		return fmt.Sprintf("content-%d", int(c))
	}
}

// ConversationKey identifies a conversation across chat types.
type ConversationKey struct {
	ChatType ChatType `json:"chat_type"`
	ChatID   string   `json:"chat_id"`
}

func (k ConversationKey) String() string {
	return fmt.Sprintf("%s:%s", k.ChatType, k.ChatID)
}

// ConversationSummary is one row of the conversation list.
type ConversationSummary struct {
	ChatID             string   `json:"chat_id"`
	ChatType           ChatType `json:"chat_type"`
	Name               string   `json:"name"`
	AvatarURL          *string  `json:"avatar_url,omitempty"`
	LastContent        string   `json:"last_content"`
	LastUpdateTimeMs   int64    `json:"last_update_ms"`
	LegacyTimestamp    int64    `json:"legacy_timestamp"`
	UnreadCount        int      `json:"unread_count"`
	MentionFlag        int      `json:"mention_flag"`
	DoNotDisturb       *int     `json:"do_not_disturb,omitempty"`
	CertificationLevel *int     `json:"certification_level,omitempty"`
	CachedAtMs         int64    `json:"cached_at_ms,omitempty"`
}

// Key returns the structured key of the conversation.
func (c ConversationSummary) Key() ConversationKey {
	return ConversationKey{ChatType: c.ChatType, ChatID: c.ChatID}
}

// CachedMessage is one cached message row.
type CachedMessage struct {
	MsgID             string      `json:"msg_id"`
	ChatID            string      `json:"chat_id"`
	ChatType          ChatType    `json:"chat_type"`
	SenderChatID      string      `json:"sender_chat_id"`
	SenderName        string      `json:"sender_name"`
	SenderAvatarURL   string      `json:"sender_avatar_url,omitempty"`
	Direction         Direction   `json:"direction"`
	ContentType       ContentType `json:"content_type"`
	Text              *string     `json:"text,omitempty"`
	ImageURL          *string     `json:"image_url,omitempty"`
	FileName          *string     `json:"file_name,omitempty"`
	FileURL           *string     `json:"file_url,omitempty"`
	QuoteMsgID        *string     `json:"quote_msg_id,omitempty"`
	QuoteText         *string     `json:"quote_text,omitempty"`
	QuoteImageURL     *string     `json:"quote_image_url,omitempty"`
	SendTimeMs        int64       `json:"send_time_ms"`
	Seq               *int64      `json:"seq,omitempty"`
	EditTimeMs        *int64      `json:"edit_time_ms,omitempty"`
	DeleteTimeMs      *int64      `json:"delete_time_ms,omitempty"`
	CmdName           *string     `json:"cmd_name,omitempty"`
	CmdType           *int        `json:"cmd_type,omitempty"`
	LocalInsertTimeMs int64       `json:"local_insert_ms,omitempty"`
}

// Key returns the conversation the message belongs to.
func (m CachedMessage) Key() ConversationKey {
	return ConversationKey{ChatType: m.ChatType, ChatID: m.ChatID}
}

// Deleted reports whether the message has been recalled.
func (m CachedMessage) Deleted() bool {
	return m.DeleteTimeMs != nil
}

// Preview returns a one-line summary suitable for the conversation list.
func (m CachedMessage) Preview() string {
	if m.Deleted() {
		return "[recalled]"
	}
	switch m.ContentType {
	case ContentImage:
		return "[image]"
	case ContentFile:
		if m.FileName != nil && *m.FileName != "" {
			return "[file] " + *m.FileName
		}
		return "[file]"
	case ContentSticker:
		return "[sticker]"
	case ContentAudio:
		return "[audio]"
	case ContentCall:
		return "[call]"
	}
	if m.Text != nil {
		return *m.Text
	}
	return ""
}

// ReadPosition is the last message the user has seen in a conversation.
type ReadPosition struct {
	MsgID string `json:"msg_id"`
	Seq   int64  `json:"seq"`
}

// Credential is the active session credential.
type Credential struct {
	Token       string `json:"token"`
	UserID      string `json:"user_id"`
	LastLoginMs int64  `json:"last_login_ms"`
}
