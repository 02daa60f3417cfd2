package command

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/adamavenir/chatcache/internal/core"
	"github.com/adamavenir/chatcache/internal/types"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

const maxPreviewLen = 60

var (
	nameStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("111"))
	unreadStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("231")).Background(lipgloss.Color("203"))
	mentionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("220"))
	senderStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("157"))
	metaStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	outStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("78"))
)

func writeJSON(w io.Writer, value any) error {
	return json.NewEncoder(w).Encode(value)
}

// relativeTime renders a millisecond timestamp as "3 minutes ago".
func relativeTime(ms int64) string {
	if ms <= 0 {
		return "never"
	}
	return humanize.Time(time.UnixMilli(ms))
}

func truncatePreview(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= maxPreviewLen {
		return text
	}
	return string(runes[:maxPreviewLen-3]) + "..."
}

// FormatConversation renders one row of the conversation list.
func FormatConversation(c types.ConversationSummary) string {
	var b strings.Builder
	if c.UnreadCount > 0 {
		b.WriteString(unreadStyle.Render(fmt.Sprintf(" %s ", humanize.Comma(int64(c.UnreadCount)))))
		b.WriteString(" ")
	}
	if c.MentionFlag > 0 {
		b.WriteString(mentionStyle.Render("@"))
		b.WriteString(" ")
	}
	b.WriteString(nameStyle.Render(c.Name))
	b.WriteString(metaStyle.Render(fmt.Sprintf(" (%s %s)", c.ChatType, c.ChatID)))
	if c.LastContent != "" {
		b.WriteString(" ")
		b.WriteString(truncatePreview(c.LastContent))
	}
	b.WriteString(metaStyle.Render(" · " + relativeTime(c.LastUpdateTimeMs)))
	return b.String()
}

// FormatMessage renders one message line. idLength controls how much of the id is shown.
func FormatMessage(m types.CachedMessage, idLength int) string {
	seq := "-"
	if m.Seq != nil {
		seq = fmt.Sprintf("%d", *m.Seq)
	}
	sender := m.SenderName
	if sender == "" {
		sender = m.SenderChatID
	}
	style := senderStyle
	if m.Direction == types.DirectionOutbound {
		style = outStyle
	}
	suffix := ""
	if m.EditTimeMs != nil && !m.Deleted() {
		suffix = " (edited)"
	}
	return fmt.Sprintf("%s %s: %s%s %s",
		metaStyle.Render(fmt.Sprintf("[#%s %s]", seq, core.ShortID(m.MsgID, idLength))),
		style.Render(sender),
		truncatePreview(m.Preview()),
		suffix,
		metaStyle.Render("· "+relativeTime(m.SendTimeMs)))
}
