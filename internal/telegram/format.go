package telegram

import (
	"fmt"
	"strings"

	"github.com/rewired-gh/ca-monitor/internal/models"
)

const timeLayout = "2006-01-02 15:04:05"

// formatOwnerMessage formats a detection into the detailed owner message
func formatOwnerMessage(d models.Detection) string {
	var b strings.Builder

	fmt.Fprintf(&b, "🚨 *%s CA DETECTED\\!*\n\n", escapeMarkdownV2(string(d.Platform)))
	fmt.Fprintf(&b, "🔗 `%s`\n\n", escapeCode(d.Address))

	keyShape := "no"
	if d.PublicKey {
		keyShape = "yes"
	}
	fmt.Fprintf(&b, "🔑 *32\\-byte key:* %s\n", keyShape)
	fmt.Fprintf(&b, "📊 *Source:* %s\n", escapeMarkdownV2(d.SourceLabel()))
	fmt.Fprintf(&b, "🆔 *Source ID:* `%s`\n", escapeCode(d.SourceID))
	fmt.Fprintf(&b, "📍 *Found in:* %s\n", escapeMarkdownV2(strings.ReplaceAll(string(d.Origin), "_", " ")))
	if !d.Hints.Empty() {
		fmt.Fprintf(&b, "🏷 *Hints:* %s\n", escapeMarkdownV2(d.Hints.String()))
	}
	fmt.Fprintf(&b, "🕒 *Time:* %s\n", escapeMarkdownV2(d.DetectedAt.Format(timeLayout)))

	if d.Snippet != "" {
		fmt.Fprintf(&b, "\n📝 *Message:*\n%s", escapeMarkdownV2(d.Snippet))
	}

	return b.String()
}

// formatTargetMessage is the CA-only message for the target user
func formatTargetMessage(address string) string {
	return address
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2
func escapeMarkdownV2(text string) string {
	// Characters that need escaping in MarkdownV2:
	// _ * [ ] ( ) ~ ` > # + - = | { } . ! \
	var b strings.Builder
	b.Grow(len(text))
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}

// escapeCode escapes text placed inside a `code` span
func escapeCode(text string) string {
	return strings.NewReplacer("\\", "\\\\", "`", "\\`").Replace(text)
}
