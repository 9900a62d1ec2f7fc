package telegram

import (
	"strconv"
	"strings"
	"unicode/utf16"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rewired-gh/ca-monitor/internal/models"
)

// Convert turns a Telegram update into an IncomingMessage. It reports false for
// updates that carry nothing to inspect: edits, service messages other than
// pins, unsupported chat types, and (with pinnedOnlyGroups) ordinary group
// messages.
func Convert(update tgbotapi.Update, pinnedOnlyGroups bool) (*models.IncomingMessage, bool) {
	msg := update.Message
	if msg == nil {
		msg = update.ChannelPost
	}
	if msg == nil || msg.Chat == nil {
		return nil, false
	}

	kind, ok := sourceKind(msg.Chat)
	if !ok {
		return nil, false
	}

	content := msg
	if msg.PinnedMessage != nil {
		content = msg.PinnedMessage
	} else if kind == models.SourceGroup && pinnedOnlyGroups {
		return nil, false
	}

	text, entities := content.Text, content.Entities
	if text == "" {
		text, entities = content.Caption, content.CaptionEntities
	}

	in := &models.IncomingMessage{
		SourceID:    strconv.FormatInt(msg.Chat.ID, 10),
		SourceKind:  kind,
		SourceTitle: chatTitle(msg.Chat),
		Text:        text,
		Buttons:     append(keyboardButtons(content.ReplyMarkup), linkButtons(text, entities)...),
		ReceivedAt:  msg.Time(),
	}
	if in.IsEmpty() {
		return nil, false
	}
	return in, true
}

func sourceKind(chat *tgbotapi.Chat) (models.SourceKind, bool) {
	switch {
	case chat.IsChannel():
		return models.SourceChannel, true
	case chat.IsGroup(), chat.IsSuperGroup():
		return models.SourceGroup, true
	case chat.IsPrivate():
		return models.SourceUser, true
	}
	return "", false
}

func chatTitle(chat *tgbotapi.Chat) string {
	if chat.Title != "" {
		return chat.Title
	}
	name := strings.TrimSpace(chat.FirstName + " " + chat.LastName)
	if name != "" {
		return name
	}
	if chat.UserName != "" {
		return "@" + chat.UserName
	}
	return ""
}

func keyboardButtons(markup *tgbotapi.InlineKeyboardMarkup) []models.Button {
	if markup == nil {
		return nil
	}

	var buttons []models.Button
	for _, row := range markup.InlineKeyboard {
		for _, btn := range row {
			b := models.Button{Label: btn.Text}
			if btn.URL != nil {
				b.URL = *btn.URL
			}
			if b.Label == "" && b.URL == "" {
				continue
			}
			buttons = append(buttons, b)
		}
	}
	return buttons
}

// linkButtons maps text_link entities (link text with a hidden URL) to buttons.
// Entity offsets count UTF-16 code units.
func linkButtons(text string, entities []tgbotapi.MessageEntity) []models.Button {
	var units []uint16
	var buttons []models.Button

	for _, e := range entities {
		if e.Type != "text_link" || e.URL == "" {
			continue
		}
		if units == nil {
			units = utf16.Encode([]rune(text))
		}

		label := ""
		if e.Offset >= 0 && e.Length > 0 && e.Offset+e.Length <= len(units) {
			label = string(utf16.Decode(units[e.Offset : e.Offset+e.Length]))
		}
		buttons = append(buttons, models.Button{Label: label, URL: e.URL})
	}
	return buttons
}
