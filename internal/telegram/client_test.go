package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rewired-gh/ca-monitor/internal/models"
)

const testCA = "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"

type fakeBot struct {
	mu       sync.Mutex
	failures int // remaining sends that fail
	sent     []tgbotapi.MessageConfig
	updates  chan tgbotapi.Update
	stopped  bool
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return tgbotapi.Message{}, errors.New("Too Many Requests: retry after 1")
	}
	f.sent = append(f.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}

func (f *fakeBot) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeBot) StopReceivingUpdates() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

func sampleDetection() models.Detection {
	return models.Detection{
		ID:          "det-1",
		Address:     testCA,
		Origin:      models.OriginButtonURL,
		Platform:    models.PlatformPumpFun,
		Hints:       models.HintSet(0).Add(models.HintPumpFun).Add(models.HintBirdeye),
		PublicKey:   true,
		SourceID:    "-1001234567890",
		SourceKind:  models.SourceChannel,
		SourceTitle: "Alpha Calls",
		Snippet:     "New launch! 1.5x (maybe)",
		DetectedAt:  time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
	}
}

func TestSendOwnerAndTarget(t *testing.T) {
	bot := &fakeBot{}
	c := newClient(bot, 3, time.Millisecond)

	owner := models.Notification{Recipient: models.RecipientOwner, ChatID: 1, Detection: sampleDetection(), Address: testCA}
	target := models.Notification{Recipient: models.RecipientTarget, ChatID: 2, Address: testCA}

	if err := c.Send(context.Background(), owner); err != nil {
		t.Fatalf("owner send failed: %v", err)
	}
	if err := c.Send(context.Background(), target); err != nil {
		t.Fatalf("target send failed: %v", err)
	}

	if len(bot.sent) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(bot.sent))
	}
	if bot.sent[0].ChatID != 1 || bot.sent[0].ParseMode != tgbotapi.ModeMarkdownV2 {
		t.Errorf("unexpected owner message config: %+v", bot.sent[0])
	}
	if bot.sent[1].ChatID != 2 || bot.sent[1].Text != testCA || bot.sent[1].ParseMode != "" {
		t.Errorf("target message should be the bare address, got %+v", bot.sent[1])
	}
}

func TestSendRetries(t *testing.T) {
	bot := &fakeBot{failures: 2}
	c := newClient(bot, 3, time.Millisecond)

	if err := c.Notify(context.Background(), 1, "hello"); err != nil {
		t.Fatalf("expected success on third attempt, got %v", err)
	}
	if len(bot.sent) != 1 {
		t.Errorf("expected 1 delivered message, got %d", len(bot.sent))
	}
}

func TestSendGivesUp(t *testing.T) {
	bot := &fakeBot{failures: 5}
	c := newClient(bot, 2, time.Millisecond)

	err := c.Notify(context.Background(), 1, "hello")
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if !strings.Contains(err.Error(), "after 2 retries") {
		t.Errorf("unexpected error: %v", err)
	}
	if bot.failures != 3 {
		t.Errorf("expected exactly 2 attempts, %d failures left", bot.failures)
	}
}

func TestSendHonoursContext(t *testing.T) {
	bot := &fakeBot{failures: 5}
	c := newClient(bot, 5, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := c.Notify(ctx, 1, "hello"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestListen(t *testing.T) {
	bot := &fakeBot{updates: make(chan tgbotapi.Update, 3)}
	c := newClient(bot, 1, time.Millisecond)

	bot.updates <- tgbotapi.Update{ChannelPost: &tgbotapi.Message{
		Chat: &tgbotapi.Chat{ID: -1001, Type: "channel", Title: "Alpha"},
		Text: "CA " + testCA,
	}}
	bot.updates <- tgbotapi.Update{EditedMessage: &tgbotapi.Message{
		Chat: &tgbotapi.Chat{ID: -1001, Type: "channel"},
		Text: "edited " + testCA,
	}}
	bot.updates <- tgbotapi.Update{Message: &tgbotapi.Message{
		Chat: &tgbotapi.Chat{ID: 77, Type: "private", FirstName: "Ann"},
		Text: "hi",
	}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := c.Listen(ctx, ListenOptions{PollTimeout: 1})

	first := <-out
	if first.SourceID != "-1001" || first.SourceKind != models.SourceChannel || first.SourceTitle != "Alpha" {
		t.Errorf("unexpected first message: %+v", first)
	}
	second := <-out
	if second.SourceKind != models.SourceUser || second.Text != "hi" {
		t.Errorf("edited update should be skipped, got %+v", second)
	}

	cancel()
	for range out {
	}
	bot.mu.Lock()
	defer bot.mu.Unlock()
	if !bot.stopped {
		t.Error("polling was not stopped on cancel")
	}
}
