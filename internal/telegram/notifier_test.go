package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/google/uuid"
	"github.com/set-night/adbazaar/internal/config"
	"github.com/set-night/adbazaar/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	mu           sync.Mutex
	sent         []bot.SendMessageParams
	rejectMarkup bool
	err          error
}

func (f *fakeSender) SendMessage(_ context.Context, params *bot.SendMessageParams) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.rejectMarkup && params.ParseMode != "" {
		return nil, errors.New("Bad Request: can't parse entities")
	}
	f.sent = append(f.sent, *params)
	return &models.Message{ID: len(f.sent)}, nil
}

func testNotifier(sender messageSender) *Notifier {
	cfg := &config.Config{
		LogTelegramChatID: -100123,
		LogTopicError:     2,
		LogTopicPayment:   3,
		LogTopicReferral:  4,
		LogTopicSignup:    5,
	}
	n := newNotifier(sender, cfg)
	n.dispatch = func(f func()) { f() }
	return n
}

func TestNotifier_RoutesEventsToTopics(t *testing.T) {
	sender := &fakeSender{}
	n := testNotifier(sender)

	user := &domain.User{ID: uuid.New(), Name: "ana_b", Email: "ana@example.com"}
	payment := &domain.Payment{ID: uuid.New(), UserID: user.ID, Amount: decimal.NewFromInt(40), Currency: "USD", Status: domain.PaymentStatusCompleted}
	campaign := &domain.Campaign{Name: "Spring", SlotType: domain.SlotBottom, DurationDays: 1, Country: "ZZ"}

	n.Error(errors.New("db `down`"), "POST /api/payments/checkout")
	n.Signup(user, "ABCD2345")
	n.PaymentCompleted(payment, campaign)
	n.PaymentRefunded(payment, decimal.NewFromInt(15))
	n.ReferralConverted(
		&domain.Referral{ReferrerID: uuid.New(), ReferredID: user.ID, Code: "ABCD2345"},
		&domain.ReferralReward{Type: domain.RewardCredit, Value: decimal.NewFromInt(25)},
	)

	require.Len(t, sender.sent, 5)
	topics := make([]int, 0, len(sender.sent))
	for _, p := range sender.sent {
		assert.Equal(t, int64(-100123), p.ChatID)
		assert.Equal(t, models.ParseModeMarkdownV1, p.ParseMode)
		topics = append(topics, p.MessageThreadID)
	}
	assert.Equal(t, []int{2, 5, 3, 3, 4}, topics)

	assert.Contains(t, sender.sent[0].Text, "db 'down'")
	assert.Contains(t, sender.sent[1].Text, `ana\_b`)
	assert.Contains(t, sender.sent[1].Text, "ABCD2345")
	assert.Contains(t, sender.sent[2].Text, "40.00 USD")
	assert.Contains(t, sender.sent[3].Text, "15.00 USD")
	assert.Contains(t, sender.sent[4].Text, "credit 25")
}

func TestNotifier_SkipsUnconfigured(t *testing.T) {
	sender := &fakeSender{}
	n := testNotifier(sender)
	n.cfg.LogTopicSignup = 0
	n.Signup(&domain.User{ID: uuid.New()}, "")
	assert.Empty(t, sender.sent)

	n.cfg.LogTelegramChatID = 0
	n.Error(errors.New("boom"), "ctx")
	assert.Empty(t, sender.sent)
}

func TestSendMarkdown_FallsBackToPlainText(t *testing.T) {
	sender := &fakeSender{rejectMarkup: true}
	require.NoError(t, sendMarkdown(context.Background(), sender, 1, 7, "*bold"))
	require.Len(t, sender.sent, 1)
	assert.Empty(t, sender.sent[0].ParseMode)
	assert.Equal(t, 7, sender.sent[0].MessageThreadID)
}

func TestSendMarkdown_Error(t *testing.T) {
	sender := &fakeSender{err: errors.New("network down")}
	err := sendMarkdown(context.Background(), sender, 1, 0, "hi")
	assert.ErrorContains(t, err, "network down")
}

func TestEscape(t *testing.T) {
	assert.Equal(t, "a\\_b \\*c\\* \\`d\\` \\[e]", escape("a_b *c* `d` [e]"))
	assert.Equal(t, "plain", escape("plain"))
}

func TestTruncate(t *testing.T) {
	short := "hello"
	assert.Equal(t, short, truncate(short, 10))

	long := strings.Repeat("ж", MaxMessageLen+100)
	out := truncate(long, MaxMessageLen)
	assert.LessOrEqual(t, utf8.RuneCountInString(out), MaxMessageLen)
	assert.True(t, strings.HasSuffix(out, "(truncated)"))
}
