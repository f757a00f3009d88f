//go:build !integration

package telegram

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"vip-key-shop/internal/config"
	"vip-key-shop/internal/domain"
	"vip-key-shop/internal/domain/model"
	"vip-key-shop/internal/infra/i18n"
	"vip-key-shop/internal/usecase"
)

const adminID int64 = 42

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

type fakeBot struct {
	mu       sync.Mutex
	sent     []tgbotapi.MessageConfig
	requests []tgbotapi.Chattable
	updates  chan tgbotapi.Update
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, m)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeBot) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeBot) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	if f.updates != nil {
		return f.updates
	}
	return make(chan tgbotapi.Update)
}

func (f *fakeBot) StopReceivingUpdates() {}

func (f *fakeBot) last(t *testing.T) tgbotapi.MessageConfig {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		t.Fatal("no message sent")
	}
	return f.sent[len(f.sent)-1]
}

type fakeCredentials struct {
	usecase.CredentialUseCase
	records []*model.CredentialRecord
	created []usecase.CreateParams
	revoked []string
	deleted []string
}

func (f *fakeCredentials) Create(_ context.Context, p usecase.CreateParams) (*model.CredentialRecord, error) {
	f.created = append(f.created, p)
	rec := &model.CredentialRecord{ID: "id-1", Key: "ABCD-EFGH-IJKL-MNOP", Active: true, CreatedAt: time.Date(2026, 1, 2, 3, 4, 0, 0, time.UTC)}
	f.records = append([]*model.CredentialRecord{rec}, f.records...)
	return rec, nil
}

func (f *fakeCredentials) List(context.Context) ([]*model.CredentialRecord, model.CredentialStats, error) {
	return f.records, model.ComputeCredentialStats(f.records, time.Now()), nil
}

func (f *fakeCredentials) find(key string) *model.CredentialRecord {
	for _, r := range f.records {
		if r.Key == model.NormalizeKey(key) {
			return r
		}
	}
	return nil
}

func (f *fakeCredentials) Delete(_ context.Context, key string) (*model.CredentialRecord, error) {
	r := f.find(key)
	if r == nil {
		return nil, domain.ErrCredentialNotFound
	}
	f.deleted = append(f.deleted, r.Key)
	return r, nil
}

func (f *fakeCredentials) Revoke(_ context.Context, key string) (*model.CredentialRecord, error) {
	r := f.find(key)
	if r == nil {
		return nil, domain.ErrCredentialNotFound
	}
	r.Active = false
	f.revoked = append(f.revoked, r.Key)
	return r, nil
}

type fakeVPN struct{ usecase.VPNUseCase }

func (fakeVPN) Stock(context.Context) (usecase.VPNStock, error) {
	return usecase.VPNStock{Available: 3, Sold: 2}, nil
}

type denyAll struct{}

func (denyAll) Allow(context.Context, string, int, time.Duration) (bool, error) { return false, nil }

func newTestAdapter(t *testing.T, creds *fakeCredentials, vpn usecase.VPNUseCase, limiter Limiter) (*RealTelegramBotAdapter, *fakeBot) {
	t.Helper()
	tr, err := i18n.New("en")
	if err != nil {
		t.Fatalf("translator: %v", err)
	}
	bot := &fakeBot{}
	cfg := &config.BotConfig{AdminIDs: []int64{adminID, 7}}
	return newAdapter(bot, cfg, creds, vpn, limiter, tr, newTestLogger()), bot
}

func command(from int64, text string) tgbotapi.Update {
	n := len(text)
	if i := strings.IndexByte(text, ' '); i > 0 {
		n = i
	}
	return tgbotapi.Update{Message: &tgbotapi.Message{
		From:     &tgbotapi.User{ID: from, UserName: "boss"},
		Chat:     &tgbotapi.Chat{ID: from},
		Text:     text,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: n}},
	}}
}

func callback(from int64, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    &tgbotapi.User{ID: from},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: from}},
		Data:    data,
	}}
}

func TestNonAdminIsRejected(t *testing.T) {
	creds := &fakeCredentials{}
	a, bot := newTestAdapter(t, creds, nil, nil)

	if err := a.handleUpdate(context.Background(), command(999, "/create 7")); err != nil {
		t.Fatal(err)
	}
	if got := bot.last(t).Text; got != a.translator.T("error_unauthorized") {
		t.Fatalf("got %q", got)
	}
	if len(creds.created) != 0 {
		t.Fatal("non-admin must not create keys")
	}
}

func TestCreateCommand(t *testing.T) {
	creds := &fakeCredentials{}
	a, bot := newTestAdapter(t, creds, nil, nil)

	if err := a.handleUpdate(context.Background(), command(adminID, "/create 7 100")); err != nil {
		t.Fatal(err)
	}
	if len(creds.created) != 1 {
		t.Fatalf("expected one create, got %d", len(creds.created))
	}
	p := creds.created[0]
	if p.Days != 7 || p.MaxUses != 100 || p.CreatedBy != model.CreatedByTelegramBot || p.Notes != "Created by boss" {
		t.Fatalf("unexpected params %+v", p)
	}
	msg := bot.last(t)
	if !strings.Contains(msg.Text, "ABCD-EFGH-IJKL-MNOP") || !strings.Contains(msg.Text, "7 days") || !strings.Contains(msg.Text, "100 uses") {
		t.Fatalf("unexpected reply %q", msg.Text)
	}
	// 03:04 UTC shown as 10:04 in UTC+7
	if !strings.Contains(msg.Text, "02/01/2026 10:04") {
		t.Errorf("created time not localized: %q", msg.Text)
	}
	kb, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	if !ok || *kb.InlineKeyboard[0][0].CallbackData != "revoke:ABCD-EFGH-IJKL-MNOP" {
		t.Fatalf("expected revoke button, got %#v", msg.ReplyMarkup)
	}
}

func TestCreateCommandUnlimitedAndBadArgs(t *testing.T) {
	creds := &fakeCredentials{}
	a, bot := newTestAdapter(t, creds, nil, nil)
	ctx := context.Background()

	_ = a.handleUpdate(ctx, command(adminID, "/create"))
	if p := creds.created[0]; p.Days != 0 || p.MaxUses != 0 {
		t.Fatalf("expected unlimited key, got %+v", p)
	}
	if strings.Count(bot.last(t).Text, "∞") != 2 {
		t.Errorf("expected two ∞ markers: %q", bot.last(t).Text)
	}

	_ = a.handleUpdate(ctx, command(adminID, "/create x"))
	if got := bot.last(t).Text; got != a.translator.T("create_bad_args") {
		t.Fatalf("got %q", got)
	}
	if len(creds.created) != 1 {
		t.Fatal("bad args must not create")
	}
}

func TestListPaginates(t *testing.T) {
	creds := &fakeCredentials{}
	exp := time.Date(2030, 5, 1, 0, 0, 0, 0, time.UTC)
	limit := 5
	for i := 0; i < 12; i++ {
		creds.records = append(creds.records, &model.CredentialRecord{Key: "KEY-" + string(rune('A'+i)), Active: i != 0, ExpiresAt: &exp, MaxUses: &limit, CurrentUses: 2})
	}
	a, bot := newTestAdapter(t, creds, nil, nil)
	ctx := context.Background()

	_ = a.handleUpdate(ctx, command(adminID, "/list"))
	first := bot.last(t)
	if !strings.Contains(first.Text, "Keys (12)") || !strings.Contains(first.Text, "❌ `KEY-A`") || !strings.Contains(first.Text, "2/5") {
		t.Fatalf("unexpected first page %q", first.Text)
	}
	if strings.Contains(first.Text, "KEY-K") {
		t.Fatal("first page must hold ten keys")
	}
	kb, ok := first.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	if !ok || *kb.InlineKeyboard[0][0].CallbackData != "list:10" {
		t.Fatalf("expected next button, got %#v", first.ReplyMarkup)
	}

	_ = a.handleUpdate(ctx, callback(adminID, "list:10"))
	second := bot.last(t)
	if !strings.Contains(second.Text, "11. ✅ `KEY-K`") || strings.Contains(second.Text, "KEY-A`") {
		t.Fatalf("unexpected second page %q", second.Text)
	}
	if second.ReplyMarkup != nil {
		t.Errorf("last page must not offer next, got %#v", second.ReplyMarkup)
	}
	if len(bot.requests) != 1 {
		t.Errorf("callback should be answered once, got %d", len(bot.requests))
	}
}

func TestDeleteAndRevoke(t *testing.T) {
	creds := &fakeCredentials{records: []*model.CredentialRecord{{ID: "1", Key: "AAAA-BBBB-CCCC-DDDD", Active: true}}}
	a, bot := newTestAdapter(t, creds, nil, nil)
	ctx := context.Background()

	_ = a.handleUpdate(ctx, command(adminID, "/revoke"))
	if got := bot.last(t).Text; got != a.translator.T("revoke_usage") {
		t.Fatalf("got %q", got)
	}

	_ = a.handleUpdate(ctx, callback(adminID, "revoke:aaaa-bbbb-cccc-dddd"))
	if len(creds.revoked) != 1 || creds.records[0].Active {
		t.Fatal("revoke callback did not deactivate")
	}

	_ = a.handleUpdate(ctx, command(adminID, "/delete zzzz"))
	if got := bot.last(t).Text; got != a.translator.T("key_not_found", "ZZZZ") {
		t.Fatalf("got %q", got)
	}

	_ = a.handleUpdate(ctx, command(adminID, "/delete aaaa-bbbb-cccc-dddd"))
	if len(creds.deleted) != 1 || creds.deleted[0] != "AAAA-BBBB-CCCC-DDDD" {
		t.Fatalf("delete not applied: %v", creds.deleted)
	}
}

func TestStatsAndStock(t *testing.T) {
	limit := 1
	creds := &fakeCredentials{records: []*model.CredentialRecord{
		{Key: "A", Active: true, CurrentUses: 3},
		{Key: "B", Active: false, MaxUses: &limit, CurrentUses: 1},
	}}
	ctx := context.Background()

	a, bot := newTestAdapter(t, creds, nil, nil)
	_ = a.handleUpdate(ctx, command(adminID, "/stats"))
	if got, want := bot.last(t).Text, a.translator.T("stats", 2, 1, 1, 0, 4); got != want {
		t.Fatalf("stats = %q, want %q", got, want)
	}
	_ = a.handleUpdate(ctx, command(adminID, "/stock"))
	if got := bot.last(t).Text; got != a.translator.T("stock_disabled") {
		t.Fatalf("got %q", got)
	}

	a, bot = newTestAdapter(t, creds, fakeVPN{}, nil)
	_ = a.handleUpdate(ctx, command(adminID, "/stock"))
	if got := bot.last(t).Text; got != a.translator.T("stock", 3, 2) {
		t.Fatalf("got %q", got)
	}
}

func TestReplyKeyboardButtons(t *testing.T) {
	a, bot := newTestAdapter(t, &fakeCredentials{}, nil, nil)
	up := tgbotapi.Update{Message: &tgbotapi.Message{
		From: &tgbotapi.User{ID: adminID},
		Chat: &tgbotapi.Chat{ID: adminID},
		Text: a.translator.T("btn_create"),
	}}
	if err := a.handleUpdate(context.Background(), up); err != nil {
		t.Fatal(err)
	}
	if got := bot.last(t).Text; got != a.translator.T("create_usage") {
		t.Fatalf("got %q", got)
	}

	_ = a.handleUpdate(context.Background(), command(adminID, "/start"))
	if _, ok := bot.last(t).ReplyMarkup.(tgbotapi.ReplyKeyboardMarkup); !ok {
		t.Fatalf("start should show the menu, got %#v", bot.last(t).ReplyMarkup)
	}
}

func TestRateLimited(t *testing.T) {
	creds := &fakeCredentials{}
	a, bot := newTestAdapter(t, creds, nil, denyAll{})
	_ = a.handleUpdate(context.Background(), command(adminID, "/create"))
	if got := bot.last(t).Text; got != a.translator.T("error_rate_limited") {
		t.Fatalf("got %q", got)
	}
	if len(creds.created) != 0 {
		t.Fatal("limited command must not run")
	}
}

func TestNotifyAdmins(t *testing.T) {
	a, bot := newTestAdapter(t, &fakeCredentials{}, nil, nil)
	if err := a.NotifyAdmins(context.Background(), "paid"); err != nil {
		t.Fatal(err)
	}
	if len(bot.sent) != 2 || bot.sent[0].ChatID != adminID || bot.sent[1].ChatID != 7 {
		t.Fatalf("unexpected sends %+v", bot.sent)
	}
}

func TestNoopBotAdapter(t *testing.T) {
	b := NewNoopBotAdapter(newTestLogger())
	if err := b.NotifyAdmins(context.Background(), "x"); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := b.SendMessage(ctx, 1, "x"); err == nil {
		t.Fatal("expected context error")
	}
}

func TestStartPollingStopsOnCancel(t *testing.T) {
	a, _ := newTestAdapter(t, &fakeCredentials{}, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.StartPolling(ctx) }()
	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("StartPolling = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("polling did not stop")
	}
}

func TestStartPollingStopsWhileQueueIsFull(t *testing.T) {
	a, bot := newTestAdapter(t, &fakeCredentials{}, nil, nil)
	bot.updates = make(chan tgbotapi.Update)
	a.updateWorkers = 0 // nothing drains the queue

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- a.StartPolling(ctx) }()

	// 100 fill the queue, the last one leaves the loop waiting to enqueue
	for i := 0; i < 101; i++ {
		select {
		case bot.updates <- tgbotapi.Update{UpdateID: i}:
		case <-time.After(2 * time.Second):
			t.Fatalf("update %d was not received", i)
		}
	}
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("StartPolling = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("polling did not stop while blocked on a full queue")
	}
}
