package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"vip-key-shop/internal/config"
	"vip-key-shop/internal/domain/ports/adapter"
	"vip-key-shop/internal/infra/i18n"
	"vip-key-shop/internal/infra/logging"
	"vip-key-shop/internal/infra/metrics"
	red "vip-key-shop/internal/infra/redis"
	"vip-key-shop/internal/usecase"
)

var _ adapter.TelegramBotAdapter = (*RealTelegramBotAdapter)(nil)

// botAPI is the part of *tgbotapi.BotAPI the adapter uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Limiter is satisfied by the Redis fixed-window rate limiter.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// RealTelegramBotAdapter is the admin bot: key management commands for the
// configured admin chat ids, plus order notifications.
type RealTelegramBotAdapter struct {
	bot         botAPI
	credentials usecase.CredentialUseCase
	vpn         usecase.VPNUseCase // nil hides /stock
	rateLimiter Limiter
	translator  *i18n.Translator
	log         *zerolog.Logger

	adminIDs      []int64
	adminIDsMap   map[int64]struct{}
	updateWorkers int

	mu            sync.Mutex
	cancelPolling context.CancelFunc
}

func NewRealTelegramBotAdapter(
	cfg *config.BotConfig,
	credentials usecase.CredentialUseCase,
	vpn usecase.VPNUseCase,
	rateLimiter Limiter,
	translator *i18n.Translator,
	logger *zerolog.Logger,
) (*RealTelegramBotAdapter, error) {
	if cfg == nil {
		return nil, errors.New("bot config is nil")
	}
	if credentials == nil {
		return nil, errors.New("credential use case is nil")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram login: %w", err)
	}
	return newAdapter(bot, cfg, credentials, vpn, rateLimiter, translator, logger), nil
}

func newAdapter(
	bot botAPI,
	cfg *config.BotConfig,
	credentials usecase.CredentialUseCase,
	vpn usecase.VPNUseCase,
	rateLimiter Limiter,
	translator *i18n.Translator,
	logger *zerolog.Logger,
) *RealTelegramBotAdapter {
	adminMap := make(map[int64]struct{}, len(cfg.AdminIDs))
	for _, id := range cfg.AdminIDs {
		adminMap[id] = struct{}{}
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	l := logger.With().Str("component", "telegram").Logger()
	return &RealTelegramBotAdapter{
		bot:           bot,
		credentials:   credentials,
		vpn:           vpn,
		rateLimiter:   rateLimiter,
		translator:    translator,
		log:           &l,
		adminIDs:      append([]int64(nil), cfg.AdminIDs...),
		adminIDsMap:   adminMap,
		updateWorkers: workers,
	}
}

// StartPolling blocks until ctx is cancelled or StopPolling is called.
func (r *RealTelegramBotAdapter) StartPolling(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := r.bot.GetUpdatesChan(u)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	r.mu.Lock()
	r.cancelPolling = cancel
	r.mu.Unlock()
	defer r.bot.StopReceivingUpdates()

	var wg sync.WaitGroup
	updateChan := make(chan tgbotapi.Update, 100)

	for i := 0; i < r.updateWorkers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for up := range updateChan {
				if err := r.handleUpdate(ctx, up); err != nil {
					r.log.Warn().Err(err).Int("worker", id).Msg("update failed")
				}
			}
		}(i)
	}

	r.log.Info().Int("workers", r.updateWorkers).Int("admins", len(r.adminIDs)).Msg("telegram polling started")
	for {
		select {
		case <-ctx.Done():
			close(updateChan)
			wg.Wait()
			return ctx.Err()
		case up, ok := <-updates:
			if !ok {
				close(updateChan)
				wg.Wait()
				return nil
			}
			select {
			case updateChan <- up:
			case <-ctx.Done():
				close(updateChan)
				wg.Wait()
				return ctx.Err()
			}
		}
	}
}

func (r *RealTelegramBotAdapter) StopPolling() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancelPolling != nil {
		r.cancelPolling()
	}
}

func (r *RealTelegramBotAdapter) SendMessage(ctx context.Context, tgID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(tgID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	_, err := r.bot.Send(msg)
	return err
}

// SendButtons sends text with an inline keyboard. A button with a URL opens
// the link; otherwise it sends its Data (or its label) as callback data.
func (r *RealTelegramBotAdapter) SendButtons(ctx context.Context, tgID int64, text string, rows [][]adapter.InlineButton) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(tgID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if kb := inlineKeyboard(rows); kb != nil {
		msg.ReplyMarkup = *kb
	}
	_, err := r.bot.Send(msg)
	return err
}

func inlineKeyboard(rows [][]adapter.InlineButton) *tgbotapi.InlineKeyboardMarkup {
	kbRows := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		out := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			label := strings.TrimSpace(btn.Text)
			if label == "" {
				label = "•"
			}
			switch {
			case btn.URL != "":
				out = append(out, tgbotapi.NewInlineKeyboardButtonURL(label, btn.URL))
			case btn.Data != "":
				out = append(out, tgbotapi.NewInlineKeyboardButtonData(label, btn.Data))
			default:
				out = append(out, tgbotapi.NewInlineKeyboardButtonData(label, label))
			}
		}
		kbRows = append(kbRows, out)
	}
	if len(kbRows) == 0 {
		return nil
	}
	m := tgbotapi.NewInlineKeyboardMarkup(kbRows...)
	return &m
}

// NotifyAdmins sends text to every admin chat and joins the failures.
func (r *RealTelegramBotAdapter) NotifyAdmins(ctx context.Context, text string) error {
	var errs []error
	for _, id := range r.adminIDs {
		if err := r.SendMessage(ctx, id, text); err != nil {
			errs = append(errs, fmt.Errorf("admin %d: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// sendMenu sends text with the persistent admin reply keyboard.
func (r *RealTelegramBotAdapter) sendMenu(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(r.translator.T("btn_create")),
			tgbotapi.NewKeyboardButton(r.translator.T("btn_list")),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(r.translator.T("btn_delete")),
			tgbotapi.NewKeyboardButton(r.translator.T("btn_stats")),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(r.translator.T("btn_help")),
		),
	)
	kb.ResizeKeyboard = true
	msg.ReplyMarkup = kb
	_, err := r.bot.Send(msg)
	return err
}

func (r *RealTelegramBotAdapter) isAdmin(id int64) bool {
	_, ok := r.adminIDsMap[id]
	return ok
}

// allow applies the per-user command rate limit. Redis failures let the
// command through.
func (r *RealTelegramBotAdapter) allow(ctx context.Context, userID int64, command string, limit int) bool {
	if r.rateLimiter == nil {
		return true
	}
	ok, err := r.rateLimiter.Allow(ctx, red.UserCommandKey(userID, command), limit, time.Minute)
	if err != nil {
		r.log.Warn().Err(err).Msg("rate limiter unavailable")
		return true
	}
	if !ok {
		metrics.IncRateLimited("telegram")
	}
	return ok
}

func (r *RealTelegramBotAdapter) handleUpdate(ctx context.Context, update tgbotapi.Update) error {
	if update.CallbackQuery != nil {
		return r.handleQuery(ctx, update.CallbackQuery)
	}
	msg := update.Message
	if msg == nil || msg.From == nil {
		return nil
	}
	ctx = logging.WithTgID(ctx, msg.From.ID)

	command := msg.Command()
	if command == "" {
		// reply keyboard buttons arrive as plain text
		command = r.buttonCommand(strings.TrimSpace(msg.Text))
		if command == "" {
			return nil
		}
	}
	handler, ok := r.commandRoutes()[command]
	if !ok {
		return nil
	}
	if !r.allow(ctx, msg.From.ID, command, 20) {
		return r.SendMessage(ctx, msg.Chat.ID, r.translator.T("error_rate_limited"))
	}
	return handler(ctx, msg)
}

func (r *RealTelegramBotAdapter) buttonCommand(text string) string {
	switch text {
	case r.translator.T("btn_create"):
		return "create_help"
	case r.translator.T("btn_list"):
		return "list"
	case r.translator.T("btn_delete"):
		return "delete_help"
	case r.translator.T("btn_stats"):
		return "stats"
	case r.translator.T("btn_help"):
		return "help"
	}
	return ""
}
