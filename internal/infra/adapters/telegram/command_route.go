package telegram

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"vip-key-shop/internal/domain"
	"vip-key-shop/internal/domain/model"
	"vip-key-shop/internal/domain/ports/adapter"
	"vip-key-shop/internal/infra/metrics"
	"vip-key-shop/internal/usecase"
)

const listPageSize = 10

// displayZone renders timestamps the way the shop's admins read them.
var displayZone = time.FixedZone("UTC+7", 7*60*60)

type commandHandler func(ctx context.Context, message *tgbotapi.Message) error

// commandRoutes lists every command. The bot serves admins only, so all of
// them go through adminOnly.
func (r *RealTelegramBotAdapter) commandRoutes() map[string]commandHandler {
	return map[string]commandHandler{
		"start":       r.adminOnly(r.handleStartCommand),
		"help":        r.adminOnly(r.handleHelpCommand),
		"create":      r.adminOnly(r.handleCreateCommand),
		"create_help": r.adminOnly(r.textReply("create_usage")),
		"list":        r.adminOnly(r.handleListCommand),
		"delete":      r.adminOnly(r.handleDeleteCommand),
		"delete_help": r.adminOnly(r.textReply("delete_usage")),
		"revoke":      r.adminOnly(r.handleRevokeCommand),
		"stats":       r.adminOnly(r.handleStatsCommand),
		"stock":       r.adminOnly(r.handleStockCommand),
	}
}

func (r *RealTelegramBotAdapter) adminOnly(next commandHandler) commandHandler {
	return func(ctx context.Context, message *tgbotapi.Message) error {
		cmd := message.Command()
		if cmd == "" {
			cmd = "button"
		}
		if !r.isAdmin(message.From.ID) {
			metrics.IncAdminCommand("telegram", cmd, "unauthorized")
			r.log.Warn().Int64("tg_id", message.From.ID).Str("command", cmd).Msg("non-admin command rejected")
			return r.SendMessage(ctx, message.Chat.ID, r.translator.T("error_unauthorized"))
		}
		err := next(ctx, message)
		status := "ok"
		if err != nil {
			status = "error"
		}
		metrics.IncAdminCommand("telegram", cmd, status)
		return err
	}
}

func (r *RealTelegramBotAdapter) textReply(key string) commandHandler {
	return func(ctx context.Context, message *tgbotapi.Message) error {
		return r.SendMessage(ctx, message.Chat.ID, r.translator.T(key))
	}
}

func (r *RealTelegramBotAdapter) handleStartCommand(ctx context.Context, message *tgbotapi.Message) error {
	return r.sendMenu(message.Chat.ID, r.translator.T("welcome"))
}

func (r *RealTelegramBotAdapter) handleHelpCommand(ctx context.Context, message *tgbotapi.Message) error {
	return r.sendMenu(message.Chat.ID, r.translator.T("help"))
}

// parseCreateArgs reads "[days] [uses]"; missing values mean unlimited.
func parseCreateArgs(args string) (days, uses int, err error) {
	fields := strings.Fields(args)
	if len(fields) > 2 {
		return 0, 0, domain.ErrValidation
	}
	vals := [2]int{}
	for i, f := range fields {
		n, convErr := strconv.Atoi(f)
		if convErr != nil || n < 0 {
			return 0, 0, domain.ErrValidation
		}
		vals[i] = n
	}
	return vals[0], vals[1], nil
}

func (r *RealTelegramBotAdapter) handleCreateCommand(ctx context.Context, message *tgbotapi.Message) error {
	days, uses, err := parseCreateArgs(message.CommandArguments())
	if err != nil {
		return r.SendMessage(ctx, message.Chat.ID, r.translator.T("create_bad_args"))
	}
	by := message.From.UserName
	if by == "" {
		by = message.From.FirstName
	}
	rec, err := r.credentials.Create(ctx, usecase.CreateParams{
		Days:      days,
		MaxUses:   uses,
		Notes:     "Created by " + by,
		CreatedBy: model.CreatedByTelegramBot,
	})
	if err != nil {
		r.log.Error().Err(err).Msg("create key from telegram")
		return r.SendMessage(ctx, message.Chat.ID, r.translator.T("error_generic"))
	}

	text := r.translator.T("key_created",
		rec.Key,
		r.limitText("days_fmt", days),
		r.limitText("uses_fmt", uses),
		rec.CreatedAt.In(displayZone).Format("02/01/2006 15:04"),
	)
	return r.SendButtons(ctx, message.Chat.ID, text, [][]adapter.InlineButton{{
		{Text: r.translator.T("btn_revoke", rec.Key), Data: "revoke:" + rec.Key},
	}})
}

func (r *RealTelegramBotAdapter) limitText(key string, n int) string {
	if n <= 0 {
		return r.translator.T("unlimited")
	}
	return r.translator.T(key, n)
}

func (r *RealTelegramBotAdapter) handleListCommand(ctx context.Context, message *tgbotapi.Message) error {
	return r.sendKeyPage(ctx, message.Chat.ID, 0)
}

// sendKeyPage renders listPageSize keys starting at offset, newest first,
// with a "next" button while more remain.
func (r *RealTelegramBotAdapter) sendKeyPage(ctx context.Context, chatID int64, offset int) error {
	recs, _, err := r.credentials.List(ctx)
	if err != nil {
		r.log.Error().Err(err).Msg("list keys from telegram")
		return r.SendMessage(ctx, chatID, r.translator.T("error_generic"))
	}
	if len(recs) == 0 {
		return r.sendMenu(chatID, r.translator.T("keys_empty"))
	}
	if offset < 0 || offset >= len(recs) {
		offset = 0
	}
	end := offset + listPageSize
	if end > len(recs) {
		end = len(recs)
	}

	var b strings.Builder
	b.WriteString(r.translator.T("keys_header", len(recs)))
	for i, k := range recs[offset:end] {
		status := "✅"
		if !k.Active {
			status = "❌"
		}
		expires := r.translator.T("unlimited")
		if k.ExpiresAt != nil {
			expires = k.ExpiresAt.In(displayZone).Format("02/01/2006")
		}
		uses := r.translator.T("unlimited")
		if k.MaxUses != nil {
			uses = strconv.Itoa(k.CurrentUses) + "/" + strconv.Itoa(*k.MaxUses)
		}
		b.WriteString(r.translator.T("key_line", offset+i+1, status, k.Key, expires, uses))
	}
	if rest := len(recs) - end; rest > 0 {
		b.WriteString(r.translator.T("keys_more", rest))
		return r.SendButtons(ctx, chatID, b.String(), [][]adapter.InlineButton{{
			{Text: r.translator.T("btn_next"), Data: "list:" + strconv.Itoa(end)},
		}})
	}
	return r.SendMessage(ctx, chatID, b.String())
}

func (r *RealTelegramBotAdapter) handleDeleteCommand(ctx context.Context, message *tgbotapi.Message) error {
	key := strings.TrimSpace(message.CommandArguments())
	if key == "" {
		return r.SendMessage(ctx, message.Chat.ID, r.translator.T("delete_usage"))
	}
	rec, err := r.credentials.Delete(ctx, key)
	if err != nil {
		return r.keyError(ctx, message.Chat.ID, key, err)
	}
	r.log.Info().Int64("tg_id", message.From.ID).Str("id", rec.ID).Msg("key deleted from telegram")
	return r.sendMenu(message.Chat.ID, r.translator.T("key_deleted", rec.Key))
}

func (r *RealTelegramBotAdapter) handleRevokeCommand(ctx context.Context, message *tgbotapi.Message) error {
	key := strings.TrimSpace(message.CommandArguments())
	if key == "" {
		return r.SendMessage(ctx, message.Chat.ID, r.translator.T("revoke_usage"))
	}
	return r.revoke(ctx, message.Chat.ID, key)
}

func (r *RealTelegramBotAdapter) revoke(ctx context.Context, chatID int64, key string) error {
	rec, err := r.credentials.Revoke(ctx, key)
	if err != nil {
		return r.keyError(ctx, chatID, key, err)
	}
	return r.SendMessage(ctx, chatID, r.translator.T("key_revoked", rec.Key))
}

func (r *RealTelegramBotAdapter) keyError(ctx context.Context, chatID int64, key string, err error) error {
	if errors.Is(err, domain.ErrCredentialNotFound) || errors.Is(err, domain.ErrValidation) {
		return r.SendMessage(ctx, chatID, r.translator.T("key_not_found", model.NormalizeKey(key)))
	}
	r.log.Error().Err(err).Msg("key command failed")
	return r.SendMessage(ctx, chatID, r.translator.T("error_generic"))
}

func (r *RealTelegramBotAdapter) handleStatsCommand(ctx context.Context, message *tgbotapi.Message) error {
	_, st, err := r.credentials.List(ctx)
	if err != nil {
		return r.SendMessage(ctx, message.Chat.ID, r.translator.T("error_generic"))
	}
	return r.SendMessage(ctx, message.Chat.ID, r.translator.T("stats", st.Total, st.Active, st.Inactive, st.Expired, st.TotalUses))
}

func (r *RealTelegramBotAdapter) handleStockCommand(ctx context.Context, message *tgbotapi.Message) error {
	if r.vpn == nil {
		return r.SendMessage(ctx, message.Chat.ID, r.translator.T("stock_disabled"))
	}
	st, err := r.vpn.Stock(ctx)
	if err != nil {
		return r.SendMessage(ctx, message.Chat.ID, r.translator.T("error_generic"))
	}
	return r.SendMessage(ctx, message.Chat.ID, r.translator.T("stock", st.Available, st.Sold))
}
