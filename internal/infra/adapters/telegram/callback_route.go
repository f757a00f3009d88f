package telegram

import (
	"context"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type cbHandler func(ctx context.Context, chatID int64, data string) error

type prefixCB struct {
	Prefix string
	Fn     cbHandler
}

func (r *RealTelegramBotAdapter) cbPrefixRoutes() []prefixCB {
	return []prefixCB{
		{Prefix: "list:", Fn: r.listPageCBRoute},
		{Prefix: "revoke:", Fn: r.revokeCBRoute},
	}
}

func (r *RealTelegramBotAdapter) handleQuery(ctx context.Context, query *tgbotapi.CallbackQuery) error {
	// stop the client spinner whatever happens next
	if _, err := r.bot.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
		r.log.Debug().Err(err).Msg("answer callback")
	}
	if query.From == nil || query.Message == nil || query.Message.Chat == nil {
		return nil
	}
	chatID := query.Message.Chat.ID
	if !r.isAdmin(query.From.ID) {
		return r.SendMessage(ctx, chatID, r.translator.T("error_unauthorized"))
	}
	if !r.allow(ctx, query.From.ID, "cb", 30) {
		return r.SendMessage(ctx, chatID, r.translator.T("error_rate_limited"))
	}
	for _, route := range r.cbPrefixRoutes() {
		if strings.HasPrefix(query.Data, route.Prefix) {
			return route.Fn(ctx, chatID, strings.TrimPrefix(query.Data, route.Prefix))
		}
	}
	return nil
}

func (r *RealTelegramBotAdapter) listPageCBRoute(ctx context.Context, chatID int64, data string) error {
	offset, err := strconv.Atoi(data)
	if err != nil {
		offset = 0
	}
	return r.sendKeyPage(ctx, chatID, offset)
}

func (r *RealTelegramBotAdapter) revokeCBRoute(ctx context.Context, chatID int64, data string) error {
	return r.revoke(ctx, chatID, data)
}
