package telegram

import (
	"context"
	"strings"

	tele "gopkg.in/telebot.v4"

	"promobot/internal/engage"
	"promobot/internal/transport"
	logx "promobot/pkg/logx"
	"promobot/pkg/tgui"
)

// callbackNS namespaces this bot's inline-keyboard callback data.
const callbackNS = "promo"

// Handler is the dispatch core as seen from the transport side.
type Handler interface {
	Handle(ctx context.Context, ev engage.Event) (engage.Reply, error)
}

// Bridge pumps adapter updates through the dispatch core and delivers the
// resulting replies. Delivery failures are logged, never retried here.
type Bridge struct {
	adapter transport.Adapter
	handler Handler
	log     logx.Logger
}

func NewBridge(adapter transport.Adapter, handler Handler, log logx.Logger) *Bridge {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Bridge{adapter: adapter, handler: handler, log: log}
}

// Run starts the adapter and blocks consuming updates until ctx is done.
func (b *Bridge) Run(ctx context.Context) error {
	ch := make(chan transport.Update, 128)
	if err := b.adapter.Start(ctx, ch); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case up := <-ch:
			b.handleUpdate(ctx, up)
		}
	}
}

func (b *Bridge) handleUpdate(ctx context.Context, up transport.Update) {
	ev, chat, ok := eventFromUpdate(up)
	if !ok {
		b.log.Debug("update ignored", logx.String("kind", string(up.Kind)))
		return
	}

	// Acknowledge button presses promptly so the client stops its spinner.
	if up.Kind == transport.UpdateCallback {
		if err := b.adapter.AnswerCallback(ctx, up.Callback.ID, ""); err != nil {
			b.log.Debug("callback ack failed", logx.Err(err))
		}
	}

	rep, err := b.handler.Handle(ctx, ev)
	if err != nil {
		// The reply still carries the user-facing apology; dispatch keeps going.
		b.log.Error("event handling failed",
			logx.String("event", string(ev.Kind)),
			logx.Int64("user_id", ev.UserID),
			logx.Err(err),
		)
	}
	if rep.Text == "" {
		return
	}

	opt := &transport.SendOptions{}
	if len(rep.Options) > 0 {
		opt.ReplyMarkupAdapter = markupFor(rep.Options)
	}
	if _, err := b.adapter.SendText(ctx, chat, rep.Text, opt); err != nil {
		b.log.Warn("reply delivery failed",
			logx.Int64("chat_id", chat.ChatID),
			logx.Err(err),
		)
	}
}

// eventFromUpdate classifies one raw update into an engagement event.
// Unknown commands and foreign callback namespaces are dropped.
func eventFromUpdate(up transport.Update) (engage.Event, transport.ChatTarget, bool) {
	switch up.Kind {
	case transport.UpdateMessage:
		m := up.Message
		if m == nil {
			return engage.Event{}, transport.ChatTarget{}, false
		}
		chat := transport.ChatTarget{ChatID: m.ChatID}
		text := strings.TrimSpace(m.Text)
		if strings.HasPrefix(text, "/") {
			kind, ok := commandKind(text)
			if !ok {
				return engage.Event{}, transport.ChatTarget{}, false
			}
			return engage.Event{Kind: kind, UserID: m.FromID, DisplayName: m.FromUsername}, chat, true
		}
		return engage.Event{
			Kind:        engage.EventFreeText,
			UserID:      m.FromID,
			DisplayName: m.FromUsername,
			Text:        text,
		}, chat, true

	case transport.UpdateCallback:
		cb := up.Callback
		if cb == nil {
			return engage.Event{}, transport.ChatTarget{}, false
		}
		ns, action, ok := tgui.Split(cb.Data)
		if !ok || ns != callbackNS {
			return engage.Event{}, transport.ChatTarget{}, false
		}
		return engage.Event{
			Kind:      engage.EventButton,
			UserID:    cb.FromID,
			Selection: action,
		}, transport.ChatTarget{ChatID: cb.ChatID}, true
	}
	return engage.Event{}, transport.ChatTarget{}, false
}

func commandKind(text string) (engage.EventKind, bool) {
	cmd := text
	if i := strings.IndexAny(cmd, " \t"); i > 0 {
		cmd = cmd[:i]
	}
	// Strip the "@botname" suffix Telegram appends in groups.
	if i := strings.IndexByte(cmd, '@'); i > 0 {
		cmd = cmd[:i]
	}
	switch strings.ToLower(cmd) {
	case "/start":
		return engage.EventGreeting, true
	case "/promotions":
		return engage.EventPromoRequest, true
	case "/stats":
		return engage.EventAdminReport, true
	}
	return "", false
}

func markupFor(opts []engage.Option) *tele.ReplyMarkup {
	buttons := make([]tele.Btn, 0, len(opts))
	for _, o := range opts {
		buttons = append(buttons, tgui.Btn(o.Label, tgui.Data(callbackNS, o.Token)))
	}
	return tgui.Grid2(buttons)
}
