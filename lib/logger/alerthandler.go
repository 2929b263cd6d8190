package logger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Alerter delivers a formatted alert text, e.g. to a Telegram chat.
type Alerter interface {
	Alert(level slog.Level, text string)
}

// AlertHandler is a slog.Handler that passes every record to the wrapped
// handler and additionally sends high-level records to an Alerter.
type AlertHandler struct {
	handler  slog.Handler
	alerter  Alerter
	minLevel slog.Level
	attrs    []slog.Attr
	group    string
}

func NewAlertHandler(handler slog.Handler, alerter Alerter, minLevel slog.Level) *AlertHandler {
	return &AlertHandler{
		handler:  handler,
		alerter:  alerter,
		minLevel: minLevel,
		attrs:    make([]slog.Attr, 0),
	}
}

func (h *AlertHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *AlertHandler) Handle(ctx context.Context, record slog.Record) error {
	if err := h.handler.Handle(ctx, record); err != nil {
		return err
	}
	if record.Level < h.minLevel || h.alerter == nil {
		return nil
	}

	var sb strings.Builder
	if h.group != "" {
		sb.WriteString(fmt.Sprintf("%s %s.%s", record.Level.String(), h.group, record.Message))
	} else {
		sb.WriteString(fmt.Sprintf("%s %s", record.Level.String(), record.Message))
	}
	for _, attr := range h.attrs {
		sb.WriteString(fmt.Sprintf("\n%s: %v", attr.Key, attr.Value))
	}
	record.Attrs(func(attr slog.Attr) bool {
		sb.WriteString(fmt.Sprintf("\n%s: %v", attr.Key, attr.Value))
		return true
	})

	h.alerter.Alert(record.Level, sb.String())
	return nil
}

func (h *AlertHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	copy(newAttrs[len(h.attrs):], attrs)

	return &AlertHandler{
		handler:  h.handler.WithAttrs(attrs),
		alerter:  h.alerter,
		minLevel: h.minLevel,
		attrs:    newAttrs,
		group:    h.group,
	}
}

func (h *AlertHandler) WithGroup(name string) slog.Handler {
	group := name
	if h.group != "" {
		group = h.group + "." + name
	}

	return &AlertHandler{
		handler:  h.handler.WithGroup(name),
		alerter:  h.alerter,
		minLevel: h.minLevel,
		attrs:    h.attrs,
		group:    group,
	}
}
