// Package notify delivers session lifecycle events (playable, closed) to
// external sinks.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"
)

// Kind is the event type.
type Kind string

const (
	KindPlayable Kind = "playable"
	KindClosed   Kind = "closed"
)

// Event describes one session lifecycle transition.
type Event struct {
	Kind    Kind      `json:"kind"`
	App     string    `json:"app"`
	Stream  string    `json:"stream"`
	Session string    `json:"session"`
	Reason  string    `json:"reason,omitempty"`
	At      time.Time `json:"at"`
}

// Notifier is a notification sink.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, ev Event) error

func (f NotifierFunc) Notify(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

// envelope is the JSON document published by the broker sinks.
type envelope struct {
	Event string `json:"event"`
	Data  Event  `json:"data"`
	At    int64  `json:"at"`
}

func encode(ev Event) ([]byte, error) {
	return json.Marshal(envelope{Event: string(ev.Kind), Data: ev, At: ev.At.Unix()})
}

// Log writes events to a structured logger.
type Log struct {
	log *slog.Logger
}

func NewLog(log *slog.Logger) *Log {
	return &Log{log: log}
}

func (l *Log) Notify(ctx context.Context, ev Event) error {
	l.log.InfoContext(ctx, "session event",
		"event", string(ev.Kind),
		"app", ev.App,
		"stream", ev.Stream,
		"session", ev.Session,
		"reason", ev.Reason,
	)
	return nil
}

// Multi fans an event out to every sink. A failing sink does not stop the
// others; their errors are joined.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, ev Event) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop discards events.
var Nop Notifier = NotifierFunc(func(context.Context, Event) error { return nil })
