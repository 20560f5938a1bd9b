// Package events carries click events from the redirect path to downstream
// analytics.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/MagnunAVF/shortlink-service/internal/shortlink"
)

type ClickEvent struct {
	ShortCode string    `json:"short_code"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Location  string    `json:"location"`
	UserAgent string    `json:"user_agent"`
}

func FromClick(code string, c shortlink.ClickEvent) ClickEvent {
	return ClickEvent{
		ShortCode: code,
		Timestamp: c.Timestamp,
		Source:    string(c.Source),
		Location:  c.Location,
		UserAgent: c.UserAgent,
	}
}

func Encode(ev ClickEvent) ([]byte, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return nil, errors.Wrap(err, "encode click event")
	}
	return body, nil
}

// Decode rejects payloads without a shortcode.
func Decode(body []byte) (ClickEvent, error) {
	var ev ClickEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return ClickEvent{}, errors.Wrap(err, "decode click event")
	}
	if ev.ShortCode == "" {
		return ClickEvent{}, errors.New("decode click event: missing short_code")
	}
	return ev, nil
}

type Publisher interface {
	Publish(ctx context.Context, ev ClickEvent) error
	Close() error
}

// Noop drops every event. It is used when no broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, ClickEvent) error { return nil }
func (Noop) Close() error                              { return nil }
