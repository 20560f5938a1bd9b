// Package analytics folds batches of click events into per-shortcode counters.
package analytics

import (
	"context"
	"sort"
	"time"

	"github.com/MagnunAVF/shortlink-service/internal/events"
)

type Key struct {
	ShortCode string
	Source    string
}

type Tally struct {
	Count int64
	Last  time.Time
}

type Batch map[Key]Tally

// Aggregate counts events per (shortcode, source) and keeps the latest click time.
func Aggregate(evs []events.ClickEvent) Batch {
	b := make(Batch)
	for _, ev := range evs {
		k := Key{ShortCode: ev.ShortCode, Source: ev.Source}
		t := b[k]
		t.Count++
		if ev.Timestamp.After(t.Last) {
			t.Last = ev.Timestamp
		}
		b[k] = t
	}
	return b
}

// Keys returns the batch keys in a stable order so writers lock rows
// consistently.
func (b Batch) Keys() []Key {
	keys := make([]Key, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].ShortCode == keys[j].ShortCode {
			return keys[i].Source < keys[j].Source
		}
		return keys[i].ShortCode < keys[j].ShortCode
	})
	return keys
}

func (b Batch) Total() int64 {
	var n int64
	for _, t := range b {
		n += t.Count
	}
	return n
}

// Sink persists an aggregated batch.
type Sink interface {
	Apply(ctx context.Context, b Batch) error
}
