// Package shortlink keeps the in-memory mapping from shortcodes to URLs and
// the click history of every shortcode.
package shortlink

import (
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
)

const DefaultRecentClicks = 10

// MaxValidityMinutes is the longest validity whose expiry still fits in a
// time.Duration.
const MaxValidityMinutes = int(math.MaxInt64 / int64(time.Minute))

func ValidValidity(minutes int) bool {
	return minutes > 0 && minutes <= MaxValidityMinutes
}

// Store is safe for concurrent use. A record and its click log are always
// inserted under the same lock, so no reader sees one without the other.
type Store struct {
	mu      sync.RWMutex
	records map[string]URLRecord
	clicks  map[string][]ClickEvent

	now         func() time.Time
	random      func(length int) (string, error)
	length      int
	maxAttempts int
	recent      int
	classify    SourceClassifier
	locate      Locator
	reserved    map[string]bool
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithShortcodeLength(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.length = n
		}
	}
}

func WithMaxAttempts(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

func WithRecentLimit(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.recent = n
		}
	}
}

func WithLocation(l Locator) Option {
	return func(s *Store) { s.locate = l }
}

// WithReserved keeps words such as route names from being used as shortcodes.
// Matching ignores case.
func WithReserved(words ...string) Option {
	return func(s *Store) {
		for _, w := range words {
			s.reserved[strings.ToLower(w)] = true
		}
	}
}

func WithSourceClassifier(c SourceClassifier) Option {
	return func(s *Store) { s.classify = c }
}

func New(opts ...Option) *Store {
	s := &Store{
		records:     make(map[string]URLRecord),
		clicks:      make(map[string][]ClickEvent),
		now:         time.Now,
		random:      randomShortcode,
		length:      DefaultShortcodeLength,
		maxAttempts: DefaultMaxAttempts,
		recent:      DefaultRecentClicks,
		classify:    ClassifySource,
		locate:      FixedLocation(DefaultLocation),
		reserved:    make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GenerateShortcode returns a random shortcode that is not registered at call
// time. It gives up with ErrExhausted after the configured number of attempts.
func (s *Store) GenerateShortcode() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generateLocked()
}

func (s *Store) generateLocked() (string, error) {
	for i := 0; i < s.maxAttempts; i++ {
		code, err := s.random(s.length)
		if err != nil {
			return "", errors.Wrap(err, "generate shortcode")
		}
		if _, taken := s.records[code]; !taken && !s.isReserved(code) {
			return code, nil
		}
	}
	return "", errors.WithMessagef(ErrExhausted, "%d attempts of length %d", s.maxAttempts, s.length)
}

func (s *Store) isReserved(code string) bool {
	return len(s.reserved) > 0 && s.reserved[strings.ToLower(code)]
}

func (s *Store) ShortcodeExists(code string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[code]
	return ok
}

// CreateURL registers originalURL under code. It never overwrites: an
// already registered code yields ErrConflict.
func (s *Store) CreateURL(originalURL string, validityMinutes int, code string) (URLRecord, error) {
	if code == "" {
		return URLRecord{}, errors.WithMessage(ErrInvalidShortcode, "empty shortcode")
	}
	if !ValidValidity(validityMinutes) {
		return URLRecord{}, errors.WithMessagef(ErrInvalidValidity, "got %d", validityMinutes)
	}
	if s.isReserved(code) {
		return URLRecord{}, errors.WithMessagef(ErrInvalidShortcode, "shortcode %q is reserved", code)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.records[code]; taken {
		return URLRecord{}, errors.WithMessagef(ErrConflict, "shortcode %q", code)
	}
	return s.insertLocked(originalURL, validityMinutes, code), nil
}

// Create is CreateURL with generation folded in: an empty code asks the store
// to pick one. Generation and insertion happen under a single lock.
func (s *Store) Create(originalURL string, validityMinutes int, code string) (URLRecord, error) {
	if code == "" {
		if !ValidValidity(validityMinutes) {
			return URLRecord{}, errors.WithMessagef(ErrInvalidValidity, "got %d", validityMinutes)
		}

		s.mu.Lock()
		defer s.mu.Unlock()

		generated, err := s.generateLocked()
		if err != nil {
			return URLRecord{}, err
		}
		return s.insertLocked(originalURL, validityMinutes, generated), nil
	}
	return s.CreateURL(originalURL, validityMinutes, code)
}

func (s *Store) insertLocked(originalURL string, validityMinutes int, code string) URLRecord {
	createdAt := s.now()
	rec := URLRecord{
		Shortcode:       code,
		OriginalURL:     originalURL,
		CreatedAt:       createdAt,
		ExpiresAt:       createdAt.Add(time.Duration(validityMinutes) * time.Minute),
		ValidityMinutes: validityMinutes,
	}
	s.records[code] = rec
	s.clicks[code] = []ClickEvent{}
	return rec
}

func (s *Store) GetURL(code string) (URLRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[code]
	if !ok {
		return URLRecord{}, errors.WithMessagef(ErrNotFound, "shortcode %q", code)
	}
	return rec, nil
}

// IsExpired evaluates rec against the store clock. Records are never removed.
func (s *Store) IsExpired(rec URLRecord) bool {
	return rec.ExpiredAt(s.now())
}

// Resolve combines GetURL and IsExpired. An expired record is returned along
// with ErrExpired.
func (s *Store) Resolve(code string) (URLRecord, error) {
	rec, err := s.GetURL(code)
	if err != nil {
		return URLRecord{}, err
	}
	if s.IsExpired(rec) {
		return rec, errors.WithMessagef(ErrExpired, "shortcode %q at %s", code, rec.ExpiresAt.Format(time.RFC3339))
	}
	return rec, nil
}

func (s *Store) RecordClick(code string, at time.Time, referer string) ClickEvent {
	return s.RecordVisit(code, at, Visit{Referer: referer})
}

// RecordVisit appends a click to the log of code. A missing log is created
// rather than dropping the click.
func (s *Store) RecordVisit(code string, at time.Time, v Visit) ClickEvent {
	ev := ClickEvent{
		Timestamp: at,
		Source:    s.classify(v.Referer),
		Location:  s.locate(v),
		UserAgent: v.UserAgent,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.clicks[code] = append(s.clicks[code], ev)
	return ev
}

// GetStatistics counts every click of code and returns the most recent ones,
// oldest first. Expired records stay queryable.
func (s *Store) GetStatistics(code string) (Statistics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[code]
	if !ok {
		return Statistics{}, errors.WithMessagef(ErrNotFound, "shortcode %q", code)
	}

	log := s.clicks[code]
	start := 0
	if len(log) > s.recent {
		start = len(log) - s.recent
	}
	recent := make([]ClickEvent, len(log)-start)
	copy(recent, log[start:])

	return Statistics{
		TotalClicks:  len(log),
		CreatedAt:    rec.CreatedAt,
		ExpiresAt:    rec.ExpiresAt,
		RecentClicks: recent,
	}, nil
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// All returns every record ordered by creation time.
func (s *Store) All() []URLRecord {
	s.mu.RLock()
	out := make([]URLRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Shortcode < out[j].Shortcode
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
