package shortlink

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestCreateURLAndGet(t *testing.T) {
	clock := newFakeClock()
	store := New(WithClock(clock.Now))

	rec, err := store.CreateURL("https://example.com", 30, "abc123")
	require.NoError(t, err)
	assert.Equal(t, 30, rec.ValidityMinutes)
	assert.Equal(t, "https://example.com", rec.OriginalURL)
	assert.Equal(t, clock.Now(), rec.CreatedAt)
	assert.Equal(t, rec.CreatedAt.Add(30*time.Minute), rec.ExpiresAt)

	got, err := store.GetURL("abc123")
	require.NoError(t, err)
	assert.Equal(t, rec, got)
	assert.True(t, store.ShortcodeExists("abc123"))

	_, err = store.CreateURL("https://other.example.com", 5, "abc123")
	assert.True(t, errors.Is(err, ErrConflict))

	got, err = store.GetURL("abc123")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", got.OriginalURL, "conflict must not overwrite")
}

func TestCreateURLRejectsBadInput(t *testing.T) {
	store := New()

	_, err := store.CreateURL("https://example.com", 30, "")
	assert.True(t, errors.Is(err, ErrInvalidShortcode))

	_, err = store.CreateURL("https://example.com", 0, "abc")
	assert.True(t, errors.Is(err, ErrInvalidValidity))

	_, err = store.Create("https://example.com", -1, "")
	assert.True(t, errors.Is(err, ErrInvalidValidity))

	assert.Equal(t, 0, store.Len())
}

func TestExpiryArithmeticForManyValidities(t *testing.T) {
	store := New()
	for _, minutes := range []int{1, 2, 30, 60, 1440, 525600} {
		code := fmt.Sprintf("code%d", minutes)
		_, err := store.CreateURL("https://example.com", minutes, code)
		require.NoError(t, err)

		rec, err := store.GetURL(code)
		require.NoError(t, err)
		assert.Equal(t, time.Duration(minutes)*time.Minute, rec.ExpiresAt.Sub(rec.CreatedAt))
	}
}

func TestGetUnknown(t *testing.T) {
	store := New()

	_, err := store.GetURL("nope")
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = store.GetStatistics("nope")
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = store.Resolve("nope")
	assert.True(t, errors.Is(err, ErrNotFound))

	assert.False(t, store.ShortcodeExists("nope"))
}

func TestGenerateShortcode(t *testing.T) {
	store := New()

	seen := make(map[string]bool)
	for i := 0; i < 500; i++ {
		code, err := store.GenerateShortcode()
		require.NoError(t, err)
		assert.Len(t, code, DefaultShortcodeLength)
		assert.True(t, ValidShortcode(code), code)
		assert.False(t, store.ShortcodeExists(code))

		_, err = store.CreateURL("https://example.com", 10, code)
		require.NoError(t, err)
		assert.False(t, seen[code], "duplicate %s", code)
		seen[code] = true
	}
	assert.Equal(t, 500, store.Len())
}

func TestGenerateShortcodeSkipsTakenCodes(t *testing.T) {
	store := New()
	_, err := store.CreateURL("https://example.com", 10, "taken")
	require.NoError(t, err)

	calls := 0
	store.random = func(int) (string, error) {
		calls++
		if calls < 3 {
			return "taken", nil
		}
		return "free", nil
	}

	code, err := store.GenerateShortcode()
	require.NoError(t, err)
	assert.Equal(t, "free", code)
	assert.Equal(t, 3, calls)
}

func TestGenerateShortcodeExhausted(t *testing.T) {
	store := New(WithMaxAttempts(4))
	_, err := store.CreateURL("https://example.com", 10, "taken")
	require.NoError(t, err)

	calls := 0
	store.random = func(int) (string, error) {
		calls++
		return "taken", nil
	}

	_, err = store.GenerateShortcode()
	assert.True(t, errors.Is(err, ErrExhausted))
	assert.Equal(t, 4, calls)

	_, err = store.Create("https://example.com", 10, "")
	assert.True(t, errors.Is(err, ErrExhausted))
	assert.Equal(t, 1, store.Len())
}

func TestCreateWithoutShortcodeTwice(t *testing.T) {
	store := New()

	first, err := store.Create("https://example.com/a", 30, "")
	require.NoError(t, err)
	second, err := store.Create("https://example.com/a", 30, "")
	require.NoError(t, err)

	assert.NotEqual(t, first.Shortcode, second.Shortcode)
	for _, rec := range []URLRecord{first, second} {
		got, err := store.Resolve(rec.Shortcode)
		require.NoError(t, err)
		assert.Equal(t, rec, got)
	}
}

func TestIsExpired(t *testing.T) {
	clock := newFakeClock()
	store := New(WithClock(clock.Now))

	rec, err := store.CreateURL("https://example.com", 1, "short")
	require.NoError(t, err)
	assert.False(t, store.IsExpired(rec))

	clock.Advance(60 * time.Second)
	assert.False(t, store.IsExpired(rec), "still valid at exactly expiresAt")

	clock.Advance(time.Millisecond)
	assert.True(t, store.IsExpired(rec))
	assert.True(t, store.IsExpired(rec), "repeated checks agree")

	_, err = store.Resolve("short")
	assert.True(t, errors.Is(err, ErrExpired))
	assert.True(t, store.ShortcodeExists("short"), "expired records are kept")

	stats, err := store.GetStatistics("short")
	require.NoError(t, err)
	assert.Equal(t, rec.ExpiresAt, stats.ExpiresAt)
}

func TestRecordClickStatistics(t *testing.T) {
	clock := newFakeClock()
	store := New(WithClock(clock.Now))
	_, err := store.CreateURL("https://example.com", 30, "abc123")
	require.NoError(t, err)

	stats, err := store.GetStatistics("abc123")
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalClicks)
	assert.Empty(t, stats.RecentClicks)

	base := clock.Now()
	for i := 0; i < 11; i++ {
		referer := DirectReferer
		if i%2 == 1 {
			referer = "https://news.example.com"
		}
		store.RecordClick("abc123", base.Add(time.Duration(i)*time.Second), referer)
	}

	stats, err = store.GetStatistics("abc123")
	require.NoError(t, err)
	assert.Equal(t, 11, stats.TotalClicks)
	require.Len(t, stats.RecentClicks, 10)
	assert.Equal(t, base.Add(time.Second), stats.RecentClicks[0].Timestamp, "oldest click excluded")
	assert.Equal(t, base.Add(10*time.Second), stats.RecentClicks[9].Timestamp)
	assert.Equal(t, SourceReferral, stats.RecentClicks[0].Source)
	assert.Equal(t, SourceDirect, stats.RecentClicks[9].Source)
	assert.Equal(t, DefaultLocation, stats.RecentClicks[9].Location)
}

func TestRecordClickFewerThanLimit(t *testing.T) {
	store := New()
	_, err := store.CreateURL("https://example.com", 30, "few")
	require.NoError(t, err)

	now := time.Now()
	for i := 0; i < 3; i++ {
		store.RecordClick("few", now.Add(time.Duration(i)*time.Second), "")
	}

	stats, err := store.GetStatistics("few")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalClicks)
	assert.Len(t, stats.RecentClicks, 3)
}

func TestStatisticsAreSnapshots(t *testing.T) {
	store := New()
	_, err := store.CreateURL("https://example.com", 30, "snap")
	require.NoError(t, err)
	store.RecordClick("snap", time.Now(), "")

	stats, err := store.GetStatistics("snap")
	require.NoError(t, err)
	stats.RecentClicks[0].Location = "mutated"

	again, err := store.GetStatistics("snap")
	require.NoError(t, err)
	assert.Equal(t, DefaultLocation, again.RecentClicks[0].Location)
}

func TestRecordClickOnUnknownCodeDoesNotRegister(t *testing.T) {
	store := New()
	ev := store.RecordClick("ghost", time.Now(), "https://ref.example.com")
	assert.Equal(t, SourceReferral, ev.Source)
	assert.False(t, store.ShortcodeExists("ghost"))

	_, err := store.GetStatistics("ghost")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestStoreOptions(t *testing.T) {
	store := New(
		WithShortcodeLength(12),
		WithRecentLimit(2),
		WithLocation(func(v Visit) string { return "ua:" + v.UserAgent }),
		WithSourceClassifier(func(string) Source { return SourceReferral }),
	)

	rec, err := store.Create("https://example.com", 5, "")
	require.NoError(t, err)
	assert.Len(t, rec.Shortcode, 12)

	for i := 0; i < 3; i++ {
		store.RecordVisit(rec.Shortcode, time.Now(), Visit{UserAgent: fmt.Sprintf("agent-%d", i)})
	}

	stats, err := store.GetStatistics(rec.Shortcode)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalClicks)
	require.Len(t, stats.RecentClicks, 2)
	assert.Equal(t, "ua:agent-1", stats.RecentClicks[0].Location)
	assert.Equal(t, "agent-2", stats.RecentClicks[1].UserAgent)
	assert.Equal(t, SourceReferral, stats.RecentClicks[1].Source)
}

func TestAllOrdersByCreation(t *testing.T) {
	clock := newFakeClock()
	store := New(WithClock(clock.Now))

	for _, code := range []string{"zzz", "aaa", "mmm"} {
		_, err := store.CreateURL("https://example.com/"+code, 5, code)
		require.NoError(t, err)
		clock.Advance(time.Second)
	}

	var codes []string
	for _, rec := range store.All() {
		codes = append(codes, rec.Shortcode)
	}
	assert.Equal(t, []string{"zzz", "aaa", "mmm"}, codes)
}

func TestConcurrentCustomCreateHasOneWinner(t *testing.T) {
	store := New()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		wins      int
		conflicts int
	)
	wg.Add(50)
	for i := 0; i < 50; i++ {
		go func() {
			defer wg.Done()
			_, err := store.CreateURL("https://example.com", 5, "race")
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
			} else if errors.Is(err, ErrConflict) {
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, 49, conflicts)
}

func TestConcurrentClicks(t *testing.T) {
	store := New()
	_, err := store.CreateURL("https://example.com", 5, "busy")
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1000)
	for i := 0; i < 1000; i++ {
		go func() {
			defer wg.Done()
			store.RecordClick("busy", time.Now(), "")
		}()
	}
	wg.Wait()

	stats, err := store.GetStatistics("busy")
	require.NoError(t, err)
	assert.Equal(t, 1000, stats.TotalClicks)
	assert.Len(t, stats.RecentClicks, DefaultRecentClicks)
}

func TestConcurrentGeneratedCreatesAreDistinct(t *testing.T) {
	store := New()

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		codes = make(map[string]bool)
	)
	wg.Add(200)
	for i := 0; i < 200; i++ {
		go func() {
			defer wg.Done()
			rec, err := store.Create("https://example.com", 5, "")
			if err != nil {
				return
			}
			mu.Lock()
			codes[rec.Shortcode] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, codes, 200)
	assert.Equal(t, 200, store.Len())
}

func TestValidityUpperBound(t *testing.T) {
	clock := newFakeClock()
	store := New(WithClock(clock.Now))

	rec, err := store.CreateURL("https://example.com", MaxValidityMinutes, "longest")
	require.NoError(t, err)
	assert.Equal(t, time.Duration(MaxValidityMinutes)*time.Minute, rec.ExpiresAt.Sub(rec.CreatedAt))
	assert.True(t, rec.ExpiresAt.After(rec.CreatedAt))
	assert.False(t, store.IsExpired(rec))

	_, err = store.CreateURL("https://example.com", MaxValidityMinutes+1, "toolong")
	assert.True(t, errors.Is(err, ErrInvalidValidity))

	_, err = store.CreateURL("https://example.com", 200000000, "big")
	assert.True(t, errors.Is(err, ErrInvalidValidity))

	_, err = store.Create("https://example.com", 200000000, "")
	assert.True(t, errors.Is(err, ErrInvalidValidity))

	assert.False(t, store.ShortcodeExists("toolong"))
	assert.Equal(t, 1, store.Len())
}

func TestStoreErrorsCarryNoCallSiteStack(t *testing.T) {
	store := New()

	_, err := store.GetURL("nope")
	require.Error(t, err)
	assert.Equal(t, `shortcode "nope": shortcode not found`, err.Error())
	assert.NotContains(t, fmt.Sprintf("%+v", err), "store.go")

	_, err = store.CreateURL("https://example.com", 5, "dup")
	require.NoError(t, err)
	_, err = store.CreateURL("https://example.com", 5, "dup")
	assert.NotContains(t, fmt.Sprintf("%+v", err), "store.go")
}

func TestReservedShortcodes(t *testing.T) {
	store := New(WithReserved("health", "shorturls"), WithShortcodeLength(6))

	for _, code := range []string{"health", "Health", "SHORTURLS"} {
		_, err := store.CreateURL("https://example.com", 5, code)
		assert.True(t, errors.Is(err, ErrInvalidShortcode), code)
	}

	calls := 0
	store.random = func(int) (string, error) {
		calls++
		if calls == 1 {
			return "HEALTH", nil
		}
		return "fine01", nil
	}
	code, err := store.GenerateShortcode()
	require.NoError(t, err)
	assert.Equal(t, "fine01", code)
	assert.Equal(t, 0, store.Len())
	assert.False(t, strings.EqualFold(code, "health"))
}
