package metadata

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"strmsync/internal/config"
	"strmsync/internal/logging"
	"strmsync/internal/naming"
	"strmsync/internal/textutil"
)

// Kind selects which external catalog is searched.
type Kind string

const (
	KindMovie  Kind = "movie"
	KindSeries Kind = "series"
)

// Candidate is one ranked search result from the external ID service.
type Candidate struct {
	ID    int64
	Title string
	Year  int
}

// Searcher queries the external ID service. Results are ranked best first.
type Searcher interface {
	SearchMovie(ctx context.Context, title string, year int) ([]Candidate, error)
	SearchSeries(ctx context.Context, title string, year int) ([]Candidate, error)
}

// Match is the outcome of a resolve call.
type Match struct {
	ID         int64
	Confidence int
	Found      bool
	FromCache  bool
}

// Settings tunes lookups and the false-positive heuristics.
type Settings struct {
	MaxConcurrent     int
	RequestsPerSecond float64
	LookupTimeout     time.Duration
	CacheMaxAge       time.Duration
	YearTolerance     int
	ShortTitleLength  int
	LongTitleLength   int
	RetryWithoutYear  bool
}

// DefaultSettings mirrors the configuration defaults.
func DefaultSettings() Settings {
	return Settings{
		MaxConcurrent:     3,
		RequestsPerSecond: 4,
		LookupTimeout:     5 * time.Second,
		CacheMaxAge:       30 * 24 * time.Hour,
		YearTolerance:     2,
		ShortTitleLength:  3,
		LongTitleLength:   15,
		RetryWithoutYear:  true,
	}
}

// SettingsFromConfig maps the metadata section onto resolver settings.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		MaxConcurrent:     cfg.Metadata.MaxConcurrent,
		RequestsPerSecond: cfg.Metadata.RequestsPerSecond,
		LookupTimeout:     cfg.LookupTimeout(),
		CacheMaxAge:       cfg.CacheMaxAge(),
		YearTolerance:     cfg.Metadata.YearTolerance,
		ShortTitleLength:  cfg.Metadata.ShortTitleLength,
		LongTitleLength:   cfg.Metadata.LongTitleLength,
		RetryWithoutYear:  cfg.Metadata.RetryWithoutYear,
	}
}

// Stats summarises resolver activity for a run.
type Stats struct {
	Lookups   int64 `json:"lookups"`
	CacheHits int64 `json:"cache_hits"`
	Matched   int64 `json:"matched"`
	Unmatched int64 `json:"unmatched"`
	Rejected  int64 `json:"rejected"`
	Timeouts  int64 `json:"timeouts"`
	Errors    int64 `json:"errors"`
}

// Observer receives one call per finished network lookup with its result
// label (matched, not_found, rejected, timeout, error).
type Observer func(kind Kind, result string)

// Resolver maps titles to external identifiers through a cache, a bounded
// concurrency limiter, and a request rate limiter.
type Resolver struct {
	searcher Searcher
	cache    *Cache
	settings Settings
	sem      *semaphore.Weighted
	limiter  *rate.Limiter
	now      func() time.Time
	logger   *slog.Logger
	observe  Observer

	lookups   atomic.Int64
	cacheHits atomic.Int64
	matched   atomic.Int64
	unmatched atomic.Int64
	rejected  atomic.Int64
	timeouts  atomic.Int64
	failures  atomic.Int64
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithClock overrides the time source used for cache freshness.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

// WithObserver registers a lookup observer, typically a metrics sink.
func WithObserver(obs Observer) Option {
	return func(r *Resolver) {
		r.observe = obs
	}
}

// NewResolver builds a resolver. A nil cache is replaced by a memory-only one.
func NewResolver(searcher Searcher, cache *Cache, settings Settings, logger *slog.Logger, opts ...Option) *Resolver {
	defaults := DefaultSettings()
	if settings.MaxConcurrent <= 0 {
		settings.MaxConcurrent = defaults.MaxConcurrent
	}
	if settings.LookupTimeout <= 0 {
		settings.LookupTimeout = defaults.LookupTimeout
	}
	if cache == nil {
		cache = &Cache{entries: make(map[string]CacheEntry), dirty: make(map[string]struct{}), logger: logging.NewNop()}
	}
	limit := rate.Inf
	if settings.RequestsPerSecond > 0 {
		limit = rate.Limit(settings.RequestsPerSecond)
	}
	r := &Resolver{
		searcher: searcher,
		cache:    cache,
		settings: settings,
		sem:      semaphore.NewWeighted(int64(settings.MaxConcurrent)),
		limiter:  rate.NewLimiter(limit, 1),
		now:      time.Now,
		logger:   logging.NewComponentLogger(logger, "metadata"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolveMovie resolves a movie title and optional release year.
func (r *Resolver) ResolveMovie(ctx context.Context, title string, year int) (Match, error) {
	return r.resolve(ctx, KindMovie, title, year)
}

// ResolveSeries resolves a series title and optional first-air year.
func (r *Resolver) ResolveSeries(ctx context.Context, title string, year int) (Match, error) {
	return r.resolve(ctx, KindSeries, title, year)
}

// Cache exposes the backing cache so callers can flush it.
func (r *Resolver) Cache() *Cache {
	return r.cache
}

// Stats returns a point-in-time copy of the counters.
func (r *Resolver) Stats() Stats {
	return Stats{
		Lookups:   r.lookups.Load(),
		CacheHits: r.cacheHits.Load(),
		Matched:   r.matched.Load(),
		Unmatched: r.unmatched.Load(),
		Rejected:  r.rejected.Load(),
		Timeouts:  r.timeouts.Load(),
		Errors:    r.failures.Load(),
	}
}

func (r *Resolver) resolve(ctx context.Context, kind Kind, title string, year int) (Match, error) {
	match, err := r.lookup(ctx, kind, title, year)
	if err != nil {
		return Match{}, err
	}
	if !match.Found && year > 0 && r.settings.RetryWithoutYear {
		match, err = r.lookup(ctx, kind, title, 0)
		if err != nil {
			return Match{}, err
		}
	}
	if match.Found {
		r.matched.Add(1)
	} else {
		r.unmatched.Add(1)
	}
	return match, nil
}

func (r *Resolver) lookup(ctx context.Context, kind Kind, title string, year int) (Match, error) {
	key := CacheKey(kind, title, year)
	if entry, ok := r.cache.Get(key, r.settings.CacheMaxAge, r.now()); ok {
		r.cacheHits.Add(1)
		return Match{ID: entry.ExternalID, Confidence: entry.Confidence, Found: entry.Found(), FromCache: true}, nil
	}

	if err := r.sem.Acquire(ctx, 1); err != nil {
		return Match{}, err
	}
	defer r.sem.Release(1)

	if err := r.limiter.Wait(ctx); err != nil {
		return Match{}, err
	}

	r.lookups.Add(1)
	lookupCtx, cancel := context.WithTimeout(ctx, r.settings.LookupTimeout)
	defer cancel()

	var (
		candidates []Candidate
		err        error
	)
	switch kind {
	case KindSeries:
		candidates, err = r.searcher.SearchSeries(lookupCtx, title, year)
	default:
		candidates, err = r.searcher.SearchMovie(lookupCtx, title, year)
	}
	if err != nil {
		if ctx.Err() != nil {
			return Match{}, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) || lookupCtx.Err() != nil {
			r.timeouts.Add(1)
			r.notify(kind, "timeout")
			logging.WarnWithContext(r.logger, "metadata lookup timed out", "metadata_lookup_timeout",
				logging.String("kind", string(kind)),
				logging.String("title", title),
				logging.Int("year", year),
				logging.Duration("timeout", r.settings.LookupTimeout),
				logging.String(logging.FieldErrorHint, "the lookup is retried on the next run"),
				logging.String(logging.FieldImpact, "folder is created without an external id suffix"))
			return Match{}, nil
		}
		r.failures.Add(1)
		r.notify(kind, "error")
		logging.WarnWithContext(r.logger, "metadata lookup failed", "metadata_lookup_failed",
			logging.String("kind", string(kind)),
			logging.String("title", title),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check tmdb.api_key and network access"),
			logging.String(logging.FieldImpact, "folder is created without an external id suffix"))
		return Match{}, nil
	}

	entry := CacheEntry{Key: key, Kind: kind, LookedUpAt: r.now()}
	result := "not_found"
	if len(candidates) > 0 {
		top := candidates[0]
		if reason := r.rejectReason(title, year, top); reason != "" {
			r.rejected.Add(1)
			result = "rejected"
			r.logger.Debug("rejected metadata candidate",
				logging.String("kind", string(kind)),
				logging.String("title", title),
				logging.Int("year", year),
				logging.String("candidate", top.Title),
				logging.Int("candidate_year", top.Year),
				logging.String("decision_reason", reason))
		} else {
			entry.ExternalID = top.ID
			entry.Confidence = confidence(title, year, top)
			result = "matched"
		}
	}
	r.cache.Put(entry)
	r.notify(kind, result)
	return Match{ID: entry.ExternalID, Confidence: entry.Confidence, Found: entry.Found()}, nil
}

// rejectReason applies the false-positive heuristics to the top candidate
// and returns a non-empty reason when it must be discarded.
func (r *Resolver) rejectReason(title string, year int, top Candidate) string {
	tolerance := r.settings.YearTolerance
	if year > 0 && top.Year > 0 && absDiff(year, top.Year) > tolerance {
		return "year_mismatch"
	}
	if year == 0 && top.Year > 0 {
		if _, embedded := naming.ExtractYear(title); embedded > 0 && absDiff(embedded, top.Year) > tolerance {
			return "title_year_mismatch"
		}
	}
	resultLen := utf8.RuneCountInString(top.Title)
	queryLen := utf8.RuneCountInString(title)
	if resultLen <= r.settings.ShortTitleLength {
		if queryLen >= r.settings.LongTitleLength {
			return "degenerate_short_title"
		}
		if textutil.TitleSimilarity(title, top.Title) == 0 {
			return "unrelated_short_title"
		}
	}
	return ""
}

func (r *Resolver) notify(kind Kind, result string) {
	if r.observe != nil {
		r.observe(kind, result)
	}
}

func confidence(title string, year int, top Candidate) int {
	name, embedded := naming.ExtractYear(title)
	score := textutil.TitleSimilarity(name, top.Title)
	if year == 0 {
		year = embedded
	}
	if year > 0 && year == top.Year && score < 100 {
		score += 10
	}
	return min(score, 100)
}

// CacheKey builds the normalized "kind:title[:year]" key.
func CacheKey(kind Kind, title string, year int) string {
	key := string(kind) + ":" + textutil.Fold(title)
	if year > 0 {
		key += ":" + strconv.Itoa(year)
	}
	return key
}

func absDiff(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}
