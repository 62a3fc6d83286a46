package xtream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"strmsync/internal/catalog"
	"strmsync/internal/config"
	"strmsync/internal/logging"
	"strmsync/internal/services"
)

const (
	defaultExtension = "mp4"
	maxBodyBytes     = 256 << 20
)

// Settings configures a Client.
type Settings struct {
	BaseURL         string
	Username        string
	Password        string
	UserAgent       string
	RequestDelay    time.Duration
	Timeout         time.Duration
	MaxRetries      int
	RetryDelay      time.Duration
	BreakerFailures int
}

// SettingsFromConfig maps the provider section onto client settings.
func SettingsFromConfig(p config.Provider) Settings {
	return Settings{
		BaseURL:         p.URL,
		Username:        p.Username,
		Password:        p.Password,
		UserAgent:       p.UserAgent,
		RequestDelay:    time.Duration(p.RequestDelayMS) * time.Millisecond,
		Timeout:         time.Duration(p.TimeoutSeconds) * time.Second,
		MaxRetries:      p.MaxRetries,
		RetryDelay:      500 * time.Millisecond,
		BreakerFailures: p.BreakerFailures,
	}
}

// RequestObserver is told the action and outcome of every HTTP attempt.
type RequestObserver func(action, outcome string)

// Client is a catalog.Source backed by an Xtream Codes panel.
type Client struct {
	base       string
	username   string
	password   string
	userAgent  string
	maxRetries int
	retryDelay time.Duration

	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[[]byte]
	logger     *slog.Logger
	observe    RequestObserver
}

var _ catalog.Source = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRequestObserver registers a per-attempt callback, typically metrics.
func WithRequestObserver(obs RequestObserver) Option {
	return func(c *Client) {
		c.observe = obs
	}
}

type statusError struct {
	Code   int
	Action string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("provider returned HTTP %d for %s", e.Code, e.Action)
}

func (e *statusError) temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// New builds a client for the panel at settings.BaseURL.
func New(settings Settings, logger *slog.Logger, opts ...Option) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(settings.BaseURL), "/")
	if base == "" {
		return nil, services.Wrap(services.ErrConfiguration, "xtream", "new client", "provider url is required", nil)
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "xtream", "new client", "provider url is invalid", err)
	}
	if settings.Timeout <= 0 {
		settings.Timeout = 30 * time.Second
	}
	if settings.BreakerFailures <= 0 {
		settings.BreakerFailures = 5
	}
	limit := rate.Inf
	if settings.RequestDelay > 0 {
		limit = rate.Every(settings.RequestDelay)
	}

	c := &Client{
		base:       base,
		username:   settings.Username,
		password:   settings.Password,
		userAgent:  settings.UserAgent,
		maxRetries: max(settings.MaxRetries, 0),
		retryDelay: settings.RetryDelay,
		httpClient: &http.Client{Timeout: settings.Timeout},
		limiter:    rate.NewLimiter(limit, 1),
		logger:     logging.NewComponentLogger(logger, "xtream"),
	}
	failures := uint32(settings.BreakerFailures)
	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:     "xtream",
		Interval: time.Minute,
		Timeout:  30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			// A missing item or a caller cancellation says nothing about
			// the panel's health.
			return err == nil || errors.Is(err, catalog.ErrNotFound) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				logging.WarnWithContext(c.logger, "provider circuit opened", "provider_circuit_open",
					logging.String("breaker", name),
					logging.String("from", from.String()),
					logging.String(logging.FieldErrorHint, "the provider is failing repeatedly; requests pause for 30s"),
					logging.String(logging.FieldImpact, "category listings and detail fetches fail until it recovers"))
				return
			}
			c.logger.Info("provider circuit state changed",
				logging.String("breaker", name),
				logging.String("from", from.String()),
				logging.String("to", to.String()))
		},
	})
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Identity names the panel and account without exposing the password.
func (c *Client) Identity() string {
	host := c.base
	if u, err := url.Parse(c.base); err == nil && u.Host != "" {
		host = u.Host + strings.TrimRight(u.Path, "/")
	}
	return "xtream:" + host + ":" + c.username
}

func (c *Client) MovieCategories(ctx context.Context) ([]catalog.Category, error) {
	return c.categories(ctx, "get_vod_categories")
}

func (c *Client) SeriesCategories(ctx context.Context) ([]catalog.Category, error) {
	return c.categories(ctx, "get_series_categories")
}

func (c *Client) categories(ctx context.Context, action string) ([]catalog.Category, error) {
	var wire []categoryWire
	if err := c.getJSON(ctx, action, nil, &wire); err != nil {
		return nil, err
	}
	out := make([]catalog.Category, 0, len(wire))
	for _, w := range wire {
		if w.ID <= 0 {
			continue
		}
		out = append(out, catalog.Category{ID: int(w.ID), Name: strings.TrimSpace(w.Name)})
	}
	return out, nil
}

func (c *Client) MoviesByCategory(ctx context.Context, categoryID int) ([]catalog.Movie, error) {
	var wire []vodStreamWire
	params := url.Values{"category_id": {strconv.Itoa(categoryID)}}
	if err := c.getJSON(ctx, "get_vod_streams", params, &wire); err != nil {
		return nil, err
	}
	out := make([]catalog.Movie, 0, len(wire))
	for _, w := range wire {
		if w.StreamID <= 0 {
			continue
		}
		m := movieFromWire(w)
		if m.CategoryID == 0 {
			m.CategoryID = categoryID
			m.CategoryIDs = []int{categoryID}
		}
		out = append(out, m)
	}
	return out, nil
}

func (c *Client) SeriesByCategory(ctx context.Context, categoryID int) ([]catalog.Series, error) {
	var wire []seriesWire
	params := url.Values{"category_id": {strconv.Itoa(categoryID)}}
	if err := c.getJSON(ctx, "get_series", params, &wire); err != nil {
		return nil, err
	}
	out := make([]catalog.Series, 0, len(wire))
	for _, w := range wire {
		if w.SeriesID <= 0 {
			continue
		}
		s := seriesFromWire(w)
		if s.CategoryID == 0 {
			s.CategoryID = categoryID
			s.CategoryIDs = []int{categoryID}
		}
		out = append(out, s)
	}
	return out, nil
}

func (c *Client) SeriesInfo(ctx context.Context, seriesID int) (catalog.SeriesInfo, error) {
	var wire seriesInfoWire
	params := url.Values{"series_id": {strconv.Itoa(seriesID)}}
	if err := c.getJSON(ctx, "get_series_info", params, &wire); err != nil {
		return catalog.SeriesInfo{}, err
	}
	if !isObject(wire.Info) {
		return catalog.SeriesInfo{}, fmt.Errorf("series %d: %w", seriesID, catalog.ErrNotFound)
	}
	var info seriesWire
	if err := json.Unmarshal(wire.Info, &info); err != nil {
		return catalog.SeriesInfo{}, fmt.Errorf("decode series %d info: %w", seriesID, err)
	}
	info.SeriesID = flexInt(seriesID)
	episodes, err := decodeEpisodes(wire.Episodes)
	if err != nil {
		return catalog.SeriesInfo{}, fmt.Errorf("decode series %d episodes: %w", seriesID, err)
	}
	return catalog.SeriesInfo{Series: seriesFromWire(info), Seasons: episodes}, nil
}

func (c *Client) MovieInfo(ctx context.Context, streamID int) (catalog.MovieInfo, error) {
	var wire vodInfoWire
	params := url.Values{"vod_id": {strconv.Itoa(streamID)}}
	if err := c.getJSON(ctx, "get_vod_info", params, &wire); err != nil {
		return catalog.MovieInfo{}, err
	}
	if !isObject(wire.MovieData) {
		return catalog.MovieInfo{}, fmt.Errorf("movie %d: %w", streamID, catalog.ErrNotFound)
	}
	var data vodStreamWire
	if err := json.Unmarshal(wire.MovieData, &data); err != nil {
		return catalog.MovieInfo{}, fmt.Errorf("decode movie %d: %w", streamID, err)
	}
	if data.StreamID <= 0 {
		return catalog.MovieInfo{}, fmt.Errorf("movie %d: %w", streamID, catalog.ErrNotFound)
	}
	movie := movieFromWire(data)
	if isObject(wire.Info) {
		var detail vodInfoDetailWire
		if err := json.Unmarshal(wire.Info, &detail); err == nil {
			if movie.TMDBID == 0 {
				movie.TMDBID = int64(detail.TMDBID)
			}
			if movie.Year == 0 {
				movie.Year = int(detail.Year)
			}
			movie.PosterURL = firstNonEmpty(movie.PosterURL, detail.Image)
		}
	}
	return catalog.MovieInfo{Movie: movie}, nil
}

func (c *Client) MovieURL(m catalog.Movie) string {
	return c.playbackURL("movie", m.StreamID, m.ContainerExtension)
}

func (c *Client) EpisodeURL(e catalog.Episode) string {
	return c.playbackURL("series", e.ID, e.ContainerExtension)
}

func (c *Client) playbackURL(kind string, id int, ext string) string {
	ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
	if ext == "" {
		ext = defaultExtension
	}
	return fmt.Sprintf("%s/%s/%s/%s/%d.%s", c.base, kind,
		url.PathEscape(c.username), url.PathEscape(c.password), id, ext)
}

func (c *Client) getJSON(ctx context.Context, action string, params url.Values, dst any) error {
	body, err := c.get(ctx, action, params)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return services.Wrap(services.ErrTransient, "xtream", action, "decode response", err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, action string, params url.Values) ([]byte, error) {
	return retry.DoWithData(
		func() ([]byte, error) {
			return c.breaker.Execute(func() ([]byte, error) {
				return c.fetch(ctx, action, params)
			})
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.maxRetries+1)),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(retryable),
		retry.OnRetry(func(attempt uint, err error) {
			c.logger.Debug("retrying provider request",
				logging.String("action", action),
				logging.Int("attempt", int(attempt)+1),
				logging.Error(err))
		}),
	)
}

func (c *Client) fetch(ctx context.Context, action string, params url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	query := url.Values{}
	for key, values := range params {
		query[key] = slices.Clone(values)
	}
	query.Set("username", c.username)
	query.Set("password", c.password)
	query.Set("action", action)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/player_api.php?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.notify(action, "error")
		return nil, fmt.Errorf("%s request: %w", action, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		c.notify(action, "not_found")
		return nil, fmt.Errorf("%s: %w", action, catalog.ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		c.notify(action, "http_"+strconv.Itoa(resp.StatusCode))
		return nil, &statusError{Code: resp.StatusCode, Action: action}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		c.notify(action, "error")
		return nil, fmt.Errorf("read %s response: %w", action, err)
	}
	c.notify(action, "ok")
	return body, nil
}

func (c *Client) notify(action, outcome string) {
	if c.observe != nil {
		c.observe(action, outcome)
	}
}

func retryable(err error) bool {
	if errors.Is(err, catalog.ErrNotFound) || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	var status *statusError
	if errors.As(err, &status) {
		return status.temporary()
	}
	return true
}

func movieFromWire(w vodStreamWire) catalog.Movie {
	ids := categoryIDs(w.CategoryID, w.CategoryIDs)
	primary := 0
	if len(ids) > 0 {
		primary = ids[0]
	}
	return catalog.Movie{
		StreamID:           int(w.StreamID),
		Name:               firstNonEmpty(w.Name, w.Title),
		ContainerExtension: strings.TrimPrefix(strings.TrimSpace(w.ContainerExtension), "."),
		CategoryID:         primary,
		CategoryIDs:        ids,
		TMDBID:             firstPositive(w.TMDB, w.TMDBID),
		Year:               int(w.Year),
		PosterURL:          strings.TrimSpace(w.StreamIcon),
		Added:              w.Added.Time,
	}
}

func seriesFromWire(w seriesWire) catalog.Series {
	ids := categoryIDs(w.CategoryID, w.CategoryIDs)
	primary := 0
	if len(ids) > 0 {
		primary = ids[0]
	}
	return catalog.Series{
		SeriesID:     int(w.SeriesID),
		Name:         firstNonEmpty(w.Name, w.Title),
		CategoryID:   primary,
		CategoryIDs:  ids,
		LastModified: w.LastModified.Time,
		TMDBID:       firstPositive(w.TMDB, w.TMDBID),
		Year:         int(w.Year),
		CoverURL:     strings.TrimSpace(w.Cover),
		Plot:         strings.TrimSpace(w.Plot),
	}
}

// decodeEpisodes accepts the usual {"1": [...], "2": [...]} season map and
// the flat array some panels send. Episodes without a season number take
// the season key they were listed under.
func decodeEpisodes(raw json.RawMessage) (map[int][]catalog.Episode, error) {
	seasons := make(map[int][]catalog.Episode)
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return seasons, nil
	}
	add := func(seasonKey int, w episodeWire) {
		if w.ID <= 0 {
			return
		}
		season := int(w.Season)
		if season == 0 {
			season = seasonKey
		}
		seasons[season] = append(seasons[season], catalog.Episode{
			ID:                 int(w.ID),
			Season:             season,
			Number:             int(w.EpisodeNum),
			Title:              strings.TrimSpace(w.Title),
			ContainerExtension: strings.TrimPrefix(strings.TrimSpace(w.ContainerExtension), "."),
		})
	}

	if trimmed[0] == '[' {
		var flat []episodeWire
		if err := json.Unmarshal(raw, &flat); err != nil {
			return nil, err
		}
		for _, w := range flat {
			add(0, w)
		}
	} else {
		var bySeason map[string][]episodeWire
		if err := json.Unmarshal(raw, &bySeason); err != nil {
			return nil, err
		}
		for key, list := range bySeason {
			seasonKey, _ := strconv.Atoi(strings.TrimSpace(key))
			for _, w := range list {
				add(seasonKey, w)
			}
		}
	}
	// Unnumbered episodes keep their listing order after the numbered ones.
	for season := range seasons {
		slices.SortStableFunc(seasons[season], func(a, b catalog.Episode) int {
			switch {
			case a.Number <= 0 && b.Number <= 0:
				return 0
			case a.Number <= 0:
				return 1
			case b.Number <= 0:
				return -1
			}
			return a.Number - b.Number
		})
	}
	return seasons, nil
}
