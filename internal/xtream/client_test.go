package xtream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"strmsync/internal/catalog"
	"strmsync/internal/logging"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := New(Settings{
		BaseURL:         srv.URL,
		Username:        "user",
		Password:        "p@ss",
		MaxRetries:      2,
		RetryDelay:      time.Millisecond,
		BreakerFailures: 10,
	}, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return client, srv
}

func TestMoviesByCategoryTolerantTypes(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("action") != "get_vod_streams" || q.Get("category_id") != "12" || q.Get("username") != "user" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`[
			{"stream_id": 101, "name": "EN - Heat (1995)", "container_extension": "mkv", "category_id": "12", "tmdb": "949", "added": "1700000000"},
			{"stream_id": "102", "name": "Alien", "container_extension": "mp4", "category_id": 12, "tmdb": "", "stream_icon": "http://img/alien.jpg"},
			{"stream_id": "", "name": "broken"}
		]`))
	})

	movies, err := client.MoviesByCategory(context.Background(), 12)
	if err != nil {
		t.Fatalf("MoviesByCategory: %v", err)
	}
	if len(movies) != 2 {
		t.Fatalf("expected 2 movies, got %d", len(movies))
	}
	heat := movies[0]
	if heat.StreamID != 101 || heat.CategoryID != 12 || heat.TMDBID != 949 || heat.ContainerExtension != "mkv" {
		t.Fatalf("unexpected movie %+v", heat)
	}
	if heat.Added.Unix() != 1700000000 {
		t.Fatalf("unexpected added time %v", heat.Added)
	}
	if movies[1].StreamID != 102 || movies[1].TMDBID != 0 || movies[1].PosterURL == "" {
		t.Fatalf("unexpected movie %+v", movies[1])
	}
}

func TestSeriesInfoSeasonMapAndFlatList(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"season map", `{"info": {"name": "Dark", "category_id": "5", "last_modified": "1690000000"},
			"episodes": {"1": [{"id": "11", "episode_num": 2, "container_extension": "mkv"}, {"id": "10", "episode_num": "1", "container_extension": "mkv"}],
			             "2": [{"id": "20", "episode_num": 1, "season": 2}]}}`},
		{"flat list", `{"info": {"name": "Dark", "category_id": 5, "last_modified": 1690000000},
			"episodes": [{"id": 10, "episode_num": 1, "season": 1, "container_extension": "mkv"}, {"id": 11, "episode_num": 2, "season": 1, "container_extension": "mkv"}, {"id": 20, "episode_num": 1, "season": 2}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			})
			info, err := client.SeriesInfo(context.Background(), 77)
			if err != nil {
				t.Fatalf("SeriesInfo: %v", err)
			}
			if info.Series.SeriesID != 77 || info.Series.Name != "Dark" || info.Series.CategoryID != 5 {
				t.Fatalf("unexpected series %+v", info.Series)
			}
			if info.EpisodeCount() != 3 || len(info.Seasons[1]) != 2 || len(info.Seasons[2]) != 1 {
				t.Fatalf("unexpected seasons %+v", info.Seasons)
			}
			if info.Seasons[1][0].Number != 1 || info.Seasons[1][0].ID != 10 {
				t.Fatalf("episodes not ordered: %+v", info.Seasons[1])
			}
			if info.Series.LastModified.Unix() != 1690000000 {
				t.Fatalf("unexpected last modified %v", info.Series.LastModified)
			}
		})
	}
}

func TestSeriesInfoUnnumberedEpisodesSortLast(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"info": {"name": "Loose Ends"},
			"episodes": {"1": [{"id": "31"}, {"id": "12", "episode_num": 2}, {"id": "30", "episode_num": "0"}, {"id": "11", "episode_num": 1}]}}`))
	})
	info, err := client.SeriesInfo(context.Background(), 8)
	if err != nil {
		t.Fatalf("SeriesInfo: %v", err)
	}
	var ids []int
	for _, ep := range info.Seasons[1] {
		ids = append(ids, ep.ID)
	}
	if want := []int{11, 12, 31, 30}; !slices.Equal(ids, want) {
		t.Fatalf("episode order = %v, want %v", ids, want)
	}
}

func TestDetailNotFound(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		switch r.URL.Query().Get("action") {
		case "get_vod_info":
			_, _ = w.Write([]byte(`{"info": [], "movie_data": []}`))
		case "get_series_info":
			_, _ = w.Write([]byte(`[]`))
		default:
			http.NotFound(w, r)
		}
	})

	if _, err := client.MovieInfo(context.Background(), 5); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("MovieInfo: expected ErrNotFound, got %v", err)
	}
	if _, err := client.MoviesByCategory(context.Background(), 5); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected 404 to map to ErrNotFound, got %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("not-found responses must not be retried, got %d calls", got)
	}
}

func TestSeriesInfoEmptyArrayIsNotFound(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"info": [], "episodes": []}`))
	})
	if _, err := client.SeriesInfo(context.Background(), 9); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`[{"category_id": "1", "category_name": "Action"}]`))
	})
	cats, err := client.MovieCategories(context.Background())
	if err != nil {
		t.Fatalf("MovieCategories: %v", err)
	}
	if len(cats) != 1 || cats[0].ID != 1 || cats[0].Name != "Action" {
		t.Fatalf("unexpected categories %+v", cats)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	})
	if _, err := client.SeriesCategories(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Fatalf("expected 1 attempt, got %d", calls.Load())
	}
}

func TestPlaybackURLsAndIdentity(t *testing.T) {
	client, srv := newTestClient(t, func(http.ResponseWriter, *http.Request) {})
	if got, want := client.MovieURL(catalog.Movie{StreamID: 101, ContainerExtension: "mkv"}), srv.URL+"/movie/user/p@ss/101.mkv"; got != want {
		t.Fatalf("MovieURL = %q, want %q", got, want)
	}
	if got, want := client.EpisodeURL(catalog.Episode{ID: 9}), srv.URL+"/series/user/p@ss/9.mp4"; got != want {
		t.Fatalf("EpisodeURL = %q, want %q", got, want)
	}
	id := client.Identity()
	if id == "" || strings.Contains(id, "p@ss") {
		t.Fatalf("identity %q must be non-empty and omit the password", id)
	}
}
