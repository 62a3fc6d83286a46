package xtream

import (
	"bytes"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// flexInt decodes numbers that panels send either as JSON numbers or as
// strings. Empty strings and null decode to 0.
type flexInt int64

func (f *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}
	text := string(data)
	if data[0] == '"' {
		unquoted, err := strconv.Unquote(text)
		if err != nil {
			return err
		}
		text = strings.TrimSpace(unquoted)
	}
	if text == "" {
		*f = 0
		return nil
	}
	if n, err := strconv.ParseInt(text, 10, 64); err == nil {
		*f = flexInt(n)
		return nil
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		// Non-numeric junk ("N/A") is treated as absent.
		*f = 0
		return nil
	}
	*f = flexInt(v)
	return nil
}

// flexTime decodes unix timestamps sent as numbers or strings.
type flexTime struct {
	time.Time
}

func (f *flexTime) UnmarshalJSON(data []byte) error {
	var secs flexInt
	if err := secs.UnmarshalJSON(data); err != nil {
		return err
	}
	if secs <= 0 {
		f.Time = time.Time{}
		return nil
	}
	f.Time = time.Unix(int64(secs), 0).UTC()
	return nil
}

type categoryWire struct {
	ID   flexInt `json:"category_id"`
	Name string  `json:"category_name"`
}

type vodStreamWire struct {
	StreamID           flexInt   `json:"stream_id"`
	Name               string    `json:"name"`
	Title              string    `json:"title"`
	ContainerExtension string    `json:"container_extension"`
	CategoryID         flexInt   `json:"category_id"`
	CategoryIDs        []flexInt `json:"category_ids"`
	TMDB               flexInt   `json:"tmdb"`
	TMDBID             flexInt   `json:"tmdb_id"`
	Year               flexInt   `json:"year"`
	StreamIcon         string    `json:"stream_icon"`
	Added              flexTime  `json:"added"`
}

type seriesWire struct {
	SeriesID     flexInt   `json:"series_id"`
	Name         string    `json:"name"`
	Title        string    `json:"title"`
	CategoryID   flexInt   `json:"category_id"`
	CategoryIDs  []flexInt `json:"category_ids"`
	LastModified flexTime  `json:"last_modified"`
	TMDB         flexInt   `json:"tmdb"`
	TMDBID       flexInt   `json:"tmdb_id"`
	Year         flexInt   `json:"year"`
	Cover        string    `json:"cover"`
	Plot         string    `json:"plot"`
}

type episodeWire struct {
	ID                 flexInt `json:"id"`
	EpisodeNum         flexInt `json:"episode_num"`
	Season             flexInt `json:"season"`
	Title              string  `json:"title"`
	ContainerExtension string  `json:"container_extension"`
}

// seriesInfoWire keeps info and episodes raw: panels send [] instead of an
// object when a series has no data.
type seriesInfoWire struct {
	Info     json.RawMessage `json:"info"`
	Episodes json.RawMessage `json:"episodes"`
}

type vodInfoWire struct {
	Info      json.RawMessage `json:"info"`
	MovieData json.RawMessage `json:"movie_data"`
}

type vodInfoDetailWire struct {
	TMDBID flexInt `json:"tmdb_id"`
	Name   string  `json:"name"`
	Year   flexInt `json:"year"`
	Image  string  `json:"movie_image"`
}

func isObject(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func firstPositive(values ...flexInt) int64 {
	for _, v := range values {
		if v > 0 {
			return int64(v)
		}
	}
	return 0
}

func categoryIDs(primary flexInt, all []flexInt) []int {
	ids := make([]int, 0, len(all)+1)
	if primary > 0 {
		ids = append(ids, int(primary))
	}
	for _, id := range all {
		if id > 0 && !slices.Contains(ids, int(id)) {
			ids = append(ids, int(id))
		}
	}
	return ids
}
