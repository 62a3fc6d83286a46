package metadata

import (
	"context"

	"strmsync/internal/tmdb"
)

// TMDBSearcher adapts a tmdb.Client to the Searcher interface.
type TMDBSearcher struct {
	Client *tmdb.Client
}

func (s TMDBSearcher) SearchMovie(ctx context.Context, title string, year int) ([]Candidate, error) {
	resp, err := s.Client.SearchMovie(ctx, title, year)
	if err != nil {
		return nil, err
	}
	return candidates(resp), nil
}

func (s TMDBSearcher) SearchSeries(ctx context.Context, title string, year int) ([]Candidate, error) {
	resp, err := s.Client.SearchTV(ctx, title, year)
	if err != nil {
		return nil, err
	}
	return candidates(resp), nil
}

func candidates(resp *tmdb.Response) []Candidate {
	if resp == nil {
		return nil
	}
	out := make([]Candidate, 0, len(resp.Results))
	for _, r := range resp.Results {
		out = append(out, Candidate{ID: r.ID, Title: r.DisplayTitle(), Year: r.Year()})
	}
	return out
}
