package browse

import (
	"context"
	"fmt"
	"net/url"

	"github.com/animescout/animescout/internal/jikan"
)

// Client is the remote catalog the browse views read from.
type Client interface {
	SearchAnime(ctx context.Context, params url.Values) (*jikan.NormalizedPage, error)
	GetSeason(ctx context.Context, year int, season string, params url.Values) (*jikan.NormalizedPage, error)
	GetTopAnime(ctx context.Context, params url.Values) (*jikan.NormalizedPage, error)
}

// Execute runs q against client and returns the deduplicated result page.
func Execute(ctx context.Context, client Client, q Query) (ResultPage, error) {
	var (
		page *jikan.NormalizedPage
		err  error
	)
	switch q.Flow() {
	case FlowSeasonal:
		page, err = client.GetSeason(ctx, q.Year(), q.Season(), q.Params())
	case FlowTop:
		page, err = client.GetTopAnime(ctx, q.Params())
	default:
		page, err = client.SearchAnime(ctx, q.Params())
	}
	if err != nil {
		return ResultPage{}, fmt.Errorf("failed to fetch %s: %w", q.Path(), err)
	}
	if page == nil {
		return ResultPage{}, fmt.Errorf("failed to fetch %s: %w", q.Path(), jikan.ErrMalformedResponse)
	}

	entities := make([]Entity, 0, len(page.Items))
	for _, item := range page.Items {
		entities = append(entities, Entity{
			ID:       item.ID,
			Title:    item.Title,
			ImageURL: item.ImageURL,
			Score:    item.Score,
		})
	}

	return ResultPage{
		Items:       Dedupe(entities),
		Page:        q.Page(),
		HasNextPage: page.HasNextPage,
	}, nil
}
