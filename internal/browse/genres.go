package browse

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/animescout/animescout/internal/jikan"
)

// GenreSource fetches the genre taxonomy.
type GenreSource interface {
	GetGenres(ctx context.Context) ([]jikan.NormalizedGenre, error)
}

// Genre is a selectable genre filter value.
type Genre struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// GenreCatalog loads the genre taxonomy once and serves it for the rest of the
// process. Concurrent first loads share one request; failed loads are not cached.
type GenreCatalog struct {
	source GenreSource
	clock  clockwork.Clock
	logger zerolog.Logger
	group  singleflight.Group

	mu        sync.RWMutex
	genres    []Genre
	fetchedAt time.Time
}

// NewGenreCatalog creates an empty catalog. A nil clock uses the real clock.
func NewGenreCatalog(source GenreSource, clock clockwork.Clock, logger zerolog.Logger) *GenreCatalog {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &GenreCatalog{
		source: source,
		clock:  clock,
		logger: logger.With().Str("component", "genres").Logger(),
	}
}

// Get returns the cached taxonomy, loading it on first use.
func (g *GenreCatalog) Get(ctx context.Context) ([]Genre, error) {
	if genres, ok := g.cached(); ok {
		return genres, nil
	}

	ch := g.group.DoChan("genres", func() (interface{}, error) {
		if genres, ok := g.cached(); ok {
			return genres, nil
		}
		return g.load(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return append([]Genre(nil), res.Val.([]Genre)...), nil
	}
}

// FetchedAt returns when the taxonomy was loaded (zero before the first load).
func (g *GenreCatalog) FetchedAt() time.Time {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.fetchedAt
}

func (g *GenreCatalog) cached() ([]Genre, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.genres == nil {
		return nil, false
	}
	return append([]Genre(nil), g.genres...), true
}

func (g *GenreCatalog) load(ctx context.Context) ([]Genre, error) {
	raw, err := g.source.GetGenres(ctx)
	if err != nil {
		g.logger.Warn().Err(err).Msg("Failed to load genre taxonomy")
		return nil, err
	}

	genres := make([]Genre, 0, len(raw))
	for _, r := range raw {
		genres = append(genres, Genre{ID: r.ID, Name: r.Name, Count: r.Count})
	}

	g.mu.Lock()
	g.genres = genres
	g.fetchedAt = g.clock.Now()
	g.mu.Unlock()

	g.logger.Info().Int("genres", len(genres)).Msg("Loaded genre taxonomy")
	return genres, nil
}
