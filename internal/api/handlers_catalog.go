package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/animescout/animescout/internal/browse"
	"github.com/animescout/animescout/internal/jikan"
)

// restStream labels catalog calls made by the stateless endpoints in metrics.
const restStream = "rest"

// Query parameters accepted per flow, applied in this order. page always goes last
// because every other field resets it.
var flowParams = map[browse.Flow][]string{
	browse.FlowGeneral:  {"q", "genres", "min_score", "type", "status", "page"},
	browse.FlowSeasonal: {"year", "season", "page"},
	browse.FlowTop:      {"type", "page"},
}

// PageResponse is a deduplicated result page plus the upstream query it came from.
type PageResponse struct {
	browse.ResultPage
	Query string `json:"query"`
}

// listGenres returns the cached genre taxonomy.
// GET /api/v1/genres
func (s *Server) listGenres(c echo.Context) error {
	genres, err := s.genres.Get(c.Request().Context())
	if err != nil {
		s.metrics.RequestFailed(restStream, err)
		return s.catalogError(err)
	}
	return c.JSON(http.StatusOK, genres)
}

// searchAnime runs a general filtered query.
// GET /api/v1/anime?q=&genres=1,4&min_score=&type=&status=&page=
func (s *Server) searchAnime(c echo.Context) error {
	return s.runFlow(c, browse.FlowGeneral)
}

// listSeason returns a season's lineup, defaulting to the current season.
// GET /api/v1/seasons?year=&season=&page=
func (s *Server) listSeason(c echo.Context) error {
	return s.runFlow(c, browse.FlowSeasonal)
}

// listTop returns the top-ranked list.
// GET /api/v1/top?type=&page=
func (s *Server) listTop(c echo.Context) error {
	return s.runFlow(c, browse.FlowTop)
}

// getAnime returns one title's detail.
// GET /api/v1/anime/:id
func (s *Server) getAnime(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid anime id")
	}

	return s.fetchEntity(c, func(ctx context.Context) (interface{}, error) {
		return s.catalog.GetAnime(ctx, id)
	})
}

// getAnimeCharacters returns a title's cast with voice actors.
// GET /api/v1/anime/:id/characters
func (s *Server) getAnimeCharacters(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid anime id")
	}

	return s.fetchEntity(c, func(ctx context.Context) (interface{}, error) {
		return s.catalog.GetAnimeCharacters(ctx, id)
	})
}

// getCharacter returns a character with appearances and voice actors.
// GET /api/v1/characters/:id
func (s *Server) getCharacter(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid character id")
	}

	return s.fetchEntity(c, func(ctx context.Context) (interface{}, error) {
		return s.catalog.GetCharacter(ctx, id)
	})
}

// getPersonVoices returns the roles a voice actor has played.
// GET /api/v1/people/:id/voices
func (s *Server) getPersonVoices(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid person id")
	}

	return s.fetchEntity(c, func(ctx context.Context) (interface{}, error) {
		return s.catalog.GetPersonVoices(ctx, id)
	})
}

func (s *Server) fetchEntity(c echo.Context, fetch func(ctx context.Context) (interface{}, error)) error {
	s.metrics.RequestIssued(restStream)
	result, err := fetch(c.Request().Context())
	if err != nil {
		s.metrics.RequestFailed(restStream, err)
		return s.catalogError(err)
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) runFlow(c echo.Context, flow browse.Flow) error {
	state, err := stateFromQuery(c, flowParams[flow])
	if err != nil {
		return s.catalogError(err)
	}

	q := browse.BuildQuery(flow, state, s.clock.Now())
	s.metrics.RequestIssued(restStream)
	page, err := browse.Execute(c.Request().Context(), s.catalog, q)
	if err != nil {
		s.metrics.RequestFailed(restStream, err)
		return s.catalogError(err)
	}

	return c.JSON(http.StatusOK, PageResponse{ResultPage: page, Query: q.String()})
}

// stateFromQuery applies the present query parameters through the filter store's validation.
func stateFromQuery(c echo.Context, fields []string) (browse.FilterState, error) {
	state := browse.NewFilterState()
	for _, field := range fields {
		value := c.QueryParam(field)
		if value == "" {
			continue
		}
		if err := state.Set(field, value); err != nil {
			return state, err
		}
	}
	return state, nil
}

// catalogError maps catalog and validation failures to HTTP errors.
func (s *Server) catalogError(err error) error {
	switch {
	case browse.IsValidation(err):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, jikan.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	case errors.Is(err, jikan.ErrRateLimited):
		return echo.NewHTTPError(http.StatusTooManyRequests, "upstream rate limit reached")
	default:
		s.logger.Warn().Err(err).Msg("Catalog request failed")
		return echo.NewHTTPError(http.StatusBadGateway, "catalog unavailable")
	}
}
