package jikan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/animescout/animescout/internal/config"
	"github.com/animescout/animescout/internal/jikan/ratelimit"
)

var (
	ErrAPIError          = errors.New("Jikan API error")
	ErrRateLimited       = errors.New("Jikan API rate limited")
	ErrMalformedResponse = errors.New("malformed Jikan response")
	ErrNotFound          = errors.New("not found on Jikan")
)

// Client is a Jikan v4 API client.
type Client struct {
	httpClient *http.Client
	config     config.JikanConfig
	limiter    *ratelimit.Limiter
	logger     zerolog.Logger
}

// NewClient creates a new Jikan client. A nil limiter disables the outbound budget.
func NewClient(cfg config.JikanConfig, limiter *ratelimit.Limiter, logger zerolog.Logger) *Client {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		config:  cfg,
		limiter: limiter,
		logger:  logger.With().Str("component", "jikan").Logger(),
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return "jikan"
}

// Test verifies connectivity by fetching a known anime.
func (c *Client) Test(ctx context.Context) error {
	_, err := c.GetAnime(ctx, 1) // Cowboy Bebop
	return err
}

// SearchAnime lists anime from /anime with the given query parameters.
func (c *Client) SearchAnime(ctx context.Context, params url.Values) (*NormalizedPage, error) {
	return c.getPage(ctx, "/anime", params)
}

// GetSeason lists anime airing in the given year and season.
func (c *Client) GetSeason(ctx context.Context, year int, season string, params url.Values) (*NormalizedPage, error) {
	if year <= 0 || season == "" {
		return nil, fmt.Errorf("%w: invalid season %d/%q", ErrAPIError, year, season)
	}
	return c.getPage(ctx, fmt.Sprintf("/seasons/%d/%s", year, url.PathEscape(season)), params)
}

// GetTopAnime lists the top ranked anime.
func (c *Client) GetTopAnime(ctx context.Context, params url.Values) (*NormalizedPage, error) {
	return c.getPage(ctx, "/top/anime", params)
}

// GetGenres returns the anime genre taxonomy.
func (c *Client) GetGenres(ctx context.Context) ([]NormalizedGenre, error) {
	var response GenreResponse
	if err := c.doRequest(ctx, "/genres/anime", nil, &response); err != nil {
		return nil, err
	}
	if response.Data == nil {
		return nil, fmt.Errorf("%w: genres response has no data", ErrMalformedResponse)
	}

	genres := make([]NormalizedGenre, 0, len(response.Data))
	for _, g := range response.Data {
		genres = append(genres, NormalizedGenre{ID: g.MalID, Name: g.Name, Count: g.Count})
	}

	c.logger.Debug().Int("genres", len(genres)).Msg("Fetched genre taxonomy")
	return genres, nil
}

// GetAnime gets detailed anime info by MAL ID.
func (c *Client) GetAnime(ctx context.Context, id int) (*NormalizedAnimeDetail, error) {
	if id <= 0 {
		return nil, ErrNotFound
	}

	var response AnimeResponse
	if err := c.doRequest(ctx, fmt.Sprintf("/anime/%d", id), nil, &response); err != nil {
		return nil, err
	}
	if response.Data == nil {
		return nil, fmt.Errorf("%w: anime response has no data", ErrMalformedResponse)
	}

	detail := toAnimeDetail(*response.Data)

	c.logger.Debug().
		Int("id", id).
		Str("title", detail.Title).
		Msg("Got anime details")

	return &detail, nil
}

// GetAnimeCharacters returns the cast of an anime with their voice actors.
func (c *Client) GetAnimeCharacters(ctx context.Context, id int) ([]NormalizedCastMember, error) {
	if id <= 0 {
		return nil, ErrNotFound
	}

	var response CastResponse
	if err := c.doRequest(ctx, fmt.Sprintf("/anime/%d/characters", id), nil, &response); err != nil {
		return nil, err
	}
	if response.Data == nil {
		return nil, fmt.Errorf("%w: characters response has no data", ErrMalformedResponse)
	}

	cast := make([]NormalizedCastMember, 0, len(response.Data))
	for _, e := range response.Data {
		member := NormalizedCastMember{
			Character: toRef(e.Character),
			Role:      e.Role,
		}
		for _, va := range e.VoiceActors {
			member.VoiceActors = append(member.VoiceActors, toVoice(va))
		}
		cast = append(cast, member)
	}

	c.logger.Debug().Int("id", id).Int("characters", len(cast)).Msg("Got anime cast")
	return cast, nil
}

// GetCharacter gets a character with its anime appearances and voice actors.
func (c *Client) GetCharacter(ctx context.Context, id int) (*NormalizedCharacter, error) {
	if id <= 0 {
		return nil, ErrNotFound
	}

	var response CharacterResponse
	if err := c.doRequest(ctx, fmt.Sprintf("/characters/%d/full", id), nil, &response); err != nil {
		return nil, err
	}
	if response.Data == nil {
		return nil, fmt.Errorf("%w: character response has no data", ErrMalformedResponse)
	}

	ch := response.Data
	character := &NormalizedCharacter{
		ID:        ch.MalID,
		Name:      ch.Name,
		NameKanji: ch.NameKanji,
		ImageURL:  imageURL(ch.Images),
		About:     ch.About,
		Nicknames: ch.Nicknames,
		Favorites: ch.Favorites,
		Anime:     make([]NormalizedAppearance, 0, len(ch.Anime)),
		Voices:    make([]NormalizedVoice, 0, len(ch.Voices)),
	}
	for _, a := range ch.Anime {
		character.Anime = append(character.Anime, NormalizedAppearance{Anime: toAnimeRef(a.Anime), Role: a.Role})
	}
	for _, va := range ch.Voices {
		character.Voices = append(character.Voices, toVoice(va))
	}

	c.logger.Debug().Int("id", id).Str("name", character.Name).Msg("Got character details")
	return character, nil
}

// GetPersonVoices returns the characters a person has voiced.
func (c *Client) GetPersonVoices(ctx context.Context, id int) ([]NormalizedVoiceRole, error) {
	if id <= 0 {
		return nil, ErrNotFound
	}

	var response VoicesResponse
	if err := c.doRequest(ctx, fmt.Sprintf("/people/%d/voices", id), nil, &response); err != nil {
		return nil, err
	}
	if response.Data == nil {
		return nil, fmt.Errorf("%w: voices response has no data", ErrMalformedResponse)
	}

	roles := make([]NormalizedVoiceRole, 0, len(response.Data))
	for _, r := range response.Data {
		roles = append(roles, NormalizedVoiceRole{
			Anime:     toAnimeRef(r.Anime),
			Character: toRef(r.Character),
			Role:      r.Role,
		})
	}

	c.logger.Debug().Int("id", id).Int("roles", len(roles)).Msg("Got voice roles")
	return roles, nil
}

func (c *Client) getPage(ctx context.Context, endpoint string, params url.Values) (*NormalizedPage, error) {
	var response ListResponse
	if err := c.doRequest(ctx, endpoint, params, &response); err != nil {
		return nil, err
	}
	if response.Data == nil {
		return nil, fmt.Errorf("%w: %s response has no data", ErrMalformedResponse, endpoint)
	}
	if response.Pagination == nil {
		return nil, fmt.Errorf("%w: %s response has no pagination", ErrMalformedResponse, endpoint)
	}

	page := &NormalizedPage{
		Items:       make([]NormalizedAnime, 0, len(response.Data)),
		Page:        response.Pagination.CurrentPage,
		HasNextPage: response.Pagination.HasNextPage,
		Total:       response.Pagination.Items.Total,
	}
	for _, a := range response.Data {
		page.Items = append(page.Items, toNormalizedAnime(a))
	}

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("params", params.Encode()).
		Int("results", len(page.Items)).
		Bool("hasNextPage", page.HasNextPage).
		Msg("List request completed")

	return page, nil
}

// doRequest performs a GET request and decodes the JSON body into result.
func (c *Client) doRequest(ctx context.Context, endpoint string, params url.Values, result interface{}) error {
	if c.limiter != nil && !c.limiter.Allow() {
		return ErrRateLimited
	}

	reqURL := strings.TrimRight(c.config.BaseURL, "/") + endpoint
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "animescout/"+config.Version)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
		return fmt.Errorf("%w: %w", ErrAPIError, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		c.logger.Warn().Str("endpoint", endpoint).Msg("Jikan API rate limited")
		return ErrRateLimited
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", ErrAPIError, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	return nil
}

func toNormalizedAnime(a Anime) NormalizedAnime {
	return NormalizedAnime{
		ID:       a.MalID,
		Title:    a.Title,
		ImageURL: imageURL(a.Images),
		Score:    a.Score,
	}
}

func toAnimeDetail(a Anime) NormalizedAnimeDetail {
	detail := NormalizedAnimeDetail{
		ID:            a.MalID,
		Title:         a.Title,
		TitleEnglish:  a.TitleEnglish,
		TitleJapanese: a.TitleJapanese,
		ImageURL:      imageURL(a.Images),
		Score:         a.Score,
		Rank:          a.Rank,
		Type:          a.Type,
		Status:        a.Status,
		Episodes:      a.Episodes,
		Season:        a.Season,
		Year:          a.Year,
		Synopsis:      a.Synopsis,
	}
	for _, g := range a.Genres {
		detail.Genres = append(detail.Genres, g.Name)
	}
	for _, s := range a.Studios {
		detail.Studios = append(detail.Studios, s.Name)
	}
	if a.Trailer != nil {
		detail.TrailerURL = a.Trailer.URL
	}
	return detail
}

func toRef(r Resource) NormalizedRef {
	return NormalizedRef{ID: r.MalID, Name: r.Name, ImageURL: imageURL(r.Images)}
}

func toAnimeRef(a AnimeRef) NormalizedRef {
	return NormalizedRef{ID: a.MalID, Name: a.Title, ImageURL: imageURL(a.Images)}
}

func toVoice(va VoiceActor) NormalizedVoice {
	return NormalizedVoice{Person: toRef(va.Person), Language: va.Language}
}

// imageURL prefers the standard JPG poster.
func imageURL(images Images) string {
	for _, u := range []string{images.JPG.ImageURL, images.JPG.LargeImageURL, images.WebP.ImageURL} {
		if u != "" {
			return u
		}
	}
	return ""
}
