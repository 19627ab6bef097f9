// Package mock provides an in-memory Jikan catalog for development mode and tests.
package mock

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/animescout/animescout/internal/jikan"
)

// Client is a mock implementation of the Jikan client backed by a fixed catalog.
type Client struct {
	anime  []animeRecord
	genres []jikan.NormalizedGenre
}

type animeRecord struct {
	jikan.NormalizedAnimeDetail
	genreIDs []int
}

// NewClient creates a new mock Jikan client.
func NewClient() *Client {
	return &Client{anime: catalog, genres: genres}
}

func (c *Client) Name() string {
	return "jikan-mock"
}

func (c *Client) Test(ctx context.Context) error {
	return nil
}

// SearchAnime filters the catalog the way /anime does for the parameters the browse views send.
func (c *Client) SearchAnime(ctx context.Context, params url.Values) (*jikan.NormalizedPage, error) {
	matches := make([]animeRecord, 0, len(c.anime))
	for _, a := range c.anime {
		if matchesParams(a, params) {
			matches = append(matches, a)
		}
	}
	if params.Get("order_by") == "score" {
		desc := params.Get("sort") != "asc"
		sort.SliceStable(matches, func(i, j int) bool {
			if desc {
				return matches[i].Score > matches[j].Score
			}
			return matches[i].Score < matches[j].Score
		})
	}
	return paginate(matches, params), nil
}

// GetSeason returns catalog entries airing in the given season.
func (c *Client) GetSeason(ctx context.Context, year int, season string, params url.Values) (*jikan.NormalizedPage, error) {
	if year <= 0 || season == "" {
		return nil, fmt.Errorf("%w: invalid season %d/%q", jikan.ErrAPIError, year, season)
	}
	matches := make([]animeRecord, 0)
	for _, a := range c.anime {
		if a.Year == year && a.Season == season {
			matches = append(matches, a)
		}
	}
	return paginate(matches, params), nil
}

// GetTopAnime returns the catalog ordered by score.
func (c *Client) GetTopAnime(ctx context.Context, params url.Values) (*jikan.NormalizedPage, error) {
	matches := make([]animeRecord, 0, len(c.anime))
	for _, a := range c.anime {
		if t := params.Get("type"); t == "" || strings.EqualFold(a.Type, t) {
			matches = append(matches, a)
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	return paginate(matches, params), nil
}

func (c *Client) GetGenres(ctx context.Context) ([]jikan.NormalizedGenre, error) {
	out := make([]jikan.NormalizedGenre, len(c.genres))
	copy(out, c.genres)
	return out, nil
}

func (c *Client) GetAnime(ctx context.Context, id int) (*jikan.NormalizedAnimeDetail, error) {
	for _, a := range c.anime {
		if a.ID == id {
			detail := a.NormalizedAnimeDetail
			return &detail, nil
		}
	}
	return nil, jikan.ErrNotFound
}

// GetAnimeCharacters returns the cast recorded for an anime. Catalog titles without a
// recorded cast have an empty one.
func (c *Client) GetAnimeCharacters(ctx context.Context, id int) ([]jikan.NormalizedCastMember, error) {
	if _, err := c.GetAnime(ctx, id); err != nil {
		return nil, err
	}
	cast := make([]jikan.NormalizedCastMember, 0)
	for _, ch := range characters {
		for _, a := range ch.Anime {
			if a.Anime.ID == id {
				cast = append(cast, jikan.NormalizedCastMember{
					Character:   jikan.NormalizedRef{ID: ch.ID, Name: ch.Name, ImageURL: ch.ImageURL},
					Role:        a.Role,
					VoiceActors: ch.Voices,
				})
			}
		}
	}
	return cast, nil
}

func (c *Client) GetCharacter(ctx context.Context, id int) (*jikan.NormalizedCharacter, error) {
	for _, ch := range characters {
		if ch.ID == id {
			character := ch
			return &character, nil
		}
	}
	return nil, jikan.ErrNotFound
}

func (c *Client) GetPersonVoices(ctx context.Context, id int) ([]jikan.NormalizedVoiceRole, error) {
	roles := make([]jikan.NormalizedVoiceRole, 0)
	known := false
	for _, ch := range characters {
		for _, v := range ch.Voices {
			if v.Person.ID != id {
				continue
			}
			known = true
			for _, a := range ch.Anime {
				roles = append(roles, jikan.NormalizedVoiceRole{
					Anime:     a.Anime,
					Character: jikan.NormalizedRef{ID: ch.ID, Name: ch.Name, ImageURL: ch.ImageURL},
					Role:      a.Role,
				})
			}
		}
	}
	if !known {
		return nil, jikan.ErrNotFound
	}
	return roles, nil
}

func matchesParams(a animeRecord, params url.Values) bool {
	if q := strings.ToLower(params.Get("q")); q != "" &&
		!strings.Contains(strings.ToLower(a.Title), q) &&
		!strings.Contains(strings.ToLower(a.TitleEnglish), q) {
		return false
	}
	if t := params.Get("type"); t != "" && !strings.EqualFold(a.Type, t) {
		return false
	}
	if s := params.Get("status"); s != "" && !statusMatches(a.Status, s) {
		return false
	}
	if raw := params.Get("min_score"); raw != "" {
		if min, err := strconv.ParseFloat(raw, 64); err == nil && a.Score < min {
			return false
		}
	}
	if raw := params.Get("genres"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			id, err := strconv.Atoi(part)
			if err != nil || !containsInt(a.genreIDs, id) {
				return false
			}
		}
	}
	return true
}

func statusMatches(status, token string) bool {
	switch token {
	case "airing":
		return status == "Currently Airing"
	case "complete":
		return status == "Finished Airing"
	case "upcoming":
		return status == "Not yet aired"
	}
	return false
}

func paginate(records []animeRecord, params url.Values) *jikan.NormalizedPage {
	page, _ := strconv.Atoi(params.Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(params.Get("limit"))
	if limit < 1 {
		limit = 25
	}

	start := (page - 1) * limit
	if start > len(records) {
		start = len(records)
	}
	end := start + limit
	if end > len(records) {
		end = len(records)
	}

	items := make([]jikan.NormalizedAnime, 0, end-start)
	for _, a := range records[start:end] {
		items = append(items, jikan.NormalizedAnime{
			ID:       a.ID,
			Title:    a.Title,
			ImageURL: a.ImageURL,
			Score:    a.Score,
		})
	}

	return &jikan.NormalizedPage{
		Items:       items,
		Page:        page,
		HasNextPage: end < len(records),
		Total:       len(records),
	}
}

func containsInt(values []int, v int) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

var genres = []jikan.NormalizedGenre{
	{ID: 1, Name: "Action", Count: 5141},
	{ID: 2, Name: "Adventure", Count: 4066},
	{ID: 4, Name: "Comedy", Count: 7395},
	{ID: 8, Name: "Drama", Count: 3095},
	{ID: 10, Name: "Fantasy", Count: 6008},
	{ID: 22, Name: "Romance", Count: 2231},
	{ID: 24, Name: "Sci-Fi", Count: 3404},
	{ID: 36, Name: "Slice of Life", Count: 1972},
	{ID: 37, Name: "Supernatural", Count: 1747},
	{ID: 41, Name: "Suspense", Count: 437},
}

func record(id int, title, english, typ, status string, score float64, season string, year, episodes int, genreIDs ...int) animeRecord {
	return animeRecord{
		NormalizedAnimeDetail: jikan.NormalizedAnimeDetail{
			ID:           id,
			Title:        title,
			TitleEnglish: english,
			ImageURL:     fmt.Sprintf("https://cdn.myanimelist.net/images/anime/mock/%d.jpg", id),
			Score:        score,
			Type:         typ,
			Status:       status,
			Episodes:     episodes,
			Season:       season,
			Year:         year,
		},
		genreIDs: genreIDs,
	}
}

var catalog = []animeRecord{
	record(1, "Cowboy Bebop", "Cowboy Bebop", "TV", "Finished Airing", 8.75, "spring", 1998, 26, 1, 2, 24),
	record(5114, "Fullmetal Alchemist: Brotherhood", "Fullmetal Alchemist: Brotherhood", "TV", "Finished Airing", 9.1, "spring", 2009, 64, 1, 2, 8, 10),
	record(9253, "Steins;Gate", "Steins;Gate", "TV", "Finished Airing", 9.07, "spring", 2011, 24, 8, 24, 41),
	record(11061, "Hunter x Hunter (2011)", "Hunter x Hunter", "TV", "Finished Airing", 9.03, "fall", 2011, 148, 1, 2, 10),
	record(28977, "Gintama°", "Gintama Season 4", "TV", "Finished Airing", 9.06, "spring", 2015, 51, 1, 4, 24),
	record(52991, "Sousou no Frieren", "Frieren: Beyond Journey's End", "TV", "Finished Airing", 9.3, "fall", 2023, 28, 2, 8, 10),
	record(199, "Sen to Chihiro no Kamikakushi", "Spirited Away", "Movie", "Finished Airing", 8.77, "", 2001, 1, 2, 37),
	record(32281, "Kimi no Na wa.", "Your Name.", "Movie", "Finished Airing", 8.83, "", 2016, 1, 8, 22, 37),
	record(820, "Ginga Eiyuu Densetsu", "Legend of the Galactic Heroes", "OVA", "Finished Airing", 9.02, "", 1988, 110, 8, 24),
	record(21, "One Piece", "One Piece", "TV", "Currently Airing", 8.72, "fall", 1999, 0, 1, 2, 10),
	record(40748, "Jujutsu Kaisen", "Jujutsu Kaisen", "TV", "Finished Airing", 8.57, "fall", 2020, 24, 1, 37),
	record(16498, "Shingeki no Kyojin", "Attack on Titan", "TV", "Finished Airing", 8.55, "spring", 2013, 25, 1, 8, 41),
	record(30276, "One Punch Man", "One Punch Man", "TV", "Finished Airing", 8.49, "fall", 2015, 12, 1, 4),
	record(37521, "Vinland Saga", "Vinland Saga", "TV", "Finished Airing", 8.76, "summer", 2019, 24, 1, 2, 8),
	record(38000, "Kimetsu no Yaiba", "Demon Slayer: Kimetsu no Yaiba", "TV", "Finished Airing", 8.45, "spring", 2019, 26, 1, 37),
	record(33352, "Violet Evergarden", "Violet Evergarden", "TV", "Finished Airing", 8.68, "winter", 2018, 13, 8, 10),
	record(59978, "Sousou no Frieren 2nd Season", "Frieren: Beyond Journey's End Season 2", "TV", "Not yet aired", 0, "winter", 2026, 0, 2, 8, 10),
	record(57334, "Dandadan", "Dan Da Dan", "TV", "Finished Airing", 8.5, "fall", 2024, 12, 1, 4, 37),
	record(34096, "Gintama.", "Gintama Season 5", "TV", "Finished Airing", 8.98, "winter", 2017, 12, 1, 4, 24),
	record(6547, "Angel Beats!", "Angel Beats!", "TV", "Finished Airing", 8.05, "spring", 2010, 13, 8, 37),
	record(32, "Shinseiki Evangelion Movie: Air/Magokoro wo, Kimi ni", "Neon Genesis Evangelion: The End of Evangelion", "Movie", "Finished Airing", 8.55, "", 1997, 1, 8, 24, 41),
	record(2904, "Code Geass: Hangyaku no Lelouch R2", "Code Geass: Lelouch of the Rebellion R2", "TV", "Finished Airing", 8.91, "spring", 2008, 25, 1, 8, 24),
	record(918, "Gintama", "Gintama", "TV", "Finished Airing", 8.94, "spring", 2006, 201, 1, 4, 24),
	record(31758, "Kizumonogatari III: Reiketsu-hen", "Kizumonogatari Part 3: Cold-Blooded", "Movie", "Finished Airing", 8.79, "", 2017, 1, 1, 22, 37),
	record(47778, "Kimetsu no Yaiba: Yuukaku-hen", "Demon Slayer: Entertainment District Arc", "TV", "Finished Airing", 8.73, "fall", 2021, 11, 1, 37),
	record(1575, "Code Geass: Hangyaku no Lelouch", "Code Geass: Lelouch of the Rebellion", "TV", "Finished Airing", 8.7, "fall", 2006, 25, 1, 8, 24),
}

func ref(id int, name, kind string) jikan.NormalizedRef {
	return jikan.NormalizedRef{
		ID:       id,
		Name:     name,
		ImageURL: fmt.Sprintf("https://cdn.myanimelist.net/images/%s/mock/%d.jpg", kind, id),
	}
}

func voice(id int, name, language string) jikan.NormalizedVoice {
	return jikan.NormalizedVoice{Person: ref(id, name, "voiceactors"), Language: language}
}

func character(id int, name, kanji string, favorites int, voices []jikan.NormalizedVoice, anime ...jikan.NormalizedAppearance) jikan.NormalizedCharacter {
	return jikan.NormalizedCharacter{
		ID:        id,
		Name:      name,
		NameKanji: kanji,
		ImageURL:  ref(id, name, "characters").ImageURL,
		Favorites: favorites,
		Anime:     anime,
		Voices:    voices,
	}
}

func appearance(animeID int, title, role string) jikan.NormalizedAppearance {
	return jikan.NormalizedAppearance{Anime: ref(animeID, title, "anime"), Role: role}
}

var characters = []jikan.NormalizedCharacter{
	character(184947, "Frieren", "フリーレン", 41230,
		[]jikan.NormalizedVoice{voice(34785, "Tanezaki, Atsumi", "Japanese"), voice(70437, "Harlacher, Mallorie Rodak", "English")},
		appearance(52991, "Sousou no Frieren", "Main"),
		appearance(59978, "Sousou no Frieren 2nd Season", "Main")),
	character(188176, "Fern", "フェルン", 22840,
		[]jikan.NormalizedVoice{voice(40300, "Ichinose, Kana", "Japanese")},
		appearance(52991, "Sousou no Frieren", "Main")),
	character(1, "Spike Spiegel", "スパイク・スピーゲル", 49980,
		[]jikan.NormalizedVoice{voice(11, "Yamadera, Kouichi", "Japanese"), voice(392, "Blum, Steven", "English")},
		appearance(1, "Cowboy Bebop", "Main")),
	character(11, "Edward Elric", "エドワード・エルリック", 83670,
		[]jikan.NormalizedVoice{voice(81, "Park, Romi", "Japanese")},
		appearance(5114, "Fullmetal Alchemist: Brotherhood", "Main")),
}
