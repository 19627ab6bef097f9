package browse

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

const (
	MinYear = 1917
	MaxYear = 2100
)

var (
	animeTypes = []string{"tv", "movie", "ova", "special", "ona", "music"}
	statuses   = []string{"airing", "complete", "upcoming"}
	seasons    = []string{"winter", "spring", "summer", "fall"}
)

// FilterState holds the filter dimensions of one browse view plus its page.
// The zero value of every dimension means "unset"; Page is always >= 1.
type FilterState struct {
	Text     string `json:"text,omitempty"`
	Genres   []int  `json:"genres,omitempty"`
	MinScore string `json:"minScore,omitempty"`
	Type     string `json:"type,omitempty"`
	Status   string `json:"status,omitempty"`
	Season   string `json:"season,omitempty"`
	Year     int    `json:"year,omitempty"`
	Page     int    `json:"page"`
}

// NewFilterState returns the unfiltered default state.
func NewFilterState() FilterState {
	return FilterState{Page: 1}
}

// Clone returns a copy that shares no memory with f.
func (f FilterState) Clone() FilterState {
	f.Genres = slices.Clone(f.Genres)
	return f
}

func (f *FilterState) SetTextQuery(text string) {
	f.Text = text
	f.Page = 1
}

// SetGenreSet replaces the genre set. Duplicates are dropped and ids are kept sorted.
func (f *FilterState) SetGenreSet(ids []int) error {
	set := make([]int, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			return fmt.Errorf("%w: %d", ErrInvalidGenre, id)
		}
		if !slices.Contains(set, id) {
			set = append(set, id)
		}
	}
	slices.Sort(set)

	if len(set) == 0 {
		set = nil
	}
	f.Genres = set
	f.Page = 1
	return nil
}

// SetMinScore accepts "" to clear or a number in [0, 10].
func (f *FilterState) SetMinScore(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || v < 0 || v > 10 {
			return fmt.Errorf("%w: %q", ErrInvalidMinScore, raw)
		}
	}
	f.MinScore = raw
	f.Page = 1
	return nil
}

// MinScoreValue returns the parsed minimum score, if set.
func (f FilterState) MinScoreValue() (float64, bool) {
	if f.MinScore == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(f.MinScore, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func (f *FilterState) SetType(value string) error {
	token, err := enumToken(value, animeTypes, ErrInvalidType)
	if err != nil {
		return err
	}
	f.Type = token
	f.Page = 1
	return nil
}

func (f *FilterState) SetStatus(value string) error {
	token, err := enumToken(value, statuses, ErrInvalidStatus)
	if err != nil {
		return err
	}
	f.Status = token
	f.Page = 1
	return nil
}

func (f *FilterState) SetSeason(value string) error {
	token, err := enumToken(value, seasons, ErrInvalidSeason)
	if err != nil {
		return err
	}
	f.Season = token
	f.Page = 1
	return nil
}

// SetYear accepts 0 to clear.
func (f *FilterState) SetYear(year int) error {
	if year != 0 && (year < MinYear || year > MaxYear) {
		return fmt.Errorf("%w: %d", ErrInvalidYear, year)
	}
	f.Year = year
	f.Page = 1
	return nil
}

func (f *FilterState) SetPage(page int) error {
	if page < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidPage, page)
	}
	f.Page = page
	return nil
}

func (f *FilterState) Reset() {
	*f = NewFilterState()
}

// IsFiltered reports whether any structured dimension is set.
func (f FilterState) IsFiltered() bool {
	return len(f.Genres) > 0 || f.MinScore != "" || f.Type != "" || f.Status != "" ||
		f.Season != "" || f.Year != 0
}

// Set applies a textual field update, as received from query strings and session messages.
func (f *FilterState) Set(field, value string) error {
	switch field {
	case "text", "q":
		f.SetTextQuery(value)
		return nil
	case "genres":
		ids, err := parseGenreList(value)
		if err != nil {
			return err
		}
		return f.SetGenreSet(ids)
	case "minScore", "min_score":
		return f.SetMinScore(value)
	case "type":
		return f.SetType(value)
	case "status":
		return f.SetStatus(value)
	case "season":
		return f.SetSeason(value)
	case "year":
		year, err := parseOptionalInt(value)
		if err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidYear, value)
		}
		return f.SetYear(year)
	case "page":
		page, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidPage, value)
		}
		return f.SetPage(page)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
}

func enumToken(value string, allowed []string, invalid error) (string, error) {
	token := strings.ToLower(strings.TrimSpace(value))
	if token == "" || slices.Contains(allowed, token) {
		return token, nil
	}
	return "", fmt.Errorf("%w: %q", invalid, value)
}

func parseGenreList(value string) ([]int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	parts := strings.Split(value, ",")
	ids := make([]int, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidGenre, part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseOptionalInt(value string) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	return strconv.Atoi(value)
}
