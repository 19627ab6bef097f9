package browse

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	PageSize        = 24
	SuggestionLimit = 10
	MinTextLength   = 2
)

// Flow selects which remote listing a browse view reads from.
type Flow string

const (
	FlowGeneral  Flow = "general"
	FlowSeasonal Flow = "seasonal"
	FlowTop      Flow = "top"
)

// ParseFlow maps a flow name to a Flow; "" selects the general flow.
func ParseFlow(s string) (Flow, error) {
	switch Flow(strings.ToLower(strings.TrimSpace(s))) {
	case "", FlowGeneral:
		return FlowGeneral, nil
	case FlowSeasonal:
		return FlowSeasonal, nil
	case FlowTop:
		return FlowTop, nil
	}
	return "", fmt.Errorf("unknown flow %q", s)
}

// Query is an immutable descriptor of one remote list request.
type Query struct {
	flow   Flow
	path   string
	params url.Values
	year   int
	season string
}

func (q Query) Flow() Flow { return q.flow }

func (q Query) Path() string { return q.path }

// Params returns a copy of the query parameters.
func (q Query) Params() url.Values {
	out := make(url.Values, len(q.params))
	for k, v := range q.params {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// Year and Season are only set for the seasonal flow.
func (q Query) Year() int { return q.year }

func (q Query) Season() string { return q.season }

// Page returns the page the query asks for.
func (q Query) Page() int {
	page, err := strconv.Atoi(q.params.Get("page"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

// Key identifies the query; two queries with equal keys request the same data.
func (q Query) Key() string {
	return q.path + "?" + q.params.Encode()
}

func (q Query) String() string {
	return q.Key()
}

// BuildQuery derives the query for a flow from the filter state. Only set
// dimensions are included; unset ones are omitted rather than sent empty.
func BuildQuery(flow Flow, state FilterState, now time.Time) Query {
	page := state.Page
	if page < 1 {
		page = 1
	}

	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	params.Set("limit", strconv.Itoa(PageSize))

	switch flow {
	case FlowSeasonal:
		year, season := state.Year, state.Season
		if year == 0 {
			year = now.Year()
		}
		if season == "" {
			season = SeasonFor(now.Month())
		}
		return Query{
			flow:   FlowSeasonal,
			path:   fmt.Sprintf("/seasons/%d/%s", year, season),
			params: params,
			year:   year,
			season: season,
		}

	case FlowTop:
		if state.Type != "" {
			params.Set("type", state.Type)
		}
		return Query{flow: FlowTop, path: "/top/anime", params: params}

	default:
		if text, ok := searchText(state.Text); ok {
			params.Set("q", text)
		}
		if len(state.Genres) > 0 {
			ids := make([]string, len(state.Genres))
			for i, id := range state.Genres {
				ids[i] = strconv.Itoa(id)
			}
			params.Set("genres", strings.Join(ids, ","))
		}
		if score, ok := state.MinScoreValue(); ok {
			params.Set("min_score", strconv.FormatFloat(score, 'f', -1, 64))
		}
		if state.Type != "" {
			params.Set("type", state.Type)
		}
		if state.Status != "" {
			params.Set("status", state.Status)
		}
		params.Set("order_by", "score")
		params.Set("sort", "desc")
		return Query{flow: FlowGeneral, path: "/anime", params: params}
	}
}

// BuildSuggestionQuery builds the autocomplete query for typed text.
// It reports false when the text is too short to be sent.
func BuildSuggestionQuery(text string) (Query, bool) {
	q, ok := searchText(text)
	if !ok {
		return Query{}, false
	}
	params := url.Values{}
	params.Set("q", q)
	params.Set("limit", strconv.Itoa(SuggestionLimit))
	return Query{flow: FlowGeneral, path: "/anime", params: params}, true
}

// SeasonFor maps a calendar month to its anime season.
func SeasonFor(month time.Month) string {
	switch {
	case month <= time.March:
		return "winter"
	case month <= time.June:
		return "spring"
	case month <= time.September:
		return "summer"
	default:
		return "fall"
	}
}

func searchText(text string) (string, bool) {
	text = strings.TrimSpace(text)
	return text, utf8.RuneCountInString(text) >= MinTextLength
}
