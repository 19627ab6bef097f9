package browse

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/animescout/animescout/internal/jikan"
)

const (
	filterDelay = 500 * time.Millisecond
	textDelay   = 800 * time.Millisecond
	waitFor     = time.Second
	tick        = 5 * time.Millisecond
	quiet       = 50 * time.Millisecond
)

type fakeCall struct {
	path    string
	params  url.Values
	release chan struct{}
}

// fakeClient records every call and answers through respond. With hold set,
// calls block until released so tests control completion order.
type fakeClient struct {
	mu      sync.Mutex
	calls   []*fakeCall
	hold    bool
	respond func(path string, params url.Values) (*jikan.NormalizedPage, error)
}

func newFakeClient() *fakeClient {
	return &fakeClient{respond: func(path string, params url.Values) (*jikan.NormalizedPage, error) {
		return pageOf(true, 1, 2, 3), nil
	}}
}

func pageOf(hasNext bool, ids ...int) *jikan.NormalizedPage {
	items := make([]jikan.NormalizedAnime, 0, len(ids))
	for _, id := range ids {
		items = append(items, jikan.NormalizedAnime{ID: id, Title: fmt.Sprintf("anime %d", id)})
	}
	return &jikan.NormalizedPage{Items: items, Page: 1, HasNextPage: hasNext}
}

func (f *fakeClient) do(ctx context.Context, path string, params url.Values) (*jikan.NormalizedPage, error) {
	call := &fakeCall{path: path, params: params, release: make(chan struct{})}

	f.mu.Lock()
	f.calls = append(f.calls, call)
	hold, respond := f.hold, f.respond
	f.mu.Unlock()

	if hold {
		select {
		case <-call.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return respond(path, params)
}

func (f *fakeClient) SearchAnime(ctx context.Context, params url.Values) (*jikan.NormalizedPage, error) {
	return f.do(ctx, "/anime", params)
}

func (f *fakeClient) GetSeason(ctx context.Context, year int, season string, params url.Values) (*jikan.NormalizedPage, error) {
	return f.do(ctx, fmt.Sprintf("/seasons/%d/%s", year, season), params)
}

func (f *fakeClient) GetTopAnime(ctx context.Context, params url.Values) (*jikan.NormalizedPage, error) {
	return f.do(ctx, "/top/anime", params)
}

func (f *fakeClient) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeClient) call(i int) *fakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[i]
}

func (f *fakeClient) setHold(hold bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hold = hold
}

func (f *fakeClient) setRespond(fn func(path string, params url.Values) (*jikan.NormalizedPage, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.respond = fn
}

type fakeRecorder struct {
	mu        sync.Mutex
	issued    map[string]int
	discarded map[string]int
	failed    map[string]int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{issued: map[string]int{}, discarded: map[string]int{}, failed: map[string]int{}}
}

func (r *fakeRecorder) RequestIssued(stream string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.issued[stream]++
}

func (r *fakeRecorder) ResponseDiscarded(stream string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.discarded[stream]++
}

func (r *fakeRecorder) RequestFailed(stream string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed[stream]++
}

func (r *fakeRecorder) get(m map[string]int, stream string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return m[stream]
}

type harness struct {
	ctrl     *Controller
	clock    *clockwork.FakeClock
	client   *fakeClient
	recorder *fakeRecorder
}

func newHarness(t *testing.T, flow Flow, clock *clockwork.FakeClock) *harness {
	t.Helper()
	if clock == nil {
		clock = clockwork.NewFakeClockAt(testNow)
	}
	h := &harness{clock: clock, client: newFakeClient(), recorder: newFakeRecorder()}
	h.ctrl = NewController(Options{
		Flow:        flow,
		Client:      h.client,
		Clock:       clock,
		FilterDelay: filterDelay,
		TextDelay:   textDelay,
		Recorder:    h.recorder,
		Logger:      zerolog.Nop(),
	})
	t.Cleanup(h.ctrl.Close)
	return h
}

// startAndSettle issues the initial query and waits for its response.
func (h *harness) startAndSettle(t *testing.T) {
	t.Helper()
	h.ctrl.Start()
	h.clock.Advance(filterDelay)
	h.waitCalls(t, 1)
	h.waitIdle(t)
}

func (h *harness) waitCalls(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return h.client.count() == n }, waitFor, tick,
		"expected %d calls, got %d", n, h.client.count())
}

func (h *harness) waitIdle(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool {
		v := h.ctrl.View()
		return !v.Loading && !v.Settling
	}, waitFor, tick)
}

func (h *harness) assertNoMoreCalls(t *testing.T, n int) {
	t.Helper()
	assert.Never(t, func() bool { return h.client.count() > n }, quiet, tick)
}

func ids(entities []Entity) []int {
	out := make([]int, len(entities))
	for i, e := range entities {
		out[i] = e.ID
	}
	return out
}

func TestController_InitialQuery(t *testing.T) {
	h := newHarness(t, FlowGeneral, nil)

	h.ctrl.Start()
	assert.True(t, h.ctrl.View().Settling)
	h.assertNoMoreCalls(t, 0)

	h.clock.Advance(filterDelay)
	h.waitCalls(t, 1)
	h.waitIdle(t)

	call := h.client.call(0)
	assert.Equal(t, "/anime", call.path)
	assert.Equal(t, "24", call.params.Get("limit"))
	assert.Equal(t, "score", call.params.Get("order_by"))
	assert.Equal(t, "desc", call.params.Get("sort"))

	v := h.ctrl.View()
	assert.Equal(t, []int{1, 2, 3}, ids(v.Items))
	assert.True(t, v.HasNextPage)
	assert.Equal(t, 1, v.Page)
	assert.False(t, v.Filtered)
}

func TestController_EditsWithinWindowCoalesce(t *testing.T) {
	h := newHarness(t, FlowGeneral, nil)
	h.startAndSettle(t)

	require.NoError(t, h.ctrl.SetMinScore("7"))
	h.clock.Advance(300 * time.Millisecond)
	require.NoError(t, h.ctrl.SetType("tv"))

	h.clock.Advance(filterDelay - time.Millisecond)
	h.assertNoMoreCalls(t, 1)

	h.clock.Advance(time.Millisecond)
	h.waitCalls(t, 2)
	h.waitIdle(t)
	h.assertNoMoreCalls(t, 2)

	params := h.client.call(1).params
	assert.Equal(t, "7", params.Get("min_score"))
	assert.Equal(t, "tv", params.Get("type"))
	assert.Equal(t, 2, h.recorder.get(h.recorder.issued, StreamMain))
}

func TestController_StaleResponseDiscarded(t *testing.T) {
	h := newHarness(t, FlowGeneral, nil)
	h.client.setHold(true)
	h.client.setRespond(func(path string, params url.Values) (*jikan.NormalizedPage, error) {
		if params.Get("min_score") == "8" {
			return pageOf(false, 20, 21), nil
		}
		return pageOf(true, 10, 11), nil
	})

	h.ctrl.Start()
	h.clock.Advance(filterDelay)
	h.waitCalls(t, 1)
	require.True(t, h.ctrl.View().Loading)

	require.NoError(t, h.ctrl.SetMinScore("8"))
	h.clock.Advance(filterDelay)
	h.waitCalls(t, 2)

	// The later request completes first.
	close(h.client.call(1).release)
	require.Eventually(t, func() bool {
		v := h.ctrl.View()
		return !v.Loading && len(v.Items) == 2 && v.Items[0].ID == 20
	}, waitFor, tick)

	close(h.client.call(0).release)
	require.Eventually(t, func() bool {
		return h.recorder.get(h.recorder.discarded, StreamMain) == 1
	}, waitFor, tick)

	v := h.ctrl.View()
	assert.Equal(t, []int{20, 21}, ids(v.Items))
	assert.False(t, v.HasNextPage)
}

func TestController_ShortTextNeverFetches(t *testing.T) {
	h := newHarness(t, FlowGeneral, nil)
	h.startAndSettle(t)

	require.NoError(t, h.ctrl.SetTextQuery("a"))
	require.NoError(t, h.ctrl.SetSuggestionInput("a"))
	h.clock.Advance(2 * textDelay)
	h.assertNoMoreCalls(t, 1)

	v := h.ctrl.View()
	assert.Empty(t, v.Suggestions)
	assert.Equal(t, "a", v.Filters.Text)

	require.NoError(t, h.ctrl.SetTextQuery("ab"))
	h.clock.Advance(filterDelay)
	h.assertNoMoreCalls(t, 1)
	h.clock.Advance(textDelay - filterDelay)
	h.waitCalls(t, 2)
	assert.Equal(t, "ab", h.client.call(1).params.Get("q"))
}

func TestController_SuggestionStreamIsIndependent(t *testing.T) {
	h := newHarness(t, FlowGeneral, nil)
	h.client.setRespond(func(path string, params url.Values) (*jikan.NormalizedPage, error) {
		if params.Get("limit") == "10" {
			return pageOf(false, 42, 43, 42), nil
		}
		return pageOf(true, 1, 2, 3), nil
	})
	h.startAndSettle(t)

	require.NoError(t, h.ctrl.SetSuggestionInput("fri"))
	h.clock.Advance(textDelay)
	h.waitCalls(t, 2)
	require.Eventually(t, func() bool { return len(h.ctrl.View().Suggestions) == 2 }, waitFor, tick)

	v := h.ctrl.View()
	assert.Equal(t, []int{42, 43}, ids(v.Suggestions))
	assert.Equal(t, []int{1, 2, 3}, ids(v.Items), "suggestions must not touch the result list")
	assert.Equal(t, "fri", h.client.call(1).params.Get("q"))
	assert.Equal(t, 1, h.recorder.get(h.recorder.issued, StreamSuggestion))

	require.NoError(t, h.ctrl.SetSuggestionInput("f"))
	assert.Empty(t, h.ctrl.View().Suggestions)
}

func TestController_StaleSuggestionDiscarded(t *testing.T) {
	h := newHarness(t, FlowGeneral, nil)
	h.client.setRespond(func(path string, params url.Values) (*jikan.NormalizedPage, error) {
		switch params.Get("q") {
		case "fri":
			return pageOf(false, 40, 41), nil
		case "frieren":
			return pageOf(false, 42), nil
		}
		return pageOf(true, 1, 2, 3), nil
	})
	h.startAndSettle(t)
	h.client.setHold(true)

	require.NoError(t, h.ctrl.SetSuggestionInput("fri"))
	h.clock.Advance(textDelay)
	h.waitCalls(t, 2)

	require.NoError(t, h.ctrl.SetSuggestionInput("frieren"))
	h.clock.Advance(textDelay)
	h.waitCalls(t, 3)
	assert.Equal(t, "frieren", h.client.call(2).params.Get("q"))

	// The later suggestion request completes first.
	close(h.client.call(2).release)
	require.Eventually(t, func() bool {
		return len(h.ctrl.View().Suggestions) == 1
	}, waitFor, tick)

	close(h.client.call(1).release)
	require.Eventually(t, func() bool {
		return h.recorder.get(h.recorder.discarded, StreamSuggestion) == 1
	}, waitFor, tick)

	v := h.ctrl.View()
	assert.Equal(t, []int{42}, ids(v.Suggestions))
	assert.Equal(t, []int{1, 2, 3}, ids(v.Items))
	assert.Zero(t, h.recorder.get(h.recorder.discarded, StreamMain))
	assert.Equal(t, 2, h.recorder.get(h.recorder.issued, StreamSuggestion))
}

func TestController_QuickLookupSelectAndClear(t *testing.T) {
	h := newHarness(t, FlowGeneral, nil)
	h.client.setRespond(func(path string, params url.Values) (*jikan.NormalizedPage, error) {
		if params.Get("limit") == "10" {
			return pageOf(false, 42, 7), nil
		}
		return pageOf(true, 1, 2, 3), nil
	})
	h.startAndSettle(t)
	require.NoError(t, h.ctrl.SetType("tv"))
	h.clock.Advance(filterDelay)
	h.waitCalls(t, 2)
	h.waitIdle(t)

	require.NoError(t, h.ctrl.SetSuggestionInput("frieren"))
	h.clock.Advance(textDelay)
	h.waitCalls(t, 3)
	require.Eventually(t, func() bool { return len(h.ctrl.View().Suggestions) == 2 }, waitFor, tick)

	require.NoError(t, h.ctrl.SelectSuggestion(42))

	v := h.ctrl.View()
	assert.Equal(t, []int{42}, ids(v.Items))
	assert.False(t, v.HasNextPage)
	assert.True(t, v.FiltersDisabled)
	require.NotNil(t, v.Lookup)
	assert.Equal(t, 42, v.Lookup.ID)

	assert.ErrorIs(t, h.ctrl.SetType("movie"), ErrFiltersLocked)
	assert.ErrorIs(t, h.ctrl.Next(), ErrFiltersLocked)
	assert.Equal(t, "tv", h.ctrl.View().Filters.Type, "locked filters keep their values")

	require.NoError(t, h.ctrl.ClearLookup())
	v = h.ctrl.View()
	assert.Nil(t, v.Lookup)
	assert.Empty(t, v.Items, "results from before the lookup must not be replayed")
	assert.True(t, v.Settling)

	h.clock.Advance(filterDelay)
	h.waitCalls(t, 4)
	h.waitIdle(t)

	fresh := h.client.call(3)
	assert.Equal(t, "/anime", fresh.path)
	assert.Equal(t, "tv", fresh.params.Get("type"))
	assert.Equal(t, h.client.call(1).params.Encode(), fresh.params.Encode())
	assert.Equal(t, []int{1, 2, 3}, ids(h.ctrl.View().Items))
}

func TestController_SelectInvalidatesInFlightRequest(t *testing.T) {
	h := newHarness(t, FlowGeneral, nil)
	h.client.setHold(true)

	h.ctrl.Start()
	h.clock.Advance(filterDelay)
	h.waitCalls(t, 1)

	require.NoError(t, h.ctrl.SelectLookup(Entity{ID: 42, Title: "Sousou no Frieren"}))
	assert.False(t, h.ctrl.View().Loading)

	close(h.client.call(0).release)
	require.Eventually(t, func() bool {
		return h.recorder.get(h.recorder.discarded, StreamMain) == 1
	}, waitFor, tick)
	assert.Equal(t, []int{42}, ids(h.ctrl.View().Items))
}

func TestController_UnknownSuggestion(t *testing.T) {
	h := newHarness(t, FlowGeneral, nil)
	assert.ErrorIs(t, h.ctrl.SelectSuggestion(99), ErrUnknownSuggestion)
	assert.NoError(t, h.ctrl.ClearLookup(), "clearing without a selection is a no-op")
}

func TestController_NextWithoutNextPageIsNoOp(t *testing.T) {
	h := newHarness(t, FlowGeneral, nil)
	h.client.setRespond(func(path string, params url.Values) (*jikan.NormalizedPage, error) {
		return pageOf(false, 1, 2), nil
	})
	h.startAndSettle(t)

	before := h.ctrl.View()
	require.NoError(t, h.ctrl.Next())
	h.clock.Advance(filterDelay)
	h.assertNoMoreCalls(t, 1)

	after := h.ctrl.View()
	assert.Equal(t, before.Page, after.Page)
	assert.Equal(t, before.Items, after.Items)
	assert.False(t, after.Settling)
}

func TestController_Pagination(t *testing.T) {
	h := newHarness(t, FlowGeneral, nil)
	h.startAndSettle(t)

	require.NoError(t, h.ctrl.Previous())
	assert.Equal(t, 1, h.ctrl.View().Page)

	require.NoError(t, h.ctrl.Next())
	require.NoError(t, h.ctrl.Next())
	assert.Equal(t, 3, h.ctrl.View().Page)

	h.clock.Advance(filterDelay)
	h.waitCalls(t, 2)
	h.waitIdle(t)
	h.assertNoMoreCalls(t, 2)
	assert.Equal(t, "3", h.client.call(1).params.Get("page"))

	require.NoError(t, h.ctrl.Previous())
	h.clock.Advance(filterDelay)
	h.waitCalls(t, 3)
	assert.Equal(t, "2", h.client.call(2).params.Get("page"))
}

func TestController_PaginationBlockedWhileLoading(t *testing.T) {
	h := newHarness(t, FlowGeneral, nil)
	h.startAndSettle(t)
	require.NoError(t, h.ctrl.SetPage(2))
	h.clock.Advance(filterDelay)
	h.waitCalls(t, 2)
	h.waitIdle(t)

	h.client.setHold(true)
	require.NoError(t, h.ctrl.Next())
	h.clock.Advance(filterDelay)
	h.waitCalls(t, 3)
	require.True(t, h.ctrl.View().Loading)

	require.NoError(t, h.ctrl.Next())
	require.NoError(t, h.ctrl.Previous())
	assert.Equal(t, 3, h.ctrl.View().Page)

	close(h.client.call(2).release)
	h.waitIdle(t)
}

func TestController_FilterChangeResetsPage(t *testing.T) {
	h := newHarness(t, FlowGeneral, nil)
	require.NoError(t, h.ctrl.SetPage(4))
	require.NoError(t, h.ctrl.SetGenreSet([]int{1}))
	assert.Equal(t, 1, h.ctrl.View().Page)

	require.NoError(t, h.ctrl.SetPage(4))
	require.NoError(t, h.ctrl.SetFilter("status", "airing"))
	v := h.ctrl.View()
	assert.Equal(t, 1, v.Page)
	assert.True(t, v.Filtered)
}

func TestController_ValidationLeavesStateUnchanged(t *testing.T) {
	h := newHarness(t, FlowGeneral, nil)
	h.startAndSettle(t)

	err := h.ctrl.SetMinScore("11")
	require.Error(t, err)
	assert.True(t, IsValidation(err))

	v := h.ctrl.View()
	assert.Empty(t, v.Filters.MinScore)
	assert.False(t, v.Settling)
	h.clock.Advance(filterDelay)
	h.assertNoMoreCalls(t, 1)
}

func TestController_UnchangedQueryDoesNotSchedule(t *testing.T) {
	h := newHarness(t, FlowGeneral, nil)
	h.startAndSettle(t)

	require.NoError(t, h.ctrl.SetType(""))
	require.NoError(t, h.ctrl.SetTextQuery(" "))
	assert.False(t, h.ctrl.View().Settling)
	h.clock.Advance(textDelay)
	h.assertNoMoreCalls(t, 1)
}

func TestController_FetchErrorYieldsEmptyPage(t *testing.T) {
	h := newHarness(t, FlowGeneral, nil)
	h.startAndSettle(t)

	h.client.setRespond(func(path string, params url.Values) (*jikan.NormalizedPage, error) {
		return nil, fmt.Errorf("%w: status 500", jikan.ErrAPIError)
	})
	require.NoError(t, h.ctrl.SetType("movie"))
	h.clock.Advance(filterDelay)
	h.waitCalls(t, 2)
	h.waitIdle(t)

	v := h.ctrl.View()
	assert.Empty(t, v.Items)
	assert.NotNil(t, v.Items)
	assert.False(t, v.HasNextPage)
	assert.Equal(t, 1, h.recorder.get(h.recorder.failed, StreamMain))
	h.assertNoMoreCalls(t, 2)
}

func TestController_SeasonalFlowUsesCurrentSeason(t *testing.T) {
	h := newHarness(t, FlowSeasonal, clockwork.NewFakeClockAt(time.Date(2025, time.November, 3, 9, 0, 0, 0, time.UTC)))
	h.startAndSettle(t)

	assert.Equal(t, "/seasons/2025/fall", h.client.call(0).path)

	require.NoError(t, h.ctrl.SetSeason("spring"))
	require.NoError(t, h.ctrl.SetYear(2011))
	h.clock.Advance(filterDelay)
	h.waitCalls(t, 2)
	assert.Equal(t, "/seasons/2011/spring", h.client.call(1).path)
}

func TestController_TopFlow(t *testing.T) {
	h := newHarness(t, FlowTop, nil)
	h.startAndSettle(t)
	assert.Equal(t, "/top/anime", h.client.call(0).path)

	require.NoError(t, h.ctrl.SetMinScore("8"))
	h.clock.Advance(filterDelay)
	h.assertNoMoreCalls(t, 1)
}

func TestController_CloseDropsPendingWork(t *testing.T) {
	h := newHarness(t, FlowGeneral, nil)
	h.ctrl.Start()
	h.ctrl.Close()

	h.clock.Advance(filterDelay)
	h.assertNoMoreCalls(t, 0)

	assert.ErrorIs(t, h.ctrl.SetType("tv"), ErrClosed)
	assert.ErrorIs(t, h.ctrl.SetSuggestionInput("frieren"), ErrClosed)
	assert.False(t, h.ctrl.View().Settling)
}

func TestController_CloseCancelsInFlightCall(t *testing.T) {
	h := newHarness(t, FlowGeneral, nil)
	h.client.setHold(true)

	done := make(chan struct{})
	h.client.setRespond(func(path string, params url.Values) (*jikan.NormalizedPage, error) {
		close(done)
		return pageOf(false, 1), nil
	})

	h.ctrl.Start()
	h.clock.Advance(filterDelay)
	h.waitCalls(t, 1)
	h.ctrl.Close()

	select {
	case <-done:
		t.Fatal("held call should have returned through context cancellation")
	case <-time.After(quiet):
	}
	assert.False(t, h.ctrl.View().Loading)
}

func TestController_ListenerReceivesViews(t *testing.T) {
	var (
		mu    sync.Mutex
		views []View
	)
	clock := clockwork.NewFakeClockAt(testNow)
	client := newFakeClient()
	ctrl := NewController(Options{
		Client:      client,
		Clock:       clock,
		FilterDelay: filterDelay,
		Logger:      zerolog.Nop(),
		Listener: func(v View) {
			mu.Lock()
			defer mu.Unlock()
			views = append(views, v)
		},
	})
	defer ctrl.Close()

	ctrl.Start()
	clock.Advance(filterDelay)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(views) >= 3 && !views[len(views)-1].Loading
	}, waitFor, tick)

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, views[0].Settling)
	assert.True(t, views[1].Loading)
	assert.Equal(t, []int{1, 2, 3}, ids(views[len(views)-1].Items))
}

func TestController_GenresWithoutCatalog(t *testing.T) {
	h := newHarness(t, FlowGeneral, nil)
	_, err := h.ctrl.Genres(context.Background())
	assert.True(t, errors.Is(err, ErrNoGenreCatalog))
}
