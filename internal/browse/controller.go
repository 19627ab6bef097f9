// Package browse implements the filtered-query controller behind the catalog
// list views: filter state, debounced and token-guarded list requests,
// pagination and the quick-lookup override.
package browse

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

const (
	DefaultFilterDelay = 500 * time.Millisecond
	DefaultTextDelay   = 800 * time.Millisecond
)

// Stream names passed to the Recorder.
const (
	StreamMain       = "main"
	StreamSuggestion = "suggestion"
)

// Recorder receives request accounting events.
type Recorder interface {
	RequestIssued(stream string)
	ResponseDiscarded(stream string)
	RequestFailed(stream string, err error)
}

type nopRecorder struct{}

func (nopRecorder) RequestIssued(string)        {}
func (nopRecorder) ResponseDiscarded(string)    {}
func (nopRecorder) RequestFailed(string, error) {}

// Options configures a Controller.
type Options struct {
	Flow        Flow
	Client      Client
	Genres      *GenreCatalog
	Clock       clockwork.Clock
	FilterDelay time.Duration
	TextDelay   time.Duration
	Recorder    Recorder
	Logger      zerolog.Logger
	// Listener receives a View after every state change. It runs while the
	// controller is locked and must not call back into the controller.
	Listener func(View)
}

// View is the snapshot handed to the presentation layer.
type View struct {
	Flow               Flow        `json:"flow"`
	Filters            FilterState `json:"filters"`
	Items              []Entity    `json:"items"`
	Loading            bool        `json:"loading"`
	Settling           bool        `json:"settling"`
	Page               int         `json:"page"`
	HasNextPage        bool        `json:"hasNextPage"`
	Lookup             *Entity     `json:"lookup,omitempty"`
	LookupInput        string      `json:"lookupInput,omitempty"`
	Suggestions        []Entity    `json:"suggestions"`
	SuggestionsLoading bool        `json:"suggestionsLoading"`
	Filtered           bool        `json:"filtered"`
	FiltersDisabled    bool        `json:"filtersDisabled"`
}

// Controller coordinates one browse view. All events are serialised by a
// single mutex; remote calls run outside it and are applied only while their
// token is still current.
type Controller struct {
	flow        Flow
	client      Client
	genres      *GenreCatalog
	clock       clockwork.Clock
	filterDelay time.Duration
	textDelay   time.Duration
	recorder    Recorder
	logger      zerolog.Logger
	listener    func(View)

	ctx    context.Context
	cancel context.CancelFunc

	main    *Scheduler
	suggest *Scheduler

	mu                sync.Mutex
	state             FilterState
	results           ResultPage
	pagination        Pagination
	lookup            Lookup
	loading           bool
	suggestionLoading bool
	lastKey           string
	closed            bool
}

// NewController creates a controller. Call Start to issue the initial query.
func NewController(opts Options) *Controller {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.FilterDelay <= 0 {
		opts.FilterDelay = DefaultFilterDelay
	}
	if opts.TextDelay <= 0 {
		opts.TextDelay = DefaultTextDelay
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	if opts.Flow == "" {
		opts.Flow = FlowGeneral
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Controller{
		flow:        opts.Flow,
		client:      opts.Client,
		genres:      opts.Genres,
		clock:       opts.Clock,
		filterDelay: opts.FilterDelay,
		textDelay:   opts.TextDelay,
		recorder:    opts.Recorder,
		logger:      opts.Logger.With().Str("component", "browse").Str("flow", string(opts.Flow)).Logger(),
		listener:    opts.Listener,
		ctx:         ctx,
		cancel:      cancel,
		main:        NewScheduler(opts.Clock),
		suggest:     NewScheduler(opts.Clock),
		state:       NewFilterState(),
		results:     ResultPage{Items: []Entity{}, Page: 1},
	}
}

// Start schedules the initial query for the default state.
func (c *Controller) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.scheduleMainLocked(c.filterDelay, true)
	c.notifyLocked()
}

// Close tears the controller down: pending timers are cancelled, outstanding
// responses become unobservable and in-flight calls are cancelled.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.main.Close()
	c.suggest.Close()
	c.cancel()
	c.loading = false
	c.suggestionLoading = false

	c.logger.Debug().Msg("Controller closed")
}

// View returns the current snapshot.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

// Genres returns the genre taxonomy shared by all controllers.
func (c *Controller) Genres(ctx context.Context) ([]Genre, error) {
	if c.genres == nil {
		return nil, ErrNoGenreCatalog
	}
	return c.genres.Get(ctx)
}

func (c *Controller) SetTextQuery(text string) error {
	return c.mutate(c.textDelay, func(f *FilterState) error {
		f.SetTextQuery(text)
		return nil
	})
}

func (c *Controller) SetGenreSet(ids []int) error {
	return c.mutate(c.filterDelay, func(f *FilterState) error { return f.SetGenreSet(ids) })
}

func (c *Controller) SetMinScore(raw string) error {
	return c.mutate(c.filterDelay, func(f *FilterState) error { return f.SetMinScore(raw) })
}

func (c *Controller) SetType(value string) error {
	return c.mutate(c.filterDelay, func(f *FilterState) error { return f.SetType(value) })
}

func (c *Controller) SetStatus(value string) error {
	return c.mutate(c.filterDelay, func(f *FilterState) error { return f.SetStatus(value) })
}

func (c *Controller) SetSeason(value string) error {
	return c.mutate(c.filterDelay, func(f *FilterState) error { return f.SetSeason(value) })
}

func (c *Controller) SetYear(year int) error {
	return c.mutate(c.filterDelay, func(f *FilterState) error { return f.SetYear(year) })
}

func (c *Controller) SetPage(page int) error {
	return c.mutate(c.filterDelay, func(f *FilterState) error { return f.SetPage(page) })
}

// SetFilter applies a textual field update (see FilterState.Set).
func (c *Controller) SetFilter(field, value string) error {
	delay := c.filterDelay
	if field == "text" || field == "q" {
		delay = c.textDelay
	}
	return c.mutate(delay, func(f *FilterState) error { return f.Set(field, value) })
}

// Reset restores the unfiltered default state.
func (c *Controller) Reset() error {
	return c.mutate(c.filterDelay, func(f *FilterState) error {
		f.Reset()
		return nil
	})
}

// Next moves to the following page. It is a no-op when the latest response
// had no next page or a request is in flight.
func (c *Controller) Next() error {
	return c.turnPage(c.pagination.Next)
}

// Previous moves to the preceding page. It is a no-op on the first page or
// while a request is in flight.
func (c *Controller) Previous() error {
	return c.turnPage(c.pagination.Previous)
}

func (c *Controller) turnPage(step func(page int, pending bool) (int, bool)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkMutableLocked(); err != nil {
		return err
	}
	page, ok := step(c.state.Page, c.loading)
	if !ok {
		return nil
	}
	if err := c.state.SetPage(page); err != nil {
		return err
	}
	c.scheduleMainLocked(c.filterDelay, false)
	c.notifyLocked()
	return nil
}

func (c *Controller) mutate(delay time.Duration, apply func(*FilterState) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkMutableLocked(); err != nil {
		return err
	}

	next := c.state.Clone()
	if err := apply(&next); err != nil {
		return err
	}
	c.state = next

	c.scheduleMainLocked(delay, false)
	c.notifyLocked()
	return nil
}

func (c *Controller) checkMutableLocked() error {
	if c.closed {
		return ErrClosed
	}
	if c.lookup.Active() {
		return ErrFiltersLocked
	}
	return nil
}

// scheduleMainLocked restarts the main timer unless the query it would issue
// equals the last scheduled one.
func (c *Controller) scheduleMainLocked(delay time.Duration, force bool) {
	key := BuildQuery(c.flow, c.state, c.clock.Now()).Key()
	if !force && key == c.lastKey {
		return
	}
	c.lastKey = key
	c.main.Reset(delay, c.fireMain)
}

func (c *Controller) fireMain(token Token) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// A newer timer was armed after this one fired; it will issue the request.
	if c.closed || c.lookup.Active() || !c.main.Current(token) || c.main.Pending() {
		return
	}

	q := BuildQuery(c.flow, c.state, c.clock.Now())
	c.lastKey = q.Key()
	c.loading = true
	c.recorder.RequestIssued(StreamMain)

	c.logger.Debug().
		Uint64("token", uint64(token)).
		Str("query", q.Key()).
		Msg("Issuing list request")

	c.notifyLocked()

	go c.runMain(token, q)
}

func (c *Controller) runMain(token Token, q Query) {
	result, err := Execute(c.ctx, c.client, q)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	if !c.main.Current(token) {
		c.recorder.ResponseDiscarded(StreamMain)
		c.logger.Debug().
			Uint64("token", uint64(token)).
			Str("query", q.Key()).
			Msg("Discarding stale list response")
		return
	}

	c.loading = false
	if err != nil {
		c.recorder.RequestFailed(StreamMain, err)
		c.logger.Warn().Err(err).Str("query", q.Key()).Msg("List request failed")
		result = ResultPage{Items: []Entity{}, Page: q.Page(), HasNextPage: false}
	}
	c.results = result
	c.pagination.Update(result)
	c.notifyLocked()
}

// SetSuggestionInput feeds typed autocomplete text. Text shorter than the
// minimum clears the suggestions without a remote call.
func (c *Controller) SetSuggestionInput(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	c.lookup.SetInput(text)
	if _, ok := BuildSuggestionQuery(text); !ok {
		c.suggest.Cancel()
		c.suggest.Invalidate()
		c.lookup.ClearSuggestions()
		c.suggestionLoading = false
		c.notifyLocked()
		return nil
	}

	c.suggest.Reset(c.textDelay, c.fireSuggestion)
	return nil
}

func (c *Controller) fireSuggestion(token Token) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || !c.suggest.Current(token) || c.suggest.Pending() {
		return
	}
	q, ok := BuildSuggestionQuery(c.lookup.Input())
	if !ok {
		return
	}

	c.suggestionLoading = true
	c.recorder.RequestIssued(StreamSuggestion)
	c.notifyLocked()

	go c.runSuggestion(token, q)
}

func (c *Controller) runSuggestion(token Token, q Query) {
	result, err := Execute(c.ctx, c.client, q)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	if !c.suggest.Current(token) {
		c.recorder.ResponseDiscarded(StreamSuggestion)
		return
	}

	c.suggestionLoading = false
	if err != nil {
		c.recorder.RequestFailed(StreamSuggestion, err)
		c.logger.Warn().Err(err).Str("query", q.Key()).Msg("Suggestion request failed")
		c.lookup.ClearSuggestions()
	} else {
		c.lookup.SetSuggestions(result.Items)
	}
	c.notifyLocked()
}

// SelectSuggestion selects one of the current suggestions by id.
func (c *Controller) SelectSuggestion(id int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	e, ok := c.lookup.Suggestion(id)
	if !ok {
		return ErrUnknownSuggestion
	}
	c.selectLocked(e)
	return nil
}

// SelectLookup overrides the result list with exactly e. Structured filters
// keep their values but reject changes until the lookup is cleared.
func (c *Controller) SelectLookup(e Entity) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	c.selectLocked(e)
	return nil
}

func (c *Controller) selectLocked(e Entity) {
	c.lookup.Select(e)

	c.main.Cancel()
	c.main.Invalidate()
	c.loading = false

	c.suggest.Cancel()
	c.suggest.Invalidate()
	c.suggestionLoading = false
	c.lookup.ClearSuggestions()

	c.results = c.lookup.Result()
	c.pagination.Update(c.results)

	c.logger.Debug().Int("id", e.ID).Msg("Quick lookup selected")
	c.notifyLocked()
}

// ClearLookup removes the selection and schedules a fresh query for the
// current filters. Results shown before the selection are not reused.
func (c *Controller) ClearLookup() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if !c.lookup.Clear() {
		return nil
	}

	c.results = ResultPage{Items: []Entity{}, Page: c.state.Page}
	c.pagination.Update(c.results)
	c.scheduleMainLocked(c.filterDelay, true)
	c.notifyLocked()
	return nil
}

func (c *Controller) notifyLocked() {
	if c.listener != nil {
		c.listener(c.viewLocked())
	}
}

func (c *Controller) viewLocked() View {
	v := View{
		Flow:               c.flow,
		Filters:            c.state.Clone(),
		Items:              append([]Entity{}, c.results.Items...),
		Loading:            c.loading,
		Settling:           c.main.Pending(),
		Page:               c.state.Page,
		HasNextPage:        c.pagination.HasNextPage(),
		LookupInput:        c.lookup.Input(),
		Suggestions:        c.lookup.Suggestions(),
		SuggestionsLoading: c.suggestionLoading,
		Filtered:           c.state.IsFiltered(),
		FiltersDisabled:    c.lookup.Active(),
	}
	if e, ok := c.lookup.Selected(); ok {
		v.Lookup = &e
		v.Page = c.results.Page
	}
	if v.Suggestions == nil {
		v.Suggestions = []Entity{}
	}
	return v
}
