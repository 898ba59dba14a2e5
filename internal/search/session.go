package search

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/mmcdole/marquee/internal/debounce"
	"github.com/mmcdole/marquee/internal/domain"
)

// Debounce targets. Each has at most one request in flight.
const (
	TargetSearch        = "search"
	TargetPeople        = "people"
	TargetDiscoverMovie = "discover:movie"
	TargetDiscoverTV    = "discover:tv"
)

var allTargets = []string{TargetSearch, TargetPeople, TargetDiscoverMovie, TargetDiscoverTV}

func discoverTarget(mt domain.MediaType) string {
	if mt == domain.MediaTypeTV {
		return TargetDiscoverTV
	}
	return TargetDiscoverMovie
}

// State is what a search screen renders
type State struct {
	Query        Query              `json:"query"`
	Mode         Mode               `json:"mode"`
	Items        []domain.MediaItem `json:"items"`
	People       []domain.Person    `json:"people,omitempty"`
	Page         int                `json:"page"`
	TotalPages   int                `json:"total_pages"`
	TotalResults int                `json:"total_results"`
	LocalMatches int                `json:"local_matches,omitempty"`
	Loading      bool               `json:"loading"`
	Error        string             `json:"error,omitempty"`
}

// HasMore reports whether LoadMore would fetch anything
func (s State) HasMore() bool {
	return s.Mode != ModeEmpty && s.Page > 0 && s.Page < s.TotalPages
}

type peopleState struct {
	people     []domain.Person
	page       int
	totalPages int
	total      int
}

// Session is the stateful side of search: it turns query edits into
// debounced requests and accumulates pages.
// Lock order: session methods never call the controller while holding mu.
type Session struct {
	merger   *Merger
	ctl      *debounce.Controller
	onChange func()
	logger   *slog.Logger

	mu       sync.Mutex
	query    Query
	gen      uint64
	mode     Mode
	text     domain.Row
	total    int
	local    int
	discover map[domain.MediaType]*domain.Row
	totals   map[domain.MediaType]int
	people   peopleState
	loading  map[string]bool
	err      string
}

// NewSession creates a session. onChange, when set, is called on its own
// goroutine after every applied result.
func NewSession(merger *Merger, ctl *debounce.Controller, onChange func(), logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		merger:   merger,
		ctl:      ctl,
		onChange: onChange,
		logger:   logger,
		mode:     ModeEmpty,
		discover: make(map[domain.MediaType]*domain.Row),
		totals:   make(map[domain.MediaType]int),
		loading:  make(map[string]bool),
	}
}

type job struct {
	target string
	task   debounce.Task
}

// SetText changes the query text, keeping the filters
func (s *Session) SetText(text string) {
	s.mu.Lock()
	q := s.query
	s.mu.Unlock()
	q.Text = text
	s.SetQuery(q)
}

// SetFilters changes the filters, keeping the text
func (s *Session) SetFilters(f Query) {
	s.mu.Lock()
	f.Text = s.query.Text
	s.mu.Unlock()
	s.SetQuery(f)
}

// SetQuery replaces the whole query and schedules page 1 after the quiet period
func (s *Session) SetQuery(q Query) {
	q = q.normalize()
	q.Page = 1

	s.mu.Lock()
	prevMode := s.mode
	s.query = q
	s.gen++
	gen := s.gen
	s.mode = q.mode()
	s.err = ""
	clear(s.loading)
	if s.mode != prevMode {
		s.resetResults()
	}

	var jobs []job
	switch s.mode {
	case ModeText:
		jobs = append(jobs, job{TargetSearch, s.textTask(gen, q)})
	case ModePeople:
		jobs = append(jobs, job{TargetPeople, s.peopleTask(gen, q)})
	case ModeDiscover:
		for mt := range s.discover {
			if q.Type != "" && mt != q.Type {
				delete(s.discover, mt)
				delete(s.totals, mt)
			}
		}
		for _, mt := range discoverTypes(q) {
			jobs = append(jobs, job{discoverTarget(mt), s.discoverTask(gen, q, mt)})
		}
	default:
		s.resetResults()
	}
	for _, j := range jobs {
		s.loading[j.target] = true
	}
	s.mu.Unlock()

	s.dispatch(jobs)
}

// LoadMore fetches the next page of every part of the current results that
// has one and is not already loading. It skips the quiet period.
func (s *Session) LoadMore() {
	s.mu.Lock()
	gen := s.gen
	var jobs []job
	switch s.mode {
	case ModeText:
		if s.text.Initialized && s.text.HasMore() && !s.loading[TargetSearch] {
			q := s.query
			q.Page = s.text.Page + 1
			jobs = append(jobs, job{TargetSearch, s.textTask(gen, q)})
		}
	case ModePeople:
		if s.people.page > 0 && s.people.page < s.people.totalPages && !s.loading[TargetPeople] {
			q := s.query
			q.Page = s.people.page + 1
			jobs = append(jobs, job{TargetPeople, s.peopleTask(gen, q)})
		}
	case ModeDiscover:
		for _, mt := range discoverTypes(s.query) {
			row, ok := s.discover[mt]
			target := discoverTarget(mt)
			if !ok || !row.Initialized || !row.HasMore() || s.loading[target] {
				continue
			}
			q := s.query
			q.Page = row.Page + 1
			jobs = append(jobs, job{target, s.discoverTask(gen, q, mt)})
		}
	}
	for _, j := range jobs {
		s.loading[j.target] = true
	}
	s.mu.Unlock()

	for _, j := range jobs {
		s.ctl.Trigger(j.target, j.task)
	}
}

// Close aborts every request of the session
func (s *Session) Close() {
	for _, t := range allTargets {
		s.ctl.Cancel(t)
	}
}

// dispatch schedules jobs and cancels every other target
func (s *Session) dispatch(jobs []job) {
	active := make(map[string]bool, len(jobs))
	for _, j := range jobs {
		active[j.target] = true
	}
	for _, t := range allTargets {
		if !active[t] {
			s.ctl.Cancel(t)
		}
	}
	for _, j := range jobs {
		s.ctl.Schedule(j.target, j.task)
	}
}

// resetResults drops every accumulated page. s.mu must be held.
func (s *Session) resetResults() {
	s.text = domain.Row{Section: TargetSearch}
	s.total = 0
	s.local = 0
	clear(s.discover)
	clear(s.totals)
	s.people = peopleState{}
}

func (s *Session) textTask(gen uint64, q Query) debounce.Task {
	return func(ctx context.Context) (func(), error) {
		res, err := s.merger.Search(ctx, q)
		if domain.IsAborted(err) {
			return nil, err
		}
		return func() {
			s.apply(gen, TargetSearch, err, func() {
				s.text.AppendPage(res.Page, res.Items, res.TotalPages)
				s.total = res.TotalResults
				if res.Page <= 1 {
					s.local = res.LocalMatches
				}
			})
		}, nil
	}
}

func (s *Session) peopleTask(gen uint64, q Query) debounce.Task {
	return func(ctx context.Context) (func(), error) {
		res, err := s.merger.Search(ctx, q)
		if domain.IsAborted(err) {
			return nil, err
		}
		return func() {
			s.apply(gen, TargetPeople, err, func() {
				if res.Page <= 1 {
					s.people.people = nil
				}
				s.people.people = appendPeople(s.people.people, res.People)
				s.people.page = res.Page
				s.people.totalPages = res.TotalPages
				s.people.total = res.TotalResults
			})
		}, nil
	}
}

func (s *Session) discoverTask(gen uint64, q Query, mt domain.MediaType) debounce.Task {
	target := discoverTarget(mt)
	return func(ctx context.Context) (func(), error) {
		res, err := s.merger.Discover(ctx, q, mt)
		if domain.IsAborted(err) {
			return nil, err
		}
		return func() {
			if err != nil {
				s.failDiscover(gen, q.Page, mt, err)
				return
			}
			s.apply(gen, target, nil, func() {
				row, ok := s.discover[mt]
				if !ok {
					row = &domain.Row{Section: target}
					s.discover[mt] = row
				}
				row.AppendPage(res.Page, res.Items, res.TotalPages)
				s.totals[mt] = res.TotalResults
				s.err = ""
			})
		}, nil
	}
}

// apply commits a result if it belongs to the current query. A failure
// clears the results and keeps the message.
func (s *Session) apply(gen uint64, target string, err error, update func()) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.loading[target] = false
	if err != nil {
		s.logger.Warn("search request failed", "target", target, "error", err)
		s.resetResults()
		s.err = err.Error()
	} else {
		update()
	}
	s.mu.Unlock()

	if s.onChange != nil {
		go s.onChange()
	}
}

// failDiscover handles one media type failing while others may succeed.
// A failed first page drops that type; a failed later page keeps what it
// already has. The error is shown only while no type has results.
func (s *Session) failDiscover(gen uint64, page int, mt domain.MediaType, err error) {
	target := discoverTarget(mt)
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.loading[target] = false
	s.logger.Warn("discover request failed", "target", target, "page", page, "error", err)
	if page <= 1 {
		delete(s.discover, mt)
		delete(s.totals, mt)
	}
	if !s.hasDiscoverResults() {
		s.err = err.Error()
	}
	s.mu.Unlock()

	if s.onChange != nil {
		go s.onChange()
	}
}

// hasDiscoverResults reports whether any media type has items. s.mu must be held.
func (s *Session) hasDiscoverResults() bool {
	for _, row := range s.discover {
		if len(row.Items) > 0 {
			return true
		}
	}
	return false
}

func appendPeople(dst, people []domain.Person) []domain.Person {
	seen := make(map[int]bool, len(dst))
	for _, p := range dst {
		seen[p.ID] = true
	}
	for _, p := range people {
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		dst = append(dst, p)
	}
	return dst
}

// Snapshot returns a copy of the current state
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		Query: s.query,
		Mode:  s.mode,
		Error: s.err,
	}
	for _, busy := range s.loading {
		st.Loading = st.Loading || busy
	}

	switch s.mode {
	case ModeText:
		st.Items = domain.CloneItems(s.text.Items)
		st.Page = s.text.Page
		st.TotalPages = s.text.TotalPages
		st.TotalResults = s.total
		st.LocalMatches = s.local
	case ModePeople:
		st.People = slices.Clone(s.people.people)
		st.Page = s.people.page
		st.TotalPages = s.people.totalPages
		st.TotalResults = s.people.total
	case ModeDiscover:
		for _, mt := range discoverTypes(s.query) {
			row, ok := s.discover[mt]
			if !ok {
				continue
			}
			st.Items = append(st.Items, domain.CloneItems(row.Items)...)
			st.Page = max(st.Page, row.Page)
			st.TotalPages = max(st.TotalPages, row.TotalPages)
			st.TotalResults += s.totals[mt]
		}
		if len(discoverTypes(s.query)) > 1 {
			sortItems(st.Items, s.query)
		}
	}
	return st
}
