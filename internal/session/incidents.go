package session

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"risk-console/internal/backend"
	"risk-console/internal/models"
	"risk-console/pkg/config"
)

// Input message types sent by the browser.
const (
	InputSearch   = "search"
	InputSeverity = "severity"
	InputPage     = "page"
	InputPerPage  = "per_page"
	InputClear    = "clear"
	InputRetry    = "retry"
)

// Output message types pushed to the browser.
const (
	OutputLoading = "loading"
	OutputResult  = "result"
	OutputError   = "error"
)

// IncidentLister is the read the session needs from the console service.
type IncidentLister interface {
	ListIncidents(ctx context.Context, q backend.IncidentQuery) (*models.Page[models.Incident], error)
}

// Filters is the server-held state of one live incidents view.
type Filters struct {
	Search   string `json:"search"`
	Severity string `json:"severity"`
	Page     int    `json:"page"`
	PerPage  int    `json:"per_page"`
}

func (f Filters) query() backend.IncidentQuery {
	return backend.IncidentQuery{Page: f.Page, PerPage: f.PerPage, Severity: f.Severity, Search: f.Search}
}

// Input is one browser message.
type Input struct {
	Type  string `json:"type"`
	Value string `json:"value,omitempty"`
	Page  int    `json:"page,omitempty"`
	Size  int    `json:"per_page,omitempty"`
}

// Output is one pushed message. Seq grows with every fetch issued.
type Output struct {
	Type    string                        `json:"type"`
	Seq     uint64                        `json:"seq"`
	Filters Filters                       `json:"filters"`
	Page    *models.Page[models.Incident] `json:"page,omitempty"`
	Error   string                        `json:"error,omitempty"`
}

// Options configure an Incidents session.
type Options struct {
	Clock    Clock
	Debounce time.Duration
	PerPage  int
	Logger   *slog.Logger
	Buffer   int
}

// Incidents is the live search session behind /ws/incidents.
type Incidents struct {
	lister IncidentLister
	logger *slog.Logger
	search *Debouncer[string]
	out    chan Output

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	filters Filters
	seq     uint64
	dropped int
}

func NewIncidents(ctx context.Context, lister IncidentLister, opts Options) *Incidents {
	if opts.PerPage == 0 || !slices.Contains(config.IncidentsPageSizes, opts.PerPage) {
		opts.PerPage = 10
	}
	if opts.Buffer <= 0 {
		opts.Buffer = 16
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(ctx)
	s := &Incidents{
		lister:  lister,
		logger:  opts.Logger,
		out:     make(chan Output, opts.Buffer),
		ctx:     ctx,
		cancel:  cancel,
		filters: Filters{Page: 1, PerPage: opts.PerPage},
	}
	s.search = NewDebouncer(opts.Clock, opts.Debounce, s.applySearch)
	return s
}

// Out streams loading, result and error messages.
func (s *Incidents) Out() <-chan Output { return s.out }

// Done is closed once the session is closed.
func (s *Incidents) Done() <-chan struct{} { return s.ctx.Done() }

// Start issues the initial fetch with filters.
func (s *Incidents) Start(f Filters) {
	s.mu.Lock()
	s.filters.Search = strings.TrimSpace(f.Search)
	s.filters.Severity = f.Severity
	s.filters.Page = max(f.Page, 1)
	if slices.Contains(config.IncidentsPageSizes, f.PerPage) {
		s.filters.PerPage = f.PerPage
	}
	s.mu.Unlock()
	s.fetch()
}

// Handle applies one browser message. Search input is debounced; every
// other change fetches immediately.
func (s *Incidents) Handle(in Input) {
	switch in.Type {
	case InputSearch:
		s.search.Push(strings.TrimSpace(in.Value))
		return
	case InputSeverity:
		sev := models.Severity(in.Value)
		if in.Value != "" && !sev.Valid() {
			return
		}
		s.update(func(f *Filters) {
			f.Severity = in.Value
			f.Page = 1
		})
	case InputPage:
		if in.Page < 1 {
			return
		}
		s.update(func(f *Filters) { f.Page = in.Page })
	case InputPerPage:
		if !slices.Contains(config.IncidentsPageSizes, in.Size) {
			return
		}
		s.update(func(f *Filters) {
			f.PerPage = in.Size
			f.Page = 1
		})
	case InputClear:
		s.search.Cancel()
		s.update(func(f *Filters) {
			f.Search = ""
			f.Severity = ""
			f.Page = 1
		})
	case InputRetry:
	default:
		s.logger.Debug("ignoring live session message", "type", in.Type)
		return
	}
	s.fetch()
}

// Filters returns the current filter state.
func (s *Incidents) Filters() Filters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filters
}

// Dropped counts results discarded because a newer fetch was issued.
func (s *Incidents) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Close stops pending searches and in-flight fetches.
func (s *Incidents) Close() {
	s.search.Cancel()
	s.cancel()
}

func (s *Incidents) applySearch(term string) {
	s.update(func(f *Filters) {
		f.Search = term
		f.Page = 1
	})
	s.fetch()
}

func (s *Incidents) update(fn func(*Filters)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.filters)
}

func (s *Incidents) fetch() {
	if s.ctx.Err() != nil {
		return
	}
	s.mu.Lock()
	s.seq++
	seq, filters := s.seq, s.filters
	s.emit(Output{Type: OutputLoading, Seq: seq, Filters: filters})
	s.mu.Unlock()

	go func() {
		page, err := s.lister.ListIncidents(s.ctx, filters.query())

		s.mu.Lock()
		defer s.mu.Unlock()
		if seq != s.seq {
			s.dropped++
			return
		}
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			s.logger.Warn("live incidents fetch failed", "seq", seq, "error", err)
			s.emit(Output{Type: OutputError, Seq: seq, Filters: filters, Error: err.Error()})
			return
		}
		s.emit(Output{Type: OutputResult, Seq: seq, Filters: filters, Page: page})
	}()
}

// emit is called with s.mu held.
func (s *Incidents) emit(o Output) {
	select {
	case s.out <- o:
	case <-s.ctx.Done():
	}
}
