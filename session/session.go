// Package session holds the interaction context a caller edits between
// report runs: the loaded dataset, its role mapping and the filter
// selection. The engine itself keeps no state; a Session snapshots its
// fields into an engine.Request for every computation.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/spektr-org/datadash/dataset"
	"github.com/spektr-org/datadash/engine"
	"github.com/spektr-org/datadash/schema"
)

// ErrSuperseded is returned by Compute when the session changed while the
// report was being computed. The stale report is discarded.
var ErrSuperseded = errors.New("computation superseded by a newer change")

// Session is one user's dataset, mapping and selection. All methods are
// safe for concurrent use.
type Session struct {
	ID      string
	Created time.Time

	mu         sync.RWMutex
	generation uint64
	data       *dataset.Dataset
	source     string
	mapping    schema.Mapping
	filters    engine.Selection
	last       *engine.Report
	opts       []engine.Option

	afterRun func() // test hook, runs between the engine and publishing
}

// New starts an empty session. opts are passed to every engine.Run.
func New(opts ...engine.Option) *Session {
	return &Session{
		ID:      uuid.NewString(),
		Created: time.Now().UTC(),
		opts:    opts,
	}
}

// Snapshot is a consistent, read-only view of a session.
type Snapshot struct {
	ID         string           `json:"id"`
	Created    time.Time        `json:"created"`
	Generation uint64           `json:"generation"`
	Source     string           `json:"source,omitempty"`
	Rows       int              `json:"rows"`
	Columns    []string         `json:"columns"`
	Mapping    schema.Mapping   `json:"mapping"`
	Filters    engine.Selection `json:"filters"`
}

// Snapshot returns the session's current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		ID:         s.ID,
		Created:    s.Created,
		Generation: s.generation,
		Source:     s.source,
		Rows:       s.data.Len(),
		Columns:    s.data.Names(),
		Mapping:    s.mapping.Clone(),
		Filters:    s.filters,
	}
}

// Load replaces the dataset. The mapping is re-suggested from the new
// columns and the selection is cleared. The returned detection is the one
// the suggestion was made from.
func (s *Session) Load(ds *dataset.Dataset, source string) schema.Detection {
	det := schema.Detect(ds)
	suggested := schema.Suggest(det)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = ds
	s.source = source
	s.mapping = suggested
	s.filters = engine.Selection{}
	s.bump()
	return det
}

// SetMapping validates and installs a role mapping.
func (s *Session) SetMapping(m schema.Mapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		return engine.ErrNoDataset
	}
	if err := m.Validate(s.data.Names()); err != nil {
		return err
	}
	s.mapping = m.Clone()
	s.bump()
	return nil
}

// SetFilters installs a filter selection.
func (s *Session) SetFilters(sel engine.Selection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters = sel
	s.bump()
}

// Clear drops the dataset and everything derived from it.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data, s.source = nil, ""
	s.mapping = nil
	s.filters = engine.Selection{}
	s.bump()
}

// Options derives filter domains from the current dataset and mapping.
func (s *Session) Options() (engine.FilterOptions, error) {
	s.mu.RLock()
	data, mapping := s.data, s.mapping.Clone()
	s.mu.RUnlock()

	if data == nil {
		return engine.FilterOptions{}, engine.ErrNoDataset
	}
	return engine.DeriveOptions(engine.Normalize(data, mapping)), nil
}

// Compute runs the engine on a snapshot of the session. If the session is
// changed before the run finishes, the result is dropped and ErrSuperseded
// is returned.
func (s *Session) Compute(ctx context.Context) (*engine.Report, error) {
	return s.ComputeWith(ctx, 0, "")
}

// ComputeWith is Compute with ranking overrides. topN 0 and an empty
// rankBy use the engine defaults.
func (s *Session) ComputeWith(ctx context.Context, topN int, rankBy engine.RankMetric) (*engine.Report, error) {
	s.mu.RLock()
	gen := s.generation
	req := engine.Request{
		Data:    s.data,
		Mapping: s.mapping.Clone(),
		Filters: s.filters,
		TopN:    topN,
		RankBy:  rankBy,
	}
	s.mu.RUnlock()

	runID := uuid.NewString()
	logger := log.With().Str("session", s.ID).Str("run", runID).Uint64("generation", gen).Logger()

	report, err := engine.Run(ctx, req, append([]engine.Option{engine.WithLogger(logger)}, s.opts...)...)
	if err != nil {
		return nil, err
	}
	if s.afterRun != nil {
		s.afterRun()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		logger.Debug().Uint64("current", s.generation).Msg("discarding superseded report")
		return nil, ErrSuperseded
	}
	s.last = report
	return report, nil
}

// Last returns the most recent report computed for the current state, or
// nil when the state changed since.
func (s *Session) Last() *engine.Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// Generation returns the change counter.
func (s *Session) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// bump records a change. Callers hold the write lock.
func (s *Session) bump() {
	s.generation++
	s.last = nil
}
