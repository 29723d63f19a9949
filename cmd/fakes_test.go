//go:build !integration

package main

import (
	"context"
	"sort"
	"sync"

	"github.com/altgovph/procurement-cli/internal/config"
	"github.com/altgovph/procurement-cli/internal/link"
	"github.com/altgovph/procurement-cli/internal/registry"
)

// testConfig returns a Config carrying the loader defaults, with a single
// retry attempt so failing fakes return immediately.
func testConfig() *config.Config {
	c := &config.Config{}
	c.Store.DatabaseURL = "postgres://localhost/registry"
	c.Sources.Flood.BaseURL = "http://localhost:7700"
	c.Sources.Flood.Index = "bettergov_flood_control"
	c.Sources.Flood.PageSize = 1000
	c.Sources.Flood.RatePerSecond = 5
	c.Sources.Flood.TimeoutSecs = 30
	c.Resolve.Threshold = 0.85
	c.Resolve.VerifyThreshold = 0.90
	c.Resolve.Policy = "first"
	c.Resolve.MinFragmentLength = 10
	c.Link.AmountTolerance = 0.05
	c.Link.AmountGate = 0.8
	c.Link.ContractorFloor = 0.6
	c.Link.RegionScore = 0.7
	c.Link.AcceptAt = 70
	c.Link.ChunkSize = 500
	c.Link.Weights = config.WeightsConfig{Location: 0.4, Amount: 0.5, Contractor: 0.1}
	c.Retry = config.RetryConfig{MaxAttempts: 1, InitialBackoffMs: 1, MaxBackoffMs: 1}
	c.Breaker = config.BreakerConfig{FailureThreshold: 5, ResetTimeoutSecs: 30}
	return c
}

// fakeTracker runs passes inline and remembers what it saw. A non-nil
// completeErr is returned after every successful pass.
type fakeTracker struct {
	passes      []string
	counts      map[string]map[string]int
	failed      map[string]string
	completeErr error
}

func newFakeTracker() *fakeTracker {
	return &fakeTracker{counts: map[string]map[string]int{}, failed: map[string]string{}}
}

func (f *fakeTracker) Track(ctx context.Context, pass string, fn func(ctx context.Context) (map[string]int, error)) error {
	f.passes = append(f.passes, pass)
	counts, err := fn(ctx)
	if err != nil {
		f.failed[pass] = err.Error()
		return err
	}
	f.counts[pass] = counts
	return f.completeErr
}

// fakeRegistry is an in-memory registry.Store.
type fakeRegistry struct {
	mu      sync.Mutex
	records []registry.ContractorRecord
	listErr error
}

func (s *fakeRegistry) ListContractors(context.Context) ([]registry.ContractorRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	return append([]registry.ContractorRecord(nil), s.records...), nil
}

func (s *fakeRegistry) GetContractor(_ context.Context, id int64) (*registry.ContractorRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r := s.find(id); r != nil {
		c := *r
		return &c, nil
	}
	return nil, registry.ErrNotFound
}

func (s *fakeRegistry) CreateContractor(_ context.Context, name string, src registry.Source) (*registry.ContractorRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.records {
		if s.records[i].DisplayName == name {
			s.records[i].Sources = s.records[i].Sources.With(src)
			c := s.records[i]
			return &c, nil
		}
	}
	rec := registry.ContractorRecord{
		ID:          int64(len(s.records) + 1),
		DisplayName: name,
		Sources:     registry.FlagsOf(src),
	}
	s.records = append(s.records, rec)
	return &rec, nil
}

func (s *fakeRegistry) AddSource(_ context.Context, id int64, src registry.Source) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r := s.find(id); r != nil {
		r.Sources = r.Sources.With(src)
		return nil
	}
	return registry.ErrNotFound
}

func (s *fakeRegistry) SetFormer(_ context.Context, id, formerID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.find(id)
	if r == nil {
		return registry.ErrNotFound
	}
	if r.FormerID == nil {
		f := formerID
		r.FormerID = &f
	}
	return nil
}

func (s *fakeRegistry) SetVerification(_ context.Context, id int64, v registry.Verification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.find(id)
	if r == nil {
		return registry.ErrNotFound
	}
	r.Verification = &v
	return nil
}

func (s *fakeRegistry) find(id int64) *registry.ContractorRecord {
	for i := range s.records {
		if s.records[i].ID == id {
			return &s.records[i]
		}
	}
	return nil
}

func (s *fakeRegistry) byName(name string) *registry.ContractorRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.records {
		if s.records[i].DisplayName == name {
			c := s.records[i]
			return &c
		}
	}
	return nil
}

// fakeLinks is an in-memory link.Store.
type fakeLinks struct {
	mu    sync.Mutex
	links map[string]link.Candidate
}

func newFakeLinks() *fakeLinks { return &fakeLinks{links: map[string]link.Candidate{}} }

func (s *fakeLinks) ListLinks(context.Context) (map[string]link.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]link.Candidate, len(s.links))
	for k, v := range s.links {
		out[k] = v
	}
	return out, nil
}

func (s *fakeLinks) UpsertLinks(_ context.Context, links []link.Candidate) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range links {
		s.links[l.ContractID] = l
	}
	return int64(len(links)), nil
}

func (s *fakeLinks) UpsertLink(_ context.Context, l link.Candidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.links[l.ContractID] = l
	return nil
}

func (s *fakeLinks) ClearLinks(_ context.Context, ids []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, id := range ids {
		if _, ok := s.links[id]; ok {
			delete(s.links, id)
			n++
		}
	}
	return n, nil
}

func (s *fakeLinks) contractIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.links))
	for id := range s.links {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
