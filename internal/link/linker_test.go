package link

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/altgovph/procurement-cli/internal/resilience"
)

// memStore is an in-memory Store.
type memStore struct {
	links       map[string]Candidate
	listErr     error
	batchErr    error
	failLink    map[string]bool
	batchCalls  int
	singleCalls int
	clearCalls  int
}

func newMemStore() *memStore {
	return &memStore{links: map[string]Candidate{}, failLink: map[string]bool{}}
}

func (m *memStore) ListLinks(context.Context) (map[string]Candidate, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make(map[string]Candidate, len(m.links))
	for k, v := range m.links {
		out[k] = v
	}
	return out, nil
}

func (m *memStore) UpsertLinks(_ context.Context, links []Candidate) (int64, error) {
	m.batchCalls++
	if m.batchErr != nil {
		return 0, m.batchErr
	}
	for _, l := range links {
		m.links[l.ContractID] = l
	}
	return int64(len(links)), nil
}

func (m *memStore) UpsertLink(_ context.Context, l Candidate) error {
	m.singleCalls++
	if m.failLink[l.ContractID] {
		return errors.New("constraint violation")
	}
	m.links[l.ContractID] = l
	return nil
}

func (m *memStore) ClearLinks(_ context.Context, ids []string) (int64, error) {
	m.clearCalls++
	var n int64
	for _, id := range ids {
		if _, ok := m.links[id]; ok {
			delete(m.links, id)
			n++
		}
	}
	return n, nil
}

func testLinker(store Store, chunk int) *Linker {
	return NewLinker(store, Config{}, nil, Options{
		ChunkSize: chunk,
		Retry:     resilience.RetryConfig{MaxAttempts: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond},
	})
}

var bulacanProjects = []Project{
	{ID: "P-100", Cost: 10_000_000, Province: "BULACAN", Region: "REGION III", Contractor: "ACME CORPORATION"},
	{ID: "P-200", Cost: 12_000_000, Province: "BULACAN", Region: "REGION III", Contractor: "ACME CORPORATION"},
	{ID: "P-300", Cost: 4_000_000, Province: "CEBU", Region: "REGION VII", Contractor: "VISAYAS BUILDERS"},
}

func TestRun_LinksBestProject(t *testing.T) {
	store := newMemStore()
	l := testLinker(store, 0)

	report, err := l.Run(context.Background(), []Contract{
		{ID: "C1", Amount: 10_000_000, DeliveryArea: "BULACAN", Awardee: "ACME CORP"},
		{ID: "C2", Amount: 12_000_000, DeliveryArea: "PAMPANGA", Awardee: "UNRELATED HOLDINGS"},
	}, bulacanProjects)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Considered)
	assert.Equal(t, 1, report.Linked)
	assert.Equal(t, 1, report.Unlinked)
	assert.Equal(t, 1, report.Written)
	assert.Equal(t, 1, report.Bands.High)
	assert.Empty(t, report.Failures)

	got, ok := store.links["C1"]
	require.True(t, ok)
	assert.Equal(t, "P-100", got.ProjectID)
	assert.Equal(t, 100.0, got.Confidence)
	assert.Equal(t, 1.0, got.Amount)
	assert.Equal(t, 1.0, got.Location)
	assert.NotContains(t, store.links, "C2")
}

func TestRun_AmountOutsideToleranceNotLinked(t *testing.T) {
	store := newMemStore()
	report, err := testLinker(store, 0).Run(context.Background(), []Contract{
		{ID: "C1", Amount: 10_000_000, DeliveryArea: "BULACAN", Awardee: "ACME CORP"},
	}, []Project{
		{ID: "P-200", Cost: 12_000_000, Province: "BULACAN", Contractor: "ACME CORPORATION"},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, report.Linked)
	assert.Equal(t, 1, report.Unlinked)
	assert.Empty(t, store.links)
}

func TestRun_TieGoesToLowestProjectID(t *testing.T) {
	store := newMemStore()
	report, err := testLinker(store, 0).Run(context.Background(), []Contract{
		{ID: "C1", Amount: 5_000_000, DeliveryArea: "LAGUNA", Awardee: "ACME"},
	}, []Project{
		{ID: "P-9", Cost: 5_000_000, Province: "LAGUNA", Contractor: "ACME"},
		{ID: "P-10", Cost: 5_000_000, Province: "LAGUNA", Contractor: "ACME"},
		{ID: "P-2", Cost: 5_000_000, Province: "LAGUNA", Contractor: "ACME"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.MultipleCandidates)
	assert.Equal(t, "P-10", store.links["C1"].ProjectID)
}

func TestRun_HigherConfidenceBeatsLowerID(t *testing.T) {
	store := newMemStore()
	_, err := testLinker(store, 0).Run(context.Background(), []Contract{
		{ID: "C1", Amount: 5_000_000, DeliveryArea: "LAGUNA", Awardee: "ACME"},
	}, []Project{
		{ID: "P-1", Cost: 4_900_000, Province: "LAGUNA", Contractor: "ACME"},
		{ID: "P-2", Cost: 5_000_000, Province: "LAGUNA", Contractor: "ACME"},
	})
	require.NoError(t, err)
	assert.Equal(t, "P-2", store.links["C1"].ProjectID)
}

func TestRun_SkipsIneligibleContracts(t *testing.T) {
	store := newMemStore()
	report, err := testLinker(store, 0).Run(context.Background(), []Contract{
		{ID: "C1", Amount: 0, DeliveryArea: "BULACAN", Awardee: "ACME CORP"},
		{ID: "C2", Amount: 10_000_000, DeliveryArea: "  ", Awardee: "ACME CORP"},
		{ID: "", Amount: 10_000_000, DeliveryArea: "BULACAN", Awardee: "ACME CORP"},
		{ID: "C3", Amount: 10_000_000, DeliveryArea: "BULACAN", Awardee: "ACME CORP"},
		{ID: "C3", Amount: 10_000_000, DeliveryArea: "BULACAN", Awardee: "ACME CORP"},
	}, bulacanProjects)
	require.NoError(t, err)
	assert.Equal(t, 5, report.Contracts)
	assert.Equal(t, 4, report.Skipped)
	assert.Equal(t, 1, report.Considered)
	assert.Equal(t, 1, report.Linked)
}

func TestRun_Idempotent(t *testing.T) {
	store := newMemStore()
	l := testLinker(store, 0)
	contracts := []Contract{
		{ID: "C1", Amount: 10_000_000, DeliveryArea: "BULACAN", Awardee: "ACME CORP"},
		{ID: "C2", Amount: 4_000_000, DeliveryArea: "Cebu City, Cebu", Awardee: "VISAYAS BUILDERS INC"},
	}

	first, err := l.Run(context.Background(), contracts, bulacanProjects)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Written)
	snapshot, _ := store.ListLinks(context.Background())

	second, err := l.Run(context.Background(), contracts, bulacanProjects)
	require.NoError(t, err)
	assert.Equal(t, 2, second.Linked)
	assert.Equal(t, 2, second.Unchanged)
	assert.Equal(t, 0, second.Written)
	assert.Equal(t, 0, second.Cleared)
	assert.Equal(t, 1, store.batchCalls)
	assert.Equal(t, snapshot, store.links)
}

func TestRun_ClearsStaleLinks(t *testing.T) {
	store := newMemStore()
	store.links["C1"] = Candidate{ContractID: "C1", ProjectID: "P-OLD", Confidence: 75}
	store.links["C9"] = Candidate{ContractID: "C9", ProjectID: "P-100", Confidence: 72}

	report, err := testLinker(store, 0).Run(context.Background(), []Contract{
		{ID: "C1", Amount: 10_000_000, DeliveryArea: "BULACAN", Awardee: "ACME CORP"},
	}, bulacanProjects)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Written)
	assert.Equal(t, 1, report.Cleared)
	assert.Equal(t, "P-100", store.links["C1"].ProjectID)
	assert.NotContains(t, store.links, "C9")
}

func TestRun_ChunkedWrites(t *testing.T) {
	store := newMemStore()
	var contracts []Contract
	var projects []Project
	for i, id := range []string{"C1", "C2", "C3", "C4", "C5"} {
		amount := float64(1_000_000 * (i + 1) * 3)
		contracts = append(contracts, Contract{ID: id, Amount: amount, DeliveryArea: "BATANGAS", Awardee: "ACME"})
		projects = append(projects, Project{ID: "P" + id, Cost: amount, Province: "BATANGAS", Contractor: "ACME"})
	}

	report, err := testLinker(store, 2).Run(context.Background(), contracts, projects)
	require.NoError(t, err)
	assert.Equal(t, 5, report.Written)
	assert.Equal(t, 3, store.batchCalls)
	assert.Len(t, store.links, 5)
}

func TestRun_BatchFailureFallsBackToSingleWrites(t *testing.T) {
	store := newMemStore()
	store.batchErr = errors.New("copy failed")
	store.failLink["C2"] = true

	report, err := testLinker(store, 0).Run(context.Background(), []Contract{
		{ID: "C1", Amount: 10_000_000, DeliveryArea: "BULACAN", Awardee: "ACME CORP"},
		{ID: "C2", Amount: 4_000_000, DeliveryArea: "CEBU", Awardee: "VISAYAS BUILDERS"},
	}, bulacanProjects)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Linked)
	assert.Equal(t, 1, report.Written)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "upsert", report.Failures[0].Operation)
	assert.Equal(t, "C2", report.Failures[0].Key)
	assert.Equal(t, 2, store.singleCalls)
	assert.Contains(t, store.links, "C1")
}

func TestRun_ListFailure(t *testing.T) {
	store := newMemStore()
	store.listErr = errors.New("connection refused")

	_, err := testLinker(store, 0).Run(context.Background(), nil, bulacanProjects)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "link: load existing links")
}

func TestBands(t *testing.T) {
	var b Bands
	for _, c := range []float64{100, 90, 89.99, 80, 79.5, 70} {
		b.add(c)
	}
	assert.Equal(t, Bands{High: 2, Medium: 2, Low: 2}, b)
}

func TestLinkReport_Counts(t *testing.T) {
	r := &LinkReport{Contracts: 3, Linked: 2, Bands: Bands{High: 1, Low: 1}}
	c := r.Counts()
	assert.Equal(t, 3, c["contracts"])
	assert.Equal(t, 2, c["linked"])
	assert.Equal(t, 1, c["band_high"])
	assert.Equal(t, 0, c["failures"])
}
