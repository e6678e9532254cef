package sync

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/salesdiver/hublink/internal/common"
	"github.com/salesdiver/hublink/internal/models"
)

// --- mock implementations ---

// memLocalStore is a simple in-memory LocalStore for tests.
type memLocalStore struct {
	mu            sync.Mutex
	opportunities map[string]*models.Opportunity
	companies     map[string]*models.Company
	events        chan models.EntityChangedEvent
	saveCount     int
}

func newMemLocalStore() *memLocalStore {
	return &memLocalStore{
		opportunities: make(map[string]*models.Opportunity),
		companies:     make(map[string]*models.Company),
		events:        make(chan models.EntityChangedEvent, 8),
	}
}

func (m *memLocalStore) GetOpportunity(_ context.Context, id string) (*models.Opportunity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if opp, ok := m.opportunities[id]; ok {
		copied := *opp
		return &copied, nil
	}
	return nil, fmt.Errorf("opportunity '%s' not found", id)
}

func (m *memLocalStore) SaveOpportunity(_ context.Context, opp *models.Opportunity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if opp.ID == "" {
		opp.ID = fmt.Sprintf("opp-%d", len(m.opportunities)+1)
	}
	copied := *opp
	m.opportunities[opp.ID] = &copied
	m.saveCount++
	select {
	case m.events <- models.EntityChangedEvent{Kind: models.EntityOpportunity, ID: opp.ID}:
	default:
	}
	return nil
}

func (m *memLocalStore) ListOpportunities(_ context.Context) ([]*models.Opportunity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*models.Opportunity
	for _, opp := range m.opportunities {
		copied := *opp
		result = append(result, &copied)
	}
	return result, nil
}

func (m *memLocalStore) DeleteOpportunity(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.opportunities, id)
	return nil
}

func (m *memLocalStore) GetCompany(_ context.Context, id string) (*models.Company, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if company, ok := m.companies[id]; ok {
		copied := *company
		return &copied, nil
	}
	return nil, fmt.Errorf("company '%s' not found", id)
}

func (m *memLocalStore) SaveCompany(_ context.Context, company *models.Company) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if company.ID == "" {
		company.ID = fmt.Sprintf("company-%d", len(m.companies)+1)
	}
	copied := *company
	m.companies[company.ID] = &copied
	return nil
}

func (m *memLocalStore) ListCompanies(_ context.Context) ([]*models.Company, error) {
	return nil, nil
}

func (m *memLocalStore) DeleteCompany(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.companies, id)
	return nil
}

func (m *memLocalStore) Events() <-chan models.EntityChangedEvent { return m.events }

func (m *memLocalStore) Close() error { return nil }

func (m *memLocalStore) saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveCount
}

// mockHubSpotClient serves canned payloads keyed by deal id.
type mockHubSpotClient struct {
	mu       sync.Mutex
	deals    map[string]models.DealPayload
	getErr   error
	getCalls int
}

func (m *mockHubSpotClient) ListDeals(_ context.Context, _ int) ([]*models.DealSummary, error) {
	return nil, nil
}

func (m *mockHubSpotClient) SearchDeals(_ context.Context, _ string, _ int) ([]*models.DealSummary, error) {
	return nil, nil
}

func (m *mockHubSpotClient) GetDeal(_ context.Context, dealID string) (models.DealPayload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.deals[dealID], nil
}

func (m *mockHubSpotClient) GetDealCompanyID(_ context.Context, _ string) (string, error) {
	return "", nil
}

func (m *mockHubSpotClient) GetCompany(_ context.Context, _ string) (*models.CompanyDetails, error) {
	return nil, nil
}

func (m *mockHubSpotClient) SearchCompanyByName(_ context.Context, _ string) (*models.CompanyDetails, error) {
	return nil, nil
}

// mockAuthService reports a fixed connection state.
type mockAuthService struct {
	connected bool
}

func (m *mockAuthService) EnsureAccessToken(_ context.Context) (string, error) {
	return "test-token", nil
}
func (m *mockAuthService) BeginAuthorization() (*url.URL, error)            { return nil, nil }
func (m *mockAuthService) HandleCallback(_ context.Context, _ *url.URL) error { return nil }
func (m *mockAuthService) Disconnect(_ context.Context) error               { return nil }
func (m *mockAuthService) IsConnected(_ context.Context) bool               { return m.connected }

func newTestService(store *memLocalStore, client *mockHubSpotClient, connected bool) *Service {
	return NewService(store, client, &mockAuthService{connected: connected}, common.NewSilentLogger())
}

// --- tests ---

func TestSyncOpportunity_NotConnected(t *testing.T) {
	store := newMemLocalStore()
	client := &mockHubSpotClient{deals: map[string]models.DealPayload{}}
	svc := newTestService(store, client, false)

	opp := &models.Opportunity{ID: "opp-1", HubSpotID: "42"}
	require.NoError(t, svc.SyncOpportunity(context.Background(), opp))
	assert.Equal(t, 0, client.getCalls, "no fetch when disconnected")
	assert.Equal(t, 0, store.saves())
}

func TestSyncOpportunity_NeverLinked(t *testing.T) {
	store := newMemLocalStore()
	client := &mockHubSpotClient{deals: map[string]models.DealPayload{}}
	svc := newTestService(store, client, true)

	opp := &models.Opportunity{ID: "opp-1", Name: "Local Only"}
	require.NoError(t, svc.SyncOpportunity(context.Background(), opp))
	assert.Equal(t, 0, client.getCalls, "unlinked entities are never auto-synced")
}

func TestSyncOpportunity_RemoteMissing(t *testing.T) {
	store := newMemLocalStore()
	client := &mockHubSpotClient{deals: map[string]models.DealPayload{}}
	svc := newTestService(store, client, true)

	opp := &models.Opportunity{ID: "opp-1", HubSpotID: "42"}
	require.NoError(t, svc.SyncOpportunity(context.Background(), opp), "missing remote is a no-op, not an error")
	assert.Equal(t, 1, client.getCalls)
	assert.Equal(t, 0, store.saves())
}

func TestSyncOpportunity_BothTimestampsMissing_Pulls(t *testing.T) {
	store := newMemLocalStore()
	client := &mockHubSpotClient{deals: map[string]models.DealPayload{
		"42": {
			"id": "42",
			"properties": map[string]any{
				"dealname": "Remote Name",
				"amount":   "500",
			},
		},
	}}
	svc := newTestService(store, client, true)

	opp := &models.Opportunity{ID: "opp-1", HubSpotID: "42", Name: "Local Name"}
	require.NoError(t, svc.SyncOpportunity(context.Background(), opp))

	// Missing remote timestamp counts as +infinity, missing local as -infinity
	assert.Equal(t, "Remote Name", opp.Name)
	assert.Equal(t, 500.0, opp.EstimatedValue)
	assert.Equal(t, 1, store.saves())
}

func TestSyncOpportunity_RemoteNewer_PullsAndStampsRemoteTime(t *testing.T) {
	t1 := time.Date(2026, 1, 20, 12, 0, 0, 0, time.UTC)
	t2 := time.Date(2026, 1, 25, 0, 0, 0, 0, time.UTC)

	store := newMemLocalStore()
	client := &mockHubSpotClient{deals: map[string]models.DealPayload{
		"42": {
			"id": "42",
			"properties": map[string]any{
				"dealname":            "Acme Corp - Q3 Renewal",
				"amount":              "1200.50",
				"closedate":           "2026-03-31T00:00:00Z",
				"forecast_category":   "Best Case",
				"hs_lastmodifieddate": fmt.Sprintf("%d", t2.UnixMilli()),
			},
		},
	}}
	svc := newTestService(store, client, true)

	opp := &models.Opportunity{
		ID:           "opp-1",
		HubSpotID:    "42",
		Name:         "Stale Local Name",
		LastModified: &t1,
	}
	require.NoError(t, svc.SyncOpportunity(context.Background(), opp))

	assert.Equal(t, "Acme Corp - Q3 Renewal", opp.Name)
	assert.Equal(t, 1200.50, opp.EstimatedValue)
	require.NotNil(t, opp.CloseDate)
	assert.Equal(t, time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC), opp.CloseDate.UTC())
	assert.Equal(t, models.ForecastBestCase, opp.ForecastCategory)
	require.NotNil(t, opp.LastModified)
	assert.True(t, opp.LastModified.Equal(t2), "local timestamp takes the remote value")
	assert.Equal(t, 1, store.saves())
}

func TestSyncOpportunity_LocalNewer_PushIsNoOp(t *testing.T) {
	t1 := time.Date(2026, 1, 25, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2026, 1, 20, 12, 0, 0, 0, time.UTC)

	store := newMemLocalStore()
	client := &mockHubSpotClient{deals: map[string]models.DealPayload{
		"42": {
			"id": "42",
			"properties": map[string]any{
				"dealname":            "Remote Name",
				"hs_lastmodifieddate": fmt.Sprintf("%d", t2.UnixMilli()),
			},
		},
	}}
	svc := newTestService(store, client, true)

	opp := &models.Opportunity{
		ID:           "opp-1",
		HubSpotID:    "42",
		Name:         "Fresh Local Name",
		LastModified: &t1,
	}
	require.NoError(t, svc.SyncOpportunity(context.Background(), opp))

	// Push direction is an explicit no-op: nothing changes, nothing is saved
	assert.Equal(t, "Fresh Local Name", opp.Name)
	assert.True(t, opp.LastModified.Equal(t1))
	assert.Equal(t, 0, store.saves())
}

func TestSyncOpportunity_MalformedFieldsDegrade(t *testing.T) {
	t2 := time.Date(2026, 1, 25, 0, 0, 0, 0, time.UTC)

	store := newMemLocalStore()
	client := &mockHubSpotClient{deals: map[string]models.DealPayload{
		"42": {
			"id": "42",
			"properties": map[string]any{
				"dealname":            "Still Applied",
				"amount":              "not a number",
				"closedate":           "not a date",
				"forecast_category":   "unheard of bucket",
				"hs_lastmodifieddate": fmt.Sprintf("%d", t2.UnixMilli()),
			},
		},
	}}
	svc := newTestService(store, client, true)

	existing := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	opp := &models.Opportunity{
		ID:               "opp-1",
		HubSpotID:        "42",
		Name:             "Old",
		EstimatedValue:   900,
		CloseDate:        &existing,
		ForecastCategory: models.ForecastCommit,
	}
	require.NoError(t, svc.SyncOpportunity(context.Background(), opp))

	// One bad field never blocks the others
	assert.Equal(t, "Still Applied", opp.Name)
	assert.Equal(t, 0.0, opp.EstimatedValue, "unparsable amount degrades to 0")
	assert.True(t, opp.CloseDate.Equal(existing), "unparsable date leaves the local value")
	assert.Equal(t, models.ForecastOmitted, opp.ForecastCategory, "unknown forecast token collapses to omitted")
	assert.Equal(t, 1, store.saves())
}

func TestSyncOpportunity_BlankRemoteNameKept(t *testing.T) {
	store := newMemLocalStore()
	client := &mockHubSpotClient{deals: map[string]models.DealPayload{
		"42": {
			"id": "42",
			"properties": map[string]any{
				"dealname": "   ",
				"amount":   "100",
			},
		},
	}}
	svc := newTestService(store, client, true)

	opp := &models.Opportunity{ID: "opp-1", HubSpotID: "42", Name: "Keep Me"}
	require.NoError(t, svc.SyncOpportunity(context.Background(), opp))
	assert.Equal(t, "Keep Me", opp.Name, "blank remote name never clobbers the local one")
	assert.Equal(t, 100.0, opp.EstimatedValue)
}

func TestSyncOpportunity_FetchErrorPropagates(t *testing.T) {
	store := newMemLocalStore()
	client := &mockHubSpotClient{getErr: fmt.Errorf("boom")}
	svc := newTestService(store, client, true)

	opp := &models.Opportunity{ID: "opp-1", HubSpotID: "42"}
	err := svc.SyncOpportunity(context.Background(), opp)
	require.Error(t, err)
	assert.Equal(t, 0, store.saves())
}

func TestSyncCompanyAndStartup_AreInert(t *testing.T) {
	store := newMemLocalStore()
	client := &mockHubSpotClient{}
	svc := newTestService(store, client, true)

	require.NoError(t, svc.SyncCompany(context.Background(), &models.Company{ID: "c-1", HubSpotID: "7"}))
	require.NoError(t, svc.SyncAllOnStartup(context.Background()))
	assert.Equal(t, 0, client.getCalls)
	assert.Equal(t, 0, store.saves())
}

func TestApplyRemoteCompany(t *testing.T) {
	company := &models.Company{ID: "c-1", Name: "Old Name", City: "Old City"}
	remote := &models.CompanyDetails{
		ID:             "77",
		Name:           "Acme Corp",
		Address1:       "1 Main St",
		State:          "IL",
		LifecycleStage: "Opportunity",
	}

	applyRemoteCompany(remote, company)

	assert.Equal(t, "Acme Corp", company.Name)
	assert.Equal(t, "1 Main St", company.Address1)
	assert.Equal(t, "Old City", company.City, "empty remote fields never overwrite")
	assert.Equal(t, "IL", company.State)
	assert.Equal(t, models.CompanyTypeProspect, company.CompanyType)
	assert.Equal(t, "77", company.HubSpotID)

	remote.LifecycleStage = "customer"
	applyRemoteCompany(remote, company)
	assert.Equal(t, models.CompanyTypeCustomer, company.CompanyType)

	remote.LifecycleStage = "lead"
	applyRemoteCompany(remote, company)
	assert.Equal(t, models.CompanyTypeCustomer, company.CompanyType, "unknown stage leaves the type unchanged")
}

func TestRun_SyncsOnChangeEvent(t *testing.T) {
	t2 := time.Date(2026, 1, 25, 0, 0, 0, 0, time.UTC)

	store := newMemLocalStore()
	client := &mockHubSpotClient{deals: map[string]models.DealPayload{
		"42": {
			"id": "42",
			"properties": map[string]any{
				"dealname":            "Pulled By Subscriber",
				"hs_lastmodifieddate": fmt.Sprintf("%d", t2.UnixMilli()),
			},
		},
	}}
	svc := newTestService(store, client, true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.Run(ctx)

	require.NoError(t, store.SaveOpportunity(ctx, &models.Opportunity{ID: "opp-1", HubSpotID: "42", Name: "Local"}))

	require.Eventually(t, func() bool {
		opp, err := store.GetOpportunity(ctx, "opp-1")
		return err == nil && opp.Name == "Pulled By Subscriber"
	}, 2*time.Second, 10*time.Millisecond)
}
