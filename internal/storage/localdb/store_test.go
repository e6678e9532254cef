package localdb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/salesdiver/hublink/internal/common"
	"github.com/salesdiver/hublink/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(common.NewSilentLogger(), t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSaveOpportunity_AssignsIDAndTimestamp(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	opp := &models.Opportunity{Name: "New Deal"}
	require.NoError(t, store.SaveOpportunity(ctx, opp))
	assert.NotEmpty(t, opp.ID)
	require.NotNil(t, opp.LastModified)
	assert.WithinDuration(t, time.Now(), *opp.LastModified, 5*time.Second)

	got, err := store.GetOpportunity(ctx, opp.ID)
	require.NoError(t, err)
	assert.Equal(t, "New Deal", got.Name)
}

func TestSaveOpportunity_KeepsCallerTimestamp(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	stamped := time.Date(2026, 1, 25, 0, 0, 0, 0, time.UTC)
	opp := &models.Opportunity{Name: "Pulled", LastModified: &stamped}
	require.NoError(t, store.SaveOpportunity(ctx, opp))

	got, err := store.GetOpportunity(ctx, opp.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastModified)
	assert.True(t, got.LastModified.Equal(stamped), "a caller-set timestamp is never restamped")
}

func TestSaveOpportunity_EmitsChangeEvent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	opp := &models.Opportunity{Name: "Watched"}
	require.NoError(t, store.SaveOpportunity(ctx, opp))

	select {
	case event := <-store.Events():
		assert.Equal(t, models.EntityOpportunity, event.Kind)
		assert.Equal(t, opp.ID, event.ID)
	case <-time.After(time.Second):
		t.Fatal("expected a change event")
	}
}

func TestSaveOpportunity_NoSubscriberNeverBlocks(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Far more saves than the event buffer holds; none may block
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < eventBuffer*2; i++ {
			assert.NoError(t, store.SaveOpportunity(ctx, &models.Opportunity{Name: "bulk"}))
		}
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("saves blocked on a full event channel")
	}
}

func TestGetOpportunity_NotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.GetOpportunity(context.Background(), "missing")
	assert.Error(t, err)
}

func TestListAndDeleteOpportunities(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := &models.Opportunity{Name: "First"}
	second := &models.Opportunity{Name: "Second"}
	require.NoError(t, store.SaveOpportunity(ctx, first))
	require.NoError(t, store.SaveOpportunity(ctx, second))

	all, err := store.ListOpportunities(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, store.DeleteOpportunity(ctx, first.ID))
	all, err = store.ListOpportunities(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.Equal(t, second.ID, all[0].ID)

	// Deleting a missing id is a no-op
	assert.NoError(t, store.DeleteOpportunity(ctx, "missing"))
}

func TestCompanyRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	company := &models.Company{Name: "Acme Corp", City: "Springfield"}
	require.NoError(t, store.SaveCompany(ctx, company))
	assert.NotEmpty(t, company.ID)

	got, err := store.GetCompany(ctx, company.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", got.Name)
	assert.Equal(t, "Springfield", got.City)

	select {
	case event := <-store.Events():
		assert.Equal(t, models.EntityCompany, event.Kind)
	case <-time.After(time.Second):
		t.Fatal("expected a change event")
	}

	require.NoError(t, store.DeleteCompany(ctx, company.ID))
	_, err = store.GetCompany(ctx, company.ID)
	assert.Error(t, err)
}

func TestOpportunityFieldsSurviveReopen(t *testing.T) {
	dir := t.TempDir()
	logger := common.NewSilentLogger()
	ctx := context.Background()

	store, err := NewStore(logger, dir)
	require.NoError(t, err)

	closeDate := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
	opp := &models.Opportunity{
		Name:             "Persistent",
		HubSpotID:        "42",
		EstimatedValue:   1200.50,
		CloseDate:        &closeDate,
		ForecastCategory: models.ForecastCommit,
	}
	require.NoError(t, store.SaveOpportunity(ctx, opp))
	require.NoError(t, store.Close())

	reopened, err := NewStore(logger, dir)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.GetOpportunity(ctx, opp.ID)
	require.NoError(t, err)
	assert.Equal(t, "42", got.HubSpotID)
	assert.Equal(t, 1200.50, got.EstimatedValue)
	require.NotNil(t, got.CloseDate)
	assert.True(t, got.CloseDate.Equal(closeDate))
	assert.Equal(t, models.ForecastCommit, got.ForecastCategory)
}
