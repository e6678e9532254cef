// Package sync reconciles local opportunities and companies against HubSpot.
//
// Each sync call handles one entity in one direction. Direction is decided by
// comparing last-modified timestamps, with a deliberate bias toward trusting
// the remote system when information is incomplete: a missing remote
// timestamp counts as +infinity and a missing local timestamp as -infinity.
package sync

import (
	"context"
	"strings"
	"time"

	"github.com/salesdiver/hublink/internal/common"
	"github.com/salesdiver/hublink/internal/interfaces"
	"github.com/salesdiver/hublink/internal/models"
)

// Service implements interfaces.SyncService.
type Service struct {
	store  interfaces.LocalStore
	client interfaces.HubSpotClient
	auth   interfaces.AuthService
	logger *common.Logger
}

// NewService creates a new sync service. All collaborators are injected; the
// engine holds no process-wide state.
func NewService(store interfaces.LocalStore, client interfaces.HubSpotClient, auth interfaces.AuthService, logger *common.Logger) *Service {
	return &Service{
		store:  store,
		client: client,
		auth:   auth,
		logger: logger,
	}
}

// SyncOpportunity reconciles one opportunity against its HubSpot deal.
//
// An opportunity that was never linked to HubSpot (empty HubSpotID) is never
// auto-synced. A missing remote deal is a silent no-op. Concurrent syncs of
// the same entity are not mutually excluded; each call re-reads timestamps
// freshly, so a stale older sync still decides correctly and the race
// degrades to last-write-wins.
func (s *Service) SyncOpportunity(ctx context.Context, opp *models.Opportunity) error {
	if !s.auth.IsConnected(ctx) {
		return nil
	}
	if opp.HubSpotID == "" {
		return nil
	}

	remote, err := s.client.GetDeal(ctx, opp.HubSpotID)
	if err != nil {
		return err
	}
	if remote == nil {
		return nil
	}

	return s.reconcileOpportunity(ctx, opp, remote)
}

// SyncCompany is part of the public contract but intentionally inert: company
// reconciliation has no remote timestamp source yet, so no direction can be
// decided safely.
func (s *Service) SyncCompany(_ context.Context, _ *models.Company) error {
	return nil
}

// SyncAllOnStartup is part of the public contract but intentionally inert.
func (s *Service) SyncAllOnStartup(_ context.Context) error {
	return nil
}

// reconcileOpportunity decides direction and applies a one-way merge.
func (s *Service) reconcileOpportunity(ctx context.Context, opp *models.Opportunity, remote models.DealPayload) error {
	var remoteLastModified *time.Time
	if raw, ok := ExtractString(remote, "hs_lastmodifieddate"); ok {
		remoteLastModified = ParseLastModified(raw)
	}

	if !shouldPull(remoteLastModified, opp.LastModified) {
		// Push: update HubSpot with local fields. Not implemented; the
		// payload builders in payload.go define the wire shape, but the
		// conflict policy for simultaneous edits is unspecified, so no
		// field changes are sent upstream.
		s.logger.Debug().Str("id", opp.ID).Msg("Local copy newer, push not implemented")
		return nil
	}

	applyRemoteDeal(remote, opp)
	opp.LastModified = remoteLastModified
	if err := s.store.SaveOpportunity(ctx, opp); err != nil {
		return err
	}
	s.logger.Info().Str("id", opp.ID).Str("hubspot_id", opp.HubSpotID).Msg("Opportunity pulled from HubSpot")
	return nil
}

// shouldPull decides sync direction. A missing remote timestamp defaults to
// +infinity and a missing local one to -infinity, so incomplete information
// always resolves toward trusting the remote system.
func shouldPull(remote, local *time.Time) bool {
	if remote == nil {
		return true
	}
	if local == nil {
		return true
	}
	return remote.After(*local)
}

// applyRemoteDeal maps remote deal fields onto the local opportunity. One
// malformed field degrades to its safe default without blocking the others.
func applyRemoteDeal(remote models.DealPayload, opp *models.Opportunity) {
	if id, ok := remote["id"].(string); ok && id != "" {
		opp.HubSpotID = id
	}
	if name, ok := ExtractString(remote, "dealname"); ok && strings.TrimSpace(name) != "" {
		opp.Name = name
	}
	if amount, ok := ExtractString(remote, "amount"); ok {
		opp.EstimatedValue = ParseAmount(amount)
	}
	if raw, ok := ExtractField(remote, "closedate"); ok {
		if closeDate := ParseDateFlexible(raw); closeDate != nil {
			opp.CloseDate = closeDate
		}
	}
	if category, ok := ResolveForecastCategory(remote); ok {
		opp.ForecastCategory = category
	}
}

// applyRemoteCompany maps remote company details onto the local company.
// Only non-empty remote fields overwrite local ones.
func applyRemoteCompany(remote *models.CompanyDetails, company *models.Company) {
	if strings.TrimSpace(remote.Name) != "" {
		company.Name = remote.Name
	}
	if remote.Address1 != "" {
		company.Address1 = remote.Address1
	}
	if remote.Address2 != "" {
		company.Address2 = remote.Address2
	}
	if remote.City != "" {
		company.City = remote.City
	}
	if remote.State != "" {
		company.State = remote.State
	}
	if remote.PostalCode != "" {
		company.PostalCode = remote.PostalCode
	}
	switch strings.ToLower(remote.LifecycleStage) {
	case "opportunity":
		company.CompanyType = models.CompanyTypeProspect
	case "customer":
		company.CompanyType = models.CompanyTypeCustomer
	}
	company.HubSpotID = remote.ID
}

// Run subscribes to local change events and syncs best-effort until the
// context is cancelled. A failed sync is logged and dropped; transient fetch
// failures never flip connection state.
func (s *Service) Run(ctx context.Context) {
	events := s.store.Events()
	s.logger.Info().Msg("Sync subscriber started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Sync subscriber stopped")
			return
		case event := <-events:
			s.handleEvent(ctx, event)
		}
	}
}

func (s *Service) handleEvent(ctx context.Context, event models.EntityChangedEvent) {
	switch event.Kind {
	case models.EntityOpportunity:
		opp, err := s.store.GetOpportunity(ctx, event.ID)
		if err != nil {
			s.logger.Warn().Err(err).Str("id", event.ID).Msg("Changed opportunity not found")
			return
		}
		if err := s.SyncOpportunity(ctx, opp); err != nil {
			s.logger.Warn().Err(err).Str("id", event.ID).Msg("Opportunity sync failed")
		}
	case models.EntityCompany:
		company, err := s.store.GetCompany(ctx, event.ID)
		if err != nil {
			s.logger.Warn().Err(err).Str("id", event.ID).Msg("Changed company not found")
			return
		}
		if err := s.SyncCompany(ctx, company); err != nil {
			s.logger.Warn().Err(err).Str("id", event.ID).Msg("Company sync failed")
		}
	}
}

// Ensure Service implements SyncService
var _ interfaces.SyncService = (*Service)(nil)
