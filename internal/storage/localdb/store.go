// Package localdb implements the local entity store using BadgerHold.
// It persists opportunities and companies and emits change events consumed
// by the sync subscriber.
package localdb

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/timshannon/badgerhold/v4"

	"github.com/salesdiver/hublink/internal/common"
	"github.com/salesdiver/hublink/internal/models"
	"github.com/salesdiver/hublink/internal/storage/badger"
)

// eventBuffer bounds the change channel. Saves never block on a slow or
// absent subscriber; overflow events are dropped.
const eventBuffer = 64

// Store implements interfaces.LocalStore backed by BadgerHold.
type Store struct {
	db     *badger.Store
	logger *common.Logger
	events chan models.EntityChangedEvent
}

// NewStore creates a local entity store at the given directory path.
func NewStore(logger *common.Logger, path string) (*Store, error) {
	db, err := badger.NewStore(logger, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open local db at %s: %w", path, err)
	}
	logger.Info().Str("path", path).Msg("LocalDB opened")
	return &Store{
		db:     db,
		logger: logger,
		events: make(chan models.EntityChangedEvent, eventBuffer),
	}, nil
}

// Events returns the change notification channel.
func (s *Store) Events() <-chan models.EntityChangedEvent {
	return s.events
}

func (s *Store) notify(kind models.EntityKind, id string) {
	select {
	case s.events <- models.EntityChangedEvent{Kind: kind, ID: id}:
	default:
		s.logger.Debug().Str("kind", string(kind)).Str("id", id).Msg("Change event dropped, no subscriber draining")
	}
}

// --- Opportunities ---

func (s *Store) GetOpportunity(_ context.Context, id string) (*models.Opportunity, error) {
	var opp models.Opportunity
	if err := s.db.DB().Get(id, &opp); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("opportunity '%s' not found", id)
		}
		return nil, fmt.Errorf("failed to get opportunity '%s': %w", id, err)
	}
	return &opp, nil
}

// SaveOpportunity upserts the opportunity, stamps LastModified when the
// caller has not, and emits a change event.
func (s *Store) SaveOpportunity(_ context.Context, opp *models.Opportunity) error {
	if opp.ID == "" {
		opp.ID = uuid.NewString()
	}
	if opp.LastModified == nil {
		now := time.Now()
		opp.LastModified = &now
	}
	if err := s.db.DB().Upsert(opp.ID, opp); err != nil {
		return fmt.Errorf("failed to save opportunity '%s': %w", opp.ID, err)
	}
	s.logger.Debug().Str("id", opp.ID).Str("hubspot_id", opp.HubSpotID).Msg("Opportunity saved")
	s.notify(models.EntityOpportunity, opp.ID)
	return nil
}

func (s *Store) ListOpportunities(_ context.Context) ([]*models.Opportunity, error) {
	var all []models.Opportunity
	if err := s.db.DB().Find(&all, nil); err != nil {
		return nil, fmt.Errorf("failed to list opportunities: %w", err)
	}
	result := make([]*models.Opportunity, len(all))
	for i := range all {
		result[i] = &all[i]
	}
	return result, nil
}

func (s *Store) DeleteOpportunity(_ context.Context, id string) error {
	if err := s.db.DB().Delete(id, models.Opportunity{}); err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("failed to delete opportunity '%s': %w", id, err)
	}
	return nil
}

// --- Companies ---

func (s *Store) GetCompany(_ context.Context, id string) (*models.Company, error) {
	var company models.Company
	if err := s.db.DB().Get(id, &company); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("company '%s' not found", id)
		}
		return nil, fmt.Errorf("failed to get company '%s': %w", id, err)
	}
	return &company, nil
}

func (s *Store) SaveCompany(_ context.Context, company *models.Company) error {
	if company.ID == "" {
		company.ID = uuid.NewString()
	}
	if company.LastModified == nil {
		now := time.Now()
		company.LastModified = &now
	}
	if err := s.db.DB().Upsert(company.ID, company); err != nil {
		return fmt.Errorf("failed to save company '%s': %w", company.ID, err)
	}
	s.logger.Debug().Str("id", company.ID).Str("hubspot_id", company.HubSpotID).Msg("Company saved")
	s.notify(models.EntityCompany, company.ID)
	return nil
}

func (s *Store) ListCompanies(_ context.Context) ([]*models.Company, error) {
	var all []models.Company
	if err := s.db.DB().Find(&all, nil); err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}
	result := make([]*models.Company, len(all))
	for i := range all {
		result[i] = &all[i]
	}
	return result, nil
}

func (s *Store) DeleteCompany(_ context.Context, id string) error {
	if err := s.db.DB().Delete(id, models.Company{}); err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("failed to delete company '%s': %w", id, err)
	}
	return nil
}

// Close shuts down the BadgerHold database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
