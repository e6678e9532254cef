// Package tokendb implements TokenStore using BadgerHold.
// It stores OAuth access/refresh tokens and expiry as opaque secrets,
// namespaced per integration so additional CRMs can share the database.
package tokendb

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/timshannon/badgerhold/v4"

	"github.com/salesdiver/hublink/internal/common"
	"github.com/salesdiver/hublink/internal/models"
	"github.com/salesdiver/hublink/internal/storage/badger"
)

// secret is a single namespaced key/value entry.
type secret struct {
	Key   string `badgerhold:"key"`
	Value string
}

// Secret keys within an integration namespace.
const (
	accessKey  = "access_token"
	refreshKey = "refresh_token"
	expiresKey = "access_expires_at"
)

// kvSep separates namespace from key. A null byte cannot appear in either
// part, so composite keys never collide.
const kvSep = "\x00"

// Store implements interfaces.TokenStore backed by BadgerHold.
type Store struct {
	db        *badger.Store
	namespace string
	logger    *common.Logger
}

// NewStore opens a token store at path scoped to the given integration
// namespace (e.g. "hubspot").
func NewStore(logger *common.Logger, path, namespace string) (*Store, error) {
	db, err := badger.NewStore(logger, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open token db at %s: %w", path, err)
	}
	logger.Info().Str("path", path).Str("namespace", namespace).Msg("TokenDB opened")
	return &Store{db: db, namespace: namespace, logger: logger}, nil
}

func (s *Store) read(key string) (string, bool) {
	var sec secret
	if err := s.db.DB().Get(s.namespace+kvSep+key, &sec); err != nil {
		return "", false
	}
	return sec.Value, true
}

func (s *Store) write(key, value string) error {
	composite := s.namespace + kvSep + key
	if err := s.db.DB().Upsert(composite, &secret{Key: composite, Value: value}); err != nil {
		return fmt.Errorf("failed to write secret '%s': %w", key, err)
	}
	return nil
}

func (s *Store) delete(key string) error {
	composite := s.namespace + kvSep + key
	if err := s.db.DB().Delete(composite, secret{}); err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("failed to delete secret '%s': %w", key, err)
	}
	return nil
}

// Token returns the stored record, or (nil, nil) when nothing is stored.
func (s *Store) Token(_ context.Context) (*models.TokenRecord, error) {
	access, hasAccess := s.read(accessKey)
	refresh, hasRefresh := s.read(refreshKey)
	if !hasAccess && !hasRefresh {
		return nil, nil
	}

	record := &models.TokenRecord{
		AccessToken:  access,
		RefreshToken: refresh,
	}
	if raw, ok := s.read(expiresKey); ok {
		if unix, err := strconv.ParseFloat(raw, 64); err == nil {
			record.ExpiresAt = time.Unix(int64(unix), 0)
		}
	}
	return record, nil
}

// SaveToken persists the record. A missing refresh token preserves any
// previously stored one, matching refresh responses that omit it.
func (s *Store) SaveToken(_ context.Context, record *models.TokenRecord) error {
	if record == nil || record.AccessToken == "" {
		return fmt.Errorf("refusing to save empty token record")
	}
	if err := s.write(accessKey, record.AccessToken); err != nil {
		return err
	}
	if record.RefreshToken != "" {
		if err := s.write(refreshKey, record.RefreshToken); err != nil {
			return err
		}
	}
	if err := s.write(expiresKey, strconv.FormatInt(record.ExpiresAt.Unix(), 10)); err != nil {
		return err
	}
	s.logger.Debug().Str("namespace", s.namespace).Time("expires_at", record.ExpiresAt).Msg("Token record saved")
	return nil
}

// ClearToken removes all persisted token state for the namespace.
func (s *Store) ClearToken(_ context.Context) error {
	for _, key := range []string{accessKey, refreshKey, expiresKey} {
		if err := s.delete(key); err != nil {
			return err
		}
	}
	s.logger.Debug().Str("namespace", s.namespace).Msg("Token record cleared")
	return nil
}

// Close shuts down the underlying store.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
