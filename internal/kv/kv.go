// Package kv is a small JSON key-value store on top of the app database. It
// backs the settings that survive restarts in fallback mode, mirroring what a
// browser would keep in local storage.
package kv

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Setting is one key-value row. Values are JSON documents.
type Setting struct {
	Key   string `gorm:"primaryKey;size:255"`
	Value string `gorm:"type:text;not null"`
}

// TableName keeps the table name stable across Gorm naming-strategy changes.
func (Setting) TableName() string {
	return "app_settings"
}

// ErrNotFound indicates the key has no stored value.
var ErrNotFound = eris.New("setting not found")

// Store reads and writes JSON settings.
type Store struct {
	db     *gorm.DB
	logger *logrus.Logger
}

// NewStore constructs the settings store.
func NewStore(db *gorm.DB, logger *logrus.Logger) (*Store, error) {
	if db == nil {
		return nil, eris.New("gorm DB is required")
	}

	return &Store{db: db, logger: logger}, nil
}

// Get unmarshals the value stored under key into dst.
func (s *Store) Get(ctx context.Context, key string, dst any) error {
	var setting Setting
	err := s.db.WithContext(ctx).First(&setting, "key = ?", key).Error
	if eris.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if err != nil {
		wrapped := eris.Wrapf(err, "reading setting %q", key)
		s.logError(key, wrapped, "failed to read setting")
		return wrapped
	}

	if err := json.Unmarshal([]byte(setting.Value), dst); err != nil {
		wrapped := eris.Wrapf(err, "decoding setting %q", key)
		s.logError(key, wrapped, "failed to decode setting")
		return wrapped
	}
	return nil
}

// Set marshals value and upserts it under key.
func (s *Store) Set(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		wrapped := eris.Wrapf(err, "encoding setting %q", key)
		s.logError(key, wrapped, "failed to encode setting")
		return wrapped
	}

	setting := Setting{Key: key, Value: string(raw)}
	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value"}),
		}).
		Create(&setting).Error
	if err != nil {
		wrapped := eris.Wrapf(err, "writing setting %q", key)
		s.logError(key, wrapped, "failed to write setting")
		return wrapped
	}
	return nil
}

// Delete removes the key. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.db.WithContext(ctx).Delete(&Setting{}, "key = ?", key).Error; err != nil {
		wrapped := eris.Wrapf(err, "deleting setting %q", key)
		s.logError(key, wrapped, "failed to delete setting")
		return wrapped
	}
	return nil
}

// Migrate creates or updates the app_settings table.
func Migrate(ctx context.Context, db *gorm.DB, logger *logrus.Logger) error {
	if err := db.WithContext(ctx).AutoMigrate(&Setting{}); err != nil {
		wrapped := eris.Wrap(err, "migrating app_settings table")
		if logger != nil {
			logger.WithError(wrapped).Error("kv migration failed")
		}
		return wrapped
	}
	return nil
}

func (s *Store) logError(key string, err error, message string) {
	if s.logger == nil {
		return
	}
	s.logger.WithFields(logrus.Fields{"key": key}).WithError(err).Error(message)
}
