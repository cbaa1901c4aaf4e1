package storage

import (
	"encoding/json"
	"errors"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// KV stores JSON values by key. Failures never surface as errors: they are
// logged and turned into false or the caller's default.
type KV struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// NewKV returns a KV over db. The kv_entries table must already exist.
func NewKV(db *gorm.DB, logger zerolog.Logger) *KV {
	return &KV{db: db, logger: logger}
}

// Save serializes value to JSON and upserts it under key.
func (kv *KV) Save(key string, value any) bool {
	data, err := json.Marshal(value)
	if err != nil {
		kv.logger.Error().Err(err).Str("key", key).Msg("Failed to serialize value")
		return false
	}

	entry := KVEntry{Key: key, Value: datatypes.JSON(data)}
	err = kv.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		kv.logger.Error().Err(err).Str("key", key).Msg("Failed to save value")
		return false
	}
	return true
}

// Remove deletes key. Removing a missing key succeeds.
func (kv *KV) Remove(key string) bool {
	if err := kv.db.Where(keyIs(key)).Delete(&KVEntry{}).Error; err != nil {
		kv.logger.Error().Err(err).Str("key", key).Msg("Failed to remove value")
		return false
	}
	return true
}

// Load decodes the value stored under key into a T. It returns def when the
// key is missing, unreadable, or does not decode as T.
func Load[T any](kv *KV, key string, def T) T {
	var entry KVEntry
	err := kv.db.Where(keyIs(key)).Take(&entry).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			kv.logger.Error().Err(err).Str("key", key).Msg("Failed to load value")
		}
		return def
	}

	var out T
	if err := json.Unmarshal(entry.Value, &out); err != nil {
		kv.logger.Error().Err(err).Str("key", key).Msg("Failed to decode value")
		return def
	}
	return out
}

func keyIs(key string) clause.Eq {
	return clause.Eq{Column: clause.Column{Name: "key"}, Value: key}
}
