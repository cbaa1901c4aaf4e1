package storage

import (
	"context"
	"fmt"

	"github.com/pedrabranca/geoquest/internal/mission"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// ProgressStore persists mission.Tracker snapshots per player.
type ProgressStore struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// NewProgressStore returns a store over db. The mission_progress table must
// already exist.
func NewProgressStore(db *gorm.DB, logger zerolog.Logger) *ProgressStore {
	return &ProgressStore{db: db, logger: logger}
}

// Save replaces everything stored for player with progress.
func (s *ProgressStore) Save(ctx context.Context, player string, progress map[mission.ID]mission.Progress) error {
	if player == "" {
		return fmt.Errorf("player id required")
	}

	records := make([]ProgressRecord, 0, len(progress))
	for id, p := range progress {
		records = append(records, ProgressRecord{
			PlayerID:    player,
			MissionID:   int64(id),
			Status:      p.Status.String(),
			Completions: p.Completions,
		})
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("player_id = ?", player).Delete(&ProgressRecord{}).Error; err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}
		return tx.Create(&records).Error
	})
	if err != nil {
		return fmt.Errorf("failed to save progress for %s: %w", player, err)
	}

	s.logger.Debug().Str("player", player).Int("missions", len(records)).Msg("Progress saved")
	return nil
}

// Load returns the stored progress of player. A player with no records gets
// an empty map.
func (s *ProgressStore) Load(ctx context.Context, player string) (map[mission.ID]mission.Progress, error) {
	var records []ProgressRecord
	err := s.db.WithContext(ctx).Where("player_id = ?", player).Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load progress for %s: %w", player, err)
	}

	out := make(map[mission.ID]mission.Progress, len(records))
	for _, r := range records {
		out[mission.ID(r.MissionID)] = mission.Progress{
			Status:      mission.ParseStatus(r.Status),
			Completions: r.Completions,
		}
	}
	return out, nil
}
