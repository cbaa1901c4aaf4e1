package storage

import (
	"time"

	"gorm.io/datatypes"
)

// KVEntry is one JSON value stored under a string key.
type KVEntry struct {
	Key       string `gorm:"primaryKey;size:255"`
	Value     datatypes.JSON
	UpdatedAt time.Time
}

func (KVEntry) TableName() string {
	return "kv_entries"
}

// ProgressRecord is the persisted lifecycle status of one mission for one
// player.
type ProgressRecord struct {
	PlayerID    string `gorm:"primaryKey;size:64"`
	MissionID   int64  `gorm:"primaryKey;autoIncrement:false"`
	Status      string `gorm:"size:16"`
	Completions int
	UpdatedAt   time.Time
}

func (ProgressRecord) TableName() string {
	return "mission_progress"
}

// Models lists every table migrated by Manager.Setup.
var Models = []any{
	&KVEntry{},
	&ProgressRecord{},
}
