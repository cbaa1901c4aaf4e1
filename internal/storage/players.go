package storage

import (
	"time"

	"github.com/pedrabranca/geoquest/internal/geo"
	"github.com/pedrabranca/geoquest/internal/platform"
)

const playerKeyPrefix = "player:"

// PlayerRecord is what the server remembers about a player between
// sessions.
type PlayerRecord struct {
	Sessions     int                   `json:"sessions"`
	LastSeen     time.Time             `json:"lastSeen"`
	LastPosition *geo.Coordinate       `json:"lastPosition,omitempty"`
	Capabilities platform.Capabilities `json:"capabilities"`
}

// Players keeps PlayerRecords in a KV.
type Players struct {
	kv *KV
}

// NewPlayers returns a player store over kv.
func NewPlayers(kv *KV) *Players {
	return &Players{kv: kv}
}

// Load returns the stored record, or a zero record for a new player.
func (p *Players) Load(player string) PlayerRecord {
	return Load(p.kv, playerKeyPrefix+player, PlayerRecord{})
}

// Save stores rec for player.
func (p *Players) Save(player string, rec PlayerRecord) bool {
	return p.kv.Save(playerKeyPrefix+player, rec)
}

// Forget removes the player's record.
func (p *Players) Forget(player string) bool {
	return p.kv.Remove(playerKeyPrefix + player)
}
