// Package model holds the domain types shared across the matchmaking core:
// queued players, formed matches, and game server records.
package model

import "time"

// MaxPartySize is the largest party a single player can bring into a queue.
const MaxPartySize = 4

// GameFactions are the recognized PvP factions. Instant-mode formation pads
// a missing side with a synthetic entry drawn from this list so a match can
// still form with only one faction present in queue.
var GameFactions = []string{"Vanguard", "Insurgency"}

// DesiredMatchGroups are the recognized mission sub-selection tags a player
// may request on first entry.
var DesiredMatchGroups = []string{"PoolAlpha", "PoolBeta", "PoolGamma", "Vein", "Inferno", "Abyss"}

// QueuedPlayer is the blob stored under player:{pool_id}:{player_id}.
// JSON tags match the wire/storage keys used by the original service.
type QueuedPlayer struct {
	Faction           string   `json:"faction"`
	RegionGroup       string   `json:"region_group"`
	PartyMembers      []string `json:"party_members"`
	DesiredMatchGroup string   `json:"desired_match_group"`
}

// PartySize returns the number of players admitted together with this entry.
func (p QueuedPlayer) PartySize() int {
	if len(p.PartyMembers) == 0 {
		return 1
	}
	return len(p.PartyMembers)
}

// MatchAssignment is the blob stored under match:{player_id}, returned to a
// polling client once a match has been dispatched.
type MatchAssignment struct {
	Status  string `json:"status"`
	MatchID string `json:"match_id"`
	Mission string `json:"mission"`
}

// FormedMatch is the transient value a pool-formation function produces and
// the dispatcher consumes. PlayersInMatch uses a nil entry to model the
// single sentinel slot instant pools may leave empty on one faction side
// (see padSyntheticFactions in internal/pool).
type FormedMatch struct {
	PlayersInMatch []*string
	Mission        string
	MatchType      string
	FactionSetup   string
	MaxTeamSize    int
	FactionCounts  map[string]int
}

// GameServerInfo is the metadata record stored under game_server:{addr}.
type GameServerInfo struct {
	RegionGroup   string `json:"region_group"`
	FreeInstances int    `json:"free_instances_amount"`
}

// LaunchResponse is the body a game host returns on a successful /launch call.
type LaunchResponse struct {
	Region              string `json:"region"`
	FreeResourceUnits   int    `json:"free_resource_units"`
	FreeInstancesAmount int    `json:"free_instances_amount"`
}

// LaunchRequest is the body posted to a game host's /launch endpoint.
type LaunchRequest struct {
	GameVersion   string `json:"game_version"`
	GameContour   string `json:"game_contour"`
	GameMap       string `json:"game_map"`
	GameMode      string `json:"game_mode"`
	GameMission   string `json:"game_mission"`
	ResourceUnits int    `json:"resource_units"`
	MatchUniqueID string `json:"match_unique_id"`
	FactionSetup  string `json:"faction_setup"`
	MaxTeamSize   int    `json:"max_team_size"`
}

// MissionInfo is one entry of the mission catalog cache.
type MissionInfo struct {
	Map  string `json:"map"`
	Mode string `json:"mode"`
}

const (
	// PlayerExpiration is the TTL on a queued player's blob and the
	// window used by the expiration sweep.
	PlayerExpiration = 30 * time.Second
	// MatchExpiration is the TTL on a MatchAssignment blob.
	MatchExpiration = 300 * time.Second
	// MatchCreationLockTimeout bounds how long a single pool's formation
	// attempt may hold the per-pool lock.
	MatchCreationLockTimeout = 10 * time.Second
)
