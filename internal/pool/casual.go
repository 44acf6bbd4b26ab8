package pool

import (
	"github.com/ecrtools/matchmaking-core/internal/matchconfig"
	"github.com/ecrtools/matchmaking-core/internal/model"
)

// Grounded on original_source/ecr_matchmaking/backend/logic/pvp_casual.py,
// with the size cap and tier names redesigned per spec: team cap raised to
// casualMaxTeamSize and the medium tier no longer capped below it.
const (
	casualMaxTeamSize     = 20
	casualDuelThreshold   = 60.0
	casualMediumThreshold = 45.0
	casualBurstThreshold  = 20.0
)

func determineTeamSizeCasual(faction1Count, faction2Count int, oldestQueueTime, newestQueueTime float64) (teamSize, minTeamSize, maxTeamSize int, matchType string, ok bool) {
	teamSize = min(faction1Count, faction2Count, casualMaxTeamSize)
	maxTeamSize = max(faction1Count, faction2Count)

	switch {
	case teamSize < 1:
		return 0, 0, 0, "", false
	case teamSize < 5:
		if oldestQueueTime >= casualDuelThreshold && newestQueueTime >= casualBurstThreshold {
			return min(maxTeamSize, casualMaxTeamSize), 1, casualMaxTeamSize, "low", true
		}
		return 0, 0, 0, "", false
	case teamSize < 8:
		if oldestQueueTime >= casualMediumThreshold && newestQueueTime >= casualBurstThreshold {
			return min(maxTeamSize, casualMaxTeamSize), 5, casualMaxTeamSize, "medium", true
		}
		return 0, 0, 0, "", false
	default:
		return min(maxTeamSize, casualMaxTeamSize), 8, casualMaxTeamSize, "large", true
	}
}

func determineTeamSizeInstantPvP(faction1Count, faction2Count int, _, _ float64) (teamSize, minTeamSize, maxTeamSize int, matchType string, ok bool) {
	maxTeamSize = max(faction1Count, faction2Count)
	return maxTeamSize, 0, casualMaxTeamSize, "medium", true
}

// FormPvPCasualMatch attempts to form a casual PvP match from the snapshot.
func FormPvPCasualMatch(playerOrder []string, playerDataMap map[string]model.QueuedPlayer, oldestQueueTime, newestQueueTime float64,
	missionsForMode map[string]map[string]matchconfig.MissionWeights) (*model.FormedMatch, bool) {
	return formPvPMatch(playerOrder, playerDataMap, oldestQueueTime, newestQueueTime, missionsForMode, determineTeamSizeCasual, false)
}

// FormInstantPvPMatch bypasses the wait thresholds and permits synthetic
// single-faction formation.
func FormInstantPvPMatch(playerOrder []string, playerDataMap map[string]model.QueuedPlayer, oldestQueueTime, newestQueueTime float64,
	missionsForMode map[string]map[string]matchconfig.MissionWeights) (*model.FormedMatch, bool) {
	return formPvPMatch(playerOrder, playerDataMap, oldestQueueTime, newestQueueTime, missionsForMode, determineTeamSizeInstantPvP, true)
}
