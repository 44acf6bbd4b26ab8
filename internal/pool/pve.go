package pool

import (
	"github.com/ecrtools/matchmaking-core/internal/matchconfig"
	"github.com/ecrtools/matchmaking-core/internal/model"
)

// Grounded on original_source/ecr_matchmaking/backend/logic/pve.py.
const (
	pveMaxTeamSize     = 4
	pveLowThreshold    = 360.0
	pveMediumThreshold = 180.0
)

func determineTeamSizePvE(faction1Count int, oldestQueueTime float64) (teamSize, minTeamSize, maxTeamSize int, matchType string, ok bool) {
	teamSize = min(faction1Count, pveMaxTeamSize)
	switch {
	case teamSize < 2:
		if oldestQueueTime >= pveLowThreshold {
			return teamSize, 1, pveMaxTeamSize, "raid4", true
		}
		return 0, 0, 0, "", false
	case teamSize < pveMaxTeamSize:
		if oldestQueueTime >= pveMediumThreshold {
			return teamSize, 2, pveMaxTeamSize, "raid4", true
		}
		return 0, 0, 0, "", false
	default:
		return pveMaxTeamSize, pveMaxTeamSize, pveMaxTeamSize, "raid4", true
	}
}

func determineTeamSizeInstantPvE(faction1Count int, _ float64) (teamSize, minTeamSize, maxTeamSize int, matchType string, ok bool) {
	teamSize = min(faction1Count, pveMaxTeamSize)
	return teamSize, 1, pveMaxTeamSize, "raid4", true
}

// FormPvEMatch attempts to form a raid4-scale PvE match from the snapshot.
func FormPvEMatch(playerOrder []string, playerDataMap map[string]model.QueuedPlayer, oldestQueueTime float64,
	missionsForMode map[string]map[string]matchconfig.MissionWeights) (*model.FormedMatch, bool) {
	return formPvEMatch(playerOrder, playerDataMap, oldestQueueTime, missionsForMode, determineTeamSizePvE)
}

// FormInstantPvEMatch bypasses the wait thresholds.
func FormInstantPvEMatch(playerOrder []string, playerDataMap map[string]model.QueuedPlayer, oldestQueueTime float64,
	missionsForMode map[string]map[string]matchconfig.MissionWeights) (*model.FormedMatch, bool) {
	return formPvEMatch(playerOrder, playerDataMap, oldestQueueTime, missionsForMode, determineTeamSizeInstantPvE)
}
