package pool

import (
	"github.com/ecrtools/matchmaking-core/internal/matchconfig"
	"github.com/ecrtools/matchmaking-core/internal/model"
)

// Grounded on original_source/ecr_matchmaking/backend/logic/pvp_duels.py.
const duelMaxTeamSize = 5

func determineTeamSizeDuel(faction1Count, faction2Count int, _, _ float64) (teamSize, minTeamSize, maxTeamSize int, matchType string, ok bool) {
	teamSize = min(faction1Count, faction2Count)
	if teamSize < duelMaxTeamSize {
		return 0, 0, 0, "", false
	}
	maxTeamSize = max(faction1Count, faction2Count)
	return min(maxTeamSize, duelMaxTeamSize), 2, duelMaxTeamSize, "duel", true
}

// FormPvPDuelMatch attempts to form a duel match (at least five queued per
// side, up to five admitted per side) from the snapshot.
func FormPvPDuelMatch(playerOrder []string, playerDataMap map[string]model.QueuedPlayer, oldestQueueTime, newestQueueTime float64,
	missionsForMode map[string]map[string]matchconfig.MissionWeights) (*model.FormedMatch, bool) {
	return formPvPMatch(playerOrder, playerDataMap, oldestQueueTime, newestQueueTime, missionsForMode, determineTeamSizeDuel, false)
}
