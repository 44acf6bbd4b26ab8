// Package pool implements the pure pool-formation logic: given a snapshot
// of queued players and queue-age aggregates, decide whether a match can be
// formed and what its parameters are. No function in this package performs
// I/O; all state is passed in and a result or a decline is returned.
//
// Grounded on original_source/ecr_matchmaking/backend/logic/common.py's
// try_create_pvp_match_common / try_create_pve_match_common.
package pool

import (
	"math/rand"
	"sort"

	"github.com/ecrtools/matchmaking-core/internal/matchconfig"
	"github.com/ecrtools/matchmaking-core/internal/model"
)

// syntheticLeaderID marks a padded faction slot with no real player behind
// it. Real player ids are always non-empty, so "" is safe as a sentinel.
const syntheticLeaderID = ""

type partyEntry struct {
	leaderID string
	size     int
}

type factionBucket struct {
	name    string
	entries []partyEntry
}

// teamSizePvPFunc computes the PvP team-size tier, or declines with ok=false.
type teamSizePvPFunc func(faction1Count, faction2Count int, oldestQueueTime, newestQueueTime float64) (teamSize, minTeamSize, maxTeamSize int, matchType string, ok bool)

// teamSizePvEFunc computes the PvE team-size tier, or declines with ok=false.
type teamSizePvEFunc func(faction1Count int, oldestQueueTime float64) (teamSize, minTeamSize, maxTeamSize int, matchType string, ok bool)

// bucketByFaction groups candidates by faction, preserving the snapshot's
// enqueue order both within a faction (party size descending, ties broken
// by enqueue order) and across factions (first-seen order, for a
// deterministic tiebreak when two factions have equal total size).
func bucketByFaction(playerOrder []string, playerDataMap map[string]model.QueuedPlayer) []factionBucket {
	index := map[string]int{}
	var buckets []factionBucket
	for _, id := range playerOrder {
		info, ok := playerDataMap[id]
		if !ok {
			continue
		}
		i, seen := index[info.Faction]
		if !seen {
			i = len(buckets)
			index[info.Faction] = i
			buckets = append(buckets, factionBucket{name: info.Faction})
		}
		buckets[i].entries = append(buckets[i].entries, partyEntry{leaderID: id, size: info.PartySize()})
	}
	for i := range buckets {
		entries := buckets[i].entries
		sort.SliceStable(entries, func(a, b int) bool { return entries[a].size > entries[b].size })
	}
	return buckets
}

func totalPartySize(entries []partyEntry) int {
	total := 0
	for _, e := range entries {
		total += e.size
	}
	return total
}

// padSyntheticFactions appends empty synthetic factions, drawn from
// model.GameFactions, until there are at least two buckets. Used only for
// instant-mode formation, which tolerates a missing second side.
func padSyntheticFactions(buckets []factionBucket) []factionBucket {
	for _, faction := range model.GameFactions {
		if len(buckets) >= 2 {
			break
		}
		present := false
		for _, b := range buckets {
			if b.name == faction {
				present = true
				break
			}
		}
		if present {
			continue
		}
		buckets = append(buckets, factionBucket{name: faction, entries: []partyEntry{{leaderID: syntheticLeaderID, size: 0}}})
	}
	return buckets
}

// twoLargestFactions returns the two buckets with the largest total party
// size, ties broken by first-seen order.
func twoLargestFactions(buckets []factionBucket) (factionBucket, factionBucket) {
	sorted := append([]factionBucket(nil), buckets...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return totalPartySize(sorted[i].entries) > totalPartySize(sorted[j].entries)
	})
	return sorted[0], sorted[1]
}

func largestFaction(buckets []factionBucket) factionBucket {
	sorted := append([]factionBucket(nil), buckets...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return totalPartySize(sorted[i].entries) > totalPartySize(sorted[j].entries)
	})
	return sorted[0]
}

// admitParties walks entries in order and admits each party whose size
// fits within the remaining team-size budget.
func admitParties(entries []partyEntry, teamSize int) (selected []partyEntry, used int) {
	for _, e := range entries {
		if used+e.size <= teamSize {
			selected = append(selected, e)
			used += e.size
		}
	}
	return selected, used
}

// expandParties substitutes each admitted leader with its full party,
// emitting a nil entry for a synthetic slot.
func expandParties(playerDataMap map[string]model.QueuedPlayer, entries []partyEntry) []*string {
	var out []*string
	for _, e := range entries {
		if e.leaderID == syntheticLeaderID {
			out = append(out, nil)
			continue
		}
		info := playerDataMap[e.leaderID]
		members := info.PartyMembers
		if len(members) == 0 {
			members = []string{e.leaderID}
		}
		for _, m := range members {
			member := m
			out = append(out, &member)
		}
	}
	return out
}

// chooseMission tallies the plurality vote on desired match group among
// admitted leaders, falls back to a uniform-random configured group if the
// winner isn't configured, then samples a mission by weight.
func chooseMission(playerDataMap map[string]model.QueuedPlayer, playersInMatch []*string,
	missionsForMode map[string]map[string]matchconfig.MissionWeights, matchType string) (string, bool) {

	votes := map[string]int{}
	var voteOrder []string
	for _, p := range playersInMatch {
		if p == nil {
			continue
		}
		info, ok := playerDataMap[*p]
		if !ok {
			// Party member, not a leader; only leaders carry desired_match_group.
			continue
		}
		group := info.DesiredMatchGroup
		if _, seen := votes[group]; !seen {
			voteOrder = append(voteOrder, group)
		}
		votes[group]++
	}

	majorityGroup := pluralityWinner(votes, voteOrder)
	if _, configured := missionsForMode[majorityGroup]; majorityGroup == "" || !configured {
		majorityGroup = randomConfiguredGroup(missionsForMode)
		if majorityGroup == "" {
			return "", false
		}
	}

	weights := missionsForMode[majorityGroup][matchType]
	if len(weights) == 0 {
		return "", false
	}
	return weightedRandomMission(weights), true
}

func pluralityWinner(votes map[string]int, order []string) string {
	best := ""
	bestCount := -1
	for _, group := range order {
		if votes[group] > bestCount {
			best = group
			bestCount = votes[group]
		}
	}
	return best
}

func randomConfiguredGroup(missionsForMode map[string]map[string]matchconfig.MissionWeights) string {
	if len(missionsForMode) == 0 {
		return ""
	}
	keys := make([]string, 0, len(missionsForMode))
	for k := range missionsForMode {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys[rand.Intn(len(keys))]
}

func weightedRandomMission(weights matchconfig.MissionWeights) string {
	keys := make([]string, 0, len(weights))
	total := 0.0
	for k, w := range weights {
		keys = append(keys, k)
		total += w
	}
	sort.Strings(keys)
	r := rand.Float64() * total
	for _, k := range keys {
		r -= weights[k]
		if r <= 0 {
			return k
		}
	}
	return keys[len(keys)-1]
}

// formPvPMatch is the common PvP skeleton shared by casual, duel, and
// instant formation: bucket by faction, pick the two largest sides, apply
// the mode-specific team-size policy, admit parties, and pick a mission.
func formPvPMatch(playerOrder []string, playerDataMap map[string]model.QueuedPlayer, oldestQueueTime, newestQueueTime float64,
	missionsForMode map[string]map[string]matchconfig.MissionWeights, determineTeamSize teamSizePvPFunc, ignoreFactionMinAmount bool) (*model.FormedMatch, bool) {

	buckets := bucketByFaction(playerOrder, playerDataMap)
	if len(buckets) < 2 {
		if !ignoreFactionMinAmount {
			return nil, false
		}
		buckets = padSyntheticFactions(buckets)
		if len(buckets) < 2 {
			return nil, false
		}
	}

	faction1, faction2 := twoLargestFactions(buckets)

	teamSize, minTeamSize, maxTeamSize, matchType, ok := determineTeamSize(
		totalPartySize(faction1.entries), totalPartySize(faction2.entries), oldestQueueTime, newestQueueTime)
	if !ok || teamSize < 1 {
		return nil, false
	}

	selected1, used1 := admitParties(faction1.entries, teamSize)
	selected2, used2 := admitParties(faction2.entries, teamSize)
	if used1 < minTeamSize || used2 < minTeamSize {
		return nil, false
	}

	playersInMatch := expandParties(playerDataMap, selected1)
	playersInMatch = append(playersInMatch, expandParties(playerDataMap, selected2)...)

	mission, ok := chooseMission(playerDataMap, playersInMatch, missionsForMode, matchType)
	if !ok {
		return nil, false
	}

	factionSetup := faction1.name + ":" + faction2.name
	if rand.Intn(2) == 0 {
		factionSetup = faction2.name + ":" + faction1.name
	}

	return &model.FormedMatch{
		PlayersInMatch: playersInMatch,
		Mission:        mission,
		MatchType:      matchType,
		FactionSetup:   factionSetup,
		MaxTeamSize:    maxTeamSize,
		FactionCounts:  map[string]int{faction1.name: used1, faction2.name: used2},
	}, true
}

// formPvEMatch is the common PvE skeleton: bucket by faction, pick the
// single largest side, apply the mode-specific team-size policy, admit
// parties, and pick a mission.
func formPvEMatch(playerOrder []string, playerDataMap map[string]model.QueuedPlayer, oldestQueueTime float64,
	missionsForMode map[string]map[string]matchconfig.MissionWeights, determineTeamSize teamSizePvEFunc) (*model.FormedMatch, bool) {

	buckets := bucketByFaction(playerOrder, playerDataMap)
	if len(buckets) < 1 {
		return nil, false
	}
	faction := largestFaction(buckets)

	teamSize, minTeamSize, maxTeamSize, matchType, ok := determineTeamSize(totalPartySize(faction.entries), oldestQueueTime)
	if !ok || teamSize < 1 {
		return nil, false
	}

	selected, used := admitParties(faction.entries, teamSize)
	if used < minTeamSize {
		return nil, false
	}

	playersInMatch := expandParties(playerDataMap, selected)

	mission, ok := chooseMission(playerDataMap, playersInMatch, missionsForMode, matchType)
	if !ok {
		return nil, false
	}

	return &model.FormedMatch{
		PlayersInMatch: playersInMatch,
		Mission:        mission,
		MatchType:      matchType,
		FactionSetup:   faction.name,
		MaxTeamSize:    maxTeamSize,
		FactionCounts:  map[string]int{faction.name: used},
	}, true
}
