// Package region maps raw region codes onto coarse region groups and
// scores candidate server groups by distance to a snapshot of queued
// players, grounded on original_source/ecr_matchmaking/backend/logic/regions.py.
package region

import (
	"encoding/json"
	"errors"
	"os"
	"sort"
	"strings"
)

// ErrUnknownGroup is returned by DistanceMap for a group outside the
// recognized set.
var ErrUnknownGroup = errors.New("region: unknown group")

// westernIsland holds the groups with defined cross-group distances to
// each other. eastAsiaIsland has no defined distance to any other group.
var westernIsland = map[string]bool{"EU": true, "RU": true, "US": true}

const eastAsiaGroup = "EA"

// westernDistances is the asymmetric-source, symmetric-pair distance
// table for the EU/RU/US island. Always queried as
// westernDistances[min(a,b)][max(a,b)].
var westernDistances = map[string]map[string]float64{
	"EU": {"EU": 0.0, "RU": 1.0, "US": 1.1},
	"RU": {"RU": 0.0, "US": 1.2},
	"US": {"US": 0.0},
}

var eastAsiaDistances = map[string]map[string]float64{
	eastAsiaGroup: {eastAsiaGroup: 0.0},
}

// Mapper loads the region_groups.json mapping and answers group/distance
// queries.
type Mapper struct {
	codeToGroup map[string]string
}

// Load reads a region_groups.json file (map[string]string, keys matched
// case-insensitively at lookup time).
func Load(path string) (*Mapper, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	codeToGroup := make(map[string]string, len(raw))
	for code, group := range raw {
		codeToGroup[strings.ToUpper(code)] = strings.ToUpper(group)
	}
	return &Mapper{codeToGroup: codeToGroup}, nil
}

// NewFromMap builds a Mapper directly from an already-parsed mapping,
// primarily for tests.
func NewFromMap(codeToGroup map[string]string) *Mapper {
	m := &Mapper{codeToGroup: make(map[string]string, len(codeToGroup))}
	for code, group := range codeToGroup {
		m.codeToGroup[strings.ToUpper(code)] = strings.ToUpper(group)
	}
	return m
}

// Group returns the region group for a raw region code, defaulting to EU
// for unrecognized codes.
func (m *Mapper) Group(code string) string {
	if group, ok := m.codeToGroup[strings.ToUpper(code)]; ok {
		return group
	}
	return "EU"
}

// DistanceMap returns the distance table relevant to the given group's
// island. Fails with ErrUnknownGroup when group belongs to neither island.
func DistanceMap(group string) (map[string]map[string]float64, error) {
	group = strings.ToUpper(group)
	if westernIsland[group] {
		return westernDistances, nil
	}
	if group == eastAsiaGroup {
		return eastAsiaDistances, nil
	}
	return nil, ErrUnknownGroup
}

func distance(distanceMap map[string]map[string]float64, a, b string) (float64, bool) {
	lo, hi := a, b
	if hi < lo {
		lo, hi = hi, lo
	}
	row, ok := distanceMap[lo]
	if !ok {
		return 0, false
	}
	d, ok := row[hi]
	return d, ok
}

// OrderServerGroups ranks available server groups ascending by the
// weighted distance cost to the player snapshot's region counts. A group
// is included once any region in the snapshot has a *defined* distance to
// it, even if that distance is 0 (e.g. players and server in the same
// group). Cross-island pairs have no distance entry at all and are always
// excluded — their cost is undefined, not zero, per spec.
func OrderServerGroups(regionGroupCounts map[string]int, availableServerGroups []string, distanceMap map[string]map[string]float64) []string {
	costs := make(map[string]float64)
	for _, rawGroup := range availableServerGroups {
		a := strings.ToUpper(rawGroup)
		for rawRegion, count := range regionGroupCounts {
			r := strings.ToUpper(rawRegion)
			d, ok := distance(distanceMap, a, r)
			if !ok {
				continue
			}
			costs[a] += d * float64(count)
		}
	}

	ordered := make([]string, 0, len(costs))
	for group := range costs {
		ordered = append(ordered, group)
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return costs[ordered[i]] < costs[ordered[j]]
	})
	return ordered
}
