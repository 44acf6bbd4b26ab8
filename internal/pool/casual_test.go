package pool

import (
	"reflect"
	"testing"

	"github.com/ecrtools/matchmaking-core/internal/matchconfig"
	"github.com/ecrtools/matchmaking-core/internal/model"
)

func playerSet(ids []*string) map[string]bool {
	out := map[string]bool{}
	for _, id := range ids {
		if id == nil {
			out["<nil>"] = true
			continue
		}
		out[*id] = true
	}
	return out
}

func missionTable(group, matchType string, weights matchconfig.MissionWeights) map[string]map[string]matchconfig.MissionWeights {
	return map[string]map[string]matchconfig.MissionWeights{
		group: {matchType: weights},
	}
}

// S1: casual PvP forms once the 60s low-tier threshold is met.
func TestCasualFormsAfterLowThreshold(t *testing.T) {
	order := []string{"p1", "p2", "p3"}
	data := map[string]model.QueuedPlayer{
		"p1": {Faction: "A", PartyMembers: []string{"p1"}, DesiredMatchGroup: "g1"},
		"p2": {Faction: "A", PartyMembers: []string{"p2"}, DesiredMatchGroup: "g1"},
		"p3": {Faction: "B", PartyMembers: []string{"p3", "p4"}, DesiredMatchGroup: "g1"},
	}
	missions := map[string]map[string]matchconfig.MissionWeights{
		"g1": {"low": {"m1": 1}, "medium": {"m1": 1}, "large": {"m1": 1}},
	}

	match, ok := FormPvPCasualMatch(order, data, 61, 61, missions)
	if !ok {
		t.Fatal("expected match to form")
	}
	if match.MatchType != "low" || match.Mission != "m1" {
		t.Fatalf("unexpected match: %+v", match)
	}
	got := playerSet(match.PlayersInMatch)
	want := map[string]bool{"p1": true, "p2": true, "p3": true, "p4": true}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got players %v, want %v", got, want)
	}
}

// S2: declines when only one faction is present in queue, regardless of
// queue age — diversity is checked before any team-size threshold.
func TestCasualDeclinesWithoutFactionDiversity(t *testing.T) {
	order := []string{"p1", "p2"}
	data := map[string]model.QueuedPlayer{
		"p1": {Faction: "A", PartyMembers: []string{"p1"}, DesiredMatchGroup: "g1"},
		"p2": {Faction: "A", PartyMembers: []string{"p2"}, DesiredMatchGroup: "g1"},
	}
	missions := missionTable("g1", "low", matchconfig.MissionWeights{"m1": 1})

	if _, ok := FormPvPCasualMatch(order, data, 100, 100, missions); ok {
		t.Fatal("expected decline with a single faction present")
	}
}

// S3: medium-tier match forms with two multi-party sides.
func TestCasualFormsMediumTier(t *testing.T) {
	order := []string{"p1", "p2", "p5", "p6", "p7"}
	data := map[string]model.QueuedPlayer{
		"p1": {Faction: "A", PartyMembers: []string{"p1"}, DesiredMatchGroup: "g1"},
		"p2": {Faction: "A", PartyMembers: []string{"p2", "p3", "p4"}, DesiredMatchGroup: "g1"},
		"p5": {Faction: "A", PartyMembers: []string{"p5"}, DesiredMatchGroup: "g1"},
		"p6": {Faction: "B", PartyMembers: []string{"p6"}, DesiredMatchGroup: "g1"},
		"p7": {Faction: "B", PartyMembers: []string{"p7", "p8", "p9", "p10"}, DesiredMatchGroup: "g1"},
	}
	missions := missionTable("g1", "medium", matchconfig.MissionWeights{"m1": 1})

	match, ok := FormPvPCasualMatch(order, data, 50, 50, missions)
	if !ok {
		t.Fatal("expected match to form")
	}
	if match.MatchType != "medium" || match.Mission != "m1" {
		t.Fatalf("unexpected match: %+v", match)
	}
	want := map[string]bool{}
	for _, id := range []string{"p1", "p2", "p3", "p4", "p5", "p6", "p7", "p8", "p9", "p10"} {
		want[id] = true
	}
	if got := playerSet(match.PlayersInMatch); !reflect.DeepEqual(got, want) {
		t.Fatalf("got players %v, want %v", got, want)
	}
}

// Large-scale matches cap admission per side at min(max_team_size, cap) and
// decline a party whole when it would overflow the remaining capacity —
// parties are never split.
func TestCasualLargeCapsPerSideAndPreservesParties(t *testing.T) {
	order := []string{"a1", "a2", "a3", "b1", "b2", "b3", "b4", "b5"}
	data := map[string]model.QueuedPlayer{
		"a1": {Faction: "A", PartyMembers: []string{"a1", "a2", "a3", "a4"}, DesiredMatchGroup: "g1"},
		"a2": {Faction: "A", PartyMembers: []string{"a5", "a6", "a7", "a8"}, DesiredMatchGroup: "g1"},
		"a3": {Faction: "A", PartyMembers: []string{"a9", "a10", "a11", "a12"}, DesiredMatchGroup: "g1"},
		"b1": {Faction: "B", PartyMembers: []string{"b1a", "b1b", "b1c", "b1d", "b1e"}, DesiredMatchGroup: "g1"},
		"b2": {Faction: "B", PartyMembers: []string{"b2a", "b2b", "b2c", "b2d", "b2e"}, DesiredMatchGroup: "g1"},
		"b3": {Faction: "B", PartyMembers: []string{"b3a", "b3b", "b3c", "b3d", "b3e"}, DesiredMatchGroup: "g1"},
		"b4": {Faction: "B", PartyMembers: []string{"b4a", "b4b", "b4c", "b4d", "b4e"}, DesiredMatchGroup: "g1"},
		"b5": {Faction: "B", PartyMembers: []string{"b5a", "b5b", "b5c"}, DesiredMatchGroup: "g1"},
	}
	// Faction A totals 12, faction B totals 23; max_team_size=23, capped at
	// the 20-unit ceiling, so up to 20 may be admitted on each side.
	missions := missionTable("g1", "large", matchconfig.MissionWeights{"m1": 1})

	match, ok := FormPvPCasualMatch(order, data, 50, 50, missions)
	if !ok {
		t.Fatal("expected match to form")
	}
	if match.MatchType != "large" {
		t.Fatalf("expected large match type, got %s", match.MatchType)
	}
	got := playerSet(match.PlayersInMatch)
	if len(got) != 32 {
		t.Fatalf("expected 32 admitted players (12 + 20), got %d: %v", len(got), got)
	}
	// The fifth B-side party (b5, 3 members) overflows the 20-unit cap
	// after the four 5-member parties and must be declined whole.
	for _, id := range []string{"b5a", "b5b", "b5c"} {
		if got[id] {
			t.Fatalf("expected overflowing party member %s to be declined", id)
		}
	}
}

// S5: instant PvP forms with a single queued player by synthesizing an
// empty opposing faction.
func TestInstantPvPFormsWithSingleFaction(t *testing.T) {
	order := []string{"p1"}
	data := map[string]model.QueuedPlayer{
		"p1": {Faction: "A", PartyMembers: []string{"p1"}, DesiredMatchGroup: "g1"},
	}
	missions := missionTable("g1", "medium", matchconfig.MissionWeights{"m1": 1})

	match, ok := FormInstantPvPMatch(order, data, 0, 0, missions)
	if !ok {
		t.Fatal("expected instant match to form")
	}
	if match.MatchType != "medium" {
		t.Fatalf("expected medium match type, got %s", match.MatchType)
	}
	if len(match.PlayersInMatch) != 2 {
		t.Fatalf("expected 2 slots (player + synthetic), got %d", len(match.PlayersInMatch))
	}
	var sawPlayer, sawNil bool
	for _, p := range match.PlayersInMatch {
		if p == nil {
			sawNil = true
		} else if *p == "p1" {
			sawPlayer = true
		}
	}
	if !sawPlayer || !sawNil {
		t.Fatalf("expected p1 and a synthetic nil slot, got %+v", match.PlayersInMatch)
	}
}

func TestInstantPvPDeclinesWithNoPlayers(t *testing.T) {
	missions := missionTable("g1", "medium", matchconfig.MissionWeights{"m1": 1})
	if _, ok := FormInstantPvPMatch(nil, map[string]model.QueuedPlayer{}, 0, 0, missions); ok {
		t.Fatal("expected decline with an empty snapshot")
	}
}
