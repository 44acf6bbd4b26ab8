package pool

import (
	"testing"

	"github.com/ecrtools/matchmaking-core/internal/matchconfig"
	"github.com/ecrtools/matchmaking-core/internal/model"
)

func TestChooseMissionPluralityWins(t *testing.T) {
	data := map[string]model.QueuedPlayer{
		"p1": {DesiredMatchGroup: "alpha"},
		"p2": {DesiredMatchGroup: "alpha"},
		"p3": {DesiredMatchGroup: "beta"},
	}
	p1, p2, p3 := "p1", "p2", "p3"
	missions := map[string]map[string]matchconfig.MissionWeights{
		"alpha": {"low": {"m-alpha": 1}},
		"beta":  {"low": {"m-beta": 1}},
	}

	mission, ok := chooseMission(data, []*string{&p1, &p2, &p3}, missions, "low")
	if !ok || mission != "m-alpha" {
		t.Fatalf("expected alpha to win plurality vote, got mission=%q ok=%v", mission, ok)
	}
}

func TestChooseMissionFallsBackWhenWinnerUnconfigured(t *testing.T) {
	data := map[string]model.QueuedPlayer{
		"p1": {DesiredMatchGroup: "unconfigured"},
	}
	p1 := "p1"
	missions := map[string]map[string]matchconfig.MissionWeights{
		"beta": {"low": {"m-beta": 1}},
	}

	mission, ok := chooseMission(data, []*string{&p1}, missions, "low")
	if !ok || mission != "m-beta" {
		t.Fatalf("expected fallback to the only configured group, got mission=%q ok=%v", mission, ok)
	}
}

func TestChooseMissionDeclinesWithNoConfiguredGroups(t *testing.T) {
	data := map[string]model.QueuedPlayer{"p1": {DesiredMatchGroup: "g1"}}
	p1 := "p1"
	if _, ok := chooseMission(data, []*string{&p1}, map[string]map[string]matchconfig.MissionWeights{}, "low"); ok {
		t.Fatal("expected decline with no configured mission groups")
	}
}

func TestAdmitPartiesPreservesAtomicity(t *testing.T) {
	entries := []partyEntry{
		{leaderID: "a", size: 4},
		{leaderID: "b", size: 3},
		{leaderID: "c", size: 1},
	}
	selected, used := admitParties(entries, 5)
	if used != 5 {
		t.Fatalf("expected parties a (size 4) and c (size 1) to fill budget 5, used=%d", used)
	}
	if len(selected) != 2 || selected[0].leaderID != "a" || selected[1].leaderID != "c" {
		t.Fatalf("expected party b (size 3) to be declined whole rather than partially admitted, got %+v", selected)
	}
}

func TestBucketByFactionPreservesEnqueueOrderWithinTies(t *testing.T) {
	order := []string{"p1", "p2", "p3"}
	data := map[string]model.QueuedPlayer{
		"p1": {Faction: "A", PartyMembers: []string{"p1"}},
		"p2": {Faction: "A", PartyMembers: []string{"p2"}},
		"p3": {Faction: "A", PartyMembers: []string{"p3"}},
	}
	buckets := bucketByFaction(order, data)
	if len(buckets) != 1 {
		t.Fatalf("expected a single faction bucket, got %d", len(buckets))
	}
	got := []string{buckets[0].entries[0].leaderID, buckets[0].entries[1].leaderID, buckets[0].entries[2].leaderID}
	want := []string{"p1", "p2", "p3"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected equal-sized parties to retain enqueue order, got %v want %v", got, want)
		}
	}
}
