// Package formation orchestrates a single matchmaking pool's per-call
// sequence: lock, snapshot, pool-formation dispatch, mission/resource
// resolution, registry query, region ordering, launch dispatch, and
// binding writes. Grounded on
// original_source/ecr_matchmaking/backend/main.py's try_create_match and
// reenter_matchmaking_queue, following the teacher's service-layer shape
// (internal/service/game_service.go: constructor holding repo references,
// sentinel errors via errors.New).
package formation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ecrtools/matchmaking-core/internal/dispatch"
	"github.com/ecrtools/matchmaking-core/internal/matchconfig"
	"github.com/ecrtools/matchmaking-core/internal/metrics"
	"github.com/ecrtools/matchmaking-core/internal/missioncatalog"
	"github.com/ecrtools/matchmaking-core/internal/model"
	"github.com/ecrtools/matchmaking-core/internal/pool"
	"github.com/ecrtools/matchmaking-core/internal/queue"
	"github.com/ecrtools/matchmaking-core/internal/region"
	"github.com/ecrtools/matchmaking-core/internal/registry"
)

// ErrNotQueued is surfaced when a heartbeat call has no prior queue entry
// and no first-entry fields.
var ErrNotQueued = queue.ErrNotQueued

// ErrUnknownPool is returned for a pool_name this sequencer doesn't
// recognize.
var ErrUnknownPool = errors.New("formation: unknown pool name")

// baseRegionGroup is the distance-table anchor used for every launch
// ordering, matching original_source's hardcoded "eu" base.
const baseRegionGroup = "EU"

// candidateLimit bounds how many registry candidates a formation attempt
// considers.
const candidateLimit = 10

// Status values a ReenterQueue call can return to the client.
const (
	StatusMatch       = "match"
	StatusWaiting     = "waiting"
	StatusServerError = "server_error"
)

// Result is the outcome of a reenter_matchmaking_queue call.
type Result struct {
	Status        string
	MatchID       string
	Mission       string
	FactionCounts map[string]int
	matchType     string
}

// ReenterRequest carries the parsed, validated request body plus the
// pool-id components.
type ReenterRequest struct {
	PlayerID    string
	PoolName    string
	GameVersion string
	GameContour string
	Region      string

	// First-entry-only fields; zero values mean "not provided".
	DesiredMatchGroup string
	Faction           string
	PartyMembers      []string
}

func poolID(req ReenterRequest) string {
	return req.GameVersion + "-" + req.GameContour + ":" + req.PoolName
}

type poolFunc func(playerOrder []string, playerDataMap map[string]model.QueuedPlayer, oldest, newest float64,
	missionsForMode map[string]map[string]matchconfig.MissionWeights) (*model.FormedMatch, bool)

// Sequencer is the single writer per pool_id.
type Sequencer struct {
	queue      *queue.Store
	registry   *registry.Store
	mapper     *region.Mapper
	catalog    *missioncatalog.Cache
	config     *matchconfig.Config
	dispatcher *dispatch.Dispatcher
	logger     zerolog.Logger

	factionCountsMu sync.Mutex
	factionCounts   map[string]map[string]int
}

// New builds a Sequencer wired to its collaborators.
func New(store *queue.Store, reg *registry.Store, mapper *region.Mapper, catalog *missioncatalog.Cache,
	cfg *matchconfig.Config, dispatcher *dispatch.Dispatcher, logger zerolog.Logger) *Sequencer {
	return &Sequencer{
		queue:         store,
		registry:      reg,
		mapper:        mapper,
		catalog:       catalog,
		config:        cfg,
		dispatcher:    dispatcher,
		logger:        logger,
		factionCounts: map[string]map[string]int{},
	}
}

func (s *Sequencer) cacheFactionCounts(poolID string, counts map[string]int) {
	s.factionCountsMu.Lock()
	defer s.factionCountsMu.Unlock()
	s.factionCounts[poolID] = counts
}

func (s *Sequencer) cachedFactionCounts(poolID string) map[string]int {
	s.factionCountsMu.Lock()
	defer s.factionCountsMu.Unlock()
	return s.factionCounts[poolID]
}

// ReenterQueue enqueues or heartbeats the caller, then attempts match
// formation for its pool.
func (s *Sequencer) ReenterQueue(ctx context.Context, req ReenterRequest) (Result, error) {
	pid := poolID(req)

	if assignment, err := s.queue.GetMatchAssignment(ctx, req.PlayerID); err != nil {
		return Result{}, fmt.Errorf("check existing match assignment: %w", err)
	} else if assignment != nil {
		return Result{Status: StatusMatch, MatchID: assignment.MatchID, Mission: assignment.Mission}, nil
	}

	now := float64(time.Now().Unix())
	hasFirstEntry := req.Faction != "" && req.DesiredMatchGroup != ""
	if hasFirstEntry {
		members := append([]string{}, req.PartyMembers...)
		members = removeString(members, req.PlayerID)
		members = append([]string{req.PlayerID}, members...)
		player := model.QueuedPlayer{
			Faction:           req.Faction,
			RegionGroup:       s.mapper.Group(req.Region),
			PartyMembers:      members,
			DesiredMatchGroup: req.DesiredMatchGroup,
		}
		if err := s.queue.Enqueue(ctx, pid, req.PlayerID, player, now); err != nil {
			return Result{}, fmt.Errorf("enqueue player: %w", err)
		}
	} else if err := s.queue.Heartbeat(ctx, pid, req.PlayerID, now); err != nil {
		return Result{}, err
	}

	acquired, err := s.queue.TryLock(ctx, pid)
	if err != nil {
		return Result{}, fmt.Errorf("acquire lock: %w", err)
	}
	if !acquired {
		metrics.RecordLockContention(req.PoolName)
		return Result{Status: StatusWaiting, FactionCounts: s.cachedFactionCounts(pid)}, nil
	}
	defer func() {
		if err := s.queue.Unlock(ctx, pid); err != nil {
			s.logger.Error().Err(err).Str("pool_id", pid).Msg("failed to release match-creation lock")
		}
	}()

	result, err := s.formMatch(ctx, pid, req)
	if err != nil {
		s.logger.Error().Err(err).Str("pool_id", pid).Msg("match formation failed")
		metrics.RecordServerError(req.PoolName)
		return Result{Status: StatusServerError}, nil
	}
	if result.Status == StatusMatch {
		metrics.RecordMatchFormed(req.PoolName, result.matchType)
	}
	return result, nil
}

func removeString(items []string, target string) []string {
	out := items[:0]
	for _, item := range items {
		if item != target {
			out = append(out, item)
		}
	}
	return out
}

func (s *Sequencer) poolFuncFor(poolName string) (poolFunc, string, error) {
	switch poolName {
	case "pvp_casual":
		return pool.FormPvPCasualMatch, "pvp", nil
	case "pvp_duels":
		return pool.FormPvPDuelMatch, "pvp", nil
	case "pvp_instant":
		return pool.FormInstantPvPMatch, "pvp", nil
	case "pve":
		return wrapPvE(pool.FormPvEMatch), "pve", nil
	case "pve_instant":
		return wrapPvE(pool.FormInstantPvEMatch), "pve", nil
	default:
		return nil, "", ErrUnknownPool
	}
}

// wrapPvE adapts a PvE pool function (which ignores newestQueueTime) to the
// common poolFunc shape so the sequencer can dispatch uniformly.
func wrapPvE(fn func([]string, map[string]model.QueuedPlayer, float64, map[string]map[string]matchconfig.MissionWeights) (*model.FormedMatch, bool)) poolFunc {
	return func(playerOrder []string, playerDataMap map[string]model.QueuedPlayer, oldest, _ float64,
		missionsForMode map[string]map[string]matchconfig.MissionWeights) (*model.FormedMatch, bool) {
		return fn(playerOrder, playerDataMap, oldest, missionsForMode)
	}
}

func (s *Sequencer) formMatch(ctx context.Context, pid string, req ReenterRequest) (Result, error) {
	now := float64(time.Now().Unix())
	if _, err := s.queue.SweepExpired(ctx, pid, now-model.PlayerExpiration.Seconds()); err != nil {
		return Result{}, fmt.Errorf("sweep expired players: %w", err)
	}

	snap, err := s.queue.Snapshot(ctx, pid, now)
	if err != nil {
		return Result{}, fmt.Errorf("snapshot queue: %w", err)
	}
	s.cacheFactionCounts(pid, snap.FactionCounts)
	metrics.RecordSnapshotSize(req.PoolName, len(snap.PlayerOrder))

	formFn, mode, err := s.poolFuncFor(req.PoolName)
	if err != nil {
		return Result{}, err
	}

	formed, ok := formFn(snap.PlayerOrder, snap.PlayerData, snap.OldestQueueTime, snap.NewestQueueTime, s.config.MissionsForMode(mode))
	if !ok {
		metrics.RecordWaiting(req.PoolName, "below_threshold")
		return Result{Status: StatusWaiting, FactionCounts: snap.FactionCounts}, nil
	}

	missionInfo, ok := s.catalog.Lookup(formed.Mission)
	if !ok {
		s.logger.Error().Str("mission", formed.Mission).Msg("mission not found in catalog")
		metrics.RecordWaiting(req.PoolName, "mission_unknown")
		return Result{Status: StatusWaiting, FactionCounts: snap.FactionCounts}, nil
	}

	resourceUnits, ok := s.config.ResourceUnitsFor(formed.MatchType)
	if !ok {
		s.logger.Error().Str("match_type", formed.MatchType).Msg("no resource_units entry for match type")
		metrics.RecordWaiting(req.PoolName, "resource_units_unknown")
		return Result{Status: StatusWaiting, FactionCounts: snap.FactionCounts}, nil
	}

	candidateAddrs, err := s.registry.Candidates(ctx, resourceUnits, candidateLimit)
	if err != nil {
		return Result{}, fmt.Errorf("query registry candidates: %w", err)
	}
	if len(candidateAddrs) == 0 {
		metrics.RecordWaiting(req.PoolName, "no_candidates")
		return Result{Status: StatusWaiting, FactionCounts: snap.FactionCounts}, nil
	}

	candidatesByGroup := map[string][]dispatch.Candidate{}
	var availableGroups []string
	for _, addr := range candidateAddrs {
		meta, err := s.registry.Metadata(ctx, addr)
		if err != nil {
			return Result{}, fmt.Errorf("read server metadata: %w", err)
		}
		if meta == nil || meta.FreeInstances <= 0 {
			continue
		}
		if _, seen := candidatesByGroup[meta.RegionGroup]; !seen {
			availableGroups = append(availableGroups, meta.RegionGroup)
		}
		candidatesByGroup[meta.RegionGroup] = append(candidatesByGroup[meta.RegionGroup], dispatch.Candidate{Addr: addr, RegionGroup: meta.RegionGroup})
	}
	if len(availableGroups) == 0 {
		metrics.RecordWaiting(req.PoolName, "no_free_instances")
		return Result{Status: StatusWaiting, FactionCounts: snap.FactionCounts}, nil
	}

	distanceMap, err := region.DistanceMap(baseRegionGroup)
	if err != nil {
		return Result{}, fmt.Errorf("load base distance map: %w", err)
	}
	orderedGroups := region.OrderServerGroups(snap.RegionGroupCount, availableGroups, distanceMap)
	if len(orderedGroups) == 0 {
		metrics.RecordWaiting(req.PoolName, "no_region_order")
		return Result{Status: StatusWaiting, FactionCounts: snap.FactionCounts}, nil
	}

	matchID := uuid.NewString()
	launchReq := model.LaunchRequest{
		GameVersion:   req.GameVersion,
		GameContour:   req.GameContour,
		GameMap:       missionInfo.Map,
		GameMode:      missionInfo.Mode,
		GameMission:   formed.Mission,
		ResourceUnits: resourceUnits,
		MatchUniqueID: matchID,
		FactionSetup:  formed.FactionSetup,
		MaxTeamSize:   formed.MaxTeamSize,
	}

	launchResp, serverAddr, err := s.dispatcher.Launch(ctx, orderedGroups, candidatesByGroup, launchReq)
	if err != nil {
		s.logger.Warn().Err(err).Str("pool_id", pid).Msg("no candidate server accepted the launch")
		metrics.RecordWaiting(req.PoolName, "launch_rejected")
		return Result{Status: StatusWaiting, FactionCounts: snap.FactionCounts}, nil
	}

	assignment := model.MatchAssignment{Status: StatusMatch, MatchID: matchID, Mission: formed.Mission}
	for _, playerID := range formed.PlayersInMatch {
		if playerID == nil {
			continue
		}
		if err := s.queue.BindMatch(ctx, pid, *playerID, assignment); err != nil {
			return Result{}, fmt.Errorf("bind match for player %s: %w", *playerID, err)
		}
	}

	if err := s.registry.UpdateAfterLaunch(ctx, serverAddr, launchResp.FreeResourceUnits, launchResp.FreeInstancesAmount, s.mapper.Group(launchResp.Region)); err != nil {
		s.logger.Error().Err(err).Str("server", serverAddr).Msg("failed to update registry after launch")
	}

	return Result{Status: StatusMatch, MatchID: matchID, Mission: formed.Mission, matchType: formed.MatchType}, nil
}

// LeaveQueue removes a player from every queue and clears any pending
// match assignment.
func (s *Sequencer) LeaveQueue(ctx context.Context, playerID string) error {
	return s.queue.Leave(ctx, playerID)
}
