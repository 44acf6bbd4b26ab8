// Package queue implements the Redis-backed queue store: per-pool sorted
// sets of waiting players, per-player blobs with TTL, and the match-creation
// lock. Grounded on original_source/ecr_matchmaking/backend/main.py's key
// builders and the teacher's internal/repository/redis key-function idiom.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/ecrtools/matchmaking-core/internal/model"
)

// ErrNotQueued is returned when a heartbeat call targets a player with no
// existing queue entry and no first-entry fields to create one.
var ErrNotQueued = errors.New("queue: player not queued")

// snapshotLimit mirrors spec's zrange 0 32 — enough to balance two factions
// up to 16 each.
const snapshotLimit = 32

// expireSweepBatch bounds how many expired ids are removed from
// player_queue per ZRem call.
const expireSweepBatch = 1000

func playerKey(poolID, playerID string) string  { return "player:" + poolID + ":" + playerID }
func playerQueueKey(poolID string) string       { return "player_queue:" + poolID }
func playerExpireQueueKey(poolID string) string { return "player_expire_queue:" + poolID }
func matchKey(playerID string) string           { return "match:" + playerID }
func lockKey(poolID string) string              { return "matchmaking_lock:" + poolID }

// Store wraps a go-redis client with the queue's key namespace and operations.
type Store struct {
	rdb *redis.Client
}

// New wraps an existing redis.Client.
func New(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

// Enqueue writes a new player blob with TTL and scores it into player_queue
// by the given enqueue timestamp (unix seconds, as a score).
func (s *Store) Enqueue(ctx context.Context, poolID, playerID string, player model.QueuedPlayer, nowScore float64) error {
	blob, err := json.Marshal(player)
	if err != nil {
		return fmt.Errorf("marshal queued player: %w", err)
	}
	if err := s.rdb.Set(ctx, playerKey(poolID, playerID), blob, model.PlayerExpiration).Err(); err != nil {
		return fmt.Errorf("set player blob: %w", err)
	}
	if err := s.rdb.ZAdd(ctx, playerQueueKey(poolID), redis.Z{Score: nowScore, Member: playerID}).Err(); err != nil {
		return fmt.Errorf("zadd player_queue: %w", err)
	}
	return s.rdb.ZAdd(ctx, playerExpireQueueKey(poolID), redis.Z{Score: nowScore, Member: playerID}).Err()
}

// Heartbeat extends a queued player's blob TTL and refreshes its
// player_expire_queue score. Returns ErrNotQueued if the player's blob has
// expired or was never written.
func (s *Store) Heartbeat(ctx context.Context, poolID, playerID string, nowScore float64) error {
	ok, err := s.rdb.Expire(ctx, playerKey(poolID, playerID), model.PlayerExpiration).Result()
	if err != nil {
		return fmt.Errorf("expire player blob: %w", err)
	}
	if !ok {
		return ErrNotQueued
	}
	return s.rdb.ZAdd(ctx, playerExpireQueueKey(poolID), redis.Z{Score: nowScore, Member: playerID}).Err()
}

// Leave removes a player from every pool's queue and expire-queue it
// appears in, deletes its blob(s), and deletes any pending match
// assignment. The pool id isn't known at leave time, so the player key
// space is scanned by suffix.
func (s *Store) Leave(ctx context.Context, playerID string) error {
	var cursor uint64
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, "player:*:"+playerID, 100).Result()
		if err != nil {
			return fmt.Errorf("scan player keys: %w", err)
		}
		for _, key := range keys {
			poolID, ok := poolIDFromPlayerKey(key, playerID)
			if !ok {
				continue
			}
			if err := s.rdb.ZRem(ctx, playerQueueKey(poolID), playerID).Err(); err != nil {
				return fmt.Errorf("zrem player_queue: %w", err)
			}
			if err := s.rdb.ZRem(ctx, playerExpireQueueKey(poolID), playerID).Err(); err != nil {
				return fmt.Errorf("zrem player_expire_queue: %w", err)
			}
			if err := s.rdb.Del(ctx, key).Err(); err != nil {
				return fmt.Errorf("del player blob: %w", err)
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return s.rdb.Del(ctx, matchKey(playerID)).Err()
}

func poolIDFromPlayerKey(key, playerID string) (string, bool) {
	const prefix = "player:"
	suffix := ":" + playerID
	if len(key) <= len(prefix)+len(suffix) || key[:len(prefix)] != prefix || key[len(key)-len(suffix):] != suffix {
		return "", false
	}
	return key[len(prefix) : len(key)-len(suffix)], true
}

// SweepExpired removes ids whose last_seen score is at or before the cutoff
// from player_queue, in bounded batches. Returns the number removed.
func (s *Store) SweepExpired(ctx context.Context, poolID string, cutoff float64) (int, error) {
	total := 0
	for {
		ids, err := s.rdb.ZRangeByScore(ctx, playerExpireQueueKey(poolID), &redis.ZRangeBy{
			Min:   "-inf",
			Max:   fmt.Sprintf("%f", cutoff),
			Count: expireSweepBatch,
		}).Result()
		if err != nil {
			return total, fmt.Errorf("zrangebyscore player_expire_queue: %w", err)
		}
		if len(ids) == 0 {
			break
		}
		members := make([]interface{}, len(ids))
		for i, id := range ids {
			members[i] = id
		}
		if err := s.rdb.ZRem(ctx, playerQueueKey(poolID), members...).Err(); err != nil {
			return total, fmt.Errorf("zrem player_queue: %w", err)
		}
		if err := s.rdb.ZRem(ctx, playerExpireQueueKey(poolID), members...).Err(); err != nil {
			return total, fmt.Errorf("zrem player_expire_queue: %w", err)
		}
		total += len(ids)
		if len(ids) < expireSweepBatch {
			break
		}
	}
	return total, nil
}

// Snapshot is a point-in-time read of a pool's queue for formation.
type Snapshot struct {
	PlayerOrder      []string
	PlayerData       map[string]model.QueuedPlayer
	FactionCounts    map[string]int
	RegionGroupCount map[string]int
	OldestQueueTime  float64
	NewestQueueTime  float64
}

// Snapshot reads up to snapshotLimit waiting players and assembles the
// aggregates the Pool Formation Logic and Region Mapper need. A player
// whose blob is missing or malformed is skipped rather than failing the
// whole snapshot.
func (s *Store) Snapshot(ctx context.Context, poolID string, now float64) (Snapshot, error) {
	members, err := s.rdb.ZRangeWithScores(ctx, playerQueueKey(poolID), 0, snapshotLimit-1).Result()
	if err != nil {
		return Snapshot{}, fmt.Errorf("zrange player_queue: %w", err)
	}

	snap := Snapshot{
		PlayerData:       map[string]model.QueuedPlayer{},
		FactionCounts:    map[string]int{},
		RegionGroupCount: map[string]int{},
	}
	var oldestScore, newestScore float64
	first := true
	for _, z := range members {
		playerID, _ := z.Member.(string)
		blob, err := s.rdb.Get(ctx, playerKey(poolID, playerID)).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			continue
		}
		var player model.QueuedPlayer
		if err := json.Unmarshal(blob, &player); err != nil {
			continue
		}

		snap.PlayerOrder = append(snap.PlayerOrder, playerID)
		snap.PlayerData[playerID] = player
		snap.FactionCounts[player.Faction] += player.PartySize()
		if player.RegionGroup != "" {
			snap.RegionGroupCount[player.RegionGroup] += player.PartySize()
		}

		if first || z.Score < oldestScore {
			oldestScore = z.Score
		}
		if first || z.Score > newestScore {
			newestScore = z.Score
		}
		first = false
	}
	if !first {
		snap.OldestQueueTime = now - oldestScore
		snap.NewestQueueTime = now - newestScore
	}
	return snap, nil
}

// BindMatch writes the match assignment blob for a player, deletes the
// player's queue blob, and removes it from player_queue. playerID may be
// empty for a synthetic (padded) slot, in which case this is a no-op.
func (s *Store) BindMatch(ctx context.Context, poolID, playerID string, assignment model.MatchAssignment) error {
	if playerID == "" {
		return nil
	}
	blob, err := json.Marshal(assignment)
	if err != nil {
		return fmt.Errorf("marshal match assignment: %w", err)
	}
	if err := s.rdb.Set(ctx, matchKey(playerID), blob, model.MatchExpiration).Err(); err != nil {
		return fmt.Errorf("set match assignment: %w", err)
	}
	if err := s.rdb.Del(ctx, playerKey(poolID, playerID)).Err(); err != nil {
		return fmt.Errorf("del player blob: %w", err)
	}
	return s.rdb.ZRem(ctx, playerQueueKey(poolID), playerID).Err()
}

// GetMatchAssignment reads a pending match assignment, returning (nil, nil)
// if none exists yet.
func (s *Store) GetMatchAssignment(ctx context.Context, playerID string) (*model.MatchAssignment, error) {
	blob, err := s.rdb.Get(ctx, matchKey(playerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get match assignment: %w", err)
	}
	var assignment model.MatchAssignment
	if err := json.Unmarshal(blob, &assignment); err != nil {
		return nil, fmt.Errorf("unmarshal match assignment: %w", err)
	}
	return &assignment, nil
}

// TryLock attempts to acquire the per-pool match-creation lock.
func (s *Store) TryLock(ctx context.Context, poolID string) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, lockKey(poolID), "1", model.MatchCreationLockTimeout).Result()
	if err != nil {
		return false, fmt.Errorf("setnx lock: %w", err)
	}
	return ok, nil
}

// Unlock releases the per-pool match-creation lock.
func (s *Store) Unlock(ctx context.Context, poolID string) error {
	return s.rdb.Del(ctx, lockKey(poolID)).Err()
}
