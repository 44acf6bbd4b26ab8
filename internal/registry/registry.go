// Package registry implements the Redis-backed server registry: a sorted
// set of servers scored by free resource units, plus per-server metadata.
// Grounded on original_source/ecr_matchmaking/backend/main.py's
// `game_servers`/`game_server:{addr}` keys and the teacher's
// internal/repository/redis key-function idiom.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/ecrtools/matchmaking-core/internal/model"
	"github.com/ecrtools/matchmaking-core/internal/region"
)

// defaultCandidateLimit bounds how many candidate servers a formation
// attempt considers.
const defaultCandidateLimit = 10

func serversKey() string              { return "game_servers" }
func serverMetaKey(addr string) string { return "game_server:" + addr }

// Store wraps a go-redis client with the registry's key namespace and
// operations.
type Store struct {
	rdb    *redis.Client
	mapper *region.Mapper
}

// New wraps an existing redis.Client. mapper resolves raw region codes to
// region groups on registration.
func New(rdb *redis.Client, mapper *region.Mapper) *Store {
	return &Store{rdb: rdb, mapper: mapper}
}

// RegisterOrUpdate upserts a server's sorted-set score and metadata. The
// region name is mapped through the Region Mapper before storage so
// downstream reads never see an unrecognized region string.
func (s *Store) RegisterOrUpdate(ctx context.Context, addr, regionName string, freeUnits, freeInstances int) error {
	group := s.mapper.Group(regionName)
	meta := model.GameServerInfo{RegionGroup: group, FreeInstances: freeInstances}
	blob, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal server metadata: %w", err)
	}
	if err := s.rdb.ZAdd(ctx, serversKey(), redis.Z{Score: float64(freeUnits), Member: addr}).Err(); err != nil {
		return fmt.Errorf("zadd game_servers: %w", err)
	}
	return s.rdb.Set(ctx, serverMetaKey(addr), blob, 0).Err()
}

// Unregister removes a server from the sorted set and deletes its metadata.
func (s *Store) Unregister(ctx context.Context, addr string) error {
	if err := s.rdb.ZRem(ctx, serversKey(), addr).Err(); err != nil {
		return fmt.Errorf("zrem game_servers: %w", err)
	}
	return s.rdb.Del(ctx, serverMetaKey(addr)).Err()
}

// Candidates returns up to limit server addresses with at least
// minFreeUnits of free capacity, highest score first is not guaranteed —
// ZRangeByScore returns ascending score order, matching
// `zrangebyscore game_servers min_free_units +inf limit 0 limit`.
func (s *Store) Candidates(ctx context.Context, minFreeUnits int, limit int64) ([]string, error) {
	if limit <= 0 {
		limit = defaultCandidateLimit
	}
	addrs, err := s.rdb.ZRangeByScore(ctx, serversKey(), &redis.ZRangeBy{
		Min:    fmt.Sprintf("%d", minFreeUnits),
		Max:    "+inf",
		Offset: 0,
		Count:  limit,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("zrangebyscore game_servers: %w", err)
	}
	return addrs, nil
}

// Metadata reads a server's registry metadata. Returns (nil, nil) if the
// server has no metadata record.
func (s *Store) Metadata(ctx context.Context, addr string) (*model.GameServerInfo, error) {
	blob, err := s.rdb.Get(ctx, serverMetaKey(addr)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get server metadata: %w", err)
	}
	var info model.GameServerInfo
	if err := json.Unmarshal(blob, &info); err != nil {
		return nil, fmt.Errorf("unmarshal server metadata: %w", err)
	}
	return &info, nil
}

// UpdateAfterLaunch updates a server's registry score and free-instance
// count after a successful launch, using the host's reported remainders.
func (s *Store) UpdateAfterLaunch(ctx context.Context, addr string, freeResourceUnits, freeInstances int, regionGroup string) error {
	meta := model.GameServerInfo{RegionGroup: regionGroup, FreeInstances: freeInstances}
	blob, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal server metadata: %w", err)
	}
	if err := s.rdb.ZAdd(ctx, serversKey(), redis.Z{Score: float64(freeResourceUnits), Member: addr}).Err(); err != nil {
		return fmt.Errorf("zadd game_servers: %w", err)
	}
	return s.rdb.Set(ctx, serverMetaKey(addr), blob, 0).Err()
}
