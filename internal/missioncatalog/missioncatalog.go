// Package missioncatalog holds a single in-process cell mapping mission
// names to their map/mode, refreshed from an external content URL.
// Grounded on original_source/ecr_matchmaking/backend/main.py's
// SimpleMemoryCache-backed `update_mission_data`, ported to an
// atomic.Pointer swap cell in the style of the teacher's shared-state
// handles (e.g. internal/service's repo-held pointers).
package missioncatalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/ecrtools/matchmaking-core/internal/model"
)

// Cache is a refreshable, concurrency-safe mission catalog.
type Cache struct {
	url    string
	client *http.Client
	data   atomic.Pointer[map[string]model.MissionInfo]
}

// New creates a Cache targeting the given content URL. The cache starts
// empty; call Refresh to populate it.
func New(url string) *Cache {
	c := &Cache{url: url, client: &http.Client{Timeout: 10 * time.Second}}
	empty := map[string]model.MissionInfo{}
	c.data.Store(&empty)
	return c
}

type catalogResponse struct {
	Missions map[string]model.MissionInfo `json:"missions"`
}

// Refresh fetches the catalog document and atomically swaps it in on
// success. On failure the previous snapshot is retained and the error is
// returned for the caller to log; it is never fatal.
func (c *Cache) Refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return fmt.Errorf("build mission catalog request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch mission catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("mission catalog fetch returned status %d", resp.StatusCode)
	}

	var parsed catalogResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("decode mission catalog: %w", err)
	}

	c.data.Store(&parsed.Missions)
	return nil
}

// Lookup returns the mission info for a mission name from the current
// snapshot. ok is false when the mission is unknown.
func (c *Cache) Lookup(mission string) (model.MissionInfo, bool) {
	snapshot := *c.data.Load()
	info, ok := snapshot[mission]
	return info, ok
}

// Size returns the number of missions in the current snapshot, for
// diagnostics.
func (c *Cache) Size() int {
	return len(*c.data.Load())
}
