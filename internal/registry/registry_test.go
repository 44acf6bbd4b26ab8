//go:build integration

package registry

import (
	"testing"

	goredis "github.com/redis/go-redis/v9"

	"github.com/ecrtools/matchmaking-core/internal/region"
	"github.com/ecrtools/matchmaking-core/internal/testutil"
)

var testRDB *goredis.Client

func setup(t *testing.T) *Store {
	t.Helper()
	if testRDB == nil {
		testRDB = testutil.SetupRedis(t)
	}
	testutil.FlushRedis(t, testRDB)
	mapper := region.NewFromMap(map[string]string{"fra": "eu", "iad": "us"})
	return New(testRDB, mapper)
}

func TestRegisterAndCandidates(t *testing.T) {
	s := setup(t)
	ctx := t.Context()

	if err := s.RegisterOrUpdate(ctx, "10.0.0.1:9000", "fra", 50, 3); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := s.RegisterOrUpdate(ctx, "10.0.0.2:9000", "iad", 20, 1); err != nil {
		t.Fatalf("register: %v", err)
	}

	candidates, err := s.Candidates(ctx, 30, 10)
	if err != nil {
		t.Fatalf("candidates: %v", err)
	}
	if len(candidates) != 1 || candidates[0] != "10.0.0.1:9000" {
		t.Fatalf("expected only the 50-unit server, got %v", candidates)
	}

	meta, err := s.Metadata(ctx, "10.0.0.1:9000")
	if err != nil {
		t.Fatalf("metadata: %v", err)
	}
	if meta == nil || meta.RegionGroup != "EU" || meta.FreeInstances != 3 {
		t.Fatalf("unexpected metadata: %+v", meta)
	}
}

func TestUnregisterRemovesServer(t *testing.T) {
	s := setup(t)
	ctx := t.Context()

	if err := s.RegisterOrUpdate(ctx, "10.0.0.1:9000", "fra", 50, 3); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := s.Unregister(ctx, "10.0.0.1:9000"); err != nil {
		t.Fatalf("unregister: %v", err)
	}

	candidates, err := s.Candidates(ctx, 0, 10)
	if err != nil {
		t.Fatalf("candidates: %v", err)
	}
	if len(candidates) != 0 {
		t.Fatalf("expected no candidates after unregister, got %v", candidates)
	}
	meta, err := s.Metadata(ctx, "10.0.0.1:9000")
	if err != nil {
		t.Fatalf("metadata: %v", err)
	}
	if meta != nil {
		t.Fatal("expected metadata to be deleted on unregister")
	}
}

func TestUpdateAfterLaunchAdjustsScore(t *testing.T) {
	s := setup(t)
	ctx := t.Context()

	if err := s.RegisterOrUpdate(ctx, "10.0.0.1:9000", "fra", 50, 3); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := s.UpdateAfterLaunch(ctx, "10.0.0.1:9000", 10, 2, "EU"); err != nil {
		t.Fatalf("update after launch: %v", err)
	}

	candidates, err := s.Candidates(ctx, 20, 10)
	if err != nil {
		t.Fatalf("candidates: %v", err)
	}
	if len(candidates) != 0 {
		t.Fatalf("expected server to drop below the 20-unit threshold after launch, got %v", candidates)
	}
}
