// Package matchconfig loads and validates the matchmaking_config.json tree:
// per-mode mission weight tables and per-match-type resource unit costs.
// Grounded on original_source/ecr_matchmaking/backend/main.py's
// `matchmaking_config = json.load(f)` duck-typed dict, replaced here with a
// typed, validated structure per the design notes.
package matchconfig

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ecrtools/matchmaking-core/internal/model"
)

// desiredMatchGroups indexes model.DesiredMatchGroups for membership checks.
var desiredMatchGroups = func() map[string]bool {
	set := make(map[string]bool, len(model.DesiredMatchGroups))
	for _, group := range model.DesiredMatchGroups {
		set[group] = true
	}
	return set
}()

// MatchTypes are the recognized size tiers. PvP modes use duel/low/medium/large;
// PvE modes use raid4.
var MatchTypes = map[string]bool{
	"duel": true, "low": true, "medium": true, "large": true, "raid4": true,
}

// MissionWeights maps a mission name to its selection weight.
type MissionWeights map[string]float64

// modeConfig maps match_group -> match_type -> MissionWeights.
type modeConfig map[string]map[string]MissionWeights

// Config is the typed, validated shape of matchmaking_config.json.
type Config struct {
	Missions struct {
		PvP modeConfig `json:"pvp"`
		PvE modeConfig `json:"pve"`
	} `json:"missions"`
	ResourceUnits map[string]int `json:"resource_units"`
}

// Load reads and validates a matchmaking_config.json file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read matchmaking config: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse matchmaking config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validate matchmaking config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if err := c.Missions.PvP.validate(); err != nil {
		return fmt.Errorf("missions.pvp: %w", err)
	}
	if err := c.Missions.PvE.validate(); err != nil {
		return fmt.Errorf("missions.pve: %w", err)
	}
	for matchType, units := range c.ResourceUnits {
		if !MatchTypes[matchType] {
			return fmt.Errorf("resource_units: unknown match type %q", matchType)
		}
		if units < 0 {
			return fmt.Errorf("resource_units[%s]: negative value %d", matchType, units)
		}
	}
	return nil
}

func (m modeConfig) validate() error {
	for group, byType := range m {
		if !desiredMatchGroups[group] {
			return fmt.Errorf("unknown desired_match_group %q", group)
		}
		for matchType, weights := range byType {
			if !MatchTypes[matchType] {
				return fmt.Errorf("group %q: unknown match type %q", group, matchType)
			}
			for mission, weight := range weights {
				if weight <= 0 {
					return fmt.Errorf("group %q, type %q, mission %q: weight must be positive, got %v", group, matchType, mission, weight)
				}
			}
		}
	}
	return nil
}

// MissionsForMode returns the match_group -> match_type -> weights table for
// either "pvp" or "pve".
func (c *Config) MissionsForMode(mode string) map[string]map[string]MissionWeights {
	switch mode {
	case "pvp":
		return c.Missions.PvP
	case "pve":
		return c.Missions.PvE
	default:
		return nil
	}
}

// ResourceUnitsFor returns the resource unit cost for a match type. The
// second return value is false when the match type has no configured cost.
func (c *Config) ResourceUnitsFor(matchType string) (int, bool) {
	units, ok := c.ResourceUnits[matchType]
	return units, ok
}
