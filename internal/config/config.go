package config

import (
	"os"
	"strconv"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	Port          string
	RedisHost     string
	RedisPort     string
	RedisPassword string

	MatchmakingConfigPath string
	RegionGroupsPath      string
	MissionDataURL        string

	DebugRegionDistances bool
	MetricsEnabled       bool
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		Port:          envOrDefault("PORT", "8009"),
		RedisHost:     envOrDefault("REDIS_HOST", "localhost"),
		RedisPort:     envOrDefault("REDIS_PORT", "6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		MatchmakingConfigPath: envOrDefault("MATCHMAKING_CONFIG_PATH", "./matchmaking_config.json"),
		RegionGroupsPath:      envOrDefault("REGION_GROUPS_PATH", "./region_groups.json"),
		MissionDataURL:        envOrDefault("MISSION_DATA_URL", "https://storage.yandexcloud.net/ecr-service/api/ecr/server_data/match_data.json"),

		DebugRegionDistances: envBool("DEBUG_REGION_DISTANCES", false),
		MetricsEnabled:       envBool("METRICS_ENABLED", true),
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
