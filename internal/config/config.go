// Package config loads the resynthesis engine's numeric and boolean
// knobs from environment variables; every knob falls back to a
// documented default when its variable is unset or invalid.
package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/rawblock/resynth-engine/internal/diag"
)

// MatchingMode selects how the driver asks the database for candidates.
// Unknown configured strings are rejected
// with a warning diagnostic and fall back to MatchingModeBoolean.
type MatchingMode int

const (
	MatchingModeBoolean MatchingMode = iota
	MatchingModeStructural
	MatchingModeHybrid
)

func (m MatchingMode) String() string {
	switch m {
	case MatchingModeBoolean:
		return "boolean"
	case MatchingModeStructural:
		return "structural"
	case MatchingModeHybrid:
		return "hybrid"
	default:
		return "unknown"
	}
}

func parseMatchingMode(s string, sink diag.Sink) MatchingMode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "boolean":
		return MatchingModeBoolean
	case "structural":
		return MatchingModeStructural
	case "hybrid":
		return MatchingModeHybrid
	default:
		sink.Emit(diag.Warning, "config: unknown matching mode %q, defaulting to boolean", s)
		return MatchingModeBoolean
	}
}

// Config enumerates the engine's pass knobs.
type Config struct {
	MaxNumLeaves                int
	MaxNumDivisors               int
	MaxCutsSize                  int
	MaxCubeSPFD                  int
	ODCLevels                    int
	FanoutLimit                  int
	SkipFanoutLimitForDivisors   int
	PreserveDepth                bool

	TryRewire  bool
	TryStruct  bool
	TryWindow  bool
	TrySimula  bool

	DynamicDatabase bool
	MaxNumRoots     int

	InputArrivals  []float64
	OutputRequired []float64 // math.Inf(1) entries represent "INF"

	Eps float64

	Matching MatchingMode
}

// Default returns the engine's out-of-the-box knob values, used whenever
// an optional environment variable is absent.
func Default() Config {
	return Config{
		MaxNumLeaves:               6,
		MaxNumDivisors:             50,
		MaxCutsSize:                6,
		MaxCubeSPFD:                16,
		ODCLevels:                  2,
		FanoutLimit:                1000,
		SkipFanoutLimitForDivisors: 100,
		PreserveDepth:              false,
		TryRewire:                  true,
		TryStruct:                  true,
		TryWindow:                  true,
		TrySimula:                  true,
		DynamicDatabase:            false,
		MaxNumRoots:                0,
		Eps:                        1e-9,
		Matching:                   MatchingModeBoolean,
	}
}

// Load populates a Config from the environment, starting from Default and
// overriding whatever RESYNTH_* variables are present. No value here is
// security-sensitive, so unlike requireEnv in cmd/engine/main.go every
// knob has a safe fallback rather than failing startup.
func Load(sink diag.Sink) Config {
	cfg := Default()

	cfg.MaxNumLeaves = getEnvInt("RESYNTH_MAX_NUM_LEAVES", cfg.MaxNumLeaves, sink)
	cfg.MaxNumDivisors = getEnvInt("RESYNTH_MAX_NUM_DIVISORS", cfg.MaxNumDivisors, sink)
	cfg.MaxCutsSize = getEnvInt("RESYNTH_MAX_CUTS_SIZE", cfg.MaxCutsSize, sink)
	cfg.MaxCubeSPFD = getEnvInt("RESYNTH_MAX_CUBE_SPFD", cfg.MaxCubeSPFD, sink)
	cfg.ODCLevels = getEnvInt("RESYNTH_ODC_LEVELS", cfg.ODCLevels, sink)
	cfg.FanoutLimit = getEnvInt("RESYNTH_FANOUT_LIMIT", cfg.FanoutLimit, sink)
	cfg.SkipFanoutLimitForDivisors = getEnvInt("RESYNTH_SKIP_FANOUT_LIMIT_FOR_DIVISORS", cfg.SkipFanoutLimitForDivisors, sink)
	cfg.PreserveDepth = getEnvBool("RESYNTH_PRESERVE_DEPTH", cfg.PreserveDepth, sink)

	cfg.TryRewire = getEnvBool("RESYNTH_TRY_REWIRE", cfg.TryRewire, sink)
	cfg.TryStruct = getEnvBool("RESYNTH_TRY_STRUCT", cfg.TryStruct, sink)
	cfg.TryWindow = getEnvBool("RESYNTH_TRY_WINDOW", cfg.TryWindow, sink)
	cfg.TrySimula = getEnvBool("RESYNTH_TRY_SIMULA", cfg.TrySimula, sink)

	cfg.DynamicDatabase = getEnvBool("RESYNTH_DYNAMIC_DATABASE", cfg.DynamicDatabase, sink)
	cfg.MaxNumRoots = getEnvInt("RESYNTH_MAX_NUM_ROOTS", cfg.MaxNumRoots, sink)

	cfg.Eps = getEnvFloat("RESYNTH_EPS", cfg.Eps, sink)

	if v := getEnvOrDefault("RESYNTH_INPUT_ARRIVALS", ""); v != "" {
		arr, err := parseFloatList(v)
		if err != nil {
			sink.Emit(diag.Warning, "config: RESYNTH_INPUT_ARRIVALS invalid (%v), ignoring", err)
		} else {
			cfg.InputArrivals = arr
		}
	}
	if v := getEnvOrDefault("RESYNTH_OUTPUT_REQUIRED", ""); v != "" {
		arr, err := parseRequiredList(v)
		if err != nil {
			sink.Emit(diag.Warning, "config: RESYNTH_OUTPUT_REQUIRED invalid (%v), ignoring", err)
		} else {
			cfg.OutputRequired = arr
		}
	}

	cfg.Matching = parseMatchingMode(getEnvOrDefault("RESYNTH_MATCHING_MODE", cfg.Matching.String()), sink)

	return cfg
}

func getEnvOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int, sink diag.Sink) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		sink.Emit(diag.Warning, "config: %s=%q is not an integer, using default %d", key, raw, fallback)
		return fallback
	}
	return v
}

func getEnvBool(key string, fallback bool, sink diag.Sink) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		sink.Emit(diag.Warning, "config: %s=%q is not a boolean, using default %v", key, raw, fallback)
		return fallback
	}
	return v
}

func getEnvFloat(key string, fallback float64, sink diag.Sink) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		sink.Emit(diag.Warning, "config: %s=%q is not a float, using default %v", key, raw, fallback)
		return fallback
	}
	return v
}

func parseFloatList(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	out := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("entry %d (%q): %w", i, p, err)
		}
		out[i] = v
	}
	return out, nil
}

// parseRequiredList parses output_required, where each entry is either a
// float or the literal "INF".
func parseRequiredList(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	out := make([]float64, len(parts))
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if strings.EqualFold(p, "INF") {
			out[i] = math.Inf(1)
			continue
		}
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("entry %d (%q): %w", i, p, err)
		}
		out[i] = v
	}
	return out, nil
}
