// Package config holds fixed pipeline defaults and server configuration.
package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Server defaults
const (
	DefaultPort    = "8080"
	DefaultDataDir = "./data/wearables"
)

// Fetch defaults and limits
const (
	FetchDefaultLimit = 50
	FetchMaxLimit     = 5000
	FetchTimeout      = 10 * time.Second
)

// Imputation defaults
const (
	DefaultSamplingPeriod      = 1 * time.Hour
	DefaultTrainingWindowHours = 24
	DefaultMinTrainingPoints   = 12
	DefaultRollingMedianWindow = 5
)

// Rollup (aggregate tier materialization) intervals
const (
	RollupInterval   = 1 * time.Hour
	BadgerGCInterval = 10 * time.Minute
)

// WebSocket configuration
const (
	WSReadBufferSize  = 1024
	WSWriteBufferSize = 1024
	WSBroadcastBuffer = 256
	WSChannelBuffer   = 10
	WSWriteDeadline   = 10 * time.Second
	WSReadDeadline    = 60 * time.Second
	WSPingInterval    = 30 * time.Second
)

// ForecastOrder is the (p, d, q) order of the autoregressive-integrated
// model used by the forecast strategy.
type ForecastOrder struct {
	P int
	D int
	Q int
}

// ResolutionThresholds are the span cutoffs, in days, above which a
// coarser tier is selected.
type ResolutionThresholds struct {
	Day    int
	Hour   int
	Minute int
}

// Options carries every tunable the pipeline components accept. Components
// take Options at construction; nothing reads globals at run time.
type Options struct {
	ResolutionThresholdsDays ResolutionThresholds
	SamplingPeriod           time.Duration
	ForecastOrder            ForecastOrder
	TrainingWindowHours      int
	MinTrainingPoints        int
	RollingMedianWindow      int
}

// DefaultOptions returns the production defaults: hourly cadence,
// ARIMA(5,1,0), 24h training window, tier cutoffs at 1/7/30 days.
func DefaultOptions() Options {
	return Options{
		ResolutionThresholdsDays: ResolutionThresholds{Day: 30, Hour: 7, Minute: 1},
		SamplingPeriod:           DefaultSamplingPeriod,
		ForecastOrder:            ForecastOrder{P: 5, D: 1, Q: 0},
		TrainingWindowHours:      DefaultTrainingWindowHours,
		MinTrainingPoints:        DefaultMinTrainingPoints,
		RollingMedianWindow:      DefaultRollingMedianWindow,
	}
}

// Server is the env-driven process configuration.
type Server struct {
	Port        string `envconfig:"PORT" default:"8080"`
	DataDir     string `envconfig:"WEARABLES_DATA_DIR" default:"./data/wearables"`
	MaxMemoryMB int64  `envconfig:"WEARABLES_MAX_MEMORY_MB" default:"48"`
	InMemory    bool   `envconfig:"WEARABLES_IN_MEMORY" default:"false"`
}

// LoadServer reads server configuration from the environment.
func LoadServer() (Server, error) {
	var cfg Server
	err := envconfig.Process("", &cfg)
	return cfg, err
}
