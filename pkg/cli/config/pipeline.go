package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	domainConfig "github.com/secmon-lab/osnit/pkg/domain/model/config"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// PipelineFile is the on-disk form of the pipeline configuration.
// Unset fields keep their defaults.
type PipelineFile struct {
	TrustedSources []string `toml:"trusted_sources" yaml:"trusted_sources"`

	Enrich struct {
		Workers     int    `toml:"workers" yaml:"workers"`
		MaxFailures int    `toml:"max_failures" yaml:"max_failures"`
		Timeout     string `toml:"timeout" yaml:"timeout"`
		Attempts    int    `toml:"attempts" yaml:"attempts"`
		Backoff     string `toml:"backoff" yaml:"backoff"`
	} `toml:"enrich" yaml:"enrich"`

	Correlation struct {
		SimilarityThreshold *float64 `toml:"similarity_threshold" yaml:"similarity_threshold"`
	} `toml:"correlation" yaml:"correlation"`

	Alert struct {
		RiskThreshold        *float64 `toml:"risk_threshold" yaml:"risk_threshold"`
		ClusterSizeThreshold int      `toml:"cluster_size_threshold" yaml:"cluster_size_threshold"`
	} `toml:"alert" yaml:"alert"`
}

// LoadPipelineFile reads a pipeline configuration from a .toml, .yaml or .yml file
func LoadPipelineFile(path string) (*PipelineFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, goerr.Wrap(ErrConfigNotFound, "pipeline config file not found", goerr.V(ConfigPathKey, path))
		}
		return nil, goerr.Wrap(err, "failed to read pipeline config file", goerr.V(ConfigPathKey, path))
	}

	var file PipelineFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, &file); err != nil {
			return nil, goerr.Wrap(ErrInvalidConfig, "failed to parse TOML", goerr.V(ConfigPathKey, path), goerr.V("error", err.Error()))
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, goerr.Wrap(ErrInvalidConfig, "failed to parse YAML", goerr.V(ConfigPathKey, path), goerr.V("error", err.Error()))
		}
	default:
		return nil, goerr.Wrap(ErrUnsupportedFormat, "pipeline config must be .toml, .yaml or .yml", goerr.V(ConfigPathKey, path))
	}

	return &file, nil
}

// Apply overlays the file values onto cfg
func (f *PipelineFile) Apply(cfg *domainConfig.PipelineConfig) error {
	if len(f.TrustedSources) > 0 {
		cfg.TrustedSources = f.TrustedSources
	}
	if f.Enrich.Workers != 0 {
		cfg.EnrichWorkers = f.Enrich.Workers
	}
	if f.Enrich.MaxFailures != 0 {
		cfg.MaxFailures = f.Enrich.MaxFailures
	}
	if f.Enrich.Attempts != 0 {
		cfg.CapabilityAttempts = f.Enrich.Attempts
	}
	if f.Enrich.Timeout != "" {
		d, err := time.ParseDuration(f.Enrich.Timeout)
		if err != nil {
			return goerr.Wrap(ErrInvalidConfig, "invalid enrich.timeout", goerr.V(FieldKey, f.Enrich.Timeout))
		}
		cfg.CapabilityTimeout = d
	}
	if f.Enrich.Backoff != "" {
		d, err := time.ParseDuration(f.Enrich.Backoff)
		if err != nil {
			return goerr.Wrap(ErrInvalidConfig, "invalid enrich.backoff", goerr.V(FieldKey, f.Enrich.Backoff))
		}
		cfg.CapabilityBackoff = d
	}
	if f.Correlation.SimilarityThreshold != nil {
		cfg.SimilarityThreshold = *f.Correlation.SimilarityThreshold
	}
	if f.Alert.RiskThreshold != nil {
		cfg.AlertRiskThreshold = *f.Alert.RiskThreshold
	}
	if f.Alert.ClusterSizeThreshold != 0 {
		cfg.AlertClusterSizeThreshold = f.Alert.ClusterSizeThreshold
	}
	return nil
}

// Pipeline holds CLI flags for pipeline thresholds and limits
type Pipeline struct {
	configPath string

	trustedSources       []string
	workers              int
	maxFailures          int
	timeout              time.Duration
	attempts             int
	backoff              time.Duration
	similarityThreshold  float64
	riskThreshold        float64
	clusterSizeThreshold int
}

const (
	flagTrustedSources       = "trusted-source"
	flagWorkers              = "enrich-workers"
	flagMaxFailures          = "max-failures"
	flagTimeout              = "capability-timeout"
	flagAttempts             = "capability-attempts"
	flagBackoff              = "capability-backoff"
	flagSimilarityThreshold  = "similarity-threshold"
	flagRiskThreshold        = "alert-risk-threshold"
	flagClusterSizeThreshold = "alert-cluster-size"
)

func (x *Pipeline) Flags() []cli.Flag {
	def := domainConfig.DefaultPipelineConfig()

	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Pipeline configuration file (.toml, .yaml or .yml). Flags override its values",
			Category:    "Pipeline",
			Sources:     cli.EnvVars("OSNIT_CONFIG"),
			Destination: &x.configPath,
		},
		&cli.StringSliceFlag{
			Name:        flagTrustedSources,
			Usage:       "Source name weighted as trusted in the risk score (repeatable, exact match)",
			Category:    "Pipeline",
			Value:       def.TrustedSources,
			Sources:     cli.EnvVars("OSNIT_TRUSTED_SOURCES"),
			Destination: &x.trustedSources,
		},
		&cli.IntFlag{
			Name:        flagWorkers,
			Usage:       "Number of records enriched concurrently",
			Category:    "Pipeline",
			Value:       def.EnrichWorkers,
			Sources:     cli.EnvVars("OSNIT_ENRICH_WORKERS"),
			Destination: &x.workers,
		},
		&cli.IntFlag{
			Name:        flagMaxFailures,
			Usage:       "Consecutive enrichment failures before a record is flagged and skipped",
			Category:    "Pipeline",
			Value:       def.MaxFailures,
			Sources:     cli.EnvVars("OSNIT_MAX_FAILURES"),
			Destination: &x.maxFailures,
		},
		&cli.DurationFlag{
			Name:        flagTimeout,
			Usage:       "Timeout of one capability call",
			Category:    "Pipeline",
			Value:       def.CapabilityTimeout,
			Sources:     cli.EnvVars("OSNIT_CAPABILITY_TIMEOUT"),
			Destination: &x.timeout,
		},
		&cli.IntFlag{
			Name:        flagAttempts,
			Usage:       "Attempts per capability call on transient failure",
			Category:    "Pipeline",
			Value:       def.CapabilityAttempts,
			Sources:     cli.EnvVars("OSNIT_CAPABILITY_ATTEMPTS"),
			Destination: &x.attempts,
		},
		&cli.DurationFlag{
			Name:        flagBackoff,
			Usage:       "Initial backoff between capability attempts",
			Category:    "Pipeline",
			Value:       def.CapabilityBackoff,
			Sources:     cli.EnvVars("OSNIT_CAPABILITY_BACKOFF"),
			Destination: &x.backoff,
		},
		&cli.FloatFlag{
			Name:        flagSimilarityThreshold,
			Usage:       "Cosine similarity required to join a cluster",
			Category:    "Pipeline",
			Value:       def.SimilarityThreshold,
			Sources:     cli.EnvVars("OSNIT_SIMILARITY_THRESHOLD"),
			Destination: &x.similarityThreshold,
		},
		&cli.FloatFlag{
			Name:        flagRiskThreshold,
			Usage:       "Risk score at or above which a high_risk alert is raised",
			Category:    "Pipeline",
			Value:       def.AlertRiskThreshold,
			Sources:     cli.EnvVars("OSNIT_ALERT_RISK_THRESHOLD"),
			Destination: &x.riskThreshold,
		},
		&cli.IntFlag{
			Name:        flagClusterSizeThreshold,
			Usage:       "Cluster size at or above which a cluster_surge alert is raised",
			Category:    "Pipeline",
			Value:       def.AlertClusterSizeThreshold,
			Sources:     cli.EnvVars("OSNIT_ALERT_CLUSTER_SIZE"),
			Destination: &x.clusterSizeThreshold,
		},
	}
}

func (x Pipeline) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("config", x.configPath),
		slog.Any("trusted_sources", x.trustedSources),
		slog.Int("workers", x.workers),
		slog.Float64("similarity_threshold", x.similarityThreshold),
		slog.Float64("risk_threshold", x.riskThreshold),
		slog.Int("cluster_size_threshold", x.clusterSizeThreshold),
	)
}

// isSet reports whether a flag was given explicitly on the command line or through env
type isSet func(name string) bool

// Configure resolves defaults, then the config file, then explicitly set flags
func (x *Pipeline) Configure(c *cli.Command) (*domainConfig.PipelineConfig, error) {
	return x.build(c.IsSet)
}

func (x *Pipeline) build(set isSet) (*domainConfig.PipelineConfig, error) {
	cfg := domainConfig.DefaultPipelineConfig()

	if x.configPath != "" {
		file, err := LoadPipelineFile(x.configPath)
		if err != nil {
			return nil, err
		}
		if err := file.Apply(cfg); err != nil {
			return nil, goerr.Wrap(err, "failed to apply pipeline config file", goerr.V(ConfigPathKey, x.configPath))
		}
	}

	if set(flagTrustedSources) {
		cfg.TrustedSources = x.trustedSources
	}
	if set(flagWorkers) {
		cfg.EnrichWorkers = x.workers
	}
	if set(flagMaxFailures) {
		cfg.MaxFailures = x.maxFailures
	}
	if set(flagTimeout) {
		cfg.CapabilityTimeout = x.timeout
	}
	if set(flagAttempts) {
		cfg.CapabilityAttempts = x.attempts
	}
	if set(flagBackoff) {
		cfg.CapabilityBackoff = x.backoff
	}
	if set(flagSimilarityThreshold) {
		cfg.SimilarityThreshold = x.similarityThreshold
	}
	if set(flagRiskThreshold) {
		cfg.AlertRiskThreshold = x.riskThreshold
	}
	if set(flagClusterSizeThreshold) {
		cfg.AlertClusterSizeThreshold = x.clusterSizeThreshold
	}

	if err := cfg.Validate(); err != nil {
		return nil, goerr.Wrap(ErrInvalidConfig, "invalid pipeline configuration", goerr.V("error", err.Error()))
	}
	return cfg, nil
}
