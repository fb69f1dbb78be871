package config

import (
	"time"

	domainConfig "github.com/secmon-lab/osnit/pkg/domain/model/config"
)

// NewGeminiForTest creates a Gemini config for testing purposes
func NewGeminiForTest(projectID, location string, dimension int) *Gemini {
	return &Gemini{
		projectID: projectID,
		location:  location,
		dimension: dimension,
	}
}

// NewAnalyzerForTest creates an Analyzer config for testing purposes
func NewAnalyzerForTest(mode, geocoder string, gemini *Gemini) *Analyzer {
	a := &Analyzer{mode: mode, geocoder: geocoder}
	if gemini != nil {
		a.Gemini = *gemini
	}
	return a
}

// NewSlackForTest creates a Slack config for testing purposes
func NewSlackForTest(botToken, channelID, baseURL, apiURL string) *Slack {
	return &Slack{
		botToken:  botToken,
		channelID: channelID,
		baseURL:   baseURL,
		apiURL:    apiURL,
	}
}

// NewLoggerForTest creates a Logger config for testing purposes
func NewLoggerForTest(level, format, output string) *Logger {
	return &Logger{level: level, format: format, output: output}
}

// NewCollectorsForTest creates a Collectors config for testing purposes
func NewCollectorsForTest(enabled []string, spoolDir string) *Collectors {
	return &Collectors{
		enabled:         enabled,
		gdeltQuery:      "test",
		gdeltMaxRecords: 10,
		rssPerFeed:      5,
		spoolDir:        spoolDir,
	}
}

// PipelineOverrides are flag values treated as explicitly set
type PipelineOverrides struct {
	Workers       *int
	Timeout       *time.Duration
	RiskThreshold *float64
}

// BuildPipelineForTest resolves a pipeline config from an optional file and overrides
func BuildPipelineForTest(configPath string, o PipelineOverrides) (*domainConfig.PipelineConfig, error) {
	x := &Pipeline{configPath: configPath}
	set := map[string]bool{}
	if o.Workers != nil {
		x.workers = *o.Workers
		set[flagWorkers] = true
	}
	if o.Timeout != nil {
		x.timeout = *o.Timeout
		set[flagTimeout] = true
	}
	if o.RiskThreshold != nil {
		x.riskThreshold = *o.RiskThreshold
		set[flagRiskThreshold] = true
	}
	return x.build(func(name string) bool { return set[name] })
}

// NewRepositoryForTest creates a Repository config for testing purposes
func NewRepositoryForTest(backend, projectID, sqlitePath string) *Repository {
	return &Repository{
		backend:    backend,
		projectID:  projectID,
		sqlitePath: sqlitePath,
	}
}
