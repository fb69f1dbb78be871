package config

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gollem/llm/gemini"
	"github.com/secmon-lab/osnit/pkg/service/analyzer"
	"github.com/urfave/cli/v3"
)

// Gemini holds configuration for the Gemini LLM client
type Gemini struct {
	projectID string
	location  string
	dimension int
}

// Flags returns CLI flags for Gemini configuration
func (g *Gemini) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini API",
			Category:    "Analyzer",
			Sources:     cli.EnvVars("OSNIT_GEMINI_PROJECT"),
			Destination: &g.projectID,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini API",
			Category:    "Analyzer",
			Value:       "us-central1",
			Sources:     cli.EnvVars("OSNIT_GEMINI_LOCATION"),
			Destination: &g.location,
		},
		&cli.IntFlag{
			Name:        "embedding-dimension",
			Usage:       "Size of the embedding vectors requested from Gemini",
			Category:    "Analyzer",
			Value:       analyzer.DefaultEmbeddingDimension,
			Sources:     cli.EnvVars("OSNIT_EMBEDDING_DIMENSION"),
			Destination: &g.dimension,
		},
	}
}

// LogAttrs returns log attributes for the Gemini configuration
func (g *Gemini) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("project_id", g.projectID),
		slog.String("location", g.location),
		slog.Int("embedding_dimension", g.dimension),
	}
}

// IsConfigured reports whether a Gemini project is set
func (g *Gemini) IsConfigured() bool {
	return g.projectID != ""
}

// Configure creates a new Gemini LLM client from the configured flags.
// Returns nil if projectID is not configured.
func (g *Gemini) Configure(ctx context.Context) (gollem.LLMClient, error) {
	if g.projectID == "" {
		return nil, nil
	}

	client, err := gemini.New(ctx, g.projectID, g.location)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create Gemini client")
	}

	return client, nil
}

// ConfigureAnalyzer wraps the Gemini client into an analyzer. Returns nil if Gemini is not configured.
func (g *Gemini) ConfigureAnalyzer(ctx context.Context) (*analyzer.Analyzer, error) {
	client, err := g.Configure(ctx)
	if err != nil || client == nil {
		return nil, err
	}

	a, err := analyzer.New(client, analyzer.WithEmbeddingDimension(g.dimension))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create analyzer", goerr.V("dimension", g.dimension))
	}
	return a, nil
}
