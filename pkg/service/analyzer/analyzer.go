package analyzer

import (
	"context"
	"encoding/json"
	"slices"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/osnit/pkg/domain/interfaces"
	"github.com/secmon-lab/osnit/pkg/domain/model"
	"github.com/secmon-lab/osnit/pkg/domain/types"
)

const (
	DefaultEmbeddingDimension = 768
	DefaultMaxInputRunes      = 8000
)

// Analyzer implements classification, entity extraction and embedding on top of an LLM client
type Analyzer struct {
	llmClient gollem.LLMClient
	dimension int
	maxInput  int
}

var (
	_ interfaces.Classifier      = &Analyzer{}
	_ interfaces.EntityExtractor = &Analyzer{}
	_ interfaces.Embedder        = &Analyzer{}
)

// Option is a functional option for Analyzer configuration
type Option func(*Analyzer)

// WithEmbeddingDimension sets the requested embedding size
func WithEmbeddingDimension(dim int) Option {
	return func(a *Analyzer) {
		a.dimension = dim
	}
}

// WithMaxInputRunes caps the text sent to the model
func WithMaxInputRunes(n int) Option {
	return func(a *Analyzer) {
		a.maxInput = n
	}
}

// New creates an Analyzer with the provided LLM client
func New(llmClient gollem.LLMClient, opts ...Option) (*Analyzer, error) {
	if llmClient == nil {
		return nil, goerr.New("LLM client is required")
	}

	a := &Analyzer{
		llmClient: llmClient,
		dimension: DefaultEmbeddingDimension,
		maxInput:  DefaultMaxInputRunes,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.dimension <= 0 {
		return nil, goerr.New("embedding dimension must be positive", goerr.V("dimension", a.dimension))
	}

	return a, nil
}

// Classify labels the text with an incident type, severity and confidence
func (a *Analyzer) Classify(ctx context.Context, text string) (*model.Classification, error) {
	var resp classifyResponse
	if err := a.generateJSON(ctx, classifySystemPrompt(), classifySchema(), normalize(text, a.maxInput), &resp); err != nil {
		return nil, goerr.Wrap(err, "classification request failed")
	}

	sev, err := types.ParseSeverity(resp.Severity)
	if err != nil || sev == types.SeverityUnknown {
		return nil, goerr.Wrap(interfaces.ErrInvalidOutput, "model returned invalid severity",
			goerr.V("severity", resp.Severity))
	}

	incident := strings.ToLower(strings.TrimSpace(resp.IncidentType))
	if !slices.Contains(IncidentTypes(), incident) {
		incident = IncidentOther
	}

	return &model.Classification{
		IncidentType: incident,
		Severity:     sev,
		Confidence:   min(max(resp.Confidence, 0), 1),
	}, nil
}

// Extract finds persons, organizations and locations in the text
func (a *Analyzer) Extract(ctx context.Context, text string) (*model.Entities, error) {
	var resp extractResponse
	if err := a.generateJSON(ctx, extractSystemPrompt(), extractSchema(), normalize(text, a.maxInput), &resp); err != nil {
		return nil, goerr.Wrap(err, "entity extraction request failed")
	}

	return &model.Entities{
		Persons:       dedupe(resp.Persons),
		Organizations: dedupe(resp.Organizations),
		Locations:     dedupe(resp.Locations),
	}, nil
}

// Embed returns the embedding vector of the text. Blank text has no embedding.
func (a *Analyzer) Embed(ctx context.Context, text string) (*model.EmbeddingResult, error) {
	input := normalize(text, a.maxInput)
	if input == "" {
		return &model.EmbeddingResult{}, nil
	}

	embeddings, err := a.llmClient.GenerateEmbedding(ctx, a.dimension, []string{input})
	if err != nil {
		return nil, interfaces.ErrCapability.Wrap(err, goerr.V("operation", "embedding"))
	}
	if len(embeddings) == 0 || len(embeddings[0]) == 0 {
		return nil, goerr.Wrap(interfaces.ErrCapability, "no embedding returned")
	}

	// Convert float64 to float32
	vec := make([]float32, len(embeddings[0]))
	for i, v := range embeddings[0] {
		vec[i] = float32(v)
	}
	return &model.EmbeddingResult{Vector: vec}, nil
}

func (a *Analyzer) generateJSON(ctx context.Context, systemPrompt string, schema *gollem.Parameter, input string, out any) error {
	session, err := a.llmClient.NewSession(ctx,
		gollem.WithSessionContentType(gollem.ContentTypeJSON),
		gollem.WithSessionResponseSchema(schema),
		gollem.WithSessionSystemPrompt(systemPrompt),
	)
	if err != nil {
		return interfaces.ErrCapability.Wrap(err, goerr.V("operation", "new_session"))
	}

	resp, err := session.Generate(ctx, []gollem.Input{gollem.Text(input)})
	if err != nil {
		return interfaces.ErrCapability.Wrap(err, goerr.V("operation", "generate_content"))
	}
	if resp == nil || len(resp.Texts) == 0 {
		return goerr.Wrap(interfaces.ErrCapability, "LLM returned no content")
	}

	if err := json.Unmarshal([]byte(resp.Texts[0]), out); err != nil {
		return goerr.Wrap(interfaces.ErrInvalidOutput, "failed to parse LLM response",
			goerr.V("response", resp.Texts[0]),
			goerr.V("parse_error", err.Error()))
	}
	return nil
}
