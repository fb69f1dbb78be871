package usecase_test

import (
	"context"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/osnit/pkg/domain/interfaces"
	"github.com/secmon-lab/osnit/pkg/domain/model"
	"github.com/secmon-lab/osnit/pkg/domain/types"
)

var errModelDown = goerr.Wrap(interfaces.ErrCapability, "model unavailable")

var errBadAnswer = goerr.Wrap(interfaces.ErrInvalidOutput, "model answered garbage")

type fakeClassifier struct {
	fn func(text string) (*model.Classification, error)
}

func (f *fakeClassifier) Classify(ctx context.Context, text string) (*model.Classification, error) {
	if f.fn != nil {
		return f.fn(text)
	}
	return &model.Classification{IncidentType: "civil_unrest", Severity: types.SeverityMedium, Confidence: 0.5}, nil
}

type fakeExtractor struct {
	fn func(text string) (*model.Entities, error)
}

func (f *fakeExtractor) Extract(ctx context.Context, text string) (*model.Entities, error) {
	if f.fn != nil {
		return f.fn(text)
	}
	return &model.Entities{}, nil
}

type fakeGeocoder struct {
	points map[string]model.GeoPoint
	err    error
}

func (f *fakeGeocoder) Geocode(ctx context.Context, name string) (*model.GeocodeResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	if p, ok := f.points[name]; ok {
		return &model.GeocodeResult{Point: &p}, nil
	}
	return &model.GeocodeResult{}, nil
}

type fakeEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	failOn  map[string]bool
	calls   int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) (*model.EmbeddingResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failOn[text] {
		return nil, errModelDown
	}
	return &model.EmbeddingResult{Vector: f.vectors[text]}, nil
}

type fakeCollector struct {
	name       string
	candidates []*model.Candidate
	err        error
}

func (f *fakeCollector) Name() string { return f.name }

func (f *fakeCollector) Collect(ctx context.Context) ([]*model.Candidate, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.candidates, nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	alerts []*model.Alert
	err    error
}

func (f *fakeNotifier) Notify(ctx context.Context, alerts []*model.Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, alerts...)
	return f.err
}

var (
	_ interfaces.Classifier      = &fakeClassifier{}
	_ interfaces.EntityExtractor = &fakeExtractor{}
	_ interfaces.Geocoder        = &fakeGeocoder{}
	_ interfaces.Embedder        = &fakeEmbedder{}
	_ interfaces.Collector       = &fakeCollector{}
	_ interfaces.AlertNotifier   = &fakeNotifier{}
)
