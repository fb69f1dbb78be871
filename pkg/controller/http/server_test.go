package http_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	server "github.com/secmon-lab/osnit/pkg/controller/http"
	"github.com/secmon-lab/osnit/pkg/domain/model"
	"github.com/secmon-lab/osnit/pkg/domain/types"
	"github.com/secmon-lab/osnit/pkg/repository/memory"
	"github.com/secmon-lab/osnit/pkg/usecase"
)

type fixture struct {
	srv     *server.Server
	repo    *memory.Memory
	records []*model.Record
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	repo := memory.New()

	seed := func(content string, risk float64, cluster *int64, emb []float32) *model.Record {
		rec, err := repo.Record().Create(ctx, model.NewRecord(&model.Candidate{Source: "gdelt", Content: content}, time.Now().UTC()))
		gt.NoError(t, err).Required()
		now := time.Now().UTC()
		rec.Processed = true
		rec.EnrichedAt = &now
		rec.RiskScore = risk
		rec.Severity = types.SeverityHigh
		rec.IncidentType = "border_tension"
		rec.Country = "India"
		rec.State = "Ladakh"
		rec.Summary = "Border tension activity reported near Ladakh."
		rec.Embedding = emb
		gt.NoError(t, repo.Record().Update(ctx, rec)).Required()
		if cluster != nil {
			gt.NoError(t, repo.Record().UpdateClusterID(ctx, rec.ID, cluster)).Required()
		}
		return rec
	}

	f := &fixture{repo: repo}
	f.records = append(f.records,
		seed(strings.Repeat("x", 300), 3.1, model.Int64Ptr(1), []float32{1, 0}),
		seed("second", 1.2, model.Int64Ptr(1), []float32{0.9, 0.1}),
		seed("third", 2.4, model.Int64Ptr(2), []float32{0, 1}),
		seed("no vector", 0.4, nil, nil),
	)

	gt.NoError(t, repo.Alert().Create(ctx, model.NewHighRiskAlert(f.records[0], 2.0, time.Now().UTC()))).Required()

	f.srv = server.New(usecase.New(repo), server.WithMetrics(true))
	return f
}

func (f *fixture) get(t *testing.T, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	f.srv.ServeHTTP(w, req)

	var body map[string]any
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		gt.NoError(t, json.Unmarshal(w.Body.Bytes(), &body)).Required()
	}
	return w, body
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	w, body := f.get(t, "/health")
	gt.V(t, w.Code).Equal(http.StatusOK)
	gt.V(t, body["status"]).Equal(any("ok"))
}

func TestMetrics(t *testing.T) {
	f := newFixture(t)
	w, _ := f.get(t, "/metrics")
	gt.V(t, w.Code).Equal(http.StatusOK)
	gt.String(t, w.Body.String()).Contains("osnit_")
}

func TestListAlerts(t *testing.T) {
	f := newFixture(t)

	w, body := f.get(t, "/api/alerts")
	gt.V(t, w.Code).Equal(http.StatusOK)
	alerts := body["alerts"].([]any)
	gt.A(t, alerts).Length(1).Required()
	gt.V(t, alerts[0].(map[string]any)["rule"]).Equal(any("high_risk"))

	w, body = f.get(t, "/api/alerts?offset=1")
	gt.V(t, w.Code).Equal(http.StatusOK)
	gt.A(t, body["alerts"].([]any)).Length(0)

	w, _ = f.get(t, "/api/alerts?limit=abc")
	gt.V(t, w.Code).Equal(http.StatusBadRequest)
}

func TestTopRecords(t *testing.T) {
	f := newFixture(t)

	w, body := f.get(t, "/api/records/top?limit=2")
	gt.V(t, w.Code).Equal(http.StatusOK)
	records := body["records"].([]any)
	gt.A(t, records).Length(2).Required()
	gt.V(t, records[0].(map[string]any)["risk_score"]).Equal(any(3.1))
	gt.V(t, records[1].(map[string]any)["risk_score"]).Equal(any(2.4))

	top := records[0].(map[string]any)
	gt.V(t, top["country"]).Equal(any("India"))
	gt.V(t, top["state"]).Equal(any("Ladakh"))
	gt.V(t, top["summary"]).Equal(any("Border tension activity reported near Ladakh."))
}

func TestClusters(t *testing.T) {
	f := newFixture(t)

	w, body := f.get(t, "/api/clusters")
	gt.V(t, w.Code).Equal(http.StatusOK)
	clusters := body["clusters"].([]any)
	gt.A(t, clusters).Length(2).Required()
	gt.V(t, clusters[0].(map[string]any)["cluster_id"]).Equal(any(float64(1)))
	gt.V(t, clusters[0].(map[string]any)["count"]).Equal(any(float64(2)))

	t.Run("detail previews content", func(t *testing.T) {
		w, body := f.get(t, "/api/clusters/1")
		gt.V(t, w.Code).Equal(http.StatusOK)
		gt.V(t, body["count"]).Equal(any(float64(2)))
		records := body["records"].([]any)
		gt.A(t, records).Length(2).Required()
		content := records[0].(map[string]any)["content"].(string)
		gt.V(t, len(content)).Equal(usecase.ClusterPreviewLength)
	})

	t.Run("unknown cluster", func(t *testing.T) {
		w, _ := f.get(t, "/api/clusters/99")
		gt.V(t, w.Code).Equal(http.StatusNotFound)
	})

	t.Run("invalid cluster id", func(t *testing.T) {
		w, _ := f.get(t, "/api/clusters/abc")
		gt.V(t, w.Code).Equal(http.StatusBadRequest)
	})
}

func TestSimilarRecords(t *testing.T) {
	f := newFixture(t)

	t.Run("returns neighbors with rounded scores", func(t *testing.T) {
		w, body := f.get(t, "/api/records/"+f.records[0].ID.String()+"/similar")
		gt.V(t, w.Code).Equal(http.StatusOK)
		similar := body["similar"].([]any)
		gt.A(t, similar).Length(2).Required()

		first := similar[0].(map[string]any)
		gt.V(t, first["id"]).Equal(any(float64(f.records[1].ID)))
		// cos between (1,0) and (0.9,0.1)
		gt.V(t, first["score"]).Equal(any(0.994))
		gt.V(t, similar[1].(map[string]any)["score"]).Equal(any(0.0))
	})

	t.Run("top_k limits results", func(t *testing.T) {
		w, body := f.get(t, "/api/records/"+f.records[0].ID.String()+"/similar?top_k=1")
		gt.V(t, w.Code).Equal(http.StatusOK)
		gt.A(t, body["similar"].([]any)).Length(1)
	})

	t.Run("unknown record is 404", func(t *testing.T) {
		w, _ := f.get(t, "/api/records/9999/similar")
		gt.V(t, w.Code).Equal(http.StatusNotFound)
	})

	t.Run("record without embedding is 422", func(t *testing.T) {
		w, _ := f.get(t, "/api/records/"+f.records[3].ID.String()+"/similar")
		gt.V(t, w.Code).Equal(http.StatusUnprocessableEntity)
	})

	t.Run("invalid id is 400", func(t *testing.T) {
		w, _ := f.get(t, "/api/records/abc/similar")
		gt.V(t, w.Code).Equal(http.StatusBadRequest)
	})
}
