package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/osnit/pkg/domain/model"
	"github.com/secmon-lab/osnit/pkg/domain/types"
	"github.com/secmon-lab/osnit/pkg/usecase"
	"github.com/secmon-lab/osnit/pkg/utils/errutil"
	"github.com/secmon-lab/osnit/pkg/utils/logging"
	"github.com/secmon-lab/osnit/pkg/utils/safe"
)

type errorResponse struct {
	Error string `json:"error"`
}

type recordResponse struct {
	ID           model.RecordID  `json:"id"`
	Source       string          `json:"source"`
	Content      string          `json:"content"`
	URL          string          `json:"url,omitempty"`
	IncidentType string          `json:"incident_type,omitempty"`
	Severity     types.Severity  `json:"severity,omitempty"`
	Confidence   float64         `json:"confidence"`
	Locations    []string        `json:"locations,omitempty"`
	Geo          *model.GeoPoint `json:"geo,omitempty"`
	Country      string          `json:"country,omitempty"`
	State        string          `json:"state,omitempty"`
	Summary      string          `json:"summary,omitempty"`
	RiskScore    float64         `json:"risk_score"`
	ClusterID    *int64          `json:"cluster_id,omitempty"`
	CollectedAt  string          `json:"collected_at"`
}

func toRecordResponse(r *model.Record, content string) recordResponse {
	return recordResponse{
		ID:           r.ID,
		Source:       r.Source,
		Content:      content,
		URL:          r.URL,
		IncidentType: r.IncidentType,
		Severity:     r.Severity,
		Confidence:   r.Confidence,
		Locations:    r.Locations,
		Geo:          r.Geo,
		Country:      r.Country,
		State:        r.State,
		Summary:      r.Summary,
		RiskScore:    r.RiskScore,
		ClusterID:    r.ClusterID,
		CollectedAt:  r.CollectedAt.Format(time.RFC3339),
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, goerr.Wrap(err, "failed to marshal response"), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	safe.Write(r.Context(), w, data)
}

// writeClientError answers 4xx with a JSON body; only 5xx go through errutil
func writeClientError(w http.ResponseWriter, r *http.Request, status int, err error) {
	logging.From(r.Context()).Warn("request rejected",
		"status", status,
		"error", err.Error())
	writeJSON(w, r, status, errorResponse{Error: err.Error()})
}

// queryInt parses an optional integer query parameter; absent means zero
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, goerr.New("invalid query parameter", goerr.V("name", name), goerr.V("value", raw))
	}
	return v, nil
}

func (s *Server) listAlerts(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeClientError(w, r, http.StatusBadRequest, err)
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		writeClientError(w, r, http.StatusBadRequest, err)
		return
	}

	alerts, err := s.uc.Query.ListAlerts(r.Context(), offset, limit)
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, err, http.StatusInternalServerError)
		return
	}
	if alerts == nil {
		alerts = []*model.Alert{}
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"alerts": alerts})
}

func (s *Server) topRecords(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeClientError(w, r, http.StatusBadRequest, err)
		return
	}

	records, err := s.uc.Query.TopRisk(r.Context(), limit)
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, err, http.StatusInternalServerError)
		return
	}

	resp := make([]recordResponse, len(records))
	for i, rec := range records {
		resp[i] = toRecordResponse(rec, rec.Content)
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"records": resp})
}

func (s *Server) listClusters(w http.ResponseWriter, r *http.Request) {
	clusters, err := s.uc.Query.Clusters(r.Context())
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, err, http.StatusInternalServerError)
		return
	}

	type cluster struct {
		ClusterID int64 `json:"cluster_id"`
		Count     int   `json:"count"`
	}
	resp := make([]cluster, len(clusters))
	for i, c := range clusters {
		resp[i] = cluster{ClusterID: c.ClusterID, Count: c.Count}
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"clusters": resp})
}

func (s *Server) getCluster(w http.ResponseWriter, r *http.Request) {
	clusterID, err := strconv.ParseInt(chi.URLParam(r, "clusterID"), 10, 64)
	if err != nil {
		writeClientError(w, r, http.StatusBadRequest, goerr.Wrap(err, "invalid cluster id"))
		return
	}

	members, err := s.uc.Query.ClusterMembers(r.Context(), clusterID)
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, err, http.StatusInternalServerError)
		return
	}
	if len(members) == 0 {
		writeClientError(w, r, http.StatusNotFound, goerr.New("cluster not found", goerr.V("cluster_id", clusterID)))
		return
	}

	resp := make([]recordResponse, len(members))
	for i, rec := range members {
		resp[i] = toRecordResponse(rec, usecase.Preview(rec.Content))
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"cluster_id": clusterID,
		"count":      len(members),
		"records":    resp,
	})
}

func (s *Server) similarRecords(w http.ResponseWriter, r *http.Request) {
	id, err := model.ParseRecordID(chi.URLParam(r, "recordID"))
	if err != nil {
		writeClientError(w, r, http.StatusBadRequest, goerr.Wrap(err, "invalid record id"))
		return
	}

	topK := usecase.DefaultSimilarTopK
	if r.URL.Query().Has("top_k") {
		if topK, err = queryInt(r, "top_k"); err != nil {
			writeClientError(w, r, http.StatusBadRequest, err)
			return
		}
		topK = min(topK, usecase.MaxSimilarTopK)
	}

	similar, err := s.uc.Similarity.FindSimilar(r.Context(), id, topK)
	switch {
	case errors.Is(err, usecase.ErrRecordNotFound):
		writeClientError(w, r, http.StatusNotFound, err)
		return
	case errors.Is(err, usecase.ErrNoEmbedding):
		writeClientError(w, r, http.StatusUnprocessableEntity, err)
		return
	case err != nil:
		errutil.HandleHTTP(r.Context(), w, err, http.StatusInternalServerError)
		return
	}

	type similarResponse struct {
		recordResponse
		Score float64 `json:"score"`
	}
	resp := make([]similarResponse, len(similar))
	for i, sim := range similar {
		resp[i] = similarResponse{
			recordResponse: toRecordResponse(sim.Record, sim.Record.Content),
			Score:          model.Round3(sim.Score),
		}
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"record_id": id,
		"similar":   resp,
	})
}
