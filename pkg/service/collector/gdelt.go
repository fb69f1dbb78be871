package collector

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/osnit/pkg/domain/interfaces"
	"github.com/secmon-lab/osnit/pkg/domain/model"
)

const (
	GDELTName            = "gdelt"
	DefaultGDELTEndpoint = "https://api.gdeltproject.org/api/v2/doc/doc"
	DefaultGDELTQuery    = "India OR Kashmir OR LOC OR border OR infiltration OR military OR protest"
	DefaultGDELTMax      = 50
)

// GDELT collects article titles from the GDELT DOC 2.0 API
type GDELT struct {
	endpoint   string
	query      string
	maxRecords int
	httpClient *http.Client
}

var _ interfaces.Collector = &GDELT{}

type GDELTOption func(*GDELT)

func WithGDELTEndpoint(endpoint string) GDELTOption {
	return func(g *GDELT) {
		g.endpoint = endpoint
	}
}

func WithGDELTQuery(query string) GDELTOption {
	return func(g *GDELT) {
		g.query = query
	}
}

func WithGDELTMaxRecords(n int) GDELTOption {
	return func(g *GDELT) {
		g.maxRecords = n
	}
}

func WithGDELTHTTPClient(c *http.Client) GDELTOption {
	return func(g *GDELT) {
		g.httpClient = c
	}
}

func NewGDELT(opts ...GDELTOption) *GDELT {
	g := &GDELT{
		endpoint:   DefaultGDELTEndpoint,
		query:      DefaultGDELTQuery,
		maxRecords: DefaultGDELTMax,
		httpClient: defaultHTTPClient(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *GDELT) Name() string { return GDELTName }

type gdeltResponse struct {
	Articles []gdeltArticle `json:"articles"`
}

type gdeltArticle struct {
	URL           string `json:"url"`
	Title         string `json:"title"`
	SeenDate      string `json:"seendate"`
	Domain        string `json:"domain"`
	Language      string `json:"language"`
	SourceCountry string `json:"sourcecountry"`
}

func (g *GDELT) Collect(ctx context.Context) ([]*model.Candidate, error) {
	q := url.Values{}
	q.Set("query", g.query)
	q.Set("mode", "ArtList")
	q.Set("maxrecords", strconv.Itoa(g.maxRecords))
	q.Set("format", "json")

	body, err := fetch(ctx, g.httpClient, g.endpoint+"?"+q.Encode(), defaultUserAgent)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to fetch GDELT articles")
	}

	// GDELT answers an empty body when nothing matched
	if len(body) == 0 {
		return nil, nil
	}

	var resp gdeltResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, goerr.Wrap(err, "failed to decode GDELT response")
	}

	candidates := make([]*model.Candidate, 0, len(resp.Articles))
	for _, a := range resp.Articles {
		candidates = append(candidates, &model.Candidate{
			Source:  GDELTName,
			Content: a.Title,
			URL:     a.URL,
			Metadata: map[string]any{
				"domain":   a.Domain,
				"language": a.Language,
				"seendate": a.SeenDate,
				"country":  a.SourceCountry,
			},
		})
	}
	return candidates, nil
}
