package geocode

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/osnit/pkg/domain/interfaces"
	"github.com/secmon-lab/osnit/pkg/domain/model"
	"github.com/secmon-lab/osnit/pkg/utils/safe"
)

const (
	DefaultEndpoint  = "https://nominatim.openstreetmap.org/search"
	DefaultUserAgent = "osnit/1.0"
	// Nominatim usage policy allows one request per second
	defaultInterval = time.Second
)

// Nominatim resolves place names through an OpenStreetMap Nominatim server.
// Results, including misses, are cached for the life of the process.
type Nominatim struct {
	endpoint   string
	userAgent  string
	httpClient *http.Client
	fallback   interfaces.Geocoder
	interval   time.Duration

	mu    sync.Mutex
	cache map[string]*model.GeoPoint
	last  time.Time
}

var _ interfaces.Geocoder = &Nominatim{}

// Option is a functional option for Nominatim configuration
type Option func(*Nominatim)

func WithEndpoint(endpoint string) Option {
	return func(n *Nominatim) {
		n.endpoint = endpoint
	}
}

func WithUserAgent(ua string) Option {
	return func(n *Nominatim) {
		n.userAgent = ua
	}
}

func WithHTTPClient(c *http.Client) Option {
	return func(n *Nominatim) {
		n.httpClient = c
	}
}

// WithFallback consults another geocoder first, typically a Gazetteer
func WithFallback(g interfaces.Geocoder) Option {
	return func(n *Nominatim) {
		n.fallback = g
	}
}

// WithInterval sets the minimum gap between two requests
func WithInterval(d time.Duration) Option {
	return func(n *Nominatim) {
		n.interval = d
	}
}

func NewNominatim(opts ...Option) *Nominatim {
	n := &Nominatim{
		endpoint:   DefaultEndpoint,
		userAgent:  DefaultUserAgent,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		interval:   defaultInterval,
		cache:      make(map[string]*model.GeoPoint),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

type nominatimPlace struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

func (n *Nominatim) Geocode(ctx context.Context, name string) (*model.GeocodeResult, error) {
	k := key(name)
	if k == "" {
		return &model.GeocodeResult{}, nil
	}

	if n.fallback != nil {
		res, err := n.fallback.Geocode(ctx, name)
		if err == nil && res.Point != nil {
			return res, nil
		}
	}

	// The lock is held across the request so that calls are spaced by interval
	n.mu.Lock()
	defer n.mu.Unlock()

	if p, ok := n.cache[k]; ok {
		return &model.GeocodeResult{Point: copyPoint(p)}, nil
	}

	if wait := n.interval - time.Since(n.last); wait > 0 {
		select {
		case <-ctx.Done():
			return nil, goerr.Wrap(ctx.Err(), "geocoding cancelled")
		case <-time.After(wait):
		}
	}

	p, err := n.fetch(ctx, name)
	n.last = time.Now()
	if err != nil {
		return nil, err
	}

	n.cache[k] = p
	return &model.GeocodeResult{Point: copyPoint(p)}, nil
}

func (n *Nominatim) fetch(ctx context.Context, name string) (*model.GeoPoint, error) {
	q := url.Values{}
	q.Set("q", name)
	q.Set("format", "json")
	q.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build geocoding request")
	}
	req.Header.Set("User-Agent", n.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return nil, interfaces.ErrCapability.Wrap(err, goerr.V("location", name))
	}
	defer safe.CloseBody(ctx, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, goerr.Wrap(interfaces.ErrCapability, "geocoding server returned error",
			goerr.V("location", name),
			goerr.V("status", resp.StatusCode))
	}

	var found []nominatimPlace
	if err := json.NewDecoder(resp.Body).Decode(&found); err != nil {
		return nil, goerr.Wrap(interfaces.ErrInvalidOutput, "failed to decode geocoding response",
			goerr.V("location", name),
			goerr.V("decode_error", err.Error()))
	}
	if len(found) == 0 {
		return nil, nil
	}

	lat, latErr := strconv.ParseFloat(found[0].Lat, 64)
	lon, lonErr := strconv.ParseFloat(found[0].Lon, 64)
	if latErr != nil || lonErr != nil {
		return nil, goerr.Wrap(interfaces.ErrInvalidOutput, "invalid coordinates in geocoding response",
			goerr.V("location", name),
			goerr.V("lat", found[0].Lat),
			goerr.V("lon", found[0].Lon))
	}

	return &model.GeoPoint{Latitude: lat, Longitude: lon}, nil
}

func copyPoint(p *model.GeoPoint) *model.GeoPoint {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
