package collector

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/mmcdole/gofeed"
	"github.com/secmon-lab/osnit/pkg/domain/interfaces"
	"github.com/secmon-lab/osnit/pkg/domain/model"
	"github.com/secmon-lab/osnit/pkg/utils/errutil"
	"golang.org/x/sync/errgroup"
)

const (
	RSSName           = "rss"
	DefaultRSSPerFeed = 20
)

// DefaultRSSFeeds are national news feeds polled when none are configured
var DefaultRSSFeeds = []string{
	"https://timesofindia.indiatimes.com/rssfeeds/-2128936835.cms",
	"https://www.thehindu.com/news/national/feeder/default.rss",
	"https://indianexpress.com/section/india/feed/",
}

// RSS collects item titles from RSS, Atom and JSON feeds
type RSS struct {
	name       string
	feeds      []string
	perFeed    int
	httpClient *http.Client
}

var _ interfaces.Collector = &RSS{}

type RSSOption func(*RSS)

// WithRSSName overrides the source name of collected records
func WithRSSName(name string) RSSOption {
	return func(r *RSS) {
		r.name = name
	}
}

func WithRSSPerFeed(n int) RSSOption {
	return func(r *RSS) {
		r.perFeed = n
	}
}

func WithRSSHTTPClient(c *http.Client) RSSOption {
	return func(r *RSS) {
		r.httpClient = c
	}
}

func NewRSS(feeds []string, opts ...RSSOption) *RSS {
	if len(feeds) == 0 {
		feeds = DefaultRSSFeeds
	}
	r := &RSS{
		name:       RSSName,
		feeds:      feeds,
		perFeed:    DefaultRSSPerFeed,
		httpClient: defaultHTTPClient(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RSS) Name() string { return r.name }

// Collect fetches all feeds concurrently. A failing feed is logged and skipped;
// an error is returned only when every feed failed.
func (r *RSS) Collect(ctx context.Context) ([]*model.Candidate, error) {
	var (
		mu         sync.Mutex
		candidates []*model.Candidate
		failed     int
		lastErr    error
	)

	var eg errgroup.Group
	for _, feed := range r.feeds {
		eg.Go(func() error {
			items, err := r.collectFeed(ctx, feed)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				lastErr = err
				_ = errutil.Handle(ctx, err, "failed to collect feed")
				return nil
			}
			candidates = append(candidates, items...)
			return nil
		})
	}
	_ = eg.Wait()

	if len(r.feeds) > 0 && failed == len(r.feeds) {
		return nil, goerr.Wrap(lastErr, "all feeds failed", goerr.V("feeds", len(r.feeds)))
	}
	return candidates, nil
}

func (r *RSS) collectFeed(ctx context.Context, feed string) ([]*model.Candidate, error) {
	body, err := fetch(ctx, r.httpClient, feed, defaultUserAgent)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to fetch feed", goerr.V("feed", feed))
	}

	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to parse feed", goerr.V("feed", feed))
	}

	var out []*model.Candidate
	for _, item := range parsed.Items {
		if r.perFeed > 0 && len(out) >= r.perFeed {
			break
		}
		title := strings.TrimSpace(item.Title)
		if title == "" {
			continue
		}
		out = append(out, &model.Candidate{
			Source:  r.name,
			Content: title,
			URL:     strings.TrimSpace(item.Link),
			Metadata: map[string]any{
				"published_at": publishedAt(item),
				"feed":         feed,
				"feed_title":   parsed.Title,
			},
		})
	}
	return out, nil
}

// publishedAt prefers the parsed publication time, then the update time, then the raw text
func publishedAt(item *gofeed.Item) string {
	switch {
	case item.PublishedParsed != nil:
		return item.PublishedParsed.UTC().Format(time.RFC3339)
	case item.UpdatedParsed != nil:
		return item.UpdatedParsed.UTC().Format(time.RFC3339)
	case item.Published != "":
		return item.Published
	default:
		return item.Updated
	}
}
