package collector_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/osnit/pkg/domain/model"
	"github.com/secmon-lab/osnit/pkg/service/collector"
)

func TestGDELT(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gt.V(t, r.URL.Query().Get("mode")).Equal("ArtList")
		gt.V(t, r.URL.Query().Get("format")).Equal("json")
		gt.V(t, r.URL.Query().Get("maxrecords")).Equal("10")
		_, _ = w.Write([]byte(`{"articles":[
			{"url":"https://example.com/a","title":"Infiltration bid foiled","seendate":"20240501T101500Z","domain":"example.com","language":"English","sourcecountry":"India"},
			{"url":"https://example.com/b","title":"Army exercise in Ladakh","seendate":"20240501T111500Z","domain":"example.com","language":"English","sourcecountry":"India"}
		]}`))
	}))
	defer srv.Close()

	g := collector.NewGDELT(
		collector.WithGDELTEndpoint(srv.URL),
		collector.WithGDELTMaxRecords(10),
	)
	gt.V(t, g.Name()).Equal("gdelt")

	got, err := g.Collect(context.Background())
	gt.NoError(t, err).Required()
	gt.A(t, got).Length(2).Required()
	gt.V(t, got[0].Source).Equal("gdelt")
	gt.V(t, got[0].Content).Equal("Infiltration bid foiled")
	gt.V(t, got[0].URL).Equal("https://example.com/a")
	gt.V(t, got[0].Metadata["country"]).Equal(any("India"))
}

func TestGDELT_EmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	got, err := collector.NewGDELT(collector.WithGDELTEndpoint(srv.URL)).Collect(context.Background())
	gt.NoError(t, err).Required()
	gt.A(t, got).Length(0)
}

func TestGDELT_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := collector.NewGDELT(collector.WithGDELTEndpoint(srv.URL)).Collect(context.Background())
	gt.Error(t, err)
}

const rssFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>National</title>
<item><title> Protest in Guwahati </title><link>https://news.example/1</link><pubDate>Wed, 01 May 2024 10:00:00 +0530</pubDate></item>
<item><title>Cyber fraud ring busted</title><link>https://news.example/2</link></item>
<item><title>Weather update</title><link>https://news.example/3</link></item>
</channel></rss>`

const atomFeed = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom"><title>Wire</title>
<entry><title>Border talks resume</title><link href="https://wire.example/a"/><updated>2024-05-01T10:00:00Z</updated></entry>
</feed>`

const jsonFeed = `{"version":"https://jsonfeed.org/version/1.1","title":"Bulletin",
"items":[{"id":"1","title":"Flood alert in Assam","url":"https://bulletin.example/1","date_published":"2024-05-02T08:30:00+05:30"},
{"id":"2","content_text":"no title here"}]}`

func TestRSS(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/rss", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(rssFeed)) })
	mux.HandleFunc("/atom", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(atomFeed)) })
	mux.HandleFunc("/json", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(jsonFeed)) })
	mux.HandleFunc("/html", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("<html><body>moved</body></html>")) })
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNotFound) })
	srv := httptest.NewServer(mux)
	defer srv.Close()

	t.Run("reads rss and atom and skips broken feeds", func(t *testing.T) {
		r := collector.NewRSS([]string{srv.URL + "/rss", srv.URL + "/atom", srv.URL + "/broken"},
			collector.WithRSSPerFeed(2),
			collector.WithRSSName("rss_india"))

		got, err := r.Collect(context.Background())
		gt.NoError(t, err).Required()
		gt.A(t, got).Length(3).Required()

		byContent := map[string]*model.Candidate{}
		for _, c := range got {
			byContent[c.Content] = c
			gt.V(t, c.Source).Equal("rss_india")
		}
		gt.Value(t, byContent["Protest in Guwahati"]).NotNil().Required()
		gt.V(t, byContent["Protest in Guwahati"].URL).Equal("https://news.example/1")
		gt.Value(t, byContent["Border talks resume"]).NotNil().Required()
		gt.V(t, byContent["Border talks resume"].URL).Equal("https://wire.example/a")
		gt.Value(t, byContent["Weather update"]).Nil()

		gt.V(t, byContent["Protest in Guwahati"].Metadata["published_at"]).Equal(any("2024-05-01T04:30:00Z"))
		gt.V(t, byContent["Protest in Guwahati"].Metadata["feed_title"]).Equal(any("National"))
		gt.V(t, byContent["Border talks resume"].Metadata["published_at"]).Equal(any("2024-05-01T10:00:00Z"))
	})

	t.Run("reads json feeds and drops untitled items", func(t *testing.T) {
		got, err := collector.NewRSS([]string{srv.URL + "/json"}).Collect(context.Background())
		gt.NoError(t, err).Required()
		gt.A(t, got).Length(1).Required()
		gt.V(t, got[0].Content).Equal("Flood alert in Assam")
		gt.V(t, got[0].URL).Equal("https://bulletin.example/1")
		gt.V(t, got[0].Metadata["published_at"]).Equal(any("2024-05-02T03:00:00Z"))
	})

	t.Run("a page that is not a feed counts as a failure", func(t *testing.T) {
		_, err := collector.NewRSS([]string{srv.URL + "/html"}).Collect(context.Background())
		gt.Error(t, err)
	})

	t.Run("fails when every feed fails", func(t *testing.T) {
		r := collector.NewRSS([]string{srv.URL + "/broken"})
		_, err := r.Collect(context.Background())
		gt.Error(t, err)
	})
}

func TestSpool(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		full := filepath.Join(dir, name)
		gt.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755)).Required()
		gt.NoError(t, os.WriteFile(full, []byte(body), 0o600)).Required()
	}

	write("single.json", `{"source":"telegram","content":"Drone sighted near border","url":"https://t.me/x/1"}`)
	write("nested/batch.json", `[{"content":"first"},{"content":"second","metadata":{"channel":"c1"}}]`)
	write("nested/deep/lines.jsonl", "{\"content\":\"line one\"}\n\n{\"content\":\"line two\"}\n")
	write("note.txt", "Free text report")
	write("broken.json", `{not json`)
	write("ignored.csv", "a,b")

	s, err := collector.NewSpool(dir)
	gt.NoError(t, err).Required()
	gt.V(t, s.Name()).Equal("spool")

	got, err := s.Collect(context.Background())
	gt.NoError(t, err).Required()

	contents := make([]string, 0, len(got))
	for _, c := range got {
		contents = append(contents, c.Content)
		gt.Value(t, c.Metadata["spool_file"]).NotNil()
	}
	gt.A(t, contents).Length(6)
	joined := strings.Join(contents, "|")
	for _, want := range []string{"Drone sighted near border", "first", "second", "line one", "line two", "Free text report"} {
		gt.String(t, joined).Contains(want)
	}

	_, err = os.Stat(filepath.Join(dir, "single.json.done"))
	gt.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "broken.json"))
	gt.NoError(t, err)

	again, err := s.Collect(context.Background())
	gt.NoError(t, err).Required()
	gt.A(t, again).Length(0)
}

func TestSpool_InvalidPattern(t *testing.T) {
	_, err := collector.NewSpool(t.TempDir(), collector.WithSpoolPattern("[abc"))
	gt.Error(t, err)
}
