package collector

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/osnit/pkg/domain/interfaces"
	"github.com/secmon-lab/osnit/pkg/domain/model"
	"github.com/secmon-lab/osnit/pkg/utils/errutil"
	"github.com/secmon-lab/osnit/pkg/utils/logging"
)

const (
	SpoolName           = "spool"
	DefaultSpoolPattern = "**/*.{json,jsonl,txt}"
	doneSuffix          = ".done"
)

// Spool collects candidates dropped as files into a directory by other tools.
//
//   - .json: one candidate object or an array of them
//   - .jsonl: one candidate object per line
//   - .txt: the whole file is the content of one candidate
//
// Consumed files are renamed with a ".done" suffix so the next run skips them.
type Spool struct {
	dir     string
	pattern string
	consume bool
}

var _ interfaces.Collector = &Spool{}

type SpoolOption func(*Spool)

// WithSpoolPattern sets the doublestar pattern matched relative to the directory
func WithSpoolPattern(pattern string) SpoolOption {
	return func(s *Spool) {
		s.pattern = pattern
	}
}

// WithSpoolConsume controls renaming of consumed files
func WithSpoolConsume(consume bool) SpoolOption {
	return func(s *Spool) {
		s.consume = consume
	}
}

func NewSpool(dir string, opts ...SpoolOption) (*Spool, error) {
	s := &Spool{
		dir:     dir,
		pattern: DefaultSpoolPattern,
		consume: true,
	}
	for _, opt := range opts {
		opt(s)
	}

	if !doublestar.ValidatePattern(s.pattern) {
		return nil, goerr.New("invalid spool pattern", goerr.V("pattern", s.pattern))
	}
	return s, nil
}

func (s *Spool) Name() string { return SpoolName }

type spoolItem struct {
	Source   string         `json:"source"`
	Content  string         `json:"content"`
	URL      string         `json:"url"`
	Metadata map[string]any `json:"metadata"`
}

func (s *Spool) Collect(ctx context.Context) ([]*model.Candidate, error) {
	fsys := os.DirFS(s.dir)
	matches, err := doublestar.Glob(fsys, s.pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list spool directory", goerr.V("dir", s.dir))
	}

	var candidates []*model.Candidate
	for _, name := range matches {
		if ctx.Err() != nil {
			break
		}

		items, err := s.readFile(fsys, name)
		if err != nil {
			// leave the file in place for inspection
			_ = errutil.Handle(ctx, err, "failed to read spool file")
			continue
		}
		candidates = append(candidates, items...)

		if s.consume {
			full := filepath.Join(s.dir, filepath.FromSlash(name))
			if err := os.Rename(full, full+doneSuffix); err != nil {
				_ = errutil.Handle(ctx, goerr.Wrap(err, "failed to mark spool file", goerr.V("file", full)),
					"failed to consume spool file")
			}
		}
	}

	logging.From(ctx).Debug("spool scanned", "dir", s.dir, "files", len(matches), "candidates", len(candidates))
	return candidates, nil
}

func (s *Spool) readFile(fsys fs.FS, name string) ([]*model.Candidate, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read file", goerr.V("file", name))
	}

	var items []spoolItem
	switch strings.ToLower(path.Ext(name)) {
	case ".json":
		trimmed := bytes.TrimSpace(data)
		if len(trimmed) > 0 && trimmed[0] == '[' {
			err = json.Unmarshal(trimmed, &items)
		} else {
			var item spoolItem
			err = json.Unmarshal(trimmed, &item)
			items = []spoolItem{item}
		}
		if err != nil {
			return nil, goerr.Wrap(err, "invalid JSON spool file", goerr.V("file", name))
		}

	case ".jsonl":
		scanner := bufio.NewScanner(bytes.NewReader(data))
		scanner.Buffer(make([]byte, 0, 64*1024), maxBodySize)
		for line := 1; scanner.Scan(); line++ {
			if len(bytes.TrimSpace(scanner.Bytes())) == 0 {
				continue
			}
			var item spoolItem
			if err := json.Unmarshal(scanner.Bytes(), &item); err != nil {
				return nil, goerr.Wrap(err, "invalid JSON line in spool file",
					goerr.V("file", name),
					goerr.V("line", line))
			}
			items = append(items, item)
		}
		if err := scanner.Err(); err != nil {
			return nil, goerr.Wrap(err, "failed to scan spool file", goerr.V("file", name))
		}

	default:
		items = []spoolItem{{Content: string(data)}}
	}

	out := make([]*model.Candidate, 0, len(items))
	for _, item := range items {
		meta := item.Metadata
		if meta == nil {
			meta = map[string]any{}
		}
		meta["spool_file"] = name
		out = append(out, &model.Candidate{
			Source:   item.Source,
			Content:  item.Content,
			URL:      item.URL,
			Metadata: meta,
		})
	}
	return out, nil
}
