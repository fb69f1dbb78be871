package config

import (
	"slices"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/osnit/pkg/domain/interfaces"
	"github.com/secmon-lab/osnit/pkg/service/collector"
	"github.com/urfave/cli/v3"
)

// Collectors holds the feed settings
type Collectors struct {
	enabled         []string
	gdeltQuery      string
	gdeltMaxRecords int
	rssFeeds        []string
	rssPerFeed      int
	spoolDir        string
	spoolPattern    string
	spoolKeep       bool
}

var knownCollectors = []string{collector.GDELTName, collector.RSSName, collector.SpoolName}

func (x *Collectors) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringSliceFlag{
			Name:        "collector",
			Usage:       "Enabled collector [gdelt|rss|spool] (repeatable)",
			Category:    "Collector",
			Value:       []string{collector.GDELTName, collector.RSSName},
			Sources:     cli.EnvVars("OSNIT_COLLECTORS"),
			Destination: &x.enabled,
		},
		&cli.StringFlag{
			Name:        "gdelt-query",
			Usage:       "GDELT DOC API query",
			Category:    "Collector",
			Value:       collector.DefaultGDELTQuery,
			Sources:     cli.EnvVars("OSNIT_GDELT_QUERY"),
			Destination: &x.gdeltQuery,
		},
		&cli.IntFlag{
			Name:        "gdelt-max-records",
			Usage:       "Maximum articles fetched from GDELT per run",
			Category:    "Collector",
			Value:       collector.DefaultGDELTMax,
			Sources:     cli.EnvVars("OSNIT_GDELT_MAX_RECORDS"),
			Destination: &x.gdeltMaxRecords,
		},
		&cli.StringSliceFlag{
			Name:        "rss-feed",
			Usage:       "RSS or Atom feed URL (repeatable, built-in feeds when omitted)",
			Category:    "Collector",
			Sources:     cli.EnvVars("OSNIT_RSS_FEEDS"),
			Destination: &x.rssFeeds,
		},
		&cli.IntFlag{
			Name:        "rss-per-feed",
			Usage:       "Maximum items taken from each feed",
			Category:    "Collector",
			Value:       collector.DefaultRSSPerFeed,
			Sources:     cli.EnvVars("OSNIT_RSS_PER_FEED"),
			Destination: &x.rssPerFeed,
		},
		&cli.StringFlag{
			Name:        "spool-dir",
			Usage:       "Directory scanned by the spool collector",
			Category:    "Collector",
			Sources:     cli.EnvVars("OSNIT_SPOOL_DIR"),
			Destination: &x.spoolDir,
		},
		&cli.StringFlag{
			Name:        "spool-pattern",
			Usage:       "Glob pattern of spool files, relative to the spool directory",
			Category:    "Collector",
			Value:       collector.DefaultSpoolPattern,
			Sources:     cli.EnvVars("OSNIT_SPOOL_PATTERN"),
			Destination: &x.spoolPattern,
		},
		&cli.BoolFlag{
			Name:        "spool-keep",
			Usage:       "Leave spool files in place instead of renaming them after ingestion",
			Category:    "Collector",
			Sources:     cli.EnvVars("OSNIT_SPOOL_KEEP"),
			Destination: &x.spoolKeep,
		},
	}
}

// Configure builds the enabled collectors
func (x *Collectors) Configure() ([]interfaces.Collector, error) {
	var collectors []interfaces.Collector
	for _, name := range x.enabled {
		if !slices.Contains(knownCollectors, name) {
			return nil, goerr.Wrap(ErrInvalidConfig, "unknown collector", goerr.V(FieldKey, name))
		}
	}

	if slices.Contains(x.enabled, collector.GDELTName) {
		collectors = append(collectors, collector.NewGDELT(
			collector.WithGDELTQuery(x.gdeltQuery),
			collector.WithGDELTMaxRecords(x.gdeltMaxRecords),
		))
	}
	if slices.Contains(x.enabled, collector.RSSName) {
		collectors = append(collectors, collector.NewRSS(x.rssFeeds,
			collector.WithRSSPerFeed(x.rssPerFeed),
		))
	}
	if slices.Contains(x.enabled, collector.SpoolName) {
		if x.spoolDir == "" {
			return nil, goerr.Wrap(ErrInvalidConfig, "spool collector requires --spool-dir", goerr.V(FieldKey, "spool-dir"))
		}
		spool, err := x.ConfigureSpool(x.spoolDir)
		if err != nil {
			return nil, err
		}
		collectors = append(collectors, spool)
	}

	return collectors, nil
}

// ConfigureSpool builds a spool collector over dir with the configured pattern
func (x *Collectors) ConfigureSpool(dir string) (*collector.Spool, error) {
	pattern := x.spoolPattern
	if pattern == "" {
		pattern = collector.DefaultSpoolPattern
	}
	spool, err := collector.NewSpool(dir,
		collector.WithSpoolPattern(pattern),
		collector.WithSpoolConsume(!x.spoolKeep),
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to configure spool collector", goerr.V("dir", dir))
	}
	return spool, nil
}
