package cli

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/osnit/pkg/usecase"
	"github.com/secmon-lab/osnit/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdIngest() *cli.Command {
	var dir string
	var process bool
	var d deps

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "dir",
			Aliases:     []string{"d"},
			Usage:       "Ingest only the spool files under this directory instead of the configured collectors",
			Destination: &dir,
		},
		&cli.BoolFlag{
			Name:        "enrich",
			Usage:       "Run enrichment, correlation and alerting after ingestion",
			Destination: &process,
		},
	}
	flags = append(flags, d.Flags()...)

	return &cli.Command{
		Name:    "ingest",
		Aliases: []string{"i"},
		Usage:   "Collect candidates once and store the new ones",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			uc, closeRepo, err := d.Configure(ctx, c)
			if err != nil {
				return err
			}
			defer closeRepo()

			var result *usecase.CollectResult
			if dir != "" {
				spool, err := d.collectors.ConfigureSpool(dir)
				if err != nil {
					return err
				}
				result, err = uc.Ingest.CollectFrom(ctx, spool)
				if err != nil {
					return goerr.Wrap(err, "failed to ingest spool directory", goerr.V("dir", dir))
				}
			} else {
				result, err = uc.Ingest.Collect(ctx)
				if err != nil {
					return goerr.Wrap(err, "failed to collect")
				}
			}
			logCollectResult(ctx, result)

			if process {
				return runPipeline(ctx, uc)
			}
			return nil
		},
	}
}

func cmdEnrich() *cli.Command {
	var d deps

	return &cli.Command{
		Name:    "enrich",
		Aliases: []string{"e"},
		Usage:   "Run one enrichment batch over unprocessed records",
		Flags:   d.Flags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			uc, closeRepo, err := d.Configure(ctx, c)
			if err != nil {
				return err
			}
			defer closeRepo()

			result, err := uc.Enrich.RunBatch(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to run enrichment")
			}
			logging.From(ctx).Info("Enrichment completed",
				"succeeded", result.Succeeded,
				"failed", result.Failed,
				"flagged", result.Flagged)
			return nil
		},
	}
}

func cmdCorrelate() *cli.Command {
	var d deps

	return &cli.Command{
		Name:  "correlate",
		Usage: "Recluster processed records and raise alerts",
		Flags: d.Flags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			uc, closeRepo, err := d.Configure(ctx, c)
			if err != nil {
				return err
			}
			defer closeRepo()

			correlateResult, alertResult, err := uc.Pipeline.Correlate(ctx)
			logCorrelateResult(ctx, correlateResult)
			logAlertResult(ctx, alertResult)
			if err != nil {
				return goerr.Wrap(err, "failed to correlate")
			}
			return nil
		},
	}
}

func cmdRun() *cli.Command {
	var skipCollect bool
	var d deps

	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:        "skip-collect",
			Usage:       "Process already stored records only",
			Destination: &skipCollect,
		},
	}
	flags = append(flags, d.Flags()...)

	return &cli.Command{
		Name:    "run",
		Aliases: []string{"r"},
		Usage:   "Run one full cycle: collect, enrich, correlate and alert",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			uc, closeRepo, err := d.Configure(ctx, c)
			if err != nil {
				return err
			}
			defer closeRepo()

			if !skipCollect {
				result, err := uc.Ingest.Collect(ctx)
				if err != nil {
					return goerr.Wrap(err, "failed to collect")
				}
				logCollectResult(ctx, result)
			}

			return runPipeline(ctx, uc)
		},
	}
}

func runPipeline(ctx context.Context, uc *usecase.UseCases) error {
	result, err := uc.Pipeline.Run(ctx)
	if result != nil {
		if result.Enrich != nil {
			logging.From(ctx).Info("Enrichment completed",
				"succeeded", result.Enrich.Succeeded,
				"failed", result.Enrich.Failed,
				"flagged", result.Enrich.Flagged)
		}
		logCorrelateResult(ctx, result.Correlate)
		logAlertResult(ctx, result.Alert)
	}
	if err != nil {
		return goerr.Wrap(err, "pipeline run failed")
	}
	return nil
}

func logCollectResult(ctx context.Context, result *usecase.CollectResult) {
	logger := logging.From(ctx)
	failed := 0
	for _, s := range result.Sources {
		if s.Err != nil {
			failed++
		}
		logger.Info("Source result",
			"source", s.Source,
			"fetched", s.Fetched,
			"inserted", s.Inserted,
			"duplicates", s.Duplicates,
			"rejected", s.Rejected,
			"errors", s.Errors,
			"failed", s.Err != nil)
	}
	logger.Info("Collection completed",
		"inserted", result.Inserted(),
		"failed_sources", failed)
}

func logCorrelateResult(ctx context.Context, result *usecase.CorrelateResult) {
	if result == nil {
		return
	}
	logging.From(ctx).Info("Correlation completed",
		"clusters", result.ClustersAssigned,
		"assigned", result.RecordsAssigned,
		"unassigned", result.Unassigned,
		"updated", result.Updated,
		"failed", result.Failed)
}

func logAlertResult(ctx context.Context, result *usecase.AlertResult) {
	if result == nil {
		return
	}
	logging.From(ctx).Info("Alert generation completed",
		"created", len(result.Created),
		"skipped", result.Skipped,
		"failed", result.Failed)
}
