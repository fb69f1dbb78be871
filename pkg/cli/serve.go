package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/osnit/pkg/cli/config"
	httpctrl "github.com/secmon-lab/osnit/pkg/controller/http"
	"github.com/secmon-lab/osnit/pkg/service/worker"
	"github.com/secmon-lab/osnit/pkg/usecase"
	"github.com/secmon-lab/osnit/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdServe(sentryCfg *config.Sentry) *cli.Command {
	var addr string
	var ingestSchedule string
	var processSchedule string
	var runOnStart bool
	var disableWorker bool
	var d deps

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "HTTP server address",
			Value:       ":8080",
			Sources:     cli.EnvVars("OSNIT_ADDR"),
			Destination: &addr,
		},
		&cli.StringFlag{
			Name:        "ingest-schedule",
			Usage:       "Cron spec of the collection job (e.g., \"@every 15m\", \"*/15 * * * *\")",
			Category:    "Schedule",
			Value:       "@every 15m",
			Sources:     cli.EnvVars("OSNIT_INGEST_SCHEDULE"),
			Destination: &ingestSchedule,
		},
		&cli.StringFlag{
			Name:        "process-schedule",
			Usage:       "Cron spec of the enrich, correlate and alert job",
			Category:    "Schedule",
			Value:       "@every 15m",
			Sources:     cli.EnvVars("OSNIT_PROCESS_SCHEDULE"),
			Destination: &processSchedule,
		},
		&cli.BoolFlag{
			Name:        "run-on-start",
			Usage:       "Run both jobs once right after startup",
			Category:    "Schedule",
			Sources:     cli.EnvVars("OSNIT_RUN_ON_START"),
			Destination: &runOnStart,
		},
		&cli.BoolFlag{
			Name:        "no-worker",
			Usage:       "Serve the read API only, without scheduled jobs",
			Category:    "Schedule",
			Sources:     cli.EnvVars("OSNIT_NO_WORKER"),
			Destination: &disableWorker,
		},
	}
	flags = append(flags, d.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start HTTP read API and scheduled pipeline",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			uc, closeRepo, err := d.Configure(ctx, c)
			if err != nil {
				return err
			}
			defer closeRepo()

			var pipelineWorker *worker.PipelineWorker
			if !disableWorker {
				pipelineWorker, err = worker.NewPipelineWorker(pipelineJobs(uc, ingestSchedule, processSchedule),
					worker.WithRunOnStart(runOnStart))
				if err != nil {
					return goerr.Wrap(err, "failed to create pipeline worker")
				}
				if err := pipelineWorker.Start(ctx); err != nil {
					return goerr.Wrap(err, "failed to start pipeline worker")
				}
			} else {
				logging.Default().Info("Scheduled jobs disabled")
			}

			server := &http.Server{
				Addr: addr,
				Handler: httpctrl.New(uc,
					httpctrl.WithMetrics(true),
					httpctrl.WithSentry(sentryCfg.IsEnabled()),
				),
				ReadHeaderTimeout: 30 * time.Second,
			}

			// Setup signal handling for graceful shutdown
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

			errCh := make(chan error, 1)
			go func() {
				logging.Default().Info("Starting HTTP server", "addr", addr)
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- goerr.Wrap(err, "failed to start server")
				}
			}()

			select {
			case err := <-errCh:
				if pipelineWorker != nil {
					pipelineWorker.Stop()
				}
				return err
			case sig := <-sigCh:
				logging.Default().Info("Received shutdown signal", "signal", sig)

				// Stop the worker first so that no job writes after the repository is closed
				if pipelineWorker != nil {
					pipelineWorker.Stop()
				}

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()

				if err := server.Shutdown(shutdownCtx); err != nil {
					return goerr.Wrap(err, "failed to shutdown server gracefully")
				}

				logging.Default().Info("Server shutdown completed")
				return nil
			}
		},
	}
}

// pipelineJobs returns the collection job and the processing job
func pipelineJobs(uc *usecase.UseCases, ingestSchedule, processSchedule string) []worker.Job {
	return []worker.Job{
		{
			Name:     "ingest",
			Schedule: ingestSchedule,
			Run: func(ctx context.Context) error {
				_, err := uc.Ingest.Collect(ctx)
				return err
			},
		},
		{
			Name:     "process",
			Schedule: processSchedule,
			Run: func(ctx context.Context) error {
				_, err := uc.Pipeline.Run(ctx)
				return err
			},
		},
	}
}
