package cli

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/osnit/pkg/cli/config"
	"github.com/secmon-lab/osnit/pkg/usecase"
	"github.com/secmon-lab/osnit/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// deps bundles the flag groups every pipeline command needs
type deps struct {
	repo       config.Repository
	analyzer   config.Analyzer
	pipeline   config.Pipeline
	slack      config.Slack
	collectors config.Collectors
}

func (r *deps) Flags() []cli.Flag {
	var flags []cli.Flag
	flags = append(flags, r.repo.Flags()...)
	flags = append(flags, r.analyzer.Flags()...)
	flags = append(flags, r.pipeline.Flags()...)
	flags = append(flags, r.slack.Flags()...)
	flags = append(flags, r.collectors.Flags()...)
	return flags
}

// Configure wires the repository, capabilities, collectors and notifier into use cases.
// The returned function closes the repository.
func (r *deps) Configure(ctx context.Context, c *cli.Command, opts ...usecase.Option) (*usecase.UseCases, func(), error) {
	pipelineCfg, err := r.pipeline.Configure(c)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to load pipeline configuration")
	}

	caps, err := r.analyzer.Configure(ctx)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to configure analyzer")
	}

	collectors, err := r.collectors.Configure()
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to configure collectors")
	}

	notifier, err := r.slack.Configure()
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to configure slack notifier")
	}

	repo, err := r.repo.Configure(ctx)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to initialize repository")
	}
	closer := func() {
		if err := repo.Close(); err != nil {
			logging.Default().Error("failed to close repository", "error", err.Error())
		}
	}

	ucOpts := []usecase.Option{
		usecase.WithPipelineConfig(pipelineCfg),
		usecase.WithCapabilities(caps),
		usecase.WithCollectors(collectors...),
	}
	if notifier != nil {
		ucOpts = append(ucOpts, usecase.WithAlertNotifier(notifier))
		logging.Default().Info("Slack alert notification enabled", "slack", r.slack)
	}
	ucOpts = append(ucOpts, opts...)

	logging.Default().Info("Pipeline configuration",
		"pipeline", r.pipeline,
		"collectors", len(collectors))

	return usecase.New(repo, ucOpts...), closer, nil
}
