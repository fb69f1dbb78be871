package config

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/osnit/pkg/service/analyzer"
	"github.com/secmon-lab/osnit/pkg/service/geocode"
	"github.com/secmon-lab/osnit/pkg/usecase"
	"github.com/secmon-lab/osnit/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// Analyzer selects the model capabilities used by enrichment
type Analyzer struct {
	Gemini Gemini

	mode              string
	geocoder          string
	nominatimEndpoint string
	nominatimAgent    string
}

func (x *Analyzer) Flags() []cli.Flag {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "analyzer",
			Usage:       "Analyzer backend [auto|gemini|keyword|none]. auto picks gemini when a project is set",
			Category:    "Analyzer",
			Value:       "auto",
			Sources:     cli.EnvVars("OSNIT_ANALYZER"),
			Destination: &x.mode,
		},
		&cli.StringFlag{
			Name:        "geocoder",
			Usage:       "Geocoder backend [nominatim|gazetteer|none]",
			Category:    "Analyzer",
			Value:       "gazetteer",
			Sources:     cli.EnvVars("OSNIT_GEOCODER"),
			Destination: &x.geocoder,
		},
		&cli.StringFlag{
			Name:        "nominatim-endpoint",
			Usage:       "Nominatim search endpoint",
			Category:    "Analyzer",
			Value:       geocode.DefaultEndpoint,
			Sources:     cli.EnvVars("OSNIT_NOMINATIM_ENDPOINT"),
			Destination: &x.nominatimEndpoint,
		},
		&cli.StringFlag{
			Name:        "nominatim-user-agent",
			Usage:       "User-Agent sent to Nominatim, identify your deployment here",
			Category:    "Analyzer",
			Value:       geocode.DefaultUserAgent,
			Sources:     cli.EnvVars("OSNIT_NOMINATIM_USER_AGENT"),
			Destination: &x.nominatimAgent,
		},
	}
	return append(flags, x.Gemini.Flags()...)
}

// Configure builds the capability set. With mode none the classifier is left unset,
// which makes enrichment report that it is not configured.
func (x *Analyzer) Configure(ctx context.Context) (usecase.Capabilities, error) {
	var caps usecase.Capabilities
	logger := logging.Default()

	mode := x.mode
	if mode == "auto" {
		mode = "keyword"
		if x.Gemini.IsConfigured() {
			mode = "gemini"
		}
	}

	switch mode {
	case "gemini":
		if !x.Gemini.IsConfigured() {
			return caps, goerr.Wrap(ErrMissingCredentials, "gemini analyzer requires --gemini-project",
				goerr.V(FieldKey, "gemini-project"))
		}
		a, err := x.Gemini.ConfigureAnalyzer(ctx)
		if err != nil {
			return caps, err
		}
		caps.Classifier = a
		caps.Extractor = a
		caps.Embedder = a
		logger.Info("Using Gemini analyzer", "gemini", x.Gemini.LogAttrs())

	case "keyword":
		k := analyzer.NewKeyword()
		caps.Classifier = k
		caps.Extractor = k
		logger.Warn("Using keyword analyzer, embeddings are disabled and clustering will be empty")

	case "none":
		logger.Warn("No analyzer configured, enrichment is disabled")

	default:
		return caps, goerr.Wrap(ErrInvalidConfig, "invalid analyzer", goerr.V(FieldKey, x.mode))
	}

	caps.Regions = geocode.NewGazetteer(nil)

	switch x.geocoder {
	case "nominatim":
		caps.Geocoder = geocode.NewNominatim(
			geocode.WithEndpoint(x.nominatimEndpoint),
			geocode.WithUserAgent(x.nominatimAgent),
			geocode.WithFallback(geocode.NewGazetteer(nil)),
		)
	case "gazetteer":
		caps.Geocoder = geocode.NewGazetteer(nil)
	case "none":
	default:
		return caps, goerr.Wrap(ErrInvalidConfig, "invalid geocoder", goerr.V(FieldKey, x.geocoder))
	}

	return caps, nil
}
