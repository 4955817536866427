package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/ingot/internal/linear"
	"github.com/samcharles93/ingot/internal/logger"
)

var (
	outFeatures int64
	inFeatures  int64
	channelWise bool
	blockSize   int64
	marlin      bool
	actQuant    bool
	withBias    bool
	logLevel    string
	logFormat   string
)

func commonLayerFlags() []cli.Flag {
	return []cli.Flag{
		&cli.Int64Flag{
			Name:        "out",
			Usage:       "output feature count",
			Value:       4096,
			Destination: &outFeatures,
		},
		&cli.Int64Flag{
			Name:        "in",
			Usage:       "input feature count",
			Value:       4096,
			Destination: &inFeatures,
		},
		&cli.BoolFlag{
			Name:        "channel-wise",
			Usage:       "per-channel scale path available",
			Value:       true,
			Destination: &channelWise,
		},
		&cli.Int64Flag{
			Name:        "block-size",
			Usage:       "block quantization edge (0 disables block quant)",
			Destination: &blockSize,
		},
		&cli.BoolFlag{
			Name:        "marlin",
			Usage:       "select the packed kernel path",
			Destination: &marlin,
		},
		&cli.BoolFlag{
			Name:        "act-quant",
			Usage:       "enable static activation quantization",
			Destination: &actQuant,
		},
		&cli.BoolFlag{
			Name:        "bias",
			Usage:       "add a bias term",
			Destination: &withBias,
		},
	}
}

func commonLogFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, text, json)",
			Value:       "pretty",
			Destination: &logFormat,
		},
	}
}

// withLogger builds the logger selected by the log flags and stores it in
// the command context.
func withLogger(ctx context.Context) context.Context {
	level := logger.ParseLevel(logLevel)
	var log logger.Logger
	switch logFormat {
	case "json":
		log = logger.JSON(os.Stderr, level)
	case "text":
		log = logger.New(newTextHandler(level))
	default:
		log = logger.Pretty(os.Stderr, level)
	}
	return logger.WithContext(ctx, log)
}

func newTextHandler(level slog.Level) slog.Handler {
	return slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
}

func layerConfigFromFlags() linear.LayerConfig {
	return linear.LayerConfig{
		OutFeatures:     int(outFeatures),
		InFeatures:      int(inFeatures),
		ChannelWise:     channelWise,
		BlockQuant:      blockSize > 0,
		BlockSize:       int(blockSize),
		Marlin:          marlin,
		ActivationQuant: actQuant,
		Bias:            withBias,
	}
}
