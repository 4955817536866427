package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/ingot/internal/fp8"
	"github.com/samcharles93/ingot/internal/linear"
	"github.com/samcharles93/ingot/internal/logger"
	"github.com/samcharles93/ingot/internal/tensor"
)

type benchReport struct {
	ID           string  `json:"id"`
	Variant      string  `json:"variant"`
	OutFeatures  int     `json:"out_features"`
	InFeatures   int     `json:"in_features"`
	Batch        int     `json:"batch"`
	Runs         int     `json:"runs"`
	Placeholders int64   `json:"placeholders"`
	AvgMillis    float64 `json:"avg_ms"`
	GFLOPS       float64 `json:"gflops"`
}

func benchCmd() *cli.Command {
	var (
		warmup int64
		runs   int64
		batch  int64
		seed   int64
	)

	flags := append([]cli.Flag{}, commonLayerFlags()...)
	flags = append(flags, commonLogFlags()...)
	flags = append(flags,
		&cli.Int64Flag{
			Name:        "warmup",
			Usage:       "number of warmup runs",
			Value:       2,
			Destination: &warmup,
		},
		&cli.Int64Flag{
			Name:        "runs",
			Usage:       "number of timed runs",
			Value:       10,
			Destination: &runs,
		},
		&cli.Int64Flag{
			Name:        "batch",
			Usage:       "activation batch size",
			Value:       8,
			Destination: &batch,
		},
		&cli.Int64Flag{
			Name:        "seed",
			Usage:       "random seed for weights and activations",
			Value:       1,
			Destination: &seed,
		},
	)

	return &cli.Command{
		Name:  "bench",
		Usage: "Benchmark a synthetic FP8 linear layer",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := loadConfig()
			applyLogConfig(cmd, cfg)
			applyBenchConfig(cmd, cfg, &warmup, &runs, &batch)
			ctx = withLogger(ctx)
			log := logger.FromContext(ctx)

			layerCfg := layerConfigFromFlags()
			layer, err := buildBenchLayer(layerCfg, seed, log)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: build layer: %v", err), 1)
			}

			act := randomActivation(int(batch), layerCfg.InFeatures, seed+1)
			log.Info("benchmarking layer",
				"variant", layer.Variant().String(),
				"out", layerCfg.OutFeatures, "in", layerCfg.InFeatures, "batch", batch)

			for i := int64(0); i < warmup; i++ {
				if _, err := layer.Apply(act); err != nil {
					return cli.Exit(fmt.Sprintf("error: warmup apply: %v", err), 1)
				}
			}

			start := time.Now()
			for i := int64(0); i < runs; i++ {
				if _, err := layer.Apply(act); err != nil {
					return cli.Exit(fmt.Sprintf("error: apply: %v", err), 1)
				}
			}
			elapsed := time.Since(start)

			avg := elapsed.Seconds() / float64(runs)
			flops := 2 * float64(batch) * float64(layerCfg.OutFeatures) * float64(layerCfg.InFeatures)
			report := benchReport{
				ID:           uuid.NewString(),
				Variant:      layer.Variant().String(),
				OutFeatures:  layerCfg.OutFeatures,
				InFeatures:   layerCfg.InFeatures,
				Batch:        int(batch),
				Runs:         int(runs),
				Placeholders: linear.PlaceholderCount(),
				AvgMillis:    avg * 1000,
				GFLOPS:       flops / avg / 1e9,
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
}

func buildBenchLayer(cfg linear.LayerConfig, seed int64, log logger.Logger) (*linear.Layer, error) {
	layer := linear.New(cfg, linear.WithLogger(log))

	rng := rand.New(rand.NewSource(seed))
	raw := make([]byte, cfg.OutFeatures*cfg.InFeatures)
	for i := range raw {
		raw[i] = fp8.Encode((rng.Float32() - 0.5) * 2)
	}
	if err := layer.AttachWeight(tensor.FromRaw(raw, cfg.OutFeatures, cfg.InFeatures)); err != nil {
		return nil, err
	}
	if cfg.Bias {
		bias := tensor.New(cfg.OutFeatures)
		for i := range bias.Data {
			bias.Data[i] = (rng.Float32() - 0.5) * 0.1
		}
		if err := layer.AttachBias(bias); err != nil {
			return nil, err
		}
	}
	return layer, nil
}

func randomActivation(batch, in int, seed int64) *tensor.Tensor {
	rng := rand.New(rand.NewSource(seed))
	act := tensor.New(batch, in)
	for i := range act.Data {
		act.Data[i] = (rng.Float32() - 0.5) * 2
	}
	return act
}
