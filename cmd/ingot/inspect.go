package main

import (
	"context"
	"os"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/ingot/internal/kernel"
	"github.com/samcharles93/ingot/internal/linear"
)

type inspectScale struct {
	Name  string `json:"name"`
	Shape []int  `json:"shape"`
}

type inspectReport struct {
	Variant         string         `json:"variant"`
	KernelAvailable bool           `json:"kernel_available"`
	Scales          []inspectScale `json:"scales"`
}

func inspectCmd() *cli.Command {
	flags := append([]cli.Flag{}, commonLayerFlags()...)
	flags = append(flags, commonLogFlags()...)

	return &cli.Command{
		Name:  "inspect",
		Usage: "Resolve the quantization variant and scale shapes for a layer configuration",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyLogConfig(cmd, loadConfig())

			cfg := layerConfigFromFlags()
			variant := linear.ResolveVariant(cfg)
			_, available := kernel.Default().Lookup(variant.String())

			report := inspectReport{
				Variant:         variant.String(),
				KernelAvailable: available,
			}
			for _, spec := range linear.RequiredScales(cfg) {
				report.Scales = append(report.Scales, inspectScale{Name: spec.Name, Shape: spec.Shape})
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
}
