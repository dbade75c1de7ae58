package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/sweeney/patchbay/internal/config"
	"github.com/sweeney/patchbay/internal/gpio"
	"github.com/sweeney/patchbay/internal/patch"
)

func newScanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Scan the patch bay once, print the matrix and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			pins, err := openPins(cfg)
			if err != nil {
				return fmt.Errorf("init gpio: %w", err)
			}
			defer pins.Close()
			return scanOnce(cmd.OutOrStdout(), pins, cfg, time.Sleep)
		},
	}
}

// scanOnce prints one line per output, "line cc: bits", then the patch cords.
func scanOnce(w io.Writer, pins gpio.PinSet, cfg config.Config, sleep gpio.Sleeper) error {
	if err := pins.DriveAllLow(); err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	scanner := patch.NewScanner(pins, time.Duration(cfg.Settle), sleep)
	graph, _, err := scanner.Scan()
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}

	width := len(cfg.Inputs)
	for i, o := range cfg.Outputs {
		fmt.Fprintf(w, "%d %d: %s\n", o.Line, o.Controller, patch.FormatBits(graph[i], width))
	}
	for _, e := range graph.Edges(width) {
		fmt.Fprintf(w, "out %d -> in %d\n", cfg.Outputs[e.Out].Line, cfg.Inputs[e.In])
	}
	return nil
}
