// Command speckle analyses batches of laser speckle captures.
//
// Usage:
//
//	speckle run batch.yaml                 # fixed threshold DEFAULT_THRESHOLD
//	speckle run batch.yaml --threshold 45
//	speckle run batch.yaml --otsu
//	speckle run batch.yaml --prompt        # choose each threshold on the terminal
//	speckle results projector              # print csvFiles/projector.csv
//
// Configuration comes from the same environment variables as the HTTP API.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"speckle-inspector/internal/config"
	"speckle-inspector/internal/container"
	"speckle-inspector/internal/logger"
	"speckle-inspector/internal/strategy"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	// Results go to stdout, logs to stderr
	logger.SetOutput(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "speckle",
		Short:        "Measure laser speckle contrast from raw or standard captures",
		SilenceUsage: true,
	}
	root.AddCommand(newRunCommand(), newResultsCommand())
	return root
}

type runFlags struct {
	threshold int
	otsu      bool
	prompt    bool
	workers   int
	asJSON    bool
}

func newRunCommand() *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run <batch.yaml>",
		Short: "Analyse every measurement of a batch file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, args[0], flags)
		},
	}

	cmd.Flags().IntVar(&flags.threshold, "threshold", 0, "fixed perforation threshold (1-255), DEFAULT_THRESHOLD when unset")
	cmd.Flags().BoolVar(&flags.otsu, "otsu", false, "pick each threshold with Otsu's method")
	cmd.Flags().BoolVar(&flags.prompt, "prompt", false, "choose each threshold interactively")
	cmd.Flags().IntVar(&flags.workers, "workers", 0, "measurements analysed concurrently, MAX_WORKERS when unset")
	cmd.Flags().BoolVar(&flags.asJSON, "json", false, "print the batch report as JSON")
	cmd.MarkFlagsMutuallyExclusive("threshold", "otsu", "prompt")
	return cmd
}

func runBatch(cmd *cobra.Command, path string, flags runFlags) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	measurements, err := loadBatch(path)
	if err != nil {
		return err
	}

	name, threshold := strategy.FixedStrategy, cfg.DefaultThreshold
	if flags.threshold != 0 {
		threshold = flags.threshold
	}
	switch {
	case flags.otsu:
		name = strategy.OtsuStrategy
	case flags.prompt:
		name = strategy.PromptStrategy
	}

	if flags.workers > 0 {
		cfg.MaxWorkers = flags.workers
	}
	// Batch files are written by whoever runs the CLI
	cfg.AllowAbsolutePaths = true
	if name == strategy.PromptStrategy {
		// One terminal, one measurement at a time
		cfg.MaxWorkers = 1
	}

	c, err := container.NewContainerWithStreams(cfg, cmd.InOrStdin(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer c.Close()

	chooser, err := c.Strategies().CreateStrategy(name, threshold)
	if err != nil {
		return err
	}
	if closer, ok := chooser.(io.Closer); ok {
		defer closer.Close()
	}

	logger.WithFields(logrus.Fields{
		"batch":        path,
		"measurements": len(measurements),
		"strategy":     chooser.GetStrategyName(),
		"workers":      cfg.MaxWorkers,
	}).Info("Running measurement batch")

	response := c.Service().AnalyzeBatch(cmd.Context(), measurements, chooser)

	if flags.asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(response); err != nil {
			return err
		}
	} else if err := printBatch(cmd.OutOrStdout(), response); err != nil {
		return err
	}

	if response.Failed > 0 {
		return fmt.Errorf("%d of %d measurements failed", response.Failed, len(measurements))
	}
	return nil
}

func newResultsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "results <file>",
		Short: "Print the rows stored in a results file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFromEnv()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			c, err := container.NewContainer(cfg)
			if err != nil {
				return err
			}
			defer c.Close()

			rows, err := c.Repository().ReadAll(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printRows(cmd.OutOrStdout(), rows)
		},
	}
}
