package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/levmv/photoarc/index"
	"github.com/levmv/photoarc/metadata"
)

// indexEnv overrides the default index location.
const indexEnv = "PHOTOARC_INDEX"

// Config holds the flags shared by every command.
type Config struct {
	IndexPath string
	Verbose   bool
	NoColor   bool
}

var (
	logger = slog.New(newConsoleHandler(os.Stderr, false, true))
	config Config
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "photoarc",
		Short:         "Keep a photo archive free of duplicates and consistently named",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			logger = slog.New(newConsoleHandler(os.Stderr, config.Verbose, !config.NoColor))
		},
	}

	root.PersistentFlags().StringVar(&config.IndexPath, "index", "", "Index database (default ~/.photoarc/index.db, or $"+indexEnv+")")
	root.PersistentFlags().BoolVarP(&config.Verbose, "verbose", "v", false, "Verbose logging")
	root.PersistentFlags().BoolVar(&config.NoColor, "no-color", false, "Disable colored output")

	root.AddCommand(
		newRebuildCmd(),
		newStatsCmd(),
		newDedupeCmd(),
		newTrashCmd(),
		newRenameCmd(),
		newCheckCmd(),
	)

	// cobra prints nothing with SilenceErrors; report through the logger.
	wrap(root)
	return root
}

// wrap logs the error of every RunE before cobra returns it.
func wrap(cmd *cobra.Command) {
	for _, c := range cmd.Commands() {
		if run := c.RunE; run != nil {
			c.RunE = func(cc *cobra.Command, args []string) error {
				err := run(cc, args)
				if err != nil {
					logger.Error(err.Error())
				}
				return err
			}
		}
		wrap(c)
	}
}

func indexPath() (string, error) {
	if config.IndexPath != "" {
		return config.IndexPath, nil
	}
	if p := os.Getenv(indexEnv); p != "" {
		return p, nil
	}
	return index.DefaultPath()
}

func openIndex() (*index.Store, error) {
	path, err := indexPath()
	if err != nil {
		return nil, err
	}
	store, err := index.Open(path, logger)
	if err != nil {
		return nil, fmt.Errorf("open index %s: %w", path, err)
	}
	return store, nil
}

func newMetadataService() *metadata.Service {
	return metadata.NewService(logger)
}

// newProgress returns a progress callback drawing a bar on stderr, or nil
// when verbose logging would interleave with it.
func newProgress(description string) func(done, total int) {
	if config.Verbose {
		return nil
	}
	var bar *progressbar.ProgressBar
	return func(done, total int) {
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionSetDescription(description),
				progressbar.OptionShowCount(),
				progressbar.OptionSetPredictTime(false),
				progressbar.OptionClearOnFinish(),
			)
		}
		_ = bar.Set(done)
		if done == total {
			_ = bar.Finish()
		}
	}
}
