package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"geoem1d/pkg/api"
	"geoem1d/pkg/config"
	"geoem1d/pkg/filters"
	"geoem1d/pkg/forward"
	"geoem1d/pkg/survey"
	"geoem1d/pkg/visualization"
)

// Global flags
var (
	configPath string
	logLevel   string
	workers    int
)

var rootCmd = &cobra.Command{
	Use:   "geoem1d",
	Short: "Electromagnetic responses of horizontally layered earth models",
	Long: `geoem1d computes frequency- and time-domain electromagnetic fields of dipole,
bipole and loop sources over horizontally layered, anisotropic earth models.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "geoem1d.yaml", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	rootCmd.PersistentFlags().IntVar(&workers, "workers", 0, "Concurrent work items (overrides config)")

	rootCmd.AddCommand(runCmd(), filtersCmd(), configCmd(), serveCmd())
}

// setupLogger creates the process logger from the output section of cfg
func setupLogger(cfg *config.Config) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	logger.SetOutput(os.Stderr)

	if logLevel != "" {
		cfg.Output.LogLevel = logLevel
	}
	lvl, err := cfg.LogLevel()
	if err != nil {
		return nil, err
	}
	logger.SetLevel(lvl)
	return logger, nil
}

// load reads the configuration and applies command line overrides
func load() (*config.Config, *logrus.Logger, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	if workers > 0 {
		cfg.Engine.Workers = workers
	}
	logger, err := setupLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func runCmd() *cobra.Command {
	var surveyPath, outPath, format, imagesDir string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Compute the response of a survey file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}
			f, err := survey.Load(surveyPath)
			if err != nil {
				return err
			}
			in, err := f.Input()
			if err != nil {
				return err
			}
			opts, err := cfg.Options()
			if err != nil {
				return err
			}
			opts.Logger = logger
			opts.Progress = progress(logger)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			startTime := time.Now()
			resp, err := forward.Run(ctx, in, opts)
			if err != nil {
				return err
			}
			rep := survey.NewReport(f.Name, in, resp, cfg.Output.Summary)
			if outPath == "" {
				if format == "" {
					format = cfg.Output.Format
				}
				if err := rep.Write(cmd.OutOrStdout(), format); err != nil {
					return err
				}
			} else if err := rep.Save(outPath); err != nil {
				return err
			} else {
				logger.Infof("Report saved to %s", outPath)
			}

			if imagesDir != "" {
				if err := visualization.NewViewer(resp).SaveSliceSequence(imagesDir); err != nil {
					logger.Warnf("Failed to save response images: %v", err)
				} else {
					logger.Infof("Response images saved to %s", imagesDir)
				}
			}

			if rep.Summary != nil {
				s := rep.Summary
				logger.Infof("%d entries, %d failed, mean log10 magnitude %.2f (std %.2f)",
					s.Entries, s.Failed, s.MeanLog10, s.StdLog10)
				for _, d := range s.Decay {
					logger.Debugf("Axis entry %d: offset decay exponent %.2f (R^2 %.3f)", d.Index, d.Exponent, d.RSquared)
				}
			}
			logger.Infof("Completed in %.2f seconds", time.Since(startTime).Seconds())
			return nil
		},
	}
	cmd.Flags().StringVar(&surveyPath, "survey", "", "Survey file (YAML or JSON)")
	cmd.Flags().StringVar(&outPath, "out", "", "Output report file; .json selects JSON (default stdout)")
	cmd.Flags().StringVar(&format, "format", "", "Format of stdout output: yaml or json (overrides config)")
	cmd.Flags().StringVar(&imagesDir, "images", "", "Directory for grey-scale images of the response planes")
	cmd.MarkFlagRequired("survey")
	return cmd
}

// progress logs every tenth of the work items at debug level
func progress(logger *logrus.Logger) func(done, total int) {
	return func(done, total int) {
		step := total / 10
		if step == 0 {
			step = 1
		}
		if done%step == 0 || done == total {
			logger.Debugf("Work items: %d/%d", done, total)
		}
	}
}

func filtersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "filters",
		Short: "Inspect and export the built-in digital linear filters",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List the built-in filters",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-14s %-8s %6s %10s %12s %12s\n", "NAME", "KIND", "POINTS", "SPACING", "BASE MIN", "BASE MAX")
			for _, name := range filters.Names() {
				f, err := filters.Get(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%-14s %-8s %6d %10.5f %12.4g %12.4g\n",
					f.Name, f.Kind, f.Len(), f.Spacing(), f.Base[0], f.Base[f.Len()-1])
			}
			return nil
		},
	}

	var outPath string
	export := &cobra.Command{
		Use:   "export NAME",
		Short: "Write a built-in filter as a text table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := filters.Get(args[0])
			if err != nil {
				return err
			}
			if outPath == "" {
				return filters.Write(cmd.OutOrStdout(), f)
			}
			return filters.Save(f, outPath)
		},
	}
	export.Flags().StringVar(&outPath, "out", "", "Output file (default stdout)")

	cmd.AddCommand(list, export)
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(configPath); err == nil && !force {
				return fmt.Errorf("config file %s exists, use --force to overwrite", configPath)
			}
			if err := config.CreateDefaultConfigFile(configPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Default configuration written to %s\n", configPath)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	cmd.AddCommand(initCmd)
	return cmd
}

func serveCmd() *cobra.Command {
	var addr string
	var maxRuns int64
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve forward runs over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			opts, err := cfg.Options()
			if err != nil {
				return err
			}

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			srv := api.NewServer(api.Settings{
				Addr:         cfg.Server.Addr,
				Options:      opts,
				MaxBodyBytes: cfg.Server.MaxBodyBytes,
				MaxRuns:      maxRuns,
				Summary:      cfg.Output.Summary,
			}, logger, reg)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errc := make(chan error, 1)
			go func() {
				logger.Infof("Listening on %s", cfg.Server.Addr)
				errc <- srv.ListenAndServe()
			}()

			select {
			case err := <-errc:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}
			logger.Info("Shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config)")
	cmd.Flags().Int64Var(&maxRuns, "max-runs", 4, "Concurrent runs before requests are rejected")
	return cmd
}
