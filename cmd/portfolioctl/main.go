package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tjfontaine/portfolio-pulse/internal/config"
	"github.com/tjfontaine/portfolio-pulse/internal/telemetry"
	"github.com/tjfontaine/portfolio-pulse/pkg/portfolio"
)

// cli carries state shared by every subcommand.
type cli struct {
	cfgPath string
	trace   bool

	cfg       *config.Config
	logger    *slog.Logger
	telemetry *telemetry.Providers
	portfolio *portfolio.Portfolio
}

func main() {
	c := &cli{}

	root := &cobra.Command{
		Use:               "portfolioctl",
		Short:             "Portfolio analytics, chat, and admin client",
		SilenceUsage:      true,
		PersistentPreRunE: c.setup,
	}
	root.PersistentFlags().StringVarP(&c.cfgPath, "config", "c", "", "config file (default is portfolio.yaml)")
	root.PersistentFlags().BoolVar(&c.trace, "trace", false, "print spans to stderr")

	root.AddCommand(chatCMD(c), trackCMD(c), logsCMD(c), adminCMD(c), themeCMD(c), mockCMD(c))

	err := root.Execute()
	c.close()
	if err != nil {
		os.Exit(1)
	}
}

func (c *cli) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(c.cfgPath)
	if err != nil {
		return err
	}
	c.cfg = cfg

	c.logger = newLogger(cfg.Log, os.Stderr)
	slog.SetDefault(c.logger)

	var traceOut io.Writer
	if c.trace {
		traceOut = os.Stderr
	}
	c.telemetry, err = telemetry.Init(telemetry.Options{ServiceName: "portfolioctl", TraceWriter: traceOut}, c.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	return nil
}

// client builds the portfolio clients on first use.
func (c *cli) client() (*portfolio.Portfolio, error) {
	if c.portfolio != nil {
		return c.portfolio, nil
	}
	p, err := portfolio.New(portfolio.WithConfig(c.cfg), portfolio.WithLogger(c.logger))
	if err != nil {
		return nil, err
	}
	c.portfolio = p
	return p, nil
}

func (c *cli) close() {
	if c.portfolio != nil {
		if err := c.portfolio.Close(); err != nil {
			c.logger.Error("failed to close local state", slog.String("error", err.Error()))
		}
	}
	if c.telemetry != nil {
		if err := c.telemetry.Shutdown(context.Background()); err != nil {
			c.logger.Error("failed to shutdown telemetry", slog.String("error", err.Error()))
		}
	}
}

func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parsePairs turns key=value arguments into a map.
func parsePairs(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("expected key=value, got %q", p)
		}
		out[k] = v
	}
	return out, nil
}
