package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tjfontaine/portfolio-pulse/internal/mockbackend"
)

func mockCMD(c *cli) *cobra.Command {
	var port int
	var chunkDelay, stepDelay time.Duration

	cmd := &cobra.Command{
		Use:   "mock-backend",
		Short: "Run a local development backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			m := c.cfg.Mock
			if cmd.Flags().Changed("port") {
				m.Port = port
			}
			srv := mockbackend.New(mockbackend.Config{
				Port:          m.Port,
				AdminUsername: m.AdminUsername,
				AdminPassword: m.AdminPassword,
				JWTSecret:     m.JWTSecret,
				TokenTTL:      m.TokenTTL,
				ChunkDelay:    chunkDelay,
				StepDelay:     stepDelay,
			}, c.logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.Start(ctx)
		},
	}
	cmd.Flags().IntVar(&port, "port", 5000, "listen port (overrides mock.port)")
	cmd.Flags().DurationVar(&chunkDelay, "chunk-delay", 40*time.Millisecond, "delay between chat chunks")
	cmd.Flags().DurationVar(&stepDelay, "step-delay", 600*time.Millisecond, "delay between document processing steps")
	return cmd
}
