package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tjfontaine/portfolio-pulse/internal/processlog"
)

func printEntry(w io.Writer) func(processlog.Entry) {
	return func(e processlog.Entry) {
		fmt.Fprintf(w, "%s [%s] %s\n", e.Timestamp.Local().Format(time.TimeOnly), e.Type, e.Message)
	}
}

func logsCMD(c *cli) *cobra.Command {
	var skipPreflight bool

	cmd := &cobra.Command{
		Use:   "logs <document-id>",
		Short: "Follow a document's processing log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := c.client()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			v := p.NewLogViewer(processlog.WithOnEntry(printEntry(cmd.OutOrStdout())))
			if !skipPreflight && !v.Preflight(ctx, args[0]) {
				return fmt.Errorf("log stream for %s is not available", args[0])
			}
			v.Connect(ctx, args[0])
			v.Wait()
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipPreflight, "no-preflight", false, "connect without checking the stream first")
	return cmd
}
