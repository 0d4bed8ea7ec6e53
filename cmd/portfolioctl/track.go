package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tjfontaine/portfolio-pulse/internal/tracker"
)

func trackCMD(c *cli) *cobra.Command {
	var element string
	var meta []string

	cmd := &cobra.Command{
		Use:   "track <kind> <page>",
		Short: "Record a visitor interaction",
		Long:  "Records an interaction such as page_visit, button_click, project_view or social_media_click for page.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pairs, err := parsePairs(meta)
			if err != nil {
				return err
			}
			metadata := make(map[string]any, len(pairs))
			for k, v := range pairs {
				metadata[k] = v
			}

			p, err := c.client()
			if err != nil {
				return err
			}
			kind := tracker.EventKind(args[0])
			endpoint, _ := tracker.EndpointFor(kind)
			res, err := p.Tracker().Track(cmd.Context(), kind, args[1], element, metadata)
			if err != nil {
				return fmt.Errorf("track %s: %w", kind, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "recorded %s via /interactions/%s (session %s)\n", kind, endpoint, p.Tracker().SessionID())
			if len(res) > 0 {
				return printJSON(cmd.OutOrStdout(), res)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&element, "element", "", "element that was interacted with")
	cmd.Flags().StringArrayVar(&meta, "meta", nil, "metadata as key=value (repeatable)")
	return cmd
}
