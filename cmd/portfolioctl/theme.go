package main

import (
	"fmt"
	"maps"

	"github.com/spf13/cobra"

	"github.com/tjfontaine/portfolio-pulse/internal/localstate"
)

func themeCMD(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "theme",
		Short: "Show or change the persisted site theme",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := c.client()
			if err != nil {
				return err
			}
			t, err := p.Theme(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), t)
		},
	}

	css := &cobra.Command{
		Use:   "css",
		Short: "Print the theme as CSS custom properties",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := c.client()
			if err != nil {
				return err
			}
			t, err := p.Theme(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), t.CSS())
			return nil
		},
	}

	var name string
	var colors []string
	var reset bool
	set := &cobra.Command{
		Use:   "set",
		Short: "Change the theme name or colors",
		RunE: func(cmd *cobra.Command, args []string) error {
			pairs, err := parsePairs(colors)
			if err != nil {
				return err
			}
			p, err := c.client()
			if err != nil {
				return err
			}

			t := localstate.DefaultTheme
			if !reset {
				if t, err = p.Theme(cmd.Context()); err != nil {
					return err
				}
			}
			t.Colors = maps.Clone(t.Colors)
			if t.Colors == nil {
				t.Colors = make(map[string]string)
			}
			maps.Copy(t.Colors, pairs)
			if name != "" {
				t.Name = name
			}

			if err := p.SetTheme(cmd.Context(), t); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), t)
		},
	}
	set.Flags().StringVar(&name, "name", "", "theme name")
	set.Flags().StringArrayVar(&colors, "color", nil, "color as name=value (repeatable)")
	set.Flags().BoolVar(&reset, "reset", false, "start from the default theme")

	cmd.AddCommand(css, set)
	return cmd
}
