package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tjfontaine/portfolio-pulse/internal/admin"
	"github.com/tjfontaine/portfolio-pulse/internal/apierr"
	"github.com/tjfontaine/portfolio-pulse/internal/processlog"
)

func adminCMD(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Portfolio admin API",
	}
	cmd.AddCommand(
		loginCMD(c),
		logoutCMD(c),
		meCMD(c),
		statsCMD(c),
		interactionsCMD(c),
		conversationsCMD(c),
		docsCMD(c),
		prefsCMD(c),
	)
	return cmd
}

// adminRun adapts fn to a cobra RunE with the admin client, turning an
// expired session into a hint to log in again.
func adminRun(c *cli, fn func(cmd *cobra.Command, args []string, a *admin.Client) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		p, err := c.client()
		if err != nil {
			return err
		}
		err = fn(cmd, args, p.Admin())
		if errors.Is(err, apierr.ErrSessionExpired) || errors.Is(err, apierr.ErrUnauthorized) {
			return fmt.Errorf("%w; run `portfolioctl admin login`", err)
		}
		return err
	}
}

func loginCMD(c *cli) *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and remember the session",
		RunE: adminRun(c, func(cmd *cobra.Command, args []string, a *admin.Client) error {
			if password == "" {
				password = os.Getenv("PORTFOLIO_ADMIN_PASSWORD")
			}
			if password == "" {
				return errors.New("password required (--password or PORTFOLIO_ADMIN_PASSWORD)")
			}
			res, err := a.Login(cmd.Context(), username, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s\n", res.Admin.Username)
			return nil
		}),
	}
	cmd.Flags().StringVarP(&username, "username", "u", "admin", "admin username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "admin password")
	return cmd
}

func logoutCMD(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and forget it locally",
		RunE: adminRun(c, func(cmd *cobra.Command, args []string, a *admin.Client) error {
			if err := a.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "logged out")
			return nil
		}),
	}
}

func meCMD(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Show the logged in admin",
		RunE: adminRun(c, func(cmd *cobra.Command, args []string, a *admin.Client) error {
			me, err := a.Me(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), me)
		}),
	}
}

func statsCMD(c *cli) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show dashboard statistics",
		RunE: adminRun(c, func(cmd *cobra.Command, args []string, a *admin.Client) error {
			stats, err := a.DashboardStats(cmd.Context(), days)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), stats)
		}),
	}
	cmd.Flags().IntVar(&days, "days", 7, "trailing window in days")
	return cmd
}

func interactionsCMD(c *cli) *cobra.Command {
	var q admin.InteractionQuery
	cmd := &cobra.Command{
		Use:   "interactions",
		Short: "List recorded interactions",
		RunE: adminRun(c, func(cmd *cobra.Command, args []string, a *admin.Client) error {
			page, err := a.Interactions(cmd.Context(), q)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), page)
		}),
	}
	f := cmd.Flags()
	f.IntVar(&q.PageNum, "page-num", 1, "result page")
	f.IntVar(&q.Limit, "limit", 20, "results per page")
	f.StringVar(&q.SortBy, "sort-by", "timestamp", "sort field")
	f.StringVar(&q.SortOrder, "sort-order", "desc", "asc or desc")
	f.StringVar(&q.Type, "type", "", "filter by interaction type")
	f.StringVar(&q.Page, "page", "", "filter by page path")
	f.StringVar(&q.SessionID, "session", "", "filter by session id")
	f.StringVar(&q.StartDate, "since", "", "start date (YYYY-MM-DD or RFC 3339)")
	f.StringVar(&q.EndDate, "until", "", "end date (YYYY-MM-DD or RFC 3339)")
	return cmd
}

func conversationsCMD(c *cli) *cobra.Command {
	var q admin.ConversationQuery
	cmd := &cobra.Command{
		Use:   "conversations",
		Short: "List logged chat conversations",
		RunE: adminRun(c, func(cmd *cobra.Command, args []string, a *admin.Client) error {
			page, err := a.ChatConversations(cmd.Context(), q)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), page)
		}),
	}
	f := cmd.Flags()
	f.IntVar(&q.Page, "page", 1, "result page")
	f.IntVar(&q.Limit, "limit", 20, "results per page")
	f.StringVar(&q.SessionID, "session", "", "filter by session id")
	f.StringVar(&q.Search, "search", "", "filter by message text")
	f.StringVar(&q.StartDate, "since", "", "start date")
	f.StringVar(&q.EndDate, "until", "", "end date")
	return cmd
}

func docsCMD(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docs",
		Short: "Manage knowledge-base documents",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List documents",
		RunE: adminRun(c, func(cmd *cobra.Command, args []string, a *admin.Client) error {
			docs, err := a.ListDocuments(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), docs)
		}),
	}

	get := &cobra.Command{
		Use:   "get <id>",
		Short: "Show a document",
		Args:  cobra.ExactArgs(1),
		RunE: adminRun(c, func(cmd *cobra.Command, args []string, a *admin.Client) error {
			doc, err := a.GetDocument(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), doc)
		}),
	}

	var in admin.DocumentInput
	var contentFile string
	readInput := func() error {
		if contentFile == "" {
			return nil
		}
		data, err := os.ReadFile(contentFile)
		if err != nil {
			return err
		}
		in.Content = string(data)
		return nil
	}

	create := &cobra.Command{
		Use:   "create",
		Short: "Create a document and follow its processing log",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := readInput(); err != nil {
				return err
			}
			p, err := c.client()
			if err != nil {
				return err
			}
			doc, v, err := p.UploadDocument(cmd.Context(), in, processlog.WithOnEntry(printEntry(cmd.ErrOrStderr())))
			if err != nil {
				return err
			}
			v.Wait()
			return printJSON(cmd.OutOrStdout(), doc)
		},
	}

	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a document and follow its processing log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := readInput(); err != nil {
				return err
			}
			p, err := c.client()
			if err != nil {
				return err
			}
			doc, v, err := p.UpdateDocument(cmd.Context(), args[0], in, processlog.WithOnEntry(printEntry(cmd.ErrOrStderr())))
			if err != nil {
				return err
			}
			v.Wait()
			return printJSON(cmd.OutOrStdout(), doc)
		},
	}

	for _, sub := range []*cobra.Command{create, update} {
		sub.Flags().StringVar(&in.Title, "title", "", "document title")
		sub.Flags().StringVar(&in.Description, "description", "", "document description")
		sub.Flags().StringVar(&contentFile, "file", "", "read content from file")
	}

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a document",
		Args:  cobra.ExactArgs(1),
		RunE: adminRun(c, func(cmd *cobra.Command, args []string, a *admin.Client) error {
			if err := a.DeleteDocument(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		}),
	}

	cmd.AddCommand(list, get, create, update, del)
	return cmd
}

func prefsCMD(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Notification preferences",
		RunE: adminRun(c, func(cmd *cobra.Command, args []string, a *admin.Client) error {
			prefs, err := a.NotificationPreferences(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), prefs)
		}),
	}

	set := &cobra.Command{
		Use:   "set <type> <true|false>",
		Short: "Enable or disable a notification type",
		Args:  cobra.ExactArgs(2),
		RunE: adminRun(c, func(cmd *cobra.Command, args []string, a *admin.Client) error {
			enabled, err := strconv.ParseBool(args[1])
			if err != nil {
				return fmt.Errorf("invalid enabled value %q", args[1])
			}
			saved, err := a.UpdateNotificationPreference(cmd.Context(), admin.NotificationPreference{Type: args[0], Enabled: enabled})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), saved)
		}),
	}
	cmd.AddCommand(set)
	return cmd
}
