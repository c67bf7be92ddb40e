package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/harrisonrobin/planit/pkg/auth"
	"github.com/harrisonrobin/planit/pkg/colors"
	"github.com/harrisonrobin/planit/pkg/config"
	"github.com/harrisonrobin/planit/pkg/dates"
	"github.com/harrisonrobin/planit/pkg/google"
	"github.com/harrisonrobin/planit/pkg/index"
	"github.com/harrisonrobin/planit/pkg/model"
	"github.com/harrisonrobin/planit/pkg/notion"
)

func main() {
	log.SetFlags(0)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

// app carries what every subcommand needs, built lazily so commands like
// 'token set' work without a database configured.
type app struct {
	cfg    *config.Config
	tokens *auth.KeyringStore
}

func (a *app) notionClient() *notion.Client {
	provider := auth.Chain{auth.StaticToken(a.cfg.Token), a.tokens}
	return notion.NewClient(a.cfg.NotionURL, a.cfg.NotionVersion, provider)
}

func newRootCmd() *cobra.Command {
	a := &app{tokens: auth.NewKeyringStore()}

	root := &cobra.Command{
		Use:           "planit",
		Short:         "Show and tick off due Notion tasks",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
	}

	root.AddCommand(
		newTasksCmd(a),
		newCompleteCmd(a),
		newDatabasesCmd(a),
		newNormalizeCmd(),
		newTokenCmd(a),
		newConfigCmd(a),
		newSyncCmd(a),
		newAuthCmd(),
	)
	return root
}

func newTasksCmd(a *app) *cobra.Command {
	var databaseID, on string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List open tasks due on or before a date (default today)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if databaseID == "" {
				databaseID = a.cfg.DatabaseID
			}
			day, err := dates.Resolve(on, time.Now())
			if err != nil {
				return err
			}
			tasks, err := a.notionClient().QueryDueTasks(cmd.Context(), databaseID, day)
			if err != nil {
				return err
			}
			return printTasks(cmd.OutOrStdout(), tasks, asJSON)
		},
	}
	cmd.Flags().StringVar(&databaseID, "database", "", "Notion database ID (overrides config)")
	cmd.Flags().StringVar(&on, "on", "", `Due cutoff, e.g. "2024-05-01" or "next friday"`)
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print tasks as JSON")
	return cmd
}

func newCompleteCmd(a *app) *cobra.Command {
	var undo bool

	cmd := &cobra.Command{
		Use:   "complete PAGE_ID",
		Short: "Tick a task's checkbox",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.notionClient().SetCompleted(cmd.Context(), args[0], !undo); err != nil {
				return err
			}
			state := model.StatusDone
			if undo {
				state = model.StatusToDo
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", args[0], state)
			return nil
		},
	}
	cmd.Flags().BoolVar(&undo, "undo", false, "Clear the checkbox instead")
	return cmd
}

func newDatabasesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "databases",
		Short: "List the databases shared with the integration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dbs, err := a.notionClient().SearchDatabases(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, db := range dbs {
				fmt.Fprintf(w, "%s\t%s\n", db.ID, db.Title)
			}
			return w.Flush()
		},
	}
}

func newNormalizeCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "normalize [FILE]",
		Short: "Normalize a saved database query response (stdin when no file)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}
			pages, err := notion.ParsePages(r)
			if err != nil {
				return err
			}
			return printTasks(cmd.OutOrStdout(), notion.AssembleAll(pages), asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print tasks as JSON")
	return cmd
}

func newTokenCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage the Notion integration token in the OS keyring",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "set TOKEN",
			Short: "Store the token",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := a.tokens.Save(args[0]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Token saved.")
				return nil
			},
		},
		&cobra.Command{
			Use:   "show",
			Short: "Print the stored token",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				tok, err := a.tokens.Token()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), tok)
				return nil
			},
		},
		&cobra.Command{
			Use:   "delete",
			Short: "Remove the stored token",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := a.tokens.Delete(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Token deleted.")
				return nil
			},
		},
	)
	return cmd
}

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Change saved settings",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "set-database ID",
			Short: "Set the default Notion database",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				a.cfg.SetDatabaseID(args[0])
				if err := a.cfg.Save(); err != nil {
					return fmt.Errorf("error saving config: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Default database set to: %s\n", args[0])
				return nil
			},
		},
		&cobra.Command{
			Use:   "set-calendar NAME",
			Short: "Set the Google Calendar tasks are mirrored to",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				a.cfg.SetCalendar(args[0])
				if err := a.cfg.Save(); err != nil {
					return fmt.Errorf("error saving config: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Default calendar set to: %s\n", args[0])
				return nil
			},
		},
	)
	return cmd
}

func newSyncCmd(a *app) *cobra.Command {
	var calendarName, on string
	var prune bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Mirror due tasks into Google Calendar",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if calendarName == "" {
				calendarName = a.cfg.Calendar
			}
			today := time.Now().Format(dates.Layout)
			day, err := dates.Resolve(on, time.Now())
			if err != nil {
				return err
			}

			tasks, err := a.notionClient().QueryDueTasks(ctx, a.cfg.DatabaseID, day)
			if err != nil {
				return err
			}

			dir, err := config.Dir()
			if err != nil {
				return err
			}
			evtIndex, err := index.Open(dir)
			if err != nil {
				log.Printf("Warning: failed to open event index: %v", err)
			}
			colorCache, err := colors.Open(dir)
			if err != nil {
				log.Printf("Warning: failed to open color cache: %v", err)
			}

			httpClient, err := (&auth.GoogleOAuth{Dir: dir}).Client(ctx, google.Scopes)
			if err != nil {
				return err
			}
			srv, err := google.NewService(ctx, httpClient)
			if err != nil {
				return err
			}
			calendarID, err := google.FindCalendar(ctx, srv, calendarName)
			if err != nil {
				return err
			}

			cal := google.NewCalendarClient(srv, calendarID, evtIndex, colorCache)
			var failed int
			for _, res := range cal.SyncTasks(ctx, tasks, today) {
				if res.Err != nil {
					failed++
					log.Printf("Error syncing task %s: %v", res.TaskID, res.Err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-9s %s\n", res.Action, res.TaskID)
			}
			if prune {
				n, err := cal.Prune(ctx, tasks)
				if err != nil {
					log.Printf("Warning: prune incomplete: %v", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "pruned %d events\n", n)
			}

			if evtIndex != nil {
				if err := evtIndex.Save(); err != nil {
					log.Printf("Warning: failed to save event index: %v", err)
				}
			}
			if colorCache != nil {
				if err := colorCache.Save(); err != nil {
					log.Printf("Warning: failed to save color cache: %v", err)
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d tasks failed to sync", failed, len(tasks))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&calendarName, "calendar", "", "Google Calendar name (overrides config)")
	cmd.Flags().StringVar(&on, "on", "", "Due cutoff for the tasks to mirror")
	cmd.Flags().BoolVar(&prune, "prune", false, "Delete events for tasks no longer due")
	return cmd
}

func newAuthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Authorize Google Calendar access",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := config.Dir()
			if err != nil {
				return fmt.Errorf("could not find path to configuration directory: %w", err)
			}
			g := &auth.GoogleOAuth{Dir: dir}
			if err := g.Reset(); err != nil {
				return err
			}
			if _, err := g.Client(cmd.Context(), google.Scopes); err != nil {
				return fmt.Errorf("authentication failed: %w", err)
			}
			log.Printf("Authentication successful! Token saved to %s", g.TokenPath())
			return nil
		},
	}
}

func printTasks(w io.Writer, tasks []model.Task, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if tasks == nil {
			tasks = []model.Task{}
		}
		return enc.Encode(tasks)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tDO DATE\tTITLE\tOBJECTIVE\tDEADLINE")
	for _, t := range tasks {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			t.ID, t.Status, deref(t.DoDate), t.Title, deref(t.ObjectiveName), deref(t.ObjectiveDeadline))
	}
	return tw.Flush()
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}
