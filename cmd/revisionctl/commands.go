package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/gogotex/gogotex/backend/autosave/internal/revision/service"
)

// revisionRow is one line of the ls output.
type revisionRow struct {
	Key          string    `json:"key" yaml:"key"`
	ID           string    `json:"id" yaml:"id"`
	Type         string    `json:"type" yaml:"type"`
	Title        string    `json:"title" yaml:"title"`
	SnapshotTime time.Time `json:"snapshotTime" yaml:"snapshotTime"`
}

func newTable(header table.Row) table.Writer {
	tw := table.NewWriter()
	tw.Style().Options.DrawBorder = false
	tw.Style().Options.SeparateColumns = false
	tw.Style().Options.SeparateFooter = false
	tw.Style().Options.SeparateHeader = false
	tw.Style().Options.SeparateRows = false
	tw.AppendHeader(header)
	return tw
}

// printStructured handles the json and yaml formats; it reports false for the
// table format.
func printStructured(cmd *cobra.Command, output string, v interface{}) (bool, error) {
	switch output {
	case "":
		return false, nil
	case "json":
		out, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return true, fmt.Errorf("marshal JSON: %w", err)
		}
		cmd.Println(string(out))
	case "yaml":
		out, err := yaml.Marshal(v)
		if err != nil {
			return true, fmt.Errorf("marshal YAML: %w", err)
		}
		cmd.Print(string(out))
	default:
		return true, fmt.Errorf("unknown output format: %s", output)
	}
	return true, nil
}

func newListCommand(open opener, output func() string) *cobra.Command {
	var prefix string
	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List stored revisions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, open, func(ctx context.Context, svc *service.Service) error {
				all, err := svc.FindAll(ctx, prefix)
				if err != nil {
					return err
				}
				rows := make([]revisionRow, 0, len(all))
				for key, rev := range all {
					rows = append(rows, revisionRow{
						Key:          key,
						ID:           rev.ID,
						Type:         string(rev.Type),
						Title:        rev.Title,
						SnapshotTime: rev.SnapshotAt().UTC(),
					})
				}
				sort.Slice(rows, func(i, j int) bool { return rows[i].Key < rows[j].Key })

				if done, err := printStructured(cmd, output(), rows); done || err != nil {
					return err
				}
				tw := newTable(table.Row{"KEY", "ID", "TYPE", "TITLE", "SNAPSHOT"})
				for _, r := range rows {
					tw.AppendRow(table.Row{r.Key, r.ID, r.Type, r.Title, r.SnapshotTime.Format(time.RFC3339)})
				}
				cmd.Printf("%s\n", tw.Render())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "Only list keys starting with this prefix")
	return cmd
}

func newSummariesCommand(open opener, output func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "summaries",
		Short: "List revisions grouped by title, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, open, func(ctx context.Context, svc *service.Service) error {
				groups, err := svc.ListSummaries(ctx)
				if err != nil {
					return err
				}
				if done, err := printStructured(cmd, output(), groups); done || err != nil {
					return err
				}
				tw := newTable(table.Row{"TITLE", "KEY", "TYPE", "SNAPSHOT"})
				for _, g := range groups {
					for i, s := range g.Revisions {
						title := ""
						if i == 0 {
							title = g.Title
						}
						tw.AppendRow(table.Row{title, s.Key, s.Type, s.SnapshotTime.Format(time.RFC3339)})
					}
				}
				cmd.Printf("%s\n", tw.Render())
				return nil
			})
		},
	}
}

func newShowCommand(open opener, output func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "show [key]",
		Short: "Print one revision",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, open, func(ctx context.Context, svc *service.Service) error {
				rev, err := svc.Find(ctx, args[0])
				if errors.Is(err, service.ErrNotFound) {
					return fmt.Errorf("revision %s not found", args[0])
				}
				if err != nil {
					return err
				}
				format := output()
				if format == "" {
					format = "json"
				}
				_, err = printStructured(cmd, format, rev)
				return err
			})
		},
	}
}

func newRemoveCommand(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "rm [key...]",
		Short: "Remove revisions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, open, func(ctx context.Context, svc *service.Service) error {
				for _, key := range args {
					if err := svc.Remove(ctx, key); err != nil {
						return err
					}
					cmd.Printf("removed %s\n", key)
				}
				return nil
			})
		},
	}
}

func newClearCommand(open opener) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every revision",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to clear without --yes")
			}
			return withService(cmd, open, func(ctx context.Context, svc *service.Service) error {
				keys, err := svc.Keys(ctx, "")
				if err != nil {
					return err
				}
				if err := svc.Clear(ctx); err != nil {
					return err
				}
				cmd.Printf("cleared %d revisions\n", len(keys))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm removing every revision")
	return cmd
}

func newReconcileCommand(open opener, output func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Repair the revision index after an interrupted write",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, open, func(ctx context.Context, svc *service.Service) error {
				rep, err := svc.Reconcile(ctx)
				if err != nil {
					return err
				}
				if done, err := printStructured(cmd, output(), rep); done || err != nil {
					return err
				}
				tw := newTable(table.Row{"PROBLEM", "KEY"})
				appendKeys := func(kind string, keys []string) {
					for _, k := range keys {
						tw.AppendRow(table.Row{kind, k})
					}
				}
				appendKeys("dangling", rep.Dangling)
				appendKeys("duplicate", rep.Duplicates)
				appendKeys("orphan", rep.Orphans)
				cmd.Printf("%s\n", tw.Render())
				return nil
			})
		},
	}
}
