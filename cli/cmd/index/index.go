package index

import (
	"context"
	"fmt"

	"github.com/compozy/woodsage/cli/cmd"
	"github.com/compozy/woodsage/cli/helpers"
	"github.com/compozy/woodsage/cli/tui/styles"
	"github.com/compozy/woodsage/engine/knowledge/ingest"
	"github.com/compozy/woodsage/engine/knowledge/vectordb"
	"github.com/spf13/cobra"
)

func NewIndexCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "index",
		Short: "Inspect and prune the vector index",
	}
	command.AddCommand(newStatsCommand(), newFetchCommand(), newDeleteCommand())
	return command
}

func newStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show the index provider, dimension and record count",
		Args:  cobra.NoArgs,
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			return cmd.ExecuteCommand(cobraCmd, cmd.ExecutorOptions{Runtime: cmd.RuntimeOffline}, cmd.ModeHandlers{
				JSON: func(ctx context.Context, _ *cobra.Command, e *cmd.CommandExecutor, _ []string) error {
					stats, err := e.Runtime().Index.Stats(ctx)
					if err != nil {
						return err
					}
					return e.WriteJSON(stats)
				},
				TUI: func(ctx context.Context, _ *cobra.Command, e *cmd.CommandExecutor, _ []string) error {
					stats, err := e.Runtime().Index.Stats(ctx)
					if err != nil {
						return err
					}
					e.Println(styles.RenderStats(stats))
					return nil
				},
			}, args)
		},
	}
}

// FetchedRecord is a stored record without its embedding.
type FetchedRecord struct {
	ID        string         `json:"id"`
	Text      string         `json:"text"`
	Dimension int            `json:"dimension"`
	Metadata  map[string]any `json:"metadata"`
}

func newFetchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch <id>",
		Short: "Show one stored record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			fetch := func(ctx context.Context, e *cmd.CommandExecutor, id string) (*FetchedRecord, error) {
				rec, err := e.Runtime().Index.Fetch(ctx, id)
				if err != nil {
					return nil, err
				}
				if rec == nil {
					return nil, helpers.NewCliError("NOT_FOUND", "Record not found", id)
				}
				return &FetchedRecord{ID: rec.ID, Text: rec.Text, Dimension: len(rec.Embedding), Metadata: rec.Metadata}, nil
			}
			return cmd.ExecuteCommand(cobraCmd, cmd.ExecutorOptions{Runtime: cmd.RuntimeOffline}, cmd.ModeHandlers{
				JSON: func(ctx context.Context, _ *cobra.Command, e *cmd.CommandExecutor, args []string) error {
					rec, err := fetch(ctx, e, args[0])
					if err != nil {
						return err
					}
					return e.WriteJSON(rec)
				},
				TUI: func(ctx context.Context, _ *cobra.Command, e *cmd.CommandExecutor, args []string) error {
					rec, err := fetch(ctx, e, args[0])
					if err != nil {
						return err
					}
					title, _ := rec.Metadata[ingest.MetaTitle].(string)
					e.Println(styles.TitleStyle.Render(rec.ID) + styles.MutedStyle.Render("  "+title))
					e.Println(styles.BoxStyle.Render(rec.Text))
					return nil
				},
			}, args)
		},
	}
}

type deleteResult struct {
	Filter vectordb.Filter `json:"filter"`
	Before int64           `json:"before"`
	After  int64           `json:"after"`
}

func newDeleteCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "delete",
		Short: "Delete records by id or metadata",
		Example: `  woodsage index delete --id 3f2a...
  woodsage index delete --title "Cutting Dovetails"`,
		Args: cobra.NoArgs,
	}
	command.Flags().StringSlice("id", nil, "Record ids to delete")
	command.Flags().String("title", "", "Delete every chunk of the document with this title")
	command.Flags().String("source", "", "Delete every chunk loaded from this source")
	command.RunE = func(cobraCmd *cobra.Command, args []string) error {
		filter, err := filterFromFlags(cobraCmd)
		if err != nil {
			return err
		}
		remove := func(ctx context.Context, e *cmd.CommandExecutor) (*deleteResult, error) {
			before, err := e.Runtime().Index.Stats(ctx)
			if err != nil {
				return nil, err
			}
			if err := e.Runtime().Index.Delete(ctx, filter); err != nil {
				return nil, err
			}
			after, err := e.Runtime().Index.Stats(ctx)
			if err != nil {
				return nil, err
			}
			return &deleteResult{Filter: filter, Before: before.TotalCount, After: after.TotalCount}, nil
		}
		return cmd.ExecuteCommand(cobraCmd, cmd.ExecutorOptions{Runtime: cmd.RuntimeOffline}, cmd.ModeHandlers{
			JSON: func(ctx context.Context, _ *cobra.Command, e *cmd.CommandExecutor, _ []string) error {
				res, err := remove(ctx, e)
				if err != nil {
					return err
				}
				return e.WriteJSON(res)
			},
			TUI: func(ctx context.Context, _ *cobra.Command, e *cmd.CommandExecutor, _ []string) error {
				res, err := remove(ctx, e)
				if err != nil {
					return err
				}
				n := int(res.Before - res.After)
				e.Println(fmt.Sprintf("Deleted %d %s", n, helpers.Pluralize(n, "record", "records")))
				return nil
			},
		}, args)
	}
	return command
}

func filterFromFlags(cobraCmd *cobra.Command) (vectordb.Filter, error) {
	var filter vectordb.Filter
	ids, err := cobraCmd.Flags().GetStringSlice("id")
	if err != nil {
		return filter, err
	}
	filter.IDs = ids
	meta := map[string]string{}
	for flag, key := range map[string]string{"title": ingest.MetaTitle, "source": ingest.MetaSource} {
		value, err := cobraCmd.Flags().GetString(flag)
		if err != nil {
			return filter, err
		}
		if value != "" {
			meta[key] = value
		}
	}
	if len(meta) > 0 {
		filter.Metadata = meta
	}
	if len(filter.IDs) == 0 && len(filter.Metadata) == 0 {
		return filter, helpers.NewCliError("MISSING_FLAG", "Pass --id, --title or --source",
			"refusing to delete the whole index")
	}
	return filter, nil
}
