package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/compozy/woodsage/cli/cmd"
	"github.com/compozy/woodsage/cli/helpers"
	"github.com/compozy/woodsage/cli/tui/styles"
	"github.com/compozy/woodsage/engine/catalog"
	"github.com/spf13/cobra"
)

const flagSyncIndex = "sync-index"

// NewCatalogCommand groups the product catalog subcommands.
func NewCatalogCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the product catalog",
		Long: `Manage the products that answers link to. Pass --sync-index to embed
changes into the vector index as they are made.`,
	}
	command.PersistentFlags().Bool(flagSyncIndex, false, "Embed product changes into the vector index")
	command.AddCommand(
		newListCommand(),
		newGetCommand(),
		newAddCommand(),
		newUpdateCommand(),
		newDeleteCommand(),
		newSeedCommand(),
		newMatchCommand(),
		newReindexCommand(),
	)
	return command
}

func requirement(cobraCmd *cobra.Command) cmd.RuntimeRequirement {
	if sync, err := cobraCmd.Flags().GetBool(flagSyncIndex); err == nil && sync {
		return cmd.RuntimeModels
	}
	return cmd.RuntimeOffline
}

// run executes fn and prints its result as JSON or through render.
func run(cobraCmd *cobra.Command, args []string, fn func(context.Context, *cmd.CommandExecutor, []string) (any, error),
	render func(any) string) error {
	handler := func(tui bool) cmd.HandlerFunc {
		return func(ctx context.Context, _ *cobra.Command, executor *cmd.CommandExecutor, args []string) error {
			out, err := fn(ctx, executor, args)
			if err != nil {
				return err
			}
			if tui && render != nil {
				executor.Println(render(out))
				return nil
			}
			return executor.WriteJSON(out)
		}
	}
	return cmd.ExecuteCommand(cobraCmd, cmd.ExecutorOptions{Runtime: requirement(cobraCmd)},
		cmd.ModeHandlers{JSON: handler(false), TUI: handler(true)}, args)
}

func renderEntity(v any) string {
	e, ok := v.(*catalog.Entity)
	if !ok || e == nil {
		return ""
	}
	return styles.RenderProducts([]catalog.Entity{*e})
}

func newListCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "list",
		Short: "List products with tags and a link",
		Args:  cobra.NoArgs,
	}
	command.Flags().Bool("all", false, "Include products without tags or a link")
	command.RunE = func(cobraCmd *cobra.Command, args []string) error {
		all, err := cobraCmd.Flags().GetBool("all")
		if err != nil {
			return fmt.Errorf("failed to get all flag: %w", err)
		}
		return run(cobraCmd, args, func(ctx context.Context, e *cmd.CommandExecutor, _ []string) (any, error) {
			if all {
				return e.Runtime().Catalog.List(ctx)
			}
			return e.Runtime().Catalog.ListComplete(ctx)
		}, func(v any) string {
			entities, _ := v.([]catalog.Entity)
			return styles.RenderProducts(entities)
		})
	}
	return command
}

func newGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			return run(cobraCmd, args, func(ctx context.Context, e *cmd.CommandExecutor, args []string) (any, error) {
				id, err := helpers.ParseID(args[0])
				if err != nil {
					return nil, err
				}
				return e.Runtime().Catalog.Get(ctx, id)
			}, renderEntity)
		},
	}
}

func addEntityFlags(command *cobra.Command) {
	command.Flags().String("title", "", "Product title")
	command.Flags().String("tags", "", "Comma-separated tags")
	command.Flags().String("link", "", "Product URL")
}

func entityFromFlags(cobraCmd *cobra.Command) (*catalog.Entity, error) {
	title, err := cobraCmd.Flags().GetString("title")
	if err != nil {
		return nil, err
	}
	tags, err := cobraCmd.Flags().GetString("tags")
	if err != nil {
		return nil, err
	}
	link, err := cobraCmd.Flags().GetString("link")
	if err != nil {
		return nil, err
	}
	return &catalog.Entity{Title: title, Tags: catalog.ParseTags(tags), Link: link}, nil
}

func newAddCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "add",
		Short: "Add a product",
		Long: `Add a product. In an interactive terminal, missing fields are asked for
with a form.`,
		Example: `  woodsage catalog add --title "Festool Trigger Clamp" --tags "clamp, glue-up" --link https://example.com/clamp`,
		Args:    cobra.NoArgs,
	}
	addEntityFlags(command)
	command.Flags().Int64("id", 0, "Explicit product id (default: next free id)")
	command.RunE = func(cobraCmd *cobra.Command, args []string) error {
		entity, err := entityFromFlags(cobraCmd)
		if err != nil {
			return err
		}
		if entity.ID, err = cobraCmd.Flags().GetInt64("id"); err != nil {
			return err
		}
		return cmd.ExecuteCommand(cobraCmd, cmd.ExecutorOptions{Runtime: requirement(cobraCmd)}, cmd.ModeHandlers{
			JSON: func(ctx context.Context, _ *cobra.Command, e *cmd.CommandExecutor, _ []string) error {
				added, err := e.Runtime().Catalog.Add(ctx, entity)
				if err != nil {
					return err
				}
				return e.WriteJSON(added)
			},
			TUI: func(ctx context.Context, _ *cobra.Command, e *cmd.CommandExecutor, _ []string) error {
				if entity.Title == "" || entity.Link == "" {
					if err := runEntityForm(entity); err != nil {
						return err
					}
				}
				added, err := e.Runtime().Catalog.Add(ctx, entity)
				if err != nil {
					return err
				}
				e.Println(renderEntity(added))
				return nil
			},
		}, args)
	}
	return command
}

// runEntityForm prompts for the product fields left empty by flags.
func runEntityForm(entity *catalog.Entity) error {
	tags := entity.TagString()
	form := huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title("Title").
			Description("Product name as it appears in answers").
			Value(&entity.Title).
			Validate(func(s string) error { return helpers.ValidateRequired(s, "title") }),
		huh.NewInput().
			Title("Tags").
			Description("Comma-separated keywords used for matching").
			Value(&tags),
		huh.NewInput().
			Title("Link").
			Description("Where to buy or read about the product").
			Value(&entity.Link).
			Validate(func(s string) error { return helpers.ValidateRequired(s, "link") }),
	))
	if err := form.Run(); err != nil {
		return helpers.NewCliError("OPERATION_CANCELED", "Product form was not completed", err.Error())
	}
	entity.Tags = catalog.ParseTags(tags)
	return nil
}

func newUpdateCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "update <id>",
		Short: "Change fields of a product",
		Args:  cobra.ExactArgs(1),
	}
	addEntityFlags(command)
	command.RunE = func(cobraCmd *cobra.Command, args []string) error {
		changes, err := entityFromFlags(cobraCmd)
		if err != nil {
			return err
		}
		return run(cobraCmd, args, func(ctx context.Context, e *cmd.CommandExecutor, args []string) (any, error) {
			id, err := helpers.ParseID(args[0])
			if err != nil {
				return nil, err
			}
			current, err := e.Runtime().Catalog.Get(ctx, id)
			if err != nil {
				return nil, err
			}
			if cobraCmd.Flags().Changed("title") {
				current.Title = changes.Title
			}
			if cobraCmd.Flags().Changed("tags") {
				current.Tags = changes.Tags
			}
			if cobraCmd.Flags().Changed("link") {
				current.Link = changes.Link
			}
			return e.Runtime().Catalog.Update(ctx, current)
		}, renderEntity)
	}
	return command
}

type deleteResult struct {
	ID      int64 `json:"id"`
	Deleted bool  `json:"deleted"`
}

func newDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			return run(cobraCmd, args, func(ctx context.Context, e *cmd.CommandExecutor, args []string) (any, error) {
				id, err := helpers.ParseID(args[0])
				if err != nil {
					return nil, err
				}
				if err := e.Runtime().Catalog.Delete(ctx, id); err != nil {
					return nil, err
				}
				return deleteResult{ID: id, Deleted: true}, nil
			}, func(v any) string {
				r, _ := v.(deleteResult)
				return fmt.Sprintf("Deleted product %d", r.ID)
			})
		},
	}
}

type countResult struct {
	Products int `json:"products"`
}

func newSeedCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "seed",
		Short: "Upsert the seed products",
		Long: `Upsert the products from catalog.seed_file, or the built-in list when no
file is configured. Running it twice leaves the catalog unchanged.`,
		Args: cobra.NoArgs,
	}
	command.Flags().String("seed-file", "", "YAML seed file (overrides catalog.seed_file)")
	command.RunE = func(cobraCmd *cobra.Command, args []string) error {
		return run(cobraCmd, args, func(ctx context.Context, e *cmd.CommandExecutor, _ []string) (any, error) {
			n, err := e.Runtime().SeedCatalog(ctx)
			if err != nil {
				return nil, err
			}
			return countResult{Products: n}, nil
		}, func(v any) string {
			r, _ := v.(countResult)
			return fmt.Sprintf("Seeded %d %s", r.Products, helpers.Pluralize(r.Products, "product", "products"))
		})
	}
	return command
}

func newMatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "match <keywords...>",
		Short:   "Fuzzy-match keywords against product titles and tags",
		Example: `  woodsage catalog match "trigger clamp" "router bits"`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			return run(cobraCmd, args, func(ctx context.Context, e *cmd.CommandExecutor, args []string) (any, error) {
				keywords := make([]string, 0, len(args))
				for _, a := range args {
					if a = strings.TrimSpace(a); a != "" {
						keywords = append(keywords, a)
					}
				}
				return e.Runtime().Catalog.Match(ctx, keywords)
			}, func(v any) string {
				report, _ := v.(catalog.MatchReport)
				return styles.RenderMatches(report)
			})
		},
	}
}

func newReindexCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Embed every product into the vector index",
		Args:  cobra.NoArgs,
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			return cmd.ExecuteCommand(cobraCmd, cmd.ExecutorOptions{Runtime: cmd.RuntimeModels}, cmd.ModeHandlers{
				JSON: func(ctx context.Context, _ *cobra.Command, e *cmd.CommandExecutor, _ []string) error {
					n, err := e.Runtime().Catalog.Reindex(ctx)
					if err != nil {
						return err
					}
					return e.WriteJSON(countResult{Products: n})
				},
				TUI: func(ctx context.Context, _ *cobra.Command, e *cmd.CommandExecutor, _ []string) error {
					n, err := e.Runtime().Catalog.Reindex(ctx)
					if err != nil {
						return err
					}
					e.Println(fmt.Sprintf("Indexed %d %s", n, helpers.Pluralize(n, "product", "products")))
					return nil
				},
			}, args)
		},
	}
}
