package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/recall/pkg/model"
	"github.com/m-mizutani/recall/pkg/usecase/memory"
	"github.com/urfave/cli/v3"
)

func listCommand() *cli.Command {
	var (
		cfg    config
		limit  int64
		cursor string
	)

	flags := []cli.Flag{
		&cli.IntFlag{
			Name:        "limit",
			Aliases:     []string{"l"},
			Usage:       "Page size",
			Value:       20,
			Destination: &limit,
		},
		&cli.StringFlag{
			Name:        "cursor",
			Usage:       "Cursor from a previous page",
			Destination: &cursor,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, embedderFlags(&cfg)...)

	return &cli.Command{
		Name:  "list",
		Usage: "List memories from newest to oldest",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg.setupLogger()

			uc, err := cfg.newUseCase(ctx)
			if err != nil {
				return err
			}

			out, err := uc.List(ctx, memory.ListInput{
				Limit:  int(limit),
				Cursor: cursor,
			})
			if err != nil {
				return goerr.Wrap(err, "failed to list memories")
			}

			for _, mem := range out.Memories {
				marker := ""
				if mem.PendingEmbed {
					marker = "\t(pending embed)"
				}
				fmt.Fprintf(c.Root().Writer, "%s\t%s\t%s%s\n",
					mem.CreatedAt.Local().Format(time.DateTime), mem.ID, mem.Text, marker)
			}
			if out.NextCursor != "" {
				fmt.Fprintf(c.Root().Writer, "next: --cursor %s\n", out.NextCursor)
			}
			return nil
		},
	}
}

func deleteCommand() *cli.Command {
	var cfg config

	flags := globalFlags(&cfg)
	flags = append(flags, embedderFlags(&cfg)...)

	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete a memory by ID",
		ArgsUsage: "<memory-id>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg.setupLogger()

			id := c.Args().First()
			if id == "" {
				return goerr.New("memory-id argument is required")
			}

			uc, err := cfg.newUseCase(ctx)
			if err != nil {
				return err
			}

			if err := uc.Delete(ctx, model.MemoryID(id)); err != nil {
				return goerr.Wrap(err, "failed to delete memory")
			}

			fmt.Fprintf(c.Root().Writer, "deleted %s\n", id)
			return nil
		},
	}
}
