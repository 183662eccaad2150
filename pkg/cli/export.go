package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/recall/pkg/usecase/memory"
	"github.com/urfave/cli/v3"
)

func exportCommand() *cli.Command {
	var (
		cfg    config
		output string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "output",
			Aliases:     []string{"o"},
			Usage:       "Snapshot destination: a local path or gs://bucket/key",
			Value:       "recall-export.jsonl",
			Destination: &output,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, embedderFlags(&cfg)...)

	return &cli.Command{
		Name:  "export",
		Usage: "Write all memories to a snapshot, vectors included",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg.setupLogger()

			storage, key, err := newStorage(ctx, output)
			if err != nil {
				return err
			}

			uc, err := cfg.newUseCase(ctx, memory.WithStorage(storage))
			if err != nil {
				return err
			}

			count, err := uc.Export(ctx, key)
			if err != nil {
				return goerr.Wrap(err, "failed to export memories")
			}

			fmt.Fprintf(c.Root().Writer, "exported %d memories to %s\n", count, output)
			return nil
		},
	}
}

func importCommand() *cli.Command {
	var (
		cfg   config
		input string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "input",
			Aliases:     []string{"i"},
			Usage:       "Snapshot source: a local path or gs://bucket/key",
			Required:    true,
			Destination: &input,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, embedderFlags(&cfg)...)

	return &cli.Command{
		Name:  "import",
		Usage: "Restore memories from a snapshot without re-embedding",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg.setupLogger()

			storage, key, err := newStorage(ctx, input)
			if err != nil {
				return err
			}

			uc, err := cfg.newUseCase(ctx, memory.WithStorage(storage))
			if err != nil {
				return err
			}

			count, err := uc.Import(ctx, key)
			if err != nil {
				return goerr.Wrap(err, "failed to import memories")
			}

			fmt.Fprintf(c.Root().Writer, "imported %d memories from %s\n", count, input)
			return nil
		},
	}
}
