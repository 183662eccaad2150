package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/recall/pkg/usecase/memory"
	"github.com/urfave/cli/v3"
)

func addCommand() *cli.Command {
	var (
		cfg        config
		tags       string
		source     string
		dedupeKey  string
		externalID string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "tags",
			Aliases:     []string{"t"},
			Usage:       "Comma-separated tags",
			Destination: &tags,
		},
		&cli.StringFlag{
			Name:        "source",
			Aliases:     []string{"s"},
			Usage:       "Origin label for the memory",
			Value:       "cli",
			Destination: &source,
		},
		&cli.StringFlag{
			Name:        "dedupe-key",
			Aliases:     []string{"k"},
			Usage:       "Dedupe key; a second add with the same key updates the first memory",
			Destination: &dedupeKey,
		},
		&cli.StringFlag{
			Name:        "external-id",
			Usage:       "Caller-side identifier",
			Destination: &externalID,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, embedderFlags(&cfg)...)

	return &cli.Command{
		Name:      "add",
		Usage:     "Store a memory",
		ArgsUsage: "<text>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg.setupLogger()

			text := strings.Join(c.Args().Slice(), " ")
			if text == "" {
				return goerr.New("text argument is required")
			}

			uc, err := cfg.newUseCase(ctx)
			if err != nil {
				return err
			}

			var tagList []string
			if tags != "" {
				for _, tag := range strings.Split(tags, ",") {
					if trimmed := strings.TrimSpace(tag); trimmed != "" {
						tagList = append(tagList, trimmed)
					}
				}
			}

			out, err := uc.Store(ctx, memory.StoreInput{
				Text:       text,
				Tags:       tagList,
				Source:     source,
				DedupeKey:  dedupeKey,
				ExternalID: externalID,
			})
			if err != nil {
				return goerr.Wrap(err, "failed to store memory")
			}

			fmt.Fprintf(c.Root().Writer, "%s\t%s\n", out.Strategy, out.Memory.ID)
			if out.Memory.PendingEmbed {
				fmt.Fprintln(c.Root().Writer, "stored without embedding; run `recall reembed` once the provider is back")
			}
			return nil
		},
	}
}
