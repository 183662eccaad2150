package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/recall/pkg/usecase/memory"
	"github.com/urfave/cli/v3"
)

func searchCommand() *cli.Command {
	var (
		cfg    config
		topK   int64
		source string
		tags   string
	)

	flags := []cli.Flag{
		&cli.IntFlag{
			Name:        "top-k",
			Aliases:     []string{"n"},
			Usage:       "Maximum number of results",
			Value:       5,
			Destination: &topK,
		},
		&cli.StringFlag{
			Name:        "source",
			Aliases:     []string{"s"},
			Usage:       "Only match memories from this source",
			Destination: &source,
		},
		&cli.StringFlag{
			Name:        "tags",
			Aliases:     []string{"t"},
			Usage:       "Comma-separated tags a memory must carry",
			Destination: &tags,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, embedderFlags(&cfg)...)

	return &cli.Command{
		Name:      "search",
		Usage:     "Find memories similar to a query",
		ArgsUsage: "<query>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg.setupLogger()

			query := strings.Join(c.Args().Slice(), " ")
			if query == "" {
				return goerr.New("query argument is required")
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

			sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond,
				spinner.WithWriter(os.Stderr), spinner.WithSuffix(" searching..."))
			sp.Start()

			results, err := uc.Search(ctx, memory.SearchInput{
				Query:  query,
				TopK:   int(topK),
				Source: source,
				Tags:   tagList,
			})
			sp.Stop()
			if err != nil {
				return goerr.Wrap(err, "failed to search memories")
			}

			if len(results) == 0 {
				fmt.Fprintln(c.Root().Writer, "no matching memories")
				return nil
			}

			for _, result := range results {
				line := fmt.Sprintf("%.3f\t%s\t%s", result.Score, result.Memory.ID, result.Memory.Text)
				if len(result.Memory.Tags) > 0 {
					line += "\t[" + strings.Join(result.Memory.Tags, ",") + "]"
				}
				fmt.Fprintln(c.Root().Writer, line)
			}
			return nil
		},
	}
}
