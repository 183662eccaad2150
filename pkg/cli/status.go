package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/recall/pkg/service/mcp"
	"github.com/urfave/cli/v3"
)

func statusCommand() *cli.Command {
	var cfg config

	flags := globalFlags(&cfg)
	flags = append(flags, embedderFlags(&cfg)...)

	return &cli.Command{
		Name:  "status",
		Usage: "Show dependency health and index fingerprint",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg.setupLogger()

			uc, err := cfg.newUseCase(ctx)
			if err != nil {
				return err
			}

			health := uc.Health(ctx)
			fmt.Fprintf(c.Root().Writer, "mode:     %s\n", health.Mode)
			fmt.Fprintf(c.Root().Writer, "index:    %s\n", upDown(health.Index))
			fmt.Fprintf(c.Root().Writer, "embedder: %s\n", upDown(health.Embedder))

			meta, err := uc.Meta(ctx)
			if err != nil || meta == nil {
				return nil
			}
			fmt.Fprintf(c.Root().Writer, "model:    %s (dim %d, schema v%d)\n",
				meta.Model, meta.Dimension, meta.SchemaVersion)
			return nil
		},
	}
}

func upDown(ok bool) string {
	if ok {
		return "up"
	}
	return "down"
}

func reembedCommand() *cli.Command {
	var cfg config

	flags := globalFlags(&cfg)
	flags = append(flags, embedderFlags(&cfg)...)

	return &cli.Command{
		Name:  "reembed",
		Usage: "Embed memories stored while the embedding provider was down",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg.setupLogger()

			uc, err := cfg.newUseCase(ctx)
			if err != nil {
				return err
			}

			count, err := uc.Reembed(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to re-embed memories")
			}

			fmt.Fprintf(c.Root().Writer, "re-embedded %d memories\n", count)
			return nil
		},
	}
}

func mcpCommand() *cli.Command {
	var cfg config

	flags := globalFlags(&cfg)
	flags = append(flags, embedderFlags(&cfg)...)

	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve the memory store as MCP tools on stdio",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg.setupLogger()

			uc, err := cfg.newUseCase(ctx)
			if err != nil {
				return err
			}

			return mcp.New(uc, c.Root().Version).Run(ctx)
		},
	}
}
