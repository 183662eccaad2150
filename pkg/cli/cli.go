package cli

import (
	"context"

	"github.com/urfave/cli/v3"
)

type Error struct {
	Code    int
	Message string
}

func Run(ctx context.Context, argv []string) *Error {
	loadDotEnv()

	cmd := &cli.Command{
		Name:  "recall",
		Usage: "Personal semantic memory store",
		Commands: []*cli.Command{
			serveCommand(),
			addCommand(),
			searchCommand(),
			listCommand(),
			deleteCommand(),
			ingestCommand(),
			exportCommand(),
			importCommand(),
			reembedCommand(),
			statusCommand(),
			mcpCommand(),
		},
	}

	if err := cmd.Run(ctx, argv); err != nil {
		return &Error{
			Code:    1,
			Message: err.Error(),
		}
	}

	return nil
}
