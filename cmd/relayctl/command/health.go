package command

import (
	"context"

	"github.com/urfave/cli/v3"

	atasmt5 "github.com/WolfMoss/atas-mt5"
)

func init() {
	RegisterCommand(&Health{})
}

type Health struct {
	url string
}

func (r *Health) Command() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "check that the relay and its MT5 connection are alive",
		Flags: []cli.Flag{urlFlag(&r.url)},
		Action: func(ctx context.Context, c *cli.Command) error {
			return request(ctx, r.url, atasmt5.ActionHealthCheck, nil)
		},
	}
}
