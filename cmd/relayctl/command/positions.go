package command

import (
	"context"

	"github.com/urfave/cli/v3"

	atasmt5 "github.com/WolfMoss/atas-mt5"
)

func init() {
	RegisterCommand(&Positions{})
}

type Positions struct {
	url    string
	symbol string
}

func (r *Positions) Command() *cli.Command {
	return &cli.Command{
		Name:  "positions",
		Usage: "list open positions",
		Flags: []cli.Flag{
			urlFlag(&r.url),
			&cli.StringFlag{
				Name:        "symbol",
				Usage:       "only positions on this `symbol` (platform name)",
				Destination: &r.symbol,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return request(ctx, r.url, atasmt5.ActionGetPositions, atasmt5.PositionsParams{
				Symbol: r.symbol,
			})
		},
	}
}
