package command

import (
	"context"

	"github.com/urfave/cli/v3"

	atasmt5 "github.com/WolfMoss/atas-mt5"
)

func init() {
	RegisterCommand(&Account{})
}

type Account struct {
	url string
}

func (r *Account) Command() *cli.Command {
	return &cli.Command{
		Name:  "account",
		Usage: "show the trading account snapshot",
		Flags: []cli.Flag{urlFlag(&r.url)},
		Action: func(ctx context.Context, c *cli.Command) error {
			return request(ctx, r.url, atasmt5.ActionGetAccountInfo, nil)
		},
	}
}
