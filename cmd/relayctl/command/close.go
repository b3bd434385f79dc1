package command

import (
	"context"
	"fmt"
	"strconv"

	"github.com/urfave/cli/v3"

	atasmt5 "github.com/WolfMoss/atas-mt5"
)

func init() {
	RegisterCommand(&CloseTicket{})
	RegisterCommand(&CloseSymbol{})
	RegisterCommand(&CloseAll{})
}

type CloseTicket struct {
	url    string
	ticket string
}

func (r *CloseTicket) Command() *cli.Command {
	return &cli.Command{
		Name:  "close-ticket",
		Usage: "close one position by ticket",
		Flags: []cli.Flag{
			urlFlag(&r.url),
			&cli.StringFlag{
				Name:        "ticket",
				Usage:       "position `ticket` to close",
				Required:    true,
				Destination: &r.ticket,
				Validator: func(s string) error {
					ticket, err := strconv.ParseInt(s, 10, 64)
					if err != nil || ticket <= 0 {
						return fmt.Errorf("invalid ticket: %s", s)
					}
					return nil
				},
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			ticket, _ := strconv.ParseInt(r.ticket, 10, 64)
			return request(ctx, r.url, atasmt5.ActionClosePositionByTicket, atasmt5.CloseTicketParams{
				Ticket: ticket,
			})
		},
	}
}

type CloseSymbol struct {
	url    string
	symbol string
}

func (r *CloseSymbol) Command() *cli.Command {
	return &cli.Command{
		Name:  "close-symbol",
		Usage: "close every position on a symbol",
		Flags: []cli.Flag{
			urlFlag(&r.url),
			&cli.StringFlag{
				Name:        "symbol",
				Usage:       "platform `symbol` to flatten",
				Required:    true,
				Destination: &r.symbol,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return request(ctx, r.url, atasmt5.ActionClosePositionsBySymbol, atasmt5.CloseSymbolParams{
				Symbol: r.symbol,
			})
		},
	}
}

type CloseAll struct {
	url string
}

func (r *CloseAll) Command() *cli.Command {
	return &cli.Command{
		Name:  "close-all",
		Usage: "close every open position",
		Flags: []cli.Flag{urlFlag(&r.url)},
		Action: func(ctx context.Context, c *cli.Command) error {
			return request(ctx, r.url, atasmt5.ActionCloseAllPositions, nil)
		},
	}
}
