package command

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/urfave/cli/v3"

	atasmt5 "github.com/WolfMoss/atas-mt5"
)

func init() {
	RegisterCommand(&Open{})
}

type Open struct {
	url       string
	symbol    string
	orderType string
	volume    string
	profit    string
	comment   string
}

func (r *Open) Command() *cli.Command {
	return &cli.Command{
		Name:  "open",
		Usage: "open a market position",
		Flags: []cli.Flag{
			urlFlag(&r.url),
			&cli.StringFlag{
				Name:        "symbol",
				Usage:       "platform `symbol` to trade",
				Required:    true,
				Destination: &r.symbol,
			},
			&cli.StringFlag{
				Name:        "type",
				Usage:       "order `direction`: buy or sell",
				Required:    true,
				Destination: &r.orderType,
				Validator: func(s string) error {
					switch strings.ToUpper(s) {
					case atasmt5.OrderTypeBuy, atasmt5.OrderTypeSell:
						return nil
					}
					return fmt.Errorf("invalid type: %s", s)
				},
			},
			&cli.StringFlag{
				Name:        "volume",
				Usage:       "`lots` in platform units, scaled by the symbol mapping",
				Required:    true,
				Destination: &r.volume,
				Validator:   floatValidator("volume", true),
			},
			&cli.StringFlag{
				Name:        "profit",
				Usage:       "target profit `amount`; the relay derives the take profit from it",
				Destination: &r.profit,
				Validator:   floatValidator("profit", false),
			},
			&cli.StringFlag{
				Name:        "comment",
				Usage:       "order `comment`",
				Destination: &r.comment,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			volume, _ := strconv.ParseFloat(r.volume, 64)

			var profit float64
			if r.profit != "" {
				profit, _ = strconv.ParseFloat(r.profit, 64)
			}

			return request(ctx, r.url, atasmt5.ActionOpenPosition, atasmt5.OpenPositionParams{
				Symbol:       r.symbol,
				Volume:       volume,
				OrderType:    strings.ToUpper(r.orderType),
				ProfitAmount: profit,
				Comment:      r.comment,
			})
		},
	}
}
