package command

import (
	"context"
	"strconv"

	"github.com/urfave/cli/v3"

	atasmt5 "github.com/WolfMoss/atas-mt5"
)

func init() {
	RegisterCommand(&Mappings{})
}

type Mappings struct {
	listURL string

	addURL   string
	external string
	mt5      string
	ratio    string

	removeURL      string
	removeExternal string
}

func (r *Mappings) Command() *cli.Command {
	return &cli.Command{
		Name:  "mappings",
		Usage: "manage symbol mappings",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "show all symbol mappings",
				Flags: []cli.Flag{urlFlag(&r.listURL)},
				Action: func(ctx context.Context, c *cli.Command) error {
					return request(ctx, r.listURL, atasmt5.ActionGetSymbolMappings, nil)
				},
			},
			{
				Name:  "add",
				Usage: "add or replace a symbol mapping",
				Flags: []cli.Flag{
					urlFlag(&r.addURL),
					&cli.StringFlag{
						Name:        "external",
						Usage:       "platform `symbol`",
						Required:    true,
						Destination: &r.external,
					},
					&cli.StringFlag{
						Name:        "mt5",
						Usage:       "MT5 `symbol` it maps to",
						Required:    true,
						Destination: &r.mt5,
					},
					&cli.StringFlag{
						Name:        "ratio",
						Usage:       "volume `ratio` applied to lots",
						Value:       "1.0",
						Destination: &r.ratio,
						Validator:   floatValidator("ratio", false),
					},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					ratio, _ := strconv.ParseFloat(r.ratio, 64)
					return request(ctx, r.addURL, atasmt5.ActionAddSymbolMapping, atasmt5.AddMappingParams{
						ExternalSymbol: r.external,
						MT5Symbol:      r.mt5,
						VolumeRatio:    ratio,
					})
				},
			},
			{
				Name:  "remove",
				Usage: "remove a symbol mapping",
				Flags: []cli.Flag{
					urlFlag(&r.removeURL),
					&cli.StringFlag{
						Name:        "external",
						Usage:       "platform `symbol` to unmap",
						Required:    true,
						Destination: &r.removeExternal,
					},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					return request(ctx, r.removeURL, atasmt5.ActionRemoveSymbolMapping, atasmt5.RemoveMappingParams{
						ExternalSymbol: r.removeExternal,
					})
				},
			},
		},
	}
}
