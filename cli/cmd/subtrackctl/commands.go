package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli"

	"github.com/subtrack/subtrack/cli/internal/client"
)

var addCommand = cli.Command{
	Name:  "add",
	Usage: "Register or replace a UID, either permanently or for a time span.",
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:     "uid",
			Required: true,
			Usage:    "The UID to register.",
		},
		cli.BoolFlag{
			Name:  "permanent",
			Usage: "Register the UID with no expiry. --time and --type are ignored.",
		},
		cli.StringFlag{
			Name:  "time",
			Usage: "Number of units until expiry, a positive integer.",
		},
		cli.StringFlag{
			Name:  "type",
			Usage: "Unit of --time: seconds, days, months or years.",
		},
	},
	Action: add,
}

var timeCommand = cli.Command{
	Name:  "time",
	Usage: "Show the remaining time of a UID.",
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:     "uid",
			Required: true,
			Usage:    "The UID to look up.",
		},
	},
	Action: remaining,
}

var sweepCommand = cli.Command{
	Name:   "sweep",
	Usage:  "Remove expired UIDs now instead of waiting for the next reaper tick.",
	Action: sweep,
}

var statsCommand = cli.Command{
	Name:   "stats",
	Usage:  "Show how many UIDs are registered.",
	Action: stats,
}

func add(ctx *cli.Context) error {
	c := getClient(ctx)
	uid := ctx.String("uid")
	if ctx.Bool("permanent") {
		resp, err := c.AddPermanent(context.Background(), uid)
		if err != nil {
			return err
		}
		return printJSON(resp)
	}

	if ctx.String("time") == "" || ctx.String("type") == "" {
		return fmt.Errorf("--time and --type are required unless --permanent is set")
	}
	resp, err := c.Add(context.Background(), uid, ctx.String("time"), ctx.String("type"))
	if err != nil {
		return err
	}
	return printJSON(resp)
}

func remaining(ctx *cli.Context) error {
	resp, err := getClient(ctx).RemainingTime(context.Background(), ctx.String("uid"))
	if err != nil {
		return err
	}
	return printJSON(resp)
}

func sweep(ctx *cli.Context) error {
	resp, err := getClient(ctx).Sweep(context.Background())
	if err != nil {
		return err
	}
	return printJSON(resp)
}

func stats(ctx *cli.Context) error {
	resp, err := getClient(ctx).Stats(context.Background())
	if err != nil {
		return err
	}
	return printJSON(resp)
}

func getClient(ctx *cli.Context) *client.Client {
	return client.New(ctx.GlobalString("server"), nil)
}

func printJSON(v interface{}) error {
	j, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal json: %w", err)
	}
	_, err = fmt.Fprintln(os.Stdout, string(j))
	return err
}
