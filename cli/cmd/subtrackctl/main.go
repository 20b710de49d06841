package main

import (
	"log"
	"os"

	"github.com/urfave/cli"
)

const defaultServer = "http://127.0.0.1:50022"

func main() {
	app := cli.NewApp()
	app.Name = "subtrackctl"
	app.Usage = "manage UID subscriptions on a subtrack server"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "server",
			Value:  defaultServer,
			EnvVar: "SUBTRACK_SERVER",
			Usage:  "base URL of the subtrack server",
		},
	}
	app.Commands = []cli.Command{
		addCommand,
		timeCommand,
		sweepCommand,
		statsCommand,
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
