package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	app := &cli.App{
		Name:  "permafeed",
		Usage: "Wallet activity aggregation service CLI",
		Description: `A command-line tool for running and debugging the permafeed service.

Use this CLI to run the server, aggregate activity for an address directly
against a gateway, manage the session, and inspect the activity stream.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Commands: []*cli.Command{
			serveCommand(),
			activityCommands(),
			sessionCommands(),
			natsCommands(),
			serverCommands(),
		},
		// Global flags available to all commands
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server-url",
				Usage:   "Server URL for API commands",
				EnvVars: []string{"SERVER_URL"},
				Value:   "http://localhost:8080",
			},
			&cli.StringFlag{
				Name:    "gateway-url",
				Usage:   "Gateway URL for direct aggregation",
				EnvVars: []string{"GATEWAY_URL"},
				Value:   "https://arweave.net",
			},
			&cli.StringFlag{
				Name:    "nats-url",
				Usage:   "NATS server URL",
				EnvVars: []string{"NATS_URL"},
				Value:   "nats://localhost:4222",
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output in JSON format",
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
