package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/urfave/cli/v2"

	"permafeed/client"
)

func sessionCommands() *cli.Command {
	return &cli.Command{
		Name:  "session",
		Usage: "Inspect and update the session state",
		Subcommands: []*cli.Command{
			{
				Name:   "get",
				Usage:  "Show the current session state",
				Action: getSessionAction,
			},
			{
				Name:      "set-address",
				Usage:     "Switch the active address, starting a fetch cycle",
				ArgsUsage: "<address>",
				Action:    setAddressAction,
			},
			{
				Name:      "set-currency",
				Usage:     "Switch the display currency, triggering a rate refresh",
				ArgsUsage: "<currency>",
				Action:    setCurrencyAction,
			},
			{
				Name:   "clear",
				Usage:  "Remove the stored session preferences",
				Action: clearSessionAction,
			},
		},
	}
}

func getSessionAction(c *cli.Context) error {
	cl := newAPIClient(c)
	session, err := cl.GetSession(c.Context)
	if err != nil {
		return fmt.Errorf("failed to get session: %w", err)
	}

	if c.Bool("json") {
		return printJSON(session)
	}

	fmt.Printf("State:    %s\n", session.State)
	fmt.Printf("Address:  %s\n", session.Address)
	fmt.Printf("Currency: %s\n", session.Currency)
	if session.Rate != nil {
		fmt.Printf("Rate:     %.4f %s (fetched %s)\n",
			session.Rate.Value, session.Rate.Currency,
			session.Rate.FetchedAt.Format(time.RFC3339))
	}
	return nil
}

func setAddressAction(c *cli.Context) error {
	address := c.Args().First()
	if address == "" {
		return fmt.Errorf("address argument is required")
	}

	cl := newAPIClient(c)
	if err := cl.SetAddress(c.Context, address); err != nil {
		return fmt.Errorf("failed to set address: %w", err)
	}

	fmt.Printf("Active address set to %s, fetch cycle started\n", address)
	return nil
}

func setCurrencyAction(c *cli.Context) error {
	currency := c.Args().First()
	if currency == "" {
		return fmt.Errorf("currency argument is required")
	}

	cl := newAPIClient(c)
	if err := cl.SetCurrency(c.Context, currency); err != nil {
		return fmt.Errorf("failed to set currency: %w", err)
	}

	fmt.Printf("Display currency set to %s\n", currency)
	return nil
}

func clearSessionAction(c *cli.Context) error {
	cl := newAPIClient(c)
	if err := cl.ClearSession(c.Context); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}

	fmt.Println("Session preferences cleared")
	return nil
}

// newAPIClient builds a server API client from the global flags.
func newAPIClient(c *cli.Context) *client.Client {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return client.NewClient(c.String("server-url"), nil, logger)
}

func contextWithTimeout(c *cli.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(c.Context)
	}
	return context.WithTimeout(c.Context, d)
}
