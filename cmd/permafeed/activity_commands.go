package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"permafeed/client"
	"permafeed/service/activity"
	"permafeed/service/format"
	"permafeed/service/gateway"
)

func activityCommands() *cli.Command {
	return &cli.Command{
		Name:    "activity",
		Aliases: []string{"a"},
		Usage:   "Fetch and inspect wallet activity",
		Subcommands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "Get aggregated activity for an address from the server",
				ArgsUsage: "<address>",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "wait",
						Usage: "Poll until the collection settles",
					},
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "Maximum time to wait for a settled collection",
						Value: 30 * time.Second,
					},
				},
				Action: getActivityAction,
			},
			{
				Name:      "record",
				Usage:     "Get a single settled record by id",
				ArgsUsage: "<address> <id>",
				Action:    getRecordAction,
			},
			{
				Name:      "fetch",
				Usage:     "Run one aggregation cycle directly against a gateway, no server needed",
				ArgsUsage: "<address>",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "page-size",
						Usage: "Number of transactions to request per source",
						Value: 10,
					},
				},
				Action: fetchActivityAction,
			},
		},
	}
}

func getActivityAction(c *cli.Context) error {
	address := c.Args().First()
	if address == "" {
		return fmt.Errorf("address argument is required")
	}

	cl := newAPIClient(c)

	var page *client.ActivityPage
	var err error
	if c.Bool("wait") {
		ctx, cancel := contextWithTimeout(c, c.Duration("timeout"))
		defer cancel()
		page, err = cl.WaitForActivity(ctx, address, 500*time.Millisecond)
	} else {
		page, err = cl.GetActivity(c.Context, address)
	}
	if err != nil {
		return fmt.Errorf("failed to get activity: %w", err)
	}

	if c.Bool("json") {
		return printJSON(page)
	}

	fmt.Printf("Address: %s\n", page.Address)
	fmt.Printf("State:   %s\n", page.State)
	if page.Rate != nil {
		fmt.Printf("Rate:    %.4f %s\n", page.Rate.Value, page.Rate.Currency)
	}
	fmt.Println()
	printRecordTable(page.Records)
	return nil
}

func getRecordAction(c *cli.Context) error {
	address := c.Args().Get(0)
	id := c.Args().Get(1)
	if address == "" || id == "" {
		return fmt.Errorf("address and id arguments are required")
	}

	cl := newAPIClient(c)
	record, err := cl.GetRecord(c.Context, address, id)
	if err != nil {
		return fmt.Errorf("failed to get record: %w", err)
	}

	if c.Bool("json") {
		return printJSON(record)
	}

	fmt.Printf("ID:           %s\n", record.ID)
	fmt.Printf("Description:  %s\n", record.Description)
	fmt.Printf("Amount:       %s\n", record.Amount)
	fmt.Printf("Fiat:         %s\n", record.FiatAmount)
	fmt.Printf("Counterparty: %s\n", record.Counterparty)
	fmt.Printf("Date:         %s\n", record.DateLabel)
	return nil
}

// fetchActivityAction runs the dispatch, normalize, merge, and enrich stages
// in-process against the configured gateway and prints the result. Useful for
// debugging gateway responses without a running server.
func fetchActivityAction(c *cli.Context) error {
	address := c.Args().First()
	if address == "" {
		return fmt.Errorf("address argument is required")
	}
	if err := activity.ValidateAddress(address); err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	if c.Bool("json") {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}

	gw := gateway.NewClient(c.String("gateway-url"), nil, nil, logger)
	dispatcher := activity.NewDispatcher(gw, c.Int("page-size"), nil, logger)
	normalizer := activity.NewNormalizer(nil, logger)

	outcomes := dispatcher.Dispatch(c.Context, address)

	batches := make([][]activity.Transaction, len(outcomes))
	for i, outcome := range outcomes {
		if outcome.Err != nil {
			fmt.Fprintf(os.Stderr, "source %s failed: %v\n", outcome.Source.Name, outcome.Err)
		}
		batches[i] = normalizer.Normalize(outcome)
	}

	records := activity.Enrich(activity.Merge(batches...), time.Now())

	if c.Bool("json") {
		return printJSON(records)
	}

	fmt.Printf("Address: %s\n", address)
	fmt.Printf("Records: %d\n\n", len(records))
	for _, txn := range records {
		fmt.Printf("%-45s %-16s %12s %s  %s\n",
			txn.ID,
			format.Description(txn),
			format.Amount(txn),
			format.DateLabel(txn),
			txn.Counterparty,
		)
	}
	return nil
}

func printRecordTable(records []client.Record) {
	if len(records) == 0 {
		fmt.Println("No records.")
		return
	}
	fmt.Printf("%-45s %-16s %12s %12s %s\n", "ID", "DESCRIPTION", "AMOUNT", "FIAT", "DATE")
	for _, r := range records {
		fmt.Printf("%-45s %-16s %12s %12s %s\n",
			r.ID, r.Description, r.Amount, r.FiatAmount, r.DateLabel)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
