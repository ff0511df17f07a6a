package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/urfave/cli/v2"

	natspkg "permafeed/service/nats"
)

func natsCommands() *cli.Command {
	return &cli.Command{
		Name:  "nats",
		Usage: "Inspect the activity event stream",
		Subcommands: []*cli.Command{
			{
				Name:      "subscribe",
				Aliases:   []string{"sub"},
				Usage:     "Subscribe to activity events, optionally for one address",
				ArgsUsage: "[address]",
				Action:    subscribeAction,
			},
		},
	}
}

func subscribeAction(c *cli.Context) error {
	nc, err := nats.Connect(c.String("nats-url"),
		nats.Name("permafeed-cli"),
		nats.Timeout(10*time.Second),
	)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	subject := "activity.*"
	if address := c.Args().First(); address != "" {
		subject = fmt.Sprintf("activity.%s", address)
	}

	cons, err := js.CreateOrUpdateConsumer(c.Context, natspkg.StreamName, jetstream.ConsumerConfig{
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		DeliverPolicy: jetstream.DeliverNewPolicy,
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Subscribed to %s, waiting for events (Ctrl-C to stop)...\n", subject)

	cc, err := cons.Consume(func(msg jetstream.Msg) {
		defer msg.Ack()

		var event natspkg.ActivityEvent
		if err := json.Unmarshal(msg.Data(), &event); err != nil {
			fmt.Fprintf(os.Stderr, "failed to unmarshal event: %v\n", err)
			return
		}

		if c.Bool("json") {
			printJSON(event)
			return
		}

		fmt.Printf("[%s] %s %s %s %s (cycle %s)\n",
			event.PublishedAt.Format(time.RFC3339),
			event.Address,
			event.Category,
			event.Quantity,
			event.Denomination,
			event.CycleID,
		)
	})
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}
	defer cc.Stop()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sig:
	case <-c.Context.Done():
	}
	return nil
}
