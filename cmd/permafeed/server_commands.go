package main

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/urfave/cli/v2"
)

func serverCommands() *cli.Command {
	return &cli.Command{
		Name:  "server",
		Usage: "Server administration commands",
		Subcommands: []*cli.Command{
			{
				Name:   "health",
				Usage:  "Check server health",
				Action: healthAction,
			},
		},
	}
}

func healthAction(c *cli.Context) error {
	url := c.String("server-url") + "/health"

	httpClient := &http.Client{Timeout: 10 * time.Second}
	req, err := http.NewRequestWithContext(c.Context, "GET", url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server unhealthy (status %d): %s", resp.StatusCode, string(body))
	}

	if c.Bool("json") {
		return printJSON(map[string]string{"status": "healthy"})
	}

	fmt.Println("Server is healthy")
	return nil
}
