package main

import (
	"chat-relay/observability"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func newStatsCmd() *cobra.Command {
	var addr string
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:     "stats",
		Aliases: []string{"s"},
		Short:   "Print connection and delivery counters",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			stats, err := fetchStats(ctx, addr)
			if err != nil {
				return err
			}
			renderStats(cmd.OutOrStdout(), stats)
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "http://localhost:8080", "Base URL of the relay")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "Request timeout")
	return cmd
}

func fetchStats(ctx context.Context, addr string) (observability.Stats, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(addr, "/")+"/api/stats", nil)
	if err != nil {
		return observability.Stats{}, err
	}
	resp, err := http.DefaultClient.Do(request)
	if err != nil {
		return observability.Stats{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return observability.Stats{}, fmt.Errorf("relay answered %s", resp.Status)
	}

	var stats observability.Stats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return observability.Stats{}, fmt.Errorf("decode stats: %w", err)
	}
	return stats, nil
}

func renderStats(w io.Writer, stats observability.Stats) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Metric", "Value"})
	table.SetAutoFormatHeaders(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)

	rows := [][]string{
		{"Connected users", strconv.Itoa(stats.ConnectedUsers)},
		{"Active rooms", strconv.Itoa(stats.ActiveRooms)},
		{"Queue depth", strconv.Itoa(stats.QueueDepth)},
		{"Enqueued", strconv.FormatUint(stats.Enqueued, 10)},
		{"Delivered", strconv.FormatUint(stats.Delivered, 10)},
		{"Dropped", strconv.FormatUint(stats.Dropped, 10)},
		{"Failed", failed(stats.Failed)},
		{"Worker restarts", strconv.FormatUint(stats.WorkerRestarts, 10)},
		{"Memory (MB)", strconv.FormatUint(stats.AllocMemMb, 10)},
		{"RSS (bytes)", strconv.FormatUint(stats.RSSBytes, 10)},
		{"CPU (%)", strconv.FormatFloat(stats.CPUPercent, 'f', 1, 64)},
		{"Uptime", stats.Uptime},
	}
	table.AppendBulk(rows)
	table.Render()
}

func failed(n uint64) string {
	value := strconv.FormatUint(n, 10)
	if n > 0 {
		return color.Red.Render(value)
	}
	return value
}
