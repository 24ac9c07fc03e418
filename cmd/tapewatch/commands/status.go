package commands

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/jaekwon-dev/tapewatch/pkg/config"
	"github.com/jaekwon-dev/tapewatch/pkg/httputil"
	"github.com/jaekwon-dev/tapewatch/pkg/logger"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the running monitor's latest decisions",
	Long: `Queries a running monitor process over its API and prints the
latest cycle: decision tags per instrument, coverage gaps and per-tier
provider stats.

Example:
  go run ./cmd/tapewatch status
  go run ./cmd/tapewatch status --addr http://localhost:8094`,
	RunE: runStatus,
}

var statusAddr string

func init() {
	rootCmd.AddCommand(statusCmd)

	// Flags
	statusCmd.Flags().StringVar(&statusAddr, "addr", "", "monitor API address (default http://localhost:PORT)")
}

// statusView mirrors the /api/v1/decisions/latest payload.
type statusView struct {
	CycleIndex int       `json:"cycle_index"`
	UpdatedAt  time.Time `json:"updated_at"`
	AsOf       time.Time `json:"as_of"`
	Records    map[string]struct {
		Tag  string `json:"tag"`
		Gate string `json:"gate"`
	} `json:"records"`
	Gaps []string `json:"gaps"`
}

type providerStatsView struct {
	Served map[string]int64 `json:"served"`
	Gaps   int64            `json:"gaps"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	addr := statusAddr
	if addr == "" {
		addr = fmt.Sprintf("http://localhost:%s", cfg.Port)
	}

	client := httputil.NewWithTimeout(logger.Nop(), 5*time.Second).DisableRetry()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var view statusView
	if err := client.GetJSON(ctx, addr+"/api/v1/decisions/latest", &view); err != nil {
		return fmt.Errorf("monitor not reachable at %s: %w", addr, err)
	}

	fmt.Printf("=== tapewatch cycle %d (as of %s) ===\n", view.CycleIndex, view.AsOf.Format("2006-01-02 15:04:05"))
	fmt.Printf("Updated: %s\n\n", view.UpdatedAt.Format(time.RFC3339))

	byTag := make(map[string][]string)
	for id, rec := range view.Records {
		byTag[rec.Tag] = append(byTag[rec.Tag], id)
	}
	tags := make([]string, 0, len(byTag))
	for tag := range byTag {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	for _, tag := range tags {
		ids := byTag[tag]
		sort.Strings(ids)
		fmt.Printf("%-22s %4d", tag, len(ids))
		if tag == "CANDIDATE" || tag == "BLOCK" {
			fmt.Printf("  %v", ids)
		}
		fmt.Println()
	}
	if len(view.Gaps) > 0 {
		fmt.Printf("\nCoverage gaps (%d): %v\n", len(view.Gaps), view.Gaps)
	}

	var stats providerStatsView
	if err := client.GetJSON(ctx, addr+"/api/v1/providers/stats", &stats); err == nil {
		fmt.Println("\nProvider answers:")
		tiers := make([]string, 0, len(stats.Served))
		for tier := range stats.Served {
			tiers = append(tiers, tier)
		}
		sort.Strings(tiers)
		for _, tier := range tiers {
			fmt.Printf("  %-16s %d\n", tier, stats.Served[tier])
		}
		fmt.Printf("  %-16s %d\n", "gaps", stats.Gaps)
	}
	return nil
}
