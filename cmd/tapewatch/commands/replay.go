package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jaekwon-dev/tapewatch/internal/archive"
	"github.com/jaekwon-dev/tapewatch/internal/contracts"
	"github.com/jaekwon-dev/tapewatch/internal/funnelconfig"
	"github.com/jaekwon-dev/tapewatch/internal/replay"
	"github.com/jaekwon-dev/tapewatch/internal/snapshot"
	"github.com/jaekwon-dev/tapewatch/internal/universe"
	"github.com/jaekwon-dev/tapewatch/pkg/config"
	"github.com/jaekwon-dev/tapewatch/pkg/database"
	"github.com/jaekwon-dev/tapewatch/pkg/logger"
)

// replayCmd represents the replay command
var replayCmd = &cobra.Command{
	Use:   "replay <session-date>",
	Short: "Replay an archived session and verify its decisions",
	Long: `Re-runs one archived session through the current pipeline and compares
every distinct decision state against the snapshots the live run persisted.

Replay honors the tiers recorded at capture time, so a Tier-3 sample stays
a Tier-3 sample even if Tier-1 would answer today. Any tag that differs
from the live run is reported as a divergence and the command exits
non-zero.

Example:
  go run ./cmd/tapewatch replay 2026-08-10
  go run ./cmd/tapewatch replay 2026-08-10 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

var replayJSON bool

func init() {
	rootCmd.AddCommand(replayCmd)

	// Flags
	replayCmd.Flags().BoolVar(&replayJSON, "json", false, "print the full report as JSON")
}

func runReplay(cmd *cobra.Command, args []string) error {
	sessionDate := args[0]
	if _, err := time.Parse("2006-01-02", sessionDate); err != nil {
		return fmt.Errorf("invalid session date %q, want YYYY-MM-DD", sessionDate)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg)

	fcfg, _, err := funnelconfig.Load(cfg.Monitor.FunnelConfigPath)
	if err != nil {
		return fmt.Errorf("load funnel config: %w", err)
	}
	configHash, err := funnelconfig.Hash(fcfg)
	if err != nil {
		return fmt.Errorf("hash funnel config: %w", err)
	}

	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	universeRepo := universe.NewPostgresRepository(db)
	universeSvc := universe.NewService(nil, universeRepo, nil, log)

	engine := replay.New(
		fcfg,
		configHash,
		archive.NewPostgresRepository(db),
		snapshot.NewPostgresRepository(db),
		universeSvc,
		log,
	)

	report, err := engine.Replay(context.Background(), sessionDate)
	if err != nil && !errors.Is(err, contracts.ErrReplayDivergence) {
		return fmt.Errorf("replay %s: %w", sessionDate, err)
	}

	if replayJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		printReport(report)
	}

	if !report.Clean() {
		return fmt.Errorf("session %s diverged in %d decision(s)", sessionDate, len(report.Divergences))
	}

	fmt.Printf("\n✅ Session %s reproduced bit-for-bit\n", sessionDate)
	return nil
}

func printReport(r *replay.Report) {
	fmt.Printf("=== Replay %s ===\n", r.SessionDate)
	fmt.Printf("Cycles replayed:    %d\n", r.CyclesReplayed)
	fmt.Printf("Warmup sessions:    %d\n", r.WarmupSessions)
	fmt.Printf("Live snapshots:     %d\n", r.LiveSnapshots)
	fmt.Printf("Replayed snapshots: %d\n", r.ReplayedSnapshots)

	if len(r.Divergences) == 0 {
		return
	}
	fmt.Printf("\nDivergences (%d):\n", len(r.Divergences))
	for _, d := range r.Divergences {
		fmt.Printf("  seq %d  %-16s live=%s replayed=%s\n", d.SnapshotSeq, d.InstrumentID, d.Live, d.Replayed)
	}
}
