package commands

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jaekwon-dev/tapewatch/internal/external/polygon"
	"github.com/jaekwon-dev/tapewatch/internal/funnelconfig"
	"github.com/jaekwon-dev/tapewatch/internal/universe"
	"github.com/jaekwon-dev/tapewatch/pkg/config"
	"github.com/jaekwon-dev/tapewatch/pkg/database"
	"github.com/jaekwon-dev/tapewatch/pkg/httputil"
	"github.com/jaekwon-dev/tapewatch/pkg/logger"
)

// universeCmd represents the universe command group
var universeCmd = &cobra.Command{
	Use:   "universe",
	Short: "Universe maintenance commands",
}

// universeRefreshCmd rebuilds the tradable set for a session date
var universeRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Rebuild the tradable instrument set",
	Long: `Fetches reference data from the Tier-1 provider, applies the
exclusion rules (no float, OTC segment, empty symbol) and stores the
resulting universe for the session date.

The monitor runs this automatically before the open; use this command to
force a rebuild out of band.

Example:
  go run ./cmd/tapewatch universe refresh
  go run ./cmd/tapewatch universe refresh --date 2026-08-10`,
	RunE: runUniverseRefresh,
}

var (
	universeDate      string
	universeExchanges string
)

func init() {
	rootCmd.AddCommand(universeCmd)
	universeCmd.AddCommand(universeRefreshCmd)

	// Flags
	universeRefreshCmd.Flags().StringVar(&universeDate, "date", "", "session date YYYY-MM-DD (default today, exchange time)")
	universeRefreshCmd.Flags().StringVar(&universeExchanges, "exchanges", "XNAS,XNYS", "comma-separated exchange MICs to scan")
}

func runUniverseRefresh(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg)

	fcfg, _, err := funnelconfig.Load(cfg.Monitor.FunnelConfigPath)
	if err != nil {
		return fmt.Errorf("load funnel config: %w", err)
	}
	loc, err := time.LoadLocation(fcfg.Meta.Timezone)
	if err != nil {
		return fmt.Errorf("load timezone %s: %w", fcfg.Meta.Timezone, err)
	}

	sessionDate := universeDate
	if sessionDate == "" {
		sessionDate = time.Now().In(loc).Format("2006-01-02")
	} else if _, err := time.Parse("2006-01-02", sessionDate); err != nil {
		return fmt.Errorf("invalid session date %q, want YYYY-MM-DD", sessionDate)
	}

	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	httpClient := httputil.New(log)
	polygonClient := polygon.NewClient(cfg.Polygon, log, httpClient)

	exchanges := strings.Split(universeExchanges, ",")
	svc := universe.NewService(polygonClient, universe.NewPostgresRepository(db), exchanges, log)

	u, err := svc.Refresh(context.Background(), sessionDate)
	if err != nil {
		return fmt.Errorf("refresh universe for %s: %w", sessionDate, err)
	}

	fmt.Printf("=== Universe %s ===\n", sessionDate)
	fmt.Printf("Tradable: %d\n", u.Count())
	fmt.Printf("Excluded: %d\n", len(u.Excluded))

	if len(u.Excluded) > 0 {
		ids := make([]string, 0, len(u.Excluded))
		for id := range u.Excluded {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			fmt.Printf("  %-16s %s\n", id, u.Excluded[id])
		}
	}
	return nil
}
