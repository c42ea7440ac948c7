package main

import (
	"fmt"
	"runtime"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	service "github.com/okian/arena/internal/app"
	"github.com/okian/arena/internal/domain/types"
	"github.com/okian/arena/internal/simulate"
	"github.com/okian/arena/pkg/logger"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		cfg, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		cfg.AutoMigrate = true
		store, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		logger.Get().Info(ctx, "schema applied", logger.String("driver", cfg.StoreDriver))
		return nil
	},
}

var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load models and topics from a catalog file",
	Long: `Seed registers every model and topic listed in a YAML catalog. Models
that already exist (same modelId) are skipped. Without --file the built-in
catalog is used.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		cfg, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		cat, err := loadCatalog(seedFile)
		if err != nil {
			return err
		}
		store, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		res, err := seed(ctx, service.New(store, nil, service.WithLogger(logger.Get())), cat)
		if err != nil {
			return err
		}
		logger.Get().Info(ctx, "catalog seeded",
			logger.Int("modelsAdded", res.modelsAdded),
			logger.Int("modelsSkipped", res.modelsSkipped),
			logger.Int("topicsAdded", res.topicsAdded))
		return nil
	},
}

var leaderboardLimit int

var leaderboardCmd = &cobra.Command{
	Use:   "leaderboard",
	Short: "Print the current leaderboard",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		cfg, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		store, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		svc := service.New(store, nil,
			service.WithLogger(logger.Get()),
			service.WithLeaderboardLimits(cfg.DefaultLeaderboardLimit, cfg.MaxLeaderboardLimit),
		)
		entries, err := svc.Leaderboard(ctx, leaderboardLimit)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderLeaderboard(entries))
		return nil
	},
}

var simulateCfg simulate.Config

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Drive battles and votes through a running server and verify the leaderboard",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := logger.Init(); err != nil {
			return fmt.Errorf("failed to initialize logging: %w", err)
		}
		_, err := simulate.Run(cmd.Context(), simulateCfg)
		return err
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedFile, "file", "", "catalog YAML file (default: built-in catalog)")

	leaderboardCmd.Flags().IntVar(&leaderboardLimit, "limit", 0, "number of rows (default: configured page size)")

	f := simulateCmd.Flags()
	f.StringVar(&simulateCfg.BaseURL, "url", "http://localhost:8080", "base URL of the service")
	f.IntVar(&simulateCfg.Battles, "battles", simulate.DefaultBattles, "number of battles to play")
	f.IntVar(&simulateCfg.Workers, "workers", runtime.NumCPU(), "number of concurrent workers")
	f.DurationVar(&simulateCfg.Timeout, "timeout", simulate.DefaultTimeout, "HTTP request timeout")
	f.Float64Var(&simulateCfg.DrawRate, "draw-rate", simulate.DefaultDrawRate, "probability that a vote is a draw")
	f.BoolVar(&simulateCfg.Async, "async", false, "queue executions instead of waiting for them")
	f.Int64Var(&simulateCfg.FirstUser, "first-user", simulate.DefaultUser, "user id of the first simulated voter")
	f.IntVar(&simulateCfg.TopN, "top", simulate.DefaultTopN, "leaderboard page size to verify")
	f.BoolVar(&simulateCfg.Verbose, "verbose", false, "log every failed battle")
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	topStyle    = cellStyle.Foreground(lipgloss.Color("42"))
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// renderLeaderboard formats entries as a bordered table.
func renderLeaderboard(entries []types.Entry) string {
	if len(entries) == 0 {
		return "no active models"
	}
	rows := make([][]string, len(entries))
	for i, e := range entries {
		rows[i] = []string{
			strconv.Itoa(e.Rank),
			e.Name,
			e.Provider,
			strconv.Itoa(e.EloRating),
			fmt.Sprintf("%d/%d/%d", e.TotalWins, e.TotalLosses, e.TotalDraws),
			fmt.Sprintf("%.1f%%", e.WinRate*100),
			strconv.Itoa(e.TotalBattles),
		}
	}
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers("#", "MODEL", "PROVIDER", "ELO", "W/L/D", "WIN RATE", "BATTLES").
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case row == 0:
				return topStyle
			default:
				return cellStyle
			}
		})
	return t.Render()
}
