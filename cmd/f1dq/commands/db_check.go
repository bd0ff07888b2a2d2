package commands

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/f1dq/internal/contracts"
	"github.com/wonny/f1dq/internal/store"
	"github.com/wonny/f1dq/pkg/config"
	"github.com/wonny/f1dq/pkg/database"
	"github.com/wonny/f1dq/pkg/redis"
)

var dbCheckPath string

// dbCheckCmd represents the db-check command
var dbCheckCmd = &cobra.Command{
	Use:   "db-check",
	Short: "Check the SQLite store, Postgres and Redis",
	Long: `Checks every storage backend the CLI can use.

This command:
- lists tables and views of the SQLite store with row counts
- pings Postgres and shows pool statistics (when DATABASE_URL is set)
- pings Redis (when REDIS_ENABLED is true)

Example:
  go run ./cmd/f1dq db-check
  go run ./cmd/f1dq db-check --db /tmp/f1.db`,
	RunE: runDBCheck,
}

func init() {
	dbCheckCmd.Flags().StringVar(&dbCheckPath, "db", "", "SQLite store (default: DB_PATH)")
	rootCmd.AddCommand(dbCheckCmd)
}

func runDBCheck(cmd *cobra.Command, args []string) error {
	fmt.Println("=== f1dq Storage Check ===")

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	fmt.Printf("✅ Config loaded (ENV: %s)\n\n", cfg.Env)

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	path := cfg.Paths.DBPath
	if dbCheckPath != "" {
		path = dbCheckPath
	}

	failed := 0
	if err := checkSQLite(ctx, path); err != nil {
		PrintError(err.Error())
		failed++
	}
	fmt.Println()
	if err := checkPostgres(ctx, cfg); err != nil {
		PrintError(err.Error())
		failed++
	}
	fmt.Println()
	if err := checkRedis(ctx, cfg); err != nil {
		PrintError(err.Error())
		failed++
	}

	fmt.Println()
	if failed > 0 {
		return fmt.Errorf("%d storage check(s) failed", failed)
	}
	PrintSuccess("All checks passed!")
	return nil
}

func checkSQLite(ctx context.Context, path string) error {
	fmt.Printf("📋 SQLite store (%s)\n", path)
	PrintSeparator()

	db, err := database.OpenSQLite(ctx, path, false)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	counts, kinds, err := database.TableCounts(ctx, db)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	widths := []int{24, 8, 12}
	PrintTableHeader([]string{"Name", "Kind", "Rows"}, widths)
	for _, name := range names {
		PrintTableRow([]string{name, kinds[name], fmt.Sprint(counts[name])}, widths)
	}

	var missing []string
	for _, t := range append(append([]string{}, contracts.AllTables...), store.MasterTable) {
		if _, ok := counts[t]; !ok {
			missing = append(missing, t)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("store is missing %v (run build-db)", missing)
	}
	PrintSuccess("Store complete")
	return nil
}

func checkPostgres(ctx context.Context, cfg *config.Config) error {
	fmt.Println("🐘 Postgres (run history)")
	PrintSeparator()
	if !cfg.Database.Enabled() {
		PrintInfo("DATABASE_URL not set, skipped")
		return nil
	}
	fmt.Printf("   Database URL: %s\n", maskPassword(cfg.Database.URL))

	db, err := database.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	status, err := db.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	fmt.Printf("   Healthy: %v\n", status.Healthy)
	fmt.Printf("   Response Time: %v\n", status.ResponseTime)
	fmt.Printf("   Max Connections: %d\n", status.Stats.MaxConns)
	fmt.Printf("   Total Connections: %d\n", status.Stats.TotalConns)
	fmt.Printf("   Idle Connections: %d\n", status.Stats.IdleConns)
	PrintSuccess("Postgres reachable")
	return nil
}

func checkRedis(ctx context.Context, cfg *config.Config) error {
	fmt.Println("🧠 Redis (report cache)")
	PrintSeparator()
	if !cfg.Redis.Enabled {
		PrintInfo("REDIS_ENABLED=false, skipped")
		return nil
	}

	start := time.Now()
	client, err := redis.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()
	fmt.Printf("   Address: %s:%s\n", cfg.Redis.Host, cfg.Redis.Port)
	fmt.Printf("   Response Time: %v\n", time.Since(start))
	fmt.Printf("   TTL: %v\n", cfg.Redis.TTL)
	PrintSuccess("Redis reachable")
	return nil
}

// maskPassword hides the password in a connection URL for display
func maskPassword(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "***"
	}
	return u.Redacted()
}
