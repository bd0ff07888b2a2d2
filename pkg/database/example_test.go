package database_test

import (
	"context"
	"fmt"
	"log"

	"github.com/wonny/f1dq/pkg/database"
)

// Example demonstrates opening the analytical SQLite store
func Example() {
	ctx := context.Background()

	db, err := database.OpenSQLite(ctx, "data/processed/f1_database.db", false)
	if err != nil {
		log.Printf("Failed to open database: %v", err)
		return
	}
	defer db.Close()

	counts, kinds, err := database.TableCounts(ctx, db)
	if err != nil {
		log.Printf("Failed to count rows: %v", err)
		return
	}

	for name, n := range counts {
		fmt.Printf("%-6s %-24s %d\n", kinds[name], name, n)
	}
}
