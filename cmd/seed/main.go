package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

func main() {
	godotenv.Load()
	dbURL := os.Getenv("POSTGRES_URL")
	if dbURL == "" {
		log.Fatal("POSTGRES_URL is required")
	}

	db, err := sqlx.Connect("postgres", dbURL)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	fetchedAt := time.Now().UTC()

	fmt.Printf("Seeding price_cache with demo quotes at %s...\n", fetchedAt.Format(time.RFC3339))

	type seedRow struct {
		symbol string
		class  string
		price  string
		change string
		pct    string
	}
	rows := []seedRow{
		{"AAPL", "equity", "190.50", "1.25", "0.66"},
		{"MSFT", "equity", "415.30", "-2.10", "-0.50"},
		{"BTC", "crypto", "61250.00", "845.00", "1.40"},
		{"ETH", "crypto", "3010.25", "-12.50", "-0.41"},
		{"XAU", "metal", "2325.80", "0", ""},
	}

	for _, r := range rows {
		var pct interface{}
		if r.pct != "" {
			pct = r.pct
		}
		_, err := db.ExecContext(ctx, `
			INSERT INTO price_cache (symbol, asset_class, price, change_24h, change_percent_24h, currency, source, fetched_at)
			VALUES ($1, $2, $3::numeric, $4::numeric, $5::numeric, 'USD', 'seed', $6)
			ON CONFLICT (symbol, asset_class, currency) DO UPDATE SET
				price = EXCLUDED.price,
				change_24h = EXCLUDED.change_24h,
				change_percent_24h = EXCLUDED.change_percent_24h,
				source = EXCLUDED.source,
				fetched_at = EXCLUDED.fetched_at`,
			r.symbol, r.class, r.price, r.change, pct, fetchedAt)
		if err != nil {
			fmt.Printf("Warning: could not seed %s: %v\n", r.symbol, err)
		}
	}

	fmt.Println("Seeded demo quotes into price_cache!")
	fmt.Println("Start the server and GET /quotes to see them; they serve as stale entries until the first refresh.")
}
