// Command dbcheck runs quick maintenance queries against the transcript
// database. Intended for operators, not for the service itself.
//
// Usage:
//
//	dbcheck            print transcript counts by source
//	dbcheck cleanup    delete transcripts with empty text
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	pool, err := pgxpool.New(context.Background(), os.Getenv("DATABASE_URL"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	ctx := context.Background()

	if len(os.Args) > 1 && os.Args[1] == "cleanup" {
		tag, err := pool.Exec(ctx, "DELETE FROM transcripts WHERE text = ''")
		if err != nil {
			fmt.Fprintf(os.Stderr, "cleanup: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Deleted %d empty transcripts\n", tag.RowsAffected())
		return
	}

	rows, err := pool.Query(ctx, `
		SELECT source, COUNT(*), COALESCE(SUM(audio_seconds), 0), MIN(created_at), MAX(created_at)
		FROM transcripts
		GROUP BY source
		ORDER BY source`)
	if err != nil {
		fmt.Fprintf(os.Stderr, "query: %v\n", err)
		os.Exit(1)
	}
	defer rows.Close()

	fmt.Printf("%-10s %8s %12s  %-20s %-20s\n", "source", "count", "audio_sec", "first", "last")
	for rows.Next() {
		var (
			source       string
			count        int64
			audioSeconds float64
			first, last  any
		)
		if err := rows.Scan(&source, &count, &audioSeconds, &first, &last); err != nil {
			fmt.Fprintf(os.Stderr, "scan: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%-10s %8d %12.1f  %-20v %-20v\n", source, count, audioSeconds, first, last)
	}
}
