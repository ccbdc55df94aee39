// wolkenbench measures query latency through the wolkendb session pool
// against a live endpoint. It reports per-worker throughput and latency
// percentiles, which is mostly useful for sizing pool minimums.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/p-arndt/wolkendb"
)

type result struct {
	latencies []time.Duration
	errors    int
}

func main() {
	project := flag.String("project", "", "project id (default WOLKENDB_PROJECT)")
	endpoint := flag.String("endpoint", "", "service endpoint override")
	instance := flag.String("instance", "", "instance id")
	database := flag.String("database", "", "database id")
	statement := flag.String("sql", "SELECT 1", "statement to run")
	workers := flag.Int("workers", 8, "concurrent workers")
	total := flag.Int("n", 200, "queries per worker")
	minSessions := flag.Int("min-sessions", 0, "pool minimum (0 = default)")
	maxSessions := flag.Int("max-sessions", 0, "pool maximum (0 = default)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	if *instance == "" || *database == "" {
		fmt.Fprintln(os.Stderr, "both -instance and -database are required")
		os.Exit(2)
	}

	p, err := wolkendb.NewProject(wolkendb.Options{
		Project:  *project,
		Endpoint: *endpoint,
		Logger:   logger,
	})
	if err != nil {
		logger.Error("project setup", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	blocking := true
	opts := wolkendb.SessionPoolOptions{
		MaxSessions:      *maxSessions,
		BlockOnExhausted: &blocking,
	}
	if *minSessions > 0 {
		opts.MinSessions = minSessions
	}
	client, err := p.Client(ctx, *instance, *database, opts)
	if err != nil {
		logger.Error("client setup", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	results := make([]result, *workers)
	start := time.Now()

	var wg sync.WaitGroup
	for w := 0; w < *workers; w++ {
		wg.Add(1)
		go func(r *result) {
			defer wg.Done()
			for i := 0; i < *total; i++ {
				t0 := time.Now()
				if _, err := client.Query(ctx, *statement, nil); err != nil {
					r.errors++
					continue
				}
				r.latencies = append(r.latencies, time.Since(t0))
			}
		}(&results[w])
	}
	wg.Wait()
	elapsed := time.Since(start)

	var all []time.Duration
	errors := 0
	for _, r := range results {
		all = append(all, r.latencies...)
		errors += r.errors
	}
	if len(all) == 0 {
		fmt.Println("no successful queries")
		os.Exit(1)
	}
	sort.Slice(all, func(i, j int) bool { return all[i] < all[j] })

	stats := client.Stats()
	fmt.Printf("queries:    %d ok, %d failed\n", len(all), errors)
	fmt.Printf("elapsed:    %s (%.0f qps)\n", elapsed.Round(time.Millisecond), float64(len(all))/elapsed.Seconds())
	fmt.Printf("latency:    p50 %s  p95 %s  p99 %s  max %s\n",
		percentile(all, 0.50), percentile(all, 0.95), percentile(all, 0.99), all[len(all)-1].Round(time.Microsecond))
	fmt.Printf("pool:       %d available, %d leased\n", stats.Available, stats.Leased)
}

func percentile(sorted []time.Duration, q float64) time.Duration {
	idx := int(float64(len(sorted)-1) * q)
	return sorted[idx].Round(time.Microsecond)
}
