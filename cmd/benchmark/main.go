// Benchmark tool for load-testing Kestrel's scoring endpoints.
//
// Usage:
//   go run cmd/benchmark/main.go -url http://localhost:8080 -accounts 10000
//   go run cmd/benchmark/main.go -csv /path/to/accounts.csv -url http://localhost:8080
//
// This tool:
//   1. Synthesizes account feature bundles (or reads labeled ones from CSV)
//   2. Sends each account to Kestrel for unified scoring
//   3. Reports latency percentiles, throughput and the grade distribution
//   4. When the CSV carries expected grades, reports grade-match accuracy
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Account is one scoring input, optionally labeled with an expected grade.
type Account struct {
	AccountID     string
	BaseInfluence float64
	XScore        float64
	SignalNoise   float64
	RiskLevel     string
	RedFlags      []string
	ExpectedGrade string
}

// ScoreRequest is the Kestrel API request format.
type ScoreRequest struct {
	AccountID     string   `json:"account_id"`
	BaseInfluence float64  `json:"base_influence,omitempty"`
	XScore        float64  `json:"x_score,omitempty"`
	SignalNoise   float64  `json:"signal_noise,omitempty"`
	RiskLevel     string   `json:"risk_level,omitempty"`
	RedFlags      []string `json:"red_flags,omitempty"`
}

// ScoreResponse is the Kestrel API response format (data envelope).
type ScoreResponse struct {
	Data struct {
		AccountID   string  `json:"account_id"`
		Score       int     `json:"twitter_score_1000"`
		Grade       string  `json:"grade"`
		RiskPenalty float64 `json:"risk_penalty"`
	} `json:"data"`
}

// Metrics tracks benchmark results.
type Metrics struct {
	TotalProcessed int64
	TotalErrors    int64
	GradeMatches   int64
	TotalLabeled   int64

	mu        sync.Mutex
	latencies []float64 // ms
	byGrade   map[string]int64
}

func (m *Metrics) record(latencyMs float64, grade string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencies = append(m.latencies, latencyMs)
	if m.byGrade == nil {
		m.byGrade = make(map[string]int64)
	}
	m.byGrade[grade]++
}

func main() {
	// Parse flags
	csvPath := flag.String("csv", "", "Path to labeled accounts CSV (optional)")
	baseURL := flag.String("url", "http://localhost:8080", "Kestrel base URL")
	accounts := flag.Int("accounts", 5000, "Accounts to synthesize when no CSV is given")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	seed := flag.Int64("seed", 42, "Seed for synthesized accounts")
	verbose := flag.Bool("verbose", false, "Print each account result")
	flag.Parse()

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║           KESTREL BENCHMARK - Unified Score Engine            ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nKestrel URL: %s\n", *baseURL)
	fmt.Printf("Workers:     %d\n", *workers)
	if *csvPath != "" {
		fmt.Printf("CSV File:    %s\n", *csvPath)
	} else {
		fmt.Printf("Accounts:    %d synthesized (seed %d)\n", *accounts, *seed)
	}
	fmt.Println()

	// Check Kestrel is running
	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Kestrel not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Kestrel is running:")
		fmt.Println("  go run cmd/kestrel/main.go")
		os.Exit(1)
	}
	fmt.Println("✓ Kestrel is healthy")

	var inputs []Account
	var err error
	if *csvPath != "" {
		fmt.Printf("\nReading accounts from %s...\n", *csvPath)
		inputs, err = readAccountsCSV(*csvPath)
		if err != nil {
			fmt.Printf("ERROR: Failed to read CSV: %v\n", err)
			os.Exit(1)
		}
	} else {
		inputs = synthesizeAccounts(*accounts, *seed)
	}
	fmt.Printf("✓ Loaded %d accounts\n", len(inputs))

	fmt.Printf("\nRunning benchmark with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runBenchmark(inputs, *baseURL, *workers, *verbose)
	duration := time.Since(startTime)

	printResults(metrics, duration)
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// readAccountsCSV expects columns:
//
//	account_id,base_influence,x_score,signal_noise,risk_level,red_flags,expected_grade
//
// red_flags is a |-separated list; trailing columns may be empty.
func readAccountsCSV(path string) ([]Account, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.ToLower(strings.TrimSpace(col))] = i
	}

	field := func(record []string, name string) string {
		i, ok := colIndex[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var accounts []Account
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // Skip malformed rows
		}

		baseInfluence, _ := strconv.ParseFloat(field(record, "base_influence"), 64)
		xScore, _ := strconv.ParseFloat(field(record, "x_score"), 64)
		signalNoise, _ := strconv.ParseFloat(field(record, "signal_noise"), 64)

		var flags []string
		if raw := field(record, "red_flags"); raw != "" {
			flags = strings.Split(raw, "|")
		}

		accounts = append(accounts, Account{
			AccountID:     field(record, "account_id"),
			BaseInfluence: baseInfluence,
			XScore:        xScore,
			SignalNoise:   signalNoise,
			RiskLevel:     field(record, "risk_level"),
			RedFlags:      flags,
			ExpectedGrade: field(record, "expected_grade"),
		})
	}

	return accounts, nil
}

// synthesizeAccounts generates a deterministic mix of account profiles:
// mostly average accounts, a tail of strong ones and a tail of risky ones.
func synthesizeAccounts(n int, seed int64) []Account {
	rng := rand.New(rand.NewSource(seed))
	accounts := make([]Account, 0, n)

	for i := 0; i < n; i++ {
		a := Account{
			AccountID:     fmt.Sprintf("bench-%06d", i),
			BaseInfluence: 200 + rng.Float64()*500,
			XScore:        150 + rng.Float64()*500,
			SignalNoise:   1 + rng.Float64()*6,
			RiskLevel:     "LOW",
		}

		switch bucket := rng.Float64(); {
		case bucket < 0.10: // strong tail
			a.BaseInfluence = 700 + rng.Float64()*300
			a.XScore = 750 + rng.Float64()*250
			a.SignalNoise = 7 + rng.Float64()*3
		case bucket < 0.25: // risky tail
			a.RiskLevel = "HIGH"
			a.RedFlags = []string{"BOT_LIKE_PATTERN", "FAKE_ENGAGEMENT"}
			if rng.Float64() < 0.5 {
				a.RedFlags = append(a.RedFlags, "REPOST_FARM")
			}
		case bucket < 0.40:
			a.RiskLevel = "MED"
			if rng.Float64() < 0.3 {
				a.RedFlags = []string{"VIRAL_SPIKE"}
			}
		}

		accounts = append(accounts, a)
	}

	return accounts
}

func runBenchmark(accounts []Account, baseURL string, numWorkers int, verbose bool) *Metrics {
	metrics := &Metrics{}

	work := make(chan Account, 100)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}

			for account := range work {
				start := time.Now()
				result, err := scoreAccount(client, baseURL, account)
				elapsed := float64(time.Since(start).Microseconds()) / 1000.0

				atomic.AddInt64(&metrics.TotalProcessed, 1)

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: %s -> %v\n", account.AccountID, err)
					}
					continue
				}

				metrics.record(elapsed, result.Data.Grade)

				if account.ExpectedGrade != "" {
					atomic.AddInt64(&metrics.TotalLabeled, 1)
					if result.Data.Grade == account.ExpectedGrade {
						atomic.AddInt64(&metrics.GradeMatches, 1)
					}
				}

				if verbose {
					fmt.Printf("  %-14s | Score: %4d | Grade: %s | Penalty: %.2f | %.2f ms\n",
						account.AccountID,
						result.Data.Score,
						result.Data.Grade,
						result.Data.RiskPenalty,
						elapsed,
					)
				}
			}
		}()
	}

	for _, account := range accounts {
		work <- account
	}
	close(work)

	wg.Wait()

	return metrics
}

func scoreAccount(client *http.Client, baseURL string, account Account) (*ScoreResponse, error) {
	req := ScoreRequest{
		AccountID:     account.AccountID,
		BaseInfluence: account.BaseInfluence,
		XScore:        account.XScore,
		SignalNoise:   account.SignalNoise,
		RiskLevel:     account.RiskLevel,
		RedFlags:      account.RedFlags,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/api/connections/twitter-score", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result ScoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	return &result, nil
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(p * float64(len(sorted)-1))
	return sorted[idx]
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                      BENCHMARK RESULTS                        ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")

	fmt.Printf("\n📊 DATASET STATISTICS\n")
	fmt.Printf("   Total Processed:  %d\n", m.TotalProcessed)
	fmt.Printf("   Errors:           %d\n", m.TotalErrors)

	fmt.Printf("\n🏅 GRADE DISTRIBUTION\n")
	for _, grade := range []string{"S", "A", "B", "C", "D"} {
		count := m.byGrade[grade]
		pct := float64(0)
		if m.TotalProcessed > 0 {
			pct = 100 * float64(count) / float64(m.TotalProcessed)
		}
		fmt.Printf("   %s:  %8d  (%.2f%%)\n", grade, count, pct)
	}

	if m.TotalLabeled > 0 {
		accuracy := float64(m.GradeMatches) / float64(m.TotalLabeled)
		fmt.Printf("\n🎯 GRADE ACCURACY\n")
		fmt.Printf("   Labeled:   %d\n", m.TotalLabeled)
		fmt.Printf("   Matches:   %d\n", m.GradeMatches)
		fmt.Printf("   Accuracy:  %.4f\n", accuracy)
	}

	sort.Float64s(m.latencies)

	fmt.Printf("\n⏱️  PERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if len(m.latencies) > 0 {
		fmt.Printf("   Latency p50:      %.2f ms\n", percentile(m.latencies, 0.50))
		fmt.Printf("   Latency p90:      %.2f ms\n", percentile(m.latencies, 0.90))
		fmt.Printf("   Latency p99:      %.2f ms\n", percentile(m.latencies, 0.99))
		fmt.Printf("   Throughput:       %.2f accounts/sec\n", float64(m.TotalProcessed)/duration.Seconds())
	}

	fmt.Println()
}
