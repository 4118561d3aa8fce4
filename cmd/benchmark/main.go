package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Config holds the benchmark settings
var (
	targetURL   string
	concurrency int
	duration    time.Duration
	workload    string
	userCount   int
	password    string
)

// Metrics
var (
	totalRequests uint64
	success201    uint64 // Transfers created
	fail422       uint64 // Insufficient funds / validation
	failOther     uint64
)

func init() {
	flag.StringVar(&targetURL, "url", "http://localhost:8080", "API Base URL")
	flag.IntVar(&concurrency, "workers", 10, "Number of concurrent workers")
	flag.DurationVar(&duration, "duration", 30*time.Second, "Test duration")
	flag.StringVar(&workload, "workload", "uniform", "Workload type: uniform | hotspot")
	flag.IntVar(&userCount, "users", 1000, "Number of seeded demo users")
	flag.StringVar(&password, "password", "password", "Demo user password")
}

func main() {
	flag.Parse()
	log.Printf("Starting Benchmark: %s | Workers: %d | Duration: %s", workload, concurrency, duration)

	tokens := loginAll()
	log.Printf("Logged in %d users", len(tokens))

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go worker(&wg, start, tokens)
	}
	wg.Wait()
	printResults(time.Since(start))
}

// loginAll authenticates every seeded demo user up front so workers
// spend the measured window on transfers only.
func loginAll() map[int]string {
	client := &http.Client{Timeout: 10 * time.Second}
	tokens := make(map[int]string, userCount)

	for i := 1; i <= userCount; i++ {
		payload := map[string]string{
			"username": fmt.Sprintf("demo%04d", i),
			"password": password,
		}
		body, _ := json.Marshal(payload)
		resp, err := client.Post(targetURL+"/api/v1/login", "application/json", bytes.NewBuffer(body))
		if err != nil {
			log.Fatalf("Login request failed: %v", err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			log.Fatalf("Login failed for demo%04d: status %d (did you run the seeder?)", i, resp.StatusCode)
		}
		var loginResp struct {
			Token string `json:"token"`
			User  struct {
				ID int64 `json:"id"`
			} `json:"user"`
		}
		json.NewDecoder(resp.Body).Decode(&loginResp)
		resp.Body.Close()
		tokens[i] = loginResp.Token
	}
	return tokens
}

func worker(wg *sync.WaitGroup, start time.Time, tokens map[int]string) {
	defer wg.Done()
	client := &http.Client{Timeout: 5 * time.Second}

	for time.Since(start) < duration {
		sender, receiver := generatePair()

		payload := map[string]interface{}{
			"receiver_id": int64(receiver),
			"amount":      "1.00",
		}
		body, _ := json.Marshal(payload)

		req, _ := http.NewRequest("POST", targetURL+"/api/v1/transfers/send", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+tokens[sender])
		req.Header.Set("X-Request-ID", uuid.NewString())

		resp, err := client.Do(req)
		if err != nil {
			atomic.AddUint64(&failOther, 1)
			continue
		}

		atomic.AddUint64(&totalRequests, 1)
		switch resp.StatusCode {
		case 201:
			atomic.AddUint64(&success201, 1)
		case 422:
			atomic.AddUint64(&fail422, 1)
		default:
			atomic.AddUint64(&failOther, 1)
		}
		resp.Body.Close()
	}
}

func generatePair() (int, int) {
	if workload == "hotspot" {
		// Hotspot: 90% of traffic hammers users 1 & 2
		if rand.Float32() < 0.90 {
			if rand.Float32() < 0.5 {
				return 1, 2
			}
			return 2, 1
		}
	}

	// Uniform Random
	a := rand.Intn(userCount) + 1
	b := rand.Intn(userCount) + 1
	for a == b {
		b = rand.Intn(userCount) + 1
	}
	return a, b
}

func printResults(d time.Duration) {
	total := atomic.LoadUint64(&totalRequests)
	s201 := atomic.LoadUint64(&success201)
	f422 := atomic.LoadUint64(&fail422)
	fErr := atomic.LoadUint64(&failOther)

	tps := float64(total) / d.Seconds()
	brokeRate := float64(0)
	if total > 0 {
		brokeRate = float64(f422) / float64(total) * 100
	}

	results := map[string]interface{}{
		"workload":           workload,
		"duration_sec":       d.Seconds(),
		"total_requests":     total,
		"throughput_tps":     tps,
		"success_created":    s201,
		"insufficient_funds": f422,
		"insufficient_pct":   brokeRate,
		"errors":             fErr,
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(results)

	filename := fmt.Sprintf("results_%s.json", workload)
	file, _ := os.Create(filename)
	defer file.Close()
	json.NewEncoder(file).Encode(results)
}
