// Command loadtest drives the lookup API with a mix of field and title
// lookups and reports throughput, latency percentiles and cache hit rate per
// lookup kind.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// Query is one lookup: a field and term, or a title word when Field is empty.
type Query struct {
	Field string
	Term  string
}

func (q Query) kind() string {
	if q.Field == "" {
		return "title"
	}
	return q.Field
}

func (q Query) path() string {
	if q.Field == "" {
		return "/api/v1/titles?word=" + url.QueryEscape(q.Term)
	}
	return fmt.Sprintf("/api/v1/lookup?field=%s&term=%s&limit=10", q.Field, url.QueryEscape(q.Term))
}

var defaultQueries = []Query{
	{Field: "genre", Term: "Drama"},
	{Field: "genre", Term: "comedy"},
	{Field: "genre", Term: "Documentary"},
	{Field: "genre", Term: "Film-Noir"},
	{Field: "type", Term: "movie"},
	{Field: "type", Term: "short"},
	{Field: "type", Term: "tvSeries"},
	{Field: "year", Term: "1999"},
	{Field: "year", Term: "1973"},
	{Field: "id", Term: "tt0133093"},
	{Field: "id", Term: "tt0070735"},
	{Term: "the"},
	{Term: "godfather"},
	{Term: "night"},
	{Term: "love"},
}

// parseQueries reads one query per line: "field:term", or a bare title word.
// Blank lines and lines starting with # are ignored.
func parseQueries(r io.Reader) ([]Query, error) {
	var queries []Query
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		field, term, ok := strings.Cut(line, ":")
		if !ok {
			queries = append(queries, Query{Term: line})
			continue
		}
		if term == "" {
			return nil, fmt.Errorf("query %q has no term", line)
		}
		queries = append(queries, Query{Field: field, Term: term})
	}
	return queries, sc.Err()
}

// sample is the outcome of one request.
type sample struct {
	kind     string
	latency  time.Duration
	status   int
	cacheHit bool
	failed   bool
}

// ok counts a 404 as success: it is a lookup miss, not a server fault.
func (s sample) ok() bool {
	return !s.failed && (s.status >= 200 && s.status < 300 || s.status == http.StatusNotFound)
}

// summary aggregates the samples of one lookup kind.
type summary struct {
	requests  int
	errors    int
	cacheHits int
	min, max  time.Duration
	avg       time.Duration
	p50, p90  time.Duration
	p99       time.Duration
	stddev    time.Duration
}

func summarize(samples []sample) summary {
	var s summary
	latencies := make([]time.Duration, 0, len(samples))
	for _, smp := range samples {
		s.requests++
		if !smp.ok() {
			s.errors++
		}
		if smp.cacheHit {
			s.cacheHits++
		}
		if !smp.failed {
			latencies = append(latencies, smp.latency)
		}
	}
	if len(latencies) == 0 {
		return s
	}
	slices.Sort(latencies)

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	s.avg = sum / time.Duration(len(latencies))
	var sq float64
	for _, l := range latencies {
		d := float64(l - s.avg)
		sq += d * d
	}
	s.stddev = time.Duration(math.Sqrt(sq / float64(len(latencies))))
	s.min, s.max = latencies[0], latencies[len(latencies)-1]
	s.p50 = percentile(latencies, 50)
	s.p90 = percentile(latencies, 90)
	s.p99 = percentile(latencies, 99)
	return s
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	return sorted[min(max(idx, 0), len(sorted)-1)]
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the indexer service")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	queryFile := flag.String("queries", "", "file of queries (field:term or title word per line)")
	flag.Parse()

	queries := defaultQueries
	if *queryFile != "" {
		f, err := os.Open(*queryFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "opening queries: %v\n", err)
			os.Exit(1)
		}
		queries, err = parseQueries(f)
		f.Close()
		if err != nil || len(queries) == 0 {
			fmt.Fprintf(os.Stderr, "no usable queries in %s: %v\n", *queryFile, err)
			os.Exit(1)
		}
	}

	fmt.Println("=== Movie Index Load Test ===")
	fmt.Printf("Target:      %s\n", *baseURL)
	fmt.Printf("Concurrency: %d\n", *concurrency)
	fmt.Printf("Duration:    %s\n", *duration)
	fmt.Printf("Queries:     %d unique\n\n", len(queries))

	samples := run(*baseURL, *concurrency, *duration, queries)
	if len(samples) == 0 {
		fmt.Println("WARNING: No requests completed. Is the service running?")
		os.Exit(1)
	}
	report(os.Stdout, samples, *duration)
}

// run issues queries round-robin from concurrency workers until duration
// elapses. Each worker keeps its own samples; they are joined at the end.
func run(baseURL string, concurrency int, duration time.Duration, queries []Query) []sample {
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        concurrency * 2,
			MaxIdleConnsPerHost: concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	ctx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()

	perWorker := make([][]sample, concurrency)
	var g errgroup.Group
	for w := range concurrency {
		g.Go(func() error {
			for i := w; ctx.Err() == nil; i++ {
				q := queries[i%len(queries)]
				smp := do(ctx, client, baseURL, q)
				if ctx.Err() != nil && smp.failed {
					break
				}
				perWorker[w] = append(perWorker[w], smp)
			}
			return nil
		})
	}
	_ = g.Wait()
	return slices.Concat(perWorker...)
}

func do(ctx context.Context, client *http.Client, baseURL string, q Query) sample {
	smp := sample{kind: q.kind()}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+q.path(), nil)
	if err != nil {
		smp.failed = true
		return smp
	}
	start := time.Now()
	resp, err := client.Do(req)
	smp.latency = time.Since(start)
	if err != nil {
		smp.failed = true
		return smp
	}
	defer resp.Body.Close()
	var body struct {
		CacheHit bool `json:"cache_hit"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&body)
	_, _ = io.Copy(io.Discard, resp.Body)
	smp.status = resp.StatusCode
	smp.cacheHit = body.CacheHit
	return smp
}

func report(w io.Writer, samples []sample, duration time.Duration) {
	byKind := make(map[string][]sample)
	statuses := make(map[int]int)
	for _, s := range samples {
		byKind[s.kind] = append(byKind[s.kind], s)
		statuses[s.status]++
	}

	all := summarize(samples)
	fmt.Fprintln(w, "=== Results ===")
	fmt.Fprintf(w, "Total Requests:  %d\n", all.requests)
	fmt.Fprintf(w, "Errors:          %d (%.2f%%)\n", all.errors, pct(all.errors, all.requests))
	fmt.Fprintf(w, "Requests/sec:    %.2f\n", float64(all.requests)/duration.Seconds())
	fmt.Fprintf(w, "Cache Hit Rate:  %.2f%%\n", pct(all.cacheHits, all.requests))
	fmt.Fprintf(w, "Latency:         min %s  avg %s  max %s  stddev %s\n\n", all.min, all.avg, all.max, all.stddev)

	fmt.Fprintln(w, "=== By Lookup ===")
	fmt.Fprintf(w, "%-8s %8s %7s %7s %10s %10s %10s\n", "kind", "requests", "errors", "hit%", "p50", "p90", "p99")
	kinds := make([]string, 0, len(byKind))
	for k := range byKind {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	for _, k := range kinds {
		s := summarize(byKind[k])
		fmt.Fprintf(w, "%-8s %8d %7d %6.1f%% %10s %10s %10s\n",
			k, s.requests, s.errors, pct(s.cacheHits, s.requests), s.p50, s.p90, s.p99)
	}

	fmt.Fprintln(w, "\n=== Status Codes ===")
	codes := make([]int, 0, len(statuses))
	for c := range statuses {
		codes = append(codes, c)
	}
	slices.Sort(codes)
	for _, c := range codes {
		label := fmt.Sprint(c)
		if c == 0 {
			label = "transport error"
		}
		fmt.Fprintf(w, "  %s: %d\n", label, statuses[c])
	}
}

func pct(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}
