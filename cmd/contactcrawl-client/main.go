package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"
)

// CLI flags
var (
	apiURL      = flag.String("api-url", "http://localhost:8080", "contactcrawl API base URL")
	apiKey      = flag.String("api-key", "", "API key for authenticated requests")
	input       = flag.String("input", "-", "file with one URL per line (- for stdin)")
	output      = flag.String("output", "contacts.json", "JSON output file path")
	concurrency = flag.Int("concurrency", 30, "maximum requests in flight")
	timeout     = flag.Duration("timeout", 15*time.Minute, "per-request timeout")
	quiet       = flag.Bool("quiet", false, "suppress the progress line")
	retries     = flag.Int("retries", 10, "retries per URL after a 429 answer")
)

func main() {
	flag.Parse()

	urls, err := readURLs(*input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading URLs: %v\n", err)
		os.Exit(1)
	}
	if len(urls) == 0 {
		fmt.Fprintln(os.Stderr, "No URLs given")
		os.Exit(1)
	}

	base := strings.TrimSuffix(*apiURL, "/")
	if err := checkAPI(base); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot reach API at %s: %v\n", base, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := &client{
		baseURL:     base,
		apiKey:      *apiKey,
		http:        &http.Client{Timeout: *timeout},
		concurrency: *concurrency,
		retries:     *retries,
	}
	if !*quiet {
		c.progress = func(p progress) {
			fmt.Fprintf(os.Stderr, "\rProcessed %d / %d (Fetched: %d)", p.Processed, p.Total, p.Fetched)
		}
	}

	start := time.Now()
	rep := c.run(ctx, urls)
	if !*quiet {
		fmt.Fprintln(os.Stderr)
	}

	printSummary(os.Stdout, rep, time.Since(start))

	if err := writeJSON(*output, rep.Records); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing JSON output: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nResults written to %s\n", *output)
}

// readURLs reads one URL per line, skipping blanks.
func readURLs(path string) ([]string, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	return parseURLs(r)
}

func parseURLs(r io.Reader) ([]string, error) {
	var urls []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			urls = append(urls, line)
		}
	}
	return urls, sc.Err()
}

func checkAPI(baseURL string) error {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(baseURL + "/api/v1/health")
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func printSummary(out io.Writer, rep report, elapsed time.Duration) {
	fmt.Fprintln(out, strings.Repeat("─", 85))
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Company\tEmail\tPhone\tURL\n")
	fmt.Fprintf(w, "───────\t─────\t─────\t───\n")
	for _, rec := range rep.Records {
		name := "-"
		if rec.CompanyName != nil {
			name = *rec.CompanyName
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", name, first(rec.Data.Emails), first(rec.Data.Phones), truncateURL(rec.URL, 40))
	}
	w.Flush()
	fmt.Fprintln(out, strings.Repeat("─", 85))
	fmt.Fprintf(out, "Sites: %d  Fetched: %d  Failed requests: %d  Time: %.2fs\n",
		rep.Total, len(rep.Records), len(rep.Failures), elapsed.Seconds())
	for _, f := range rep.Failures {
		fmt.Fprintf(out, "  FAILED %s: %s\n", f.URL, f.Error)
	}
}

func first(values []string) string {
	if len(values) == 0 {
		return "-"
	}
	return values[0]
}

func truncateURL(u string, max int) string {
	if len(u) <= max {
		return u
	}
	return u[:max-3] + "..."
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
