package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/podsmith/backend/internal/models"
)

type options struct {
	baseURL    string
	categories []string
	keywords   []string
	length     int
	timeframe  int
	timeout    time.Duration
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:          "smoke",
		Short:        "Smoke test a running briefing api",
		Long:         "Checks /health, requests one briefing and prints the per-group article counts.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), out, opts)
		},
	}

	cmd.Flags().StringVar(&opts.baseURL, "base-url", "http://localhost:8080", "api base url")
	cmd.Flags().StringSliceVarP(&opts.categories, "category", "c", []string{"General"}, "categories to request (repeatable)")
	cmd.Flags().StringSliceVarP(&opts.keywords, "keyword", "k", nil, "keywords to request (repeatable)")
	cmd.Flags().IntVar(&opts.length, "length", 5, "podcast length in minutes")
	cmd.Flags().IntVar(&opts.timeframe, "timeframe", 2, "days of news to cover")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 60*time.Second, "overall request timeout")

	return cmd
}

func run(ctx context.Context, out io.Writer, opts *options) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	base := strings.TrimRight(opts.baseURL, "/")
	client := &http.Client{}

	status, _, err := call(ctx, client, http.MethodGet, base+"/health", nil)
	if err != nil {
		return fmt.Errorf("health: %w", err)
	}
	fmt.Fprintf(out, "health: %d\n", status)
	if status != http.StatusOK {
		return fmt.Errorf("health returned %d", status)
	}

	payload, err := json.Marshal(map[string]any{
		"chosen_categories": opts.categories,
		"chosen_keywords":   opts.keywords,
		"chosen_length":     opts.length,
		"chosen_timeframe":  opts.timeframe,
	})
	if err != nil {
		return err
	}

	status, body, err := call(ctx, client, http.MethodPost, base+"/briefings", payload)
	if err != nil {
		return fmt.Errorf("create briefing: %w", err)
	}
	fmt.Fprintf(out, "briefing: %d\n", status)
	if status != http.StatusOK {
		return fmt.Errorf("briefing returned %d: %s", status, strings.TrimSpace(string(body)))
	}

	var doc models.Briefing
	if err := json.Unmarshal(body, &doc); err != nil {
		return fmt.Errorf("decode briefing: %w", err)
	}

	fmt.Fprintf(out, "id: %s\n", doc.ID)
	fmt.Fprintf(out, "window: %s..%s\n", doc.Settings.StartDate, doc.Settings.EndDate)
	fmt.Fprintf(out, "results: %d reported, %d total\n", doc.Settings.ResultsReported, doc.Settings.TotalResults)
	for _, cat := range doc.GroupCounts {
		for _, b := range cat.Buckets {
			fmt.Fprintf(out, "  %s / %s: %d\n", cat.Category, b.Keyword, b.Count)
		}
	}
	return nil
}

func call(ctx context.Context, client *http.Client, method, url string, payload []byte) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return 0, nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, data, nil
}
