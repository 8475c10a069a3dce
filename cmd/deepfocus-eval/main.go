// Command deepfocus-eval replays a tool-calling case suite through the
// hybrid router and reports per-case accuracy, latency, and routing source,
// plus a weighted total score. It drives the configured backends directly,
// without starting the HTTP server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/deepfocus-ai/deepfocus/internal/config"
	"github.com/deepfocus-ai/deepfocus/internal/eval"
	"github.com/deepfocus-ai/deepfocus/internal/providers"
	"github.com/deepfocus-ai/deepfocus/internal/router"
	"github.com/deepfocus-ai/deepfocus/pkg/backend"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	casesPath := flag.String("cases", "configs/eval-cases.json", "path to the JSON case suite")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "deepfocus-eval: %v\n", err)
		return 1
	}
	cases, err := eval.LoadCases(*casesPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "deepfocus-eval: %v\n", err)
		return 1
	}

	reg := config.NewRegistry()
	providers.RegisterBuiltin(reg)

	local, err := reg.CreateBackend(cfg.Backends.Local)
	if err != nil {
		fmt.Fprintf(os.Stderr, "deepfocus-eval: local backend: %v\n", err)
		return 1
	}
	cloud, err := reg.CreateBackend(cfg.Backends.Cloud)
	if err != nil {
		fmt.Fprintf(os.Stderr, "deepfocus-eval: cloud backend: %v\n", err)
		return 1
	}

	rt := router.New(local, cloud, router.PolicyFromConfig(cfg.Routing))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	results := eval.Run(ctx, rt, cases)
	report(results)

	for _, r := range results {
		if r.Err != nil {
			return 1
		}
	}
	return 0
}

// report prints the per-case table, per-difficulty summary, and total score.
func report(results []eval.Result) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\tDIFFICULTY\tNAME\tTIME\tF1\tSOURCE")
	for i, r := range results {
		source := string(r.Source)
		if r.Err != nil {
			source = "error: " + r.Err.Error()
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%.2f\t%s\n",
			i+1, r.Case.Difficulty, r.Case.Name, r.Latency.Round(time.Millisecond), r.F1, source)
	}
	w.Flush()

	fmt.Println()
	for _, s := range eval.Summarize(results) {
		fmt.Printf("%-8s avg F1=%.2f  avg time=%s  on-device=%d/%d\n",
			s.Difficulty, s.AvgF1, s.AvgLatency.Round(time.Millisecond), s.OnDevice, s.Cases)
	}

	total := 0
	onDevice := 0
	for _, r := range results {
		total++
		if r.Source == backend.SourceLocal {
			onDevice++
		}
	}
	fmt.Printf("overall  on-device=%d/%d (%.0f%%)\n", onDevice, total, 100*float64(onDevice)/float64(total))
	fmt.Printf("\nTOTAL SCORE: %.1f%%\n", eval.TotalScore(results))
}
