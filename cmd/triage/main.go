package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/zen-systems/triage/pkg/classifier"
	"github.com/zen-systems/triage/pkg/schema"
)

var (
	configFile string
	modeFlag   string
	mockFlag   bool
	logLevel   string
	jsonFlag   bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "triage",
		Short: "Eisenhower-matrix task triage with confidence-gated escalation",
		Long: `Triage classifies tasks into Eisenhower quadrants with a deterministic
	rule-based classifier, and escalates low-confidence results to on-device,
	local or cloud models when configured to.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to routing config file")
	rootCmd.PersistentFlags().StringVar(&modeFlag, "mode", "", "routing mode: rule_based_only, hybrid, llm_preferred, llm_only")
	rootCmd.PersistentFlags().BoolVar(&mockFlag, "mock", false, "replace every backend adapter with the mock adapter")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&jsonFlag, "json", false, "print JSON output")

	rootCmd.AddCommand(classifyCmd())
	rootCmd.AddCommand(requestCmd("route", schema.RequestClassifyPriority, "Classify a task, escalating when confidence is low"))
	rootCmd.AddCommand(requestCmd("parse", schema.RequestParseTask, "Extract title, due date, due time and quadrant from a task"))
	rootCmd.AddCommand(requestCmd("goal", schema.RequestSuggestGoal, "Turn free text into a structured goal"))
	rootCmd.AddCommand(requestCmd("due", schema.RequestExtractDueDate, "Extract a due date and time"))
	rootCmd.AddCommand(batchCmd())
	rootCmd.AddCommand(backendsCmd())
	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func classifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify [task]",
		Short: "Classify a task with the rule-based classifier only",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result := classifier.New().Classify(strings.Join(args, " "))
			if jsonFlag {
				return printJSON(cmd.OutOrStdout(), result)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			writeClassification(w, result)
			return w.Flush()
		},
	}
}

// requestFlags are the per-request options shared by route, parse, goal and due.
type requestFlags struct {
	noEscalate    bool
	minConfidence float64
	contextPairs  []string
	maxTokens     int
	temperature   float64
}

func (f requestFlags) request(reqType schema.RequestType, text string) (*schema.Request, error) {
	opts := []schema.RequestOption{
		schema.WithEscalation(!f.noEscalate),
		schema.WithMinConfidence(f.minConfidence),
		schema.WithGeneration(f.maxTokens, f.temperature),
	}
	if len(f.contextPairs) > 0 {
		kv, err := parseContext(f.contextPairs)
		if err != nil {
			return nil, err
		}
		opts = append(opts, schema.WithContext(kv))
	}
	return schema.NewRequest(reqType, text, opts...), nil
}

func requestCmd(use string, reqType schema.RequestType, short string) *cobra.Command {
	var flags requestFlags

	cmd := &cobra.Command{
		Use:   use + " [text]",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.request(reqType, strings.Join(args, " "))
			if err != nil {
				return err
			}
			a, err := newApp()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()
			resp, err := a.router.Route(ctx, req)
			if err != nil {
				return err
			}
			if jsonFlag {
				return printJSON(cmd.OutOrStdout(), resp)
			}
			return printResponse(cmd.OutOrStdout(), resp)
		},
	}

	cmd.Flags().BoolVar(&flags.noEscalate, "no-escalate", false, "never escalate this request")
	cmd.Flags().Float64Var(&flags.minConfidence, "min-confidence", 0, "escalate below this confidence instead of the configured threshold")
	cmd.Flags().StringArrayVar(&flags.contextPairs, "context", nil, "key=value context passed to backends (repeatable)")
	cmd.Flags().IntVar(&flags.maxTokens, "max-tokens", 0, "completion token budget for backends (0 uses the backend's setting)")
	cmd.Flags().Float64Var(&flags.temperature, "temperature", 0, "sampling temperature for backends (0 uses the backend's setting)")
	return cmd
}

func parseContext(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid context %q, want key=value", p)
		}
		out[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return out, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printResponse(out io.Writer, resp *schema.Response) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	res := resp.Result
	switch {
	case res.Classification != nil:
		writeClassification(w, *res.Classification)
	case res.Task != nil:
		fmt.Fprintf(w, "TITLE\t%s\n", res.Task.Title)
		fmt.Fprintf(w, "DUE\t%s %s\n", orDash(res.Task.DueDate), res.Task.DueTime)
		writeClassification(w, res.Task.Classification)
	case res.Goal != nil:
		g := res.Goal
		fmt.Fprintf(w, "TITLE\t%s\n", g.Title)
		fmt.Fprintf(w, "CATEGORY\t%s\n", orDash(g.Category))
		fmt.Fprintf(w, "TIMEFRAME\t%s\n", orDash(g.Timeframe))
		fmt.Fprintf(w, "TARGET\t%s\n", orDash(g.TargetDate))
		fmt.Fprintf(w, "MEASURABLE\t%t\n", g.Measurable)
		for i, m := range g.Milestones {
			fmt.Fprintf(w, "MILESTONE %d\t%s\n", i+1, m)
		}
		fmt.Fprintf(w, "CONFIDENCE\t%.2f\n", g.Confidence)
	case res.DueDate != nil:
		d := res.DueDate
		fmt.Fprintf(w, "FOUND\t%t\n", d.Found)
		fmt.Fprintf(w, "DATE\t%s\t%s\n", orDash(d.Date), d.DateSpan)
		fmt.Fprintf(w, "TIME\t%s\t%s\n", orDash(d.Time), d.TimeSpan)
	}

	p := resp.Provenance
	fmt.Fprintln(w)
	fmt.Fprintf(w, "PROVIDER\t%s (%s)\n", p.ProviderID, p.ModelID)
	fmt.Fprintf(w, "MODE\t%s\n", p.Mode)
	fmt.Fprintf(w, "ESCALATED\t%t\n", p.WasEscalated)
	for _, at := range p.Attempts {
		status := "ok"
		switch {
		case at.Skipped:
			status = "skipped"
		case at.Error != "":
			status = at.Error
		}
		fmt.Fprintf(w, "ATTEMPT\t%s\t%s\n", at.Backend, status)
	}
	if p.Cost != nil {
		fmt.Fprintf(w, "COST\t%.6f %s\n", p.Cost.Amount, p.Cost.Currency)
	}
	fmt.Fprintf(w, "LATENCY\t%dms\n", p.LatencyMs)
	return w.Flush()
}

func writeClassification(w io.Writer, c schema.ClassificationResult) {
	fmt.Fprintf(w, "QUADRANT\t%s (%s)\n", c.Quadrant, c.Quadrant.Label())
	fmt.Fprintf(w, "CONFIDENCE\t%.2f\n", c.Confidence)
	fmt.Fprintf(w, "EXPLANATION\t%s\n", c.Explanation)
	if len(c.UrgencySignals) > 0 {
		fmt.Fprintf(w, "URGENCY\t%s\n", strings.Join(c.UrgencySignals, ", "))
	}
	if len(c.ImportanceSignals) > 0 {
		fmt.Fprintf(w, "IMPORTANCE\t%s\n", strings.Join(c.ImportanceSignals, ", "))
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
