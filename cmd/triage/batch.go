package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/zen-systems/triage/pkg/crypto"
	"github.com/zen-systems/triage/pkg/evidence"
	"github.com/zen-systems/triage/pkg/router"
	"github.com/zen-systems/triage/pkg/schema"
)

// batchItem is one input line and its outcome.
type batchItem struct {
	line int
	text string
	req  *schema.Request
	resp *schema.Response
	err  error
}

func batchCmd() *cobra.Command {
	var inputFile string
	var outDir string
	var typeFlag string
	var parallel int
	var sign bool

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Route every line of a file and print routing stats",
		Long: `Routes each non-empty line of the input file (or stdin with -f -).
	Lines are routed concurrently, bounded by --parallel. With --out, run.json
	and one decisions/<request-id>.json per line are written under
	<out>/<run-id>/.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if sign && outDir == "" {
				return errors.New("--sign requires --out")
			}
			reqType, err := schema.ParseRequestType(typeFlag)
			if err != nil {
				return err
			}
			data, err := readInput(inputFile, cmd.InOrStdin())
			if err != nil {
				return err
			}
			a, err := newApp()
			if err != nil {
				return err
			}

			started := time.Now().UTC()
			items := parseLines(string(data), reqType)
			runBatch(cmd.Context(), a.router, items, parallel)

			if outDir != "" {
				runID := started.Format("20060102-150405") + "-" + uuid.NewString()[:8]
				w, err := writeEvidence(outDir, runID, inputFile, data, started, a.router, items)
				if err != nil {
					return err
				}
				if sign {
					signer, err := crypto.NewSigner(filepath.Join(a.cfg.ConfigDir, "keys"), "triage")
					if err != nil {
						return fmt.Errorf("load signing key: %w", err)
					}
					if err := w.SignRun(signer); err != nil {
						return fmt.Errorf("sign run: %w", err)
					}
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "evidence written to %s\n", w.RunDir())
			}
			return printBatch(cmd.OutOrStdout(), items, a.router)
		},
	}

	cmd.Flags().StringVarP(&inputFile, "file", "f", "", "input file, one task per line (- for stdin)")
	cmd.Flags().StringVar(&outDir, "out", "", "directory for evidence records")
	cmd.Flags().StringVar(&typeFlag, "type", string(schema.RequestClassifyPriority), "request type for every line")
	cmd.Flags().IntVar(&parallel, "parallel", 4, "maximum concurrent requests")
	cmd.Flags().BoolVar(&sign, "sign", false, "sign run.json with the local ed25519 key (requires --out)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

// parseLines skips blank lines and lines starting with '#'.
func parseLines(data string, reqType schema.RequestType) []*batchItem {
	var items []*batchItem
	scanner := bufio.NewScanner(strings.NewReader(data))
	for n := 1; scanner.Scan(); n++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		items = append(items, &batchItem{line: n, text: text, req: schema.NewRequest(reqType, text)})
	}
	return items
}

// runBatch routes items with at most parallel in flight. Routing errors are
// kept per item; the batch itself does not fail.
func runBatch(ctx context.Context, r *router.Router, items []*batchItem, parallel int) {
	if parallel < 1 {
		parallel = 1
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for _, item := range items {
		g.Go(func() error {
			item.resp, item.err = r.Route(ctx, item.req)
			return nil
		})
	}
	_ = g.Wait()
}

func writeEvidence(outDir, runID, inputFile string, data []byte, started time.Time, r *router.Router, items []*batchItem) (*evidence.Writer, error) {
	w, err := evidence.NewWriter(outDir, runID)
	if err != nil {
		return nil, fmt.Errorf("evidence: %w", err)
	}

	failures := 0
	for _, item := range items {
		rec := evidence.DecisionRecord{
			RequestID: item.req.ID,
			Line:      item.line,
			Text:      item.text,
			Response:  item.resp,
		}
		if item.err != nil {
			rec.Error = item.err.Error()
			failures++
		}
		if err := w.WriteDecision(rec); err != nil {
			return nil, fmt.Errorf("evidence: %w", err)
		}
	}

	return w, w.WriteRun(evidence.RunRecord{
		ID:         runID,
		Timestamp:  started,
		FinishedAt: time.Now().UTC(),
		InputFile:  inputFile,
		InputHash:  evidence.Hash(data),
		Mode:       string(r.Mode()),
		Requests:   len(items),
		Failures:   failures,
		Stats:      r.Stats(),
		Accuracy:   r.AccuracyReport(),
	})
}

func printBatch(out io.Writer, items []*batchItem, r *router.Router) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "LINE\tQUADRANT\tCONFIDENCE\tPATH\tTEXT")
	for _, item := range items {
		if item.err != nil {
			fmt.Fprintf(w, "%d\t-\t-\terror: %v\t%s\n", item.line, item.err, item.text)
			continue
		}
		quadrant := "-"
		if q, ok := item.resp.Result.Quadrant(); ok {
			quadrant = string(q)
		}
		path := "rule-based"
		if item.resp.Provenance.WasEscalated {
			path = item.resp.Provenance.BackendID
		}
		fmt.Fprintf(w, "%d\t%s\t%.2f\t%s\t%s\n", item.line, quadrant, item.resp.Result.Confidence(), path, item.text)
	}

	st := r.Stats()
	fmt.Fprintln(w)
	fmt.Fprintf(w, "TOTAL\t%d\n", st.TotalRequests)
	fmt.Fprintf(w, "RULE-BASED\t%d\n", st.RuleBasedOnlyCount)
	fmt.Fprintf(w, "ESCALATED\t%d\n", st.EscalatedCount)
	fmt.Fprintf(w, "ESCALATION FAILED\t%d\n", st.EscalationFailedCount)
	return w.Flush()
}
