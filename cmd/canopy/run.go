package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/canopy/internal/presentation/graph"
	"github.com/aretw0/canopy/internal/presentation/tui"
	"github.com/aretw0/canopy/internal/scenario"
	"github.com/aretw0/canopy/pkg/debugger"
	"github.com/aretw0/canopy/pkg/domain"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
)

const (
	formatTree     = "tree"
	formatMarkdown = "markdown"
	formatMermaid  = "mermaid"
	formatJSON     = "json"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run <scenario>",
	Short: "Apply a scenario and print the resulting trees",
	Long: `Builds the workflows declared in a scenario file, applies its operations in
order and prints every resulting root tree. Operations whose error matches
their expect_error continue; any other outcome stops the run.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		verify, _ := cmd.Flags().GetBool("verify")
		switch format {
		case formatTree, formatMarkdown, formatMermaid, formatJSON:
		default:
			return fmt.Errorf("unknown format %q: expected tree, markdown, mermaid or json", format)
		}

		s, err := openSession(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		defer s.close()

		runErr := s.run(cmd.Context())
		s.drain()
		if s.tree == nil {
			return runErr
		}

		var verifyErr error
		if verify {
			verifyErr = s.verify()
		}

		out := cmd.OutOrStdout()
		if err := printReport(out, format, s, verify, verifyErr); err != nil {
			return err
		}
		return errors.Join(runErr, verifyErr)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("format", "f", formatTree, "Output format: tree, markdown, mermaid or json")
	runCmd.Flags().Bool("verify", false, "Check tree and index integrity after the run")
	runCmd.Flags().String("redis", "", "Record the event trail in redis at this address")
}

// Report is the JSON rendering of a run.
type Report struct {
	Scenario string             `json:"scenario"`
	Roots    []*domain.NodeView `json:"roots"`
	Outcomes []OutcomeReport    `json:"outcomes"`
	Indexes  []debugger.Stats   `json:"indexes"`
	Trail    map[string]int     `json:"trail"`
	Verified *bool              `json:"verified,omitempty"`
}

// OutcomeReport is one applied op.
type OutcomeReport struct {
	Index    int    `json:"index"`
	Op       string `json:"op"`
	Error    string `json:"error,omitempty"`
	Expected bool   `json:"expected"`
}

func printReport(out io.Writer, format string, s *session, verified bool, verifyErr error) error {
	roots := s.tree.Roots()
	views := make([]*domain.NodeView, len(roots))
	for i, r := range roots {
		views[i] = r.View()
	}

	switch format {
	case formatJSON:
		report := Report{
			Scenario: s.scenario.Name,
			Roots:    views,
			Trail:    map[string]int{},
		}
		for _, o := range s.outcomes {
			or := OutcomeReport{Index: o.Index, Op: o.Op.String(), Expected: o.Expected}
			if o.Err != nil {
				or.Error = o.Err.Error()
			}
			report.Outcomes = append(report.Outcomes, or)
		}
		for _, d := range s.debuggers {
			report.Indexes = append(report.Indexes, d.Index.Stats())
			entries, err := s.sink.Recent(context.Background(), d.Root.ID(), 0)
			if err != nil {
				return fmt.Errorf("failed to read trail: %w", err)
			}
			report.Trail[d.Root.ID()] = len(entries)
		}
		if verified {
			ok := verifyErr == nil
			report.Verified = &ok
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)

	case formatMermaid:
		for _, v := range views {
			fmt.Fprint(out, graph.GenerateMermaid(v, nil))
		}
		return nil

	case formatMarkdown:
		var sb strings.Builder
		for _, v := range views {
			sb.WriteString(tui.Markdown(v.Name, v))
			sb.WriteString("\n")
		}
		sb.WriteString(outcomesMarkdown(s.outcomes))
		md := sb.String()
		if tui.IsTerminal(out) {
			rendered, err := tui.NewRenderer()(md)
			if err == nil {
				md = rendered
			}
		}
		_, err := fmt.Fprint(out, md)
		return err
	}

	p := tui.Profile(out)
	for _, v := range views {
		if err := tui.RenderTree(out, v, p); err != nil {
			return err
		}
		fmt.Fprintln(out)
	}
	printOutcomes(out, p, s.outcomes)
	if verifyErr != nil {
		fmt.Fprintln(out, p.String("integrity check failed").Foreground(p.Color("#f87171")))
	} else if verified {
		fmt.Fprintln(out, p.String("integrity verified").Foreground(p.Color("#4ade80")))
	}
	return nil
}

func printOutcomes(out io.Writer, p termenv.Profile, outcomes []scenario.Outcome) {
	for _, o := range outcomes {
		mark := p.String("✓").Foreground(p.Color("#4ade80"))
		if !o.OK() {
			mark = p.String("✗").Foreground(p.Color("#f87171"))
		}
		line := fmt.Sprintf("%s %s", mark, o.Op)
		if o.Err != nil {
			line += p.String(fmt.Sprintf(" (%v)", o.Err)).Faint().String()
		}
		fmt.Fprintln(out, line)
	}
}

func outcomesMarkdown(outcomes []scenario.Outcome) string {
	if len(outcomes) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("## Operations\n\n| # | Op | Result |\n|---|---|---|\n")
	for _, o := range outcomes {
		result := "ok"
		switch {
		case o.Err != nil && o.OK():
			result = "expected: " + o.Err.Error()
		case o.Err != nil:
			result = "**failed**: " + o.Err.Error()
		case !o.OK():
			result = "**unexpected success**"
		}
		sb.WriteString(fmt.Sprintf("| %d | %s | %s |\n", o.Index, o.Op, strings.ReplaceAll(result, "|", "\\|")))
	}
	return sb.String()
}
