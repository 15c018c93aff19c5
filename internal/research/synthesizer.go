package research

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mohammad-safakhou/deepresearch/internal/llm"
	"github.com/mohammad-safakhou/deepresearch/internal/prompts"
)

type SynthesizerOptions struct {
	Model string
	// FactChecker, when set, runs the editor prompt through a tool-using
	// agent so claims can be checked against the web before the final
	// answer. Nil means a single plain completion.
	FactChecker Runner
	Logger      *zap.Logger
}

// Synthesizer merges a ReportBundle into the final report.
type Synthesizer struct {
	llm         llm.Completer
	model       string
	factChecker Runner
	logger      *zap.Logger
}

func NewSynthesizer(completer llm.Completer, opts SynthesizerOptions) *Synthesizer {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synthesizer{llm: completer, model: opts.Model, factChecker: opts.FactChecker, logger: logger.Named("synthesizer")}
}

// Synthesize produces the final report. Every outcome in bundle reaches the
// prompt, and failed subtasks are additionally listed in a gaps section
// appended to the report.
func (s *Synthesizer) Synthesize(ctx context.Context, query, plan string, bundle ReportBundle) (string, error) {
	prompt := prompts.Synthesis(prompts.SynthesisContext{
		Query:           query,
		Plan:            plan,
		CombinedReports: CombinedReports(bundle),
		FactCheck:       s.factChecker != nil,
	})
	s.logger.Info("synthesizing report",
		zap.Int("outcomes", len(bundle)),
		zap.Bool("fact_check", s.factChecker != nil),
	)

	var (
		report string
		err    error
	)
	if s.factChecker != nil {
		report, err = s.factChecker.Run(ctx, prompt)
	} else {
		var resp llm.Response
		resp, err = s.llm.Complete(ctx, llm.Request{Model: s.model, Messages: []llm.Message{llm.User(prompt)}})
		report = resp.Content
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(report) + GapsSection(bundle), nil
}

// CombinedReports renders the bundle, in order, for the editor prompt.
func CombinedReports(bundle ReportBundle) string {
	reports := make([]prompts.Report, 0, len(bundle))
	for _, o := range bundle {
		reports = append(reports, prompts.Report{
			SubtaskID: o.SubtaskID,
			Title:     o.Title,
			Failed:    o.Failed(),
			Body:      o.Payload,
		})
	}
	return prompts.CombinedReports(reports)
}

// GapsSection lists failed subtasks, or returns "" when none failed.
func GapsSection(bundle ReportBundle) string {
	failed := bundle.Failed()
	if len(failed) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n\n## Research Gaps\n\n")
	b.WriteString("The following subtasks could not be researched; their findings are missing from this report:\n\n")
	for _, o := range failed {
		fmt.Fprintf(&b, "- **%s** (%s): %s\n", o.SubtaskID, o.Title, strings.Join(strings.Fields(o.Payload), " "))
	}
	return b.String()
}
