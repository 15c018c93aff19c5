package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/mohammad-safakhou/deepresearch/internal/research"
)

var (
	stageStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("220"))
	titleStyle   = lipgloss.NewStyle().Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

var stageLabels = map[research.Stage]string{
	research.StagePlanning:     "Generating the research plan",
	research.StageSplitting:    "Splitting the plan into subtasks",
	research.StageFanningOut:   "Running sub-agents",
	research.StageSynthesizing: "Synthesizing the final report",
	research.StageDone:         "Done",
	research.StageFailed:       "Failed",
}

// consoleObserver prints run progress for a terminal.
type consoleObserver struct {
	mu       sync.Mutex
	out      io.Writer
	midChunk bool
	total    int
	settled  int
}

func newConsoleObserver(out io.Writer) *consoleObserver {
	return &consoleObserver{out: out}
}

func (o *consoleObserver) StageChanged(_ string, stage research.Stage) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.endLine()
	label, ok := stageLabels[stage]
	if !ok {
		label = string(stage)
	}
	style := stageStyle
	if stage == research.StageFailed {
		style = errorStyle
	}
	fmt.Fprintf(o.out, "\n%s\n", style.Render("» "+label))
}

func (o *consoleObserver) PlanChunk(_ string, chunk string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fmt.Fprint(o.out, chunk)
	o.midChunk = !strings.HasSuffix(chunk, "\n")
}

func (o *consoleObserver) SubtasksReady(_ string, subtasks []research.Subtask) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.endLine()
	o.total = len(subtasks)
	o.settled = 0
	if len(subtasks) == 0 {
		fmt.Fprintln(o.out, dimStyle.Render("No subtasks were produced."))
		return
	}
	for _, t := range subtasks {
		fmt.Fprintln(o.out, titleStyle.Render("["+t.ID+"] "+t.Title))
		fmt.Fprintln(o.out, dimStyle.Render("    "+t.Description))
	}
}

func (o *consoleObserver) WorkerSettled(_ string, outcome research.WorkerOutcome) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.settled++
	progress := dimStyle.Render(fmt.Sprintf("(%d/%d)", o.settled, o.total))
	if outcome.Failed() {
		fmt.Fprintf(o.out, "%s %s %s: %s\n", errorStyle.Render("✗"), progress, outcome.SubtaskID, errorStyle.Render(outcome.Payload))
		return
	}
	fmt.Fprintf(o.out, "%s %s %s %s\n", successStyle.Render("✓"), progress, outcome.SubtaskID, outcome.Title)
}

func (o *consoleObserver) endLine() {
	if o.midChunk {
		fmt.Fprintln(o.out)
		o.midChunk = false
	}
}
