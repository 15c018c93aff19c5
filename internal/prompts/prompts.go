// Package prompts holds the fixed instructions sent to the model at each
// pipeline stage. Templates are rendered from plain context records and carry
// no control flow of their own.
package prompts

import (
	"bytes"
	"strings"
	"text/template"
)

// Planner is the system instruction for turning a query into a research plan.
const Planner = `You will be given a research task by a user. Your job is to produce a set of
instructions for a researcher that will complete the task. Do NOT complete the
task yourself, just provide instructions on how to complete it.

GUIDELINES:
1. Maximize specificity and detail. Include all known user preferences and
   explicitly list key attributes or dimensions to consider.
2. If essential attributes are missing, explicitly state that they are open-ended.
3. Avoid unwarranted assumptions. Treat unspecified dimensions as flexible.
4. Use the first person (from the user's perspective).
5. When helpful, explicitly ask the researcher to include tables.
6. Include the expected output format (e.g. structured report with headers).
7. Preserve the input language unless the user explicitly asks otherwise.
8. Sources: prefer primary / official / original sources.
`

// Splitter is the system instruction for decomposing a plan into subtasks.
const Splitter = `You will be given a set of research instructions (a research plan).
Your job is to break this plan into a set of coherent, non-overlapping
subtasks that can be researched independently by separate agents.

Requirements:
- 3 to 8 subtasks is usually a good range. Use your judgment.
- Each subtask should have:
  - an 'id' (short string),
  - a 'title' (short descriptive title),
  - a 'description' (clear, detailed instructions for the sub-agent).
- Subtasks should collectively cover the full scope of the original plan
  without unnecessary duplication.
- Prefer grouping by dimensions: time periods, regions, actors, themes,
  causal mechanisms, etc., depending on the topic.
- Each description should be very clear and detailed about everything that
  the agent needs to research to cover that topic.
- Do not include a final task that will put everything together.
  This will be done later in another step.

Output format:
Return ONLY valid JSON with this schema:

{
  "subtasks": [
    {
      "id": "string",
      "title": "string",
      "description": "string"
    }
  ]
}
`

const subtaskTemplate = `You are a specialized research sub-agent.

Global user query:
{{.Query}}

Overall research plan:
{{.Plan}}

Your specific subtask (ID: {{.ID}}, Title: {{.Title}}) is:

"""{{.Description}}"""

Instructions:
- Focus ONLY on this subtask, but keep the global query in mind for context.
- Use the available tools to search for up-to-date, high-quality sources.
- Prioritize primary and official sources when possible.
- Be explicit about uncertainties, disagreements in the literature, and gaps.
- Return your results as a MARKDOWN report with this structure:

# [Subtask ID] [Subtask Title]

## Summary
Short overview of the main findings.

## Detailed Analysis
Well-structured explanation with subsections as needed.

## Key Points
- Bullet point
- Bullet point

## Sources
- [Title](url) - short comment on why this source is relevant

Now perform the research and return ONLY the markdown report.
`

const synthesisTemplate = `You are a CHIEF EDITOR overseeing a comprehensive research project.

The user originally asked:
"""{{.Query}}"""

The research plan was:
"""{{.Plan}}"""

Multiple research sub-agents have completed their work concurrently. Here are their reports:

{{.CombinedReports}}

---

Your job as CHIEF EDITOR:
{{if .FactCheck}}
1. VALIDATE AND VERIFY: Review all sub-agent findings. If you spot claims that seem
   questionable, outdated, or need verification, USE YOUR WEB SEARCH TOOLS to
   fact-check and validate the information. You have access to search_web and
   scrape_url tools - use them proactively to ensure accuracy.
{{else}}
1. REVIEW: Read all sub-agent findings critically. Flag claims that seem
   questionable or outdated instead of repeating them as settled fact.
{{end}}
2. SYNTHESIZE: Integrate all validated findings into a SINGLE, coherent, deeply
   researched report addressing the original user query.

3. EDITORIAL STANDARDS:
   - Integrate all sub-agent findings; avoid redundancy.
   - Correct any factual errors or outdated information you find.
   - Fill gaps where sub-agents may have missed important information.
   - Where a sub-agent report is marked as a research gap, say so explicitly
     in the relevant section instead of inventing findings.
   - Make the structure clear with headings and subheadings.
   - Highlight:
     - key drivers and mechanisms,
     - historical and temporal evolution,
     - geographic and thematic patterns,
     - relevant correlates and context,
     - open questions and uncertainties.
   - Include final sections:
     - Open Questions and Further Research
     - Bibliography / Sources: merge and deduplicate key sources from all sub-agents.

4. QUALITY CONTROL: The final report should be publication-ready, with verified
   facts and comprehensive coverage.

Your final answer should be a polished, comprehensive markdown report that you
can confidently stand behind as accurate and complete.
`

var (
	subtaskTmpl   = template.Must(template.New("subtask").Parse(subtaskTemplate))
	synthesisTmpl = template.Must(template.New("synthesis").Parse(synthesisTemplate))
)

// SubtaskContext is everything a worker instruction is built from.
type SubtaskContext struct {
	Query       string
	Plan        string
	ID          string
	Title       string
	Description string
}

// SynthesisContext feeds the final editing prompt.
type SynthesisContext struct {
	Query           string
	Plan            string
	CombinedReports string
	FactCheck       bool
}

// Subtask renders the instruction handed to a single research worker.
func Subtask(c SubtaskContext) string {
	return render(subtaskTmpl, c)
}

// Synthesis renders the chief editor prompt.
func Synthesis(c SynthesisContext) string {
	return render(synthesisTmpl, c)
}

func render(t *template.Template, data any) string {
	var buf bytes.Buffer
	// Static templates over string fields cannot fail to execute.
	if err := t.Execute(&buf, data); err != nil {
		panic(err)
	}
	return buf.String()
}

// Report is one worker outcome as presented to the editor.
type Report struct {
	SubtaskID string
	Title     string
	Failed    bool
	Body      string // markdown findings, or the error when Failed
}

const noReports = "(No sub-agent reports were produced for this plan.)"

// CombinedReports renders every report under its own heading, in the given
// order. Failed reports are rendered as research gaps carrying their error.
func CombinedReports(reports []Report) string {
	if len(reports) == 0 {
		return noReports
	}
	blocks := make([]string, 0, len(reports))
	for _, r := range reports {
		var b strings.Builder
		b.WriteString("## Subtask ")
		b.WriteString(r.SubtaskID)
		b.WriteString(": ")
		b.WriteString(r.Title)
		b.WriteString("\n\n")
		if r.Failed {
			b.WriteString("**Research gap:** this sub-agent failed and produced no findings.\n")
			b.WriteString("Error: ")
			b.WriteString(r.Body)
		} else if strings.TrimSpace(r.Body) == "" {
			b.WriteString("(The sub-agent returned an empty report.)")
		} else {
			b.WriteString(strings.TrimSpace(r.Body))
		}
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, "\n\n---\n\n")
}
