package ai

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/optischema/optischema/analysis"
)

/*
Prompt carries the rendered system and user messages plus the JSON schema
the model's response must satisfy.
*/
type Prompt struct {
	schema any
	system string
	user   string
}

/*
PromptOption is a function type for configuring a Prompt instance.
It follows the functional options pattern for flexible configuration.
*/
type PromptOption func(*Prompt) error

/*
NewPrompt creates a new Prompt instance with the given options.
It initializes the prompt with default templates and applies any provided
options.
*/
func NewPrompt(opts ...PromptOption) (*Prompt, error) {
	prompt := &Prompt{
		schema: SuggestionSchema,
		system: defaultTemplates["system_prompt"],
		user:   defaultTemplates["user_prompt"],
	}

	for _, opt := range opts {
		if err := opt(prompt); err != nil {
			return nil, err
		}
	}

	return prompt, nil
}

/*
WithAnalysis renders the user prompt template from a plan analysis.
*/
func WithAnalysis(a *analysis.PlanAnalysis) PromptOption {
	return func(prompt *Prompt) error {
		tmpl, err := template.New("user_prompt").Parse(prompt.user)
		if err != nil {
			return fmt.Errorf("failed to parse user prompt template: %w", err)
		}

		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, a); err != nil {
			return fmt.Errorf("failed to render user prompt: %w", err)
		}

		prompt.user = buf.String()
		return nil
	}
}

/*
WithSchema sets the JSON schema for the prompt.
This schema defines the structure of the expected AI response.
*/
func WithSchema(schema any) PromptOption {
	return func(prompt *Prompt) error {
		prompt.schema = schema
		return nil
	}
}

/*
WithTemplate overrides the default system or user prompt template.
*/
func WithTemplate(name string, tmpl string) PromptOption {
	return func(prompt *Prompt) error {
		if _, err := template.New(name).Parse(tmpl); err != nil {
			return fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		switch name {
		case "system_prompt":
			prompt.system = tmpl
		case "user_prompt":
			prompt.user = tmpl
		default:
			return fmt.Errorf("unknown template %s", name)
		}
		return nil
	}
}

/*
User returns the rendered user message.
*/
func (prompt *Prompt) User() string {
	return prompt.user
}

/*
System returns the system message.
*/
func (prompt *Prompt) System() string {
	return prompt.system
}

var defaultTemplates = map[string]string{
	"system_prompt": `
	You are a PostgreSQL performance expert.

	You will be given a slow statement together with its execution plan
	analysis and workload statistics.

	Suggest exactly one optimization. Prefer an index when the bottleneck is
	a sequential scan with a selective filter, a query rewrite when the
	statement text is the problem, and a configuration change only when
	neither applies.

	The sql_fix field must contain a single complete SQL statement that can
	be executed as-is. For indexes, use CREATE INDEX with an explicit name.
	`,
	"user_prompt": `
	Please analyze the following PostgreSQL statement and suggest an optimization.

	Statement:
	{{.QueryText}}

	Bottleneck: {{.Bottleneck}}
	Detail: {{.BottleneckDetail}}
	{{- if .SeqScanRelation}}
	Relation: {{.SeqScanRelation}}
	Filter: {{.SeqScanFilter}}
	{{- end}}

	Mean time: {{printf "%.2f" .MeanTimeMillis}} ms
	Share of total database time: {{printf "%.1f" .TimePercentage}}%
	Performance score: {{.PerformanceScore}}/100

	{{- if .StatementIssues}}
	Statement-level issues:
	{{- range .StatementIssues}}
	- {{.Type}} ({{.Severity}}): {{.Description}}
	{{- end}}
	{{- end}}
	`,
}
