package ai

import (
	"context"

	"github.com/invopop/jsonschema"
)

/*
Suggestion is the structured optimization a model returns for one analyzed
statement. It carries everything needed to turn it into an actionable
recommendation, including the exact SQL to apply.
*/
type Suggestion struct {
	Kind                    string   `json:"kind" jsonschema:"enum=index,enum=rewrite,enum=config" jsonschema_description:"The type of optimization being suggested"`
	Summary                 string   `json:"summary" jsonschema_description:"One-line summary of the optimization"`
	Rationale               string   `json:"rationale" jsonschema_description:"Why this optimization addresses the identified bottleneck"`
	SQLFix                  string   `json:"sql_fix" jsonschema_description:"The exact SQL statement to apply: a CREATE INDEX, a rewritten query, or an ALTER SYSTEM SET"`
	EstimatedImprovementPct float64  `json:"estimated_improvement_pct" jsonschema_description:"Expected reduction of the statement's mean execution time, in percent"`
	Confidence              int      `json:"confidence" jsonschema_description:"Confidence in this suggestion from 0 to 100"`
	Risk                    string   `json:"risk" jsonschema:"enum=low,enum=medium,enum=high" jsonschema_description:"Potential risk level of applying this change"`
	Caveats                 []string `json:"caveats,omitempty" jsonschema_description:"Conditions under which this optimization may not help or may hurt"`
}

/*
Provider generates an optimization suggestion from a rendered prompt.
Implementations wrap one model endpoint.
*/
type Provider interface {
	Name() string
	Suggest(ctx context.Context, prompt *Prompt) (*Suggestion, error)
}

/*
GenerateSchema creates a JSON schema for structured outputs.
It uses reflection to generate a schema based on the provided type T.
*/
func GenerateSchema[T any]() interface{} {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return reflector.Reflect(&v)
}

var SuggestionSchema = GenerateSchema[Suggestion]()
