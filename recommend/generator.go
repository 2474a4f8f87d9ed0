package recommend

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/optischema/optischema/ai"
	"github.com/optischema/optischema/aicache"
	"github.com/optischema/optischema/analysis"
	"github.com/optischema/optischema/logger"
)

// heuristicPenalty is subtracted from the confidence score whenever a
// recommendation was produced without provider assistance, whether the
// provider failed or none is configured.
const heuristicPenalty = 15

/*
Generator turns plan analyses into recommendations. The provider is
consulted through the response cache under a timeout; any provider or cache
failure degrades to the heuristic template with reduced confidence and a
raised risk level. A recommendation is always emitted, never dropped.
*/
type Generator struct {
	provider ai.Provider
	cache    *aicache.Client
	timeout  time.Duration
}

type GeneratorOptionFn func(*Generator)

/*
NewGenerator creates a generator with the given options.
*/
func NewGenerator(opts ...GeneratorOptionFn) *Generator {
	generator := &Generator{
		timeout: 30 * time.Second,
	}

	for _, fn := range opts {
		fn(generator)
	}

	return generator
}

/*
WithProvider sets the reasoning provider. Without one the generator is
heuristic-only.
*/
func WithProvider(provider ai.Provider) GeneratorOptionFn {
	return func(g *Generator) {
		g.provider = provider
	}
}

/*
WithCache sets the response cache the provider is consulted through.
*/
func WithCache(cache *aicache.Client) GeneratorOptionFn {
	return func(g *Generator) {
		g.cache = cache
	}
}

/*
WithTimeout bounds each provider consultation.
*/
func WithTimeout(timeout time.Duration) GeneratorOptionFn {
	return func(g *Generator) {
		g.timeout = timeout
	}
}

/*
Generate produces the recommendation for one analyzed statement.
*/
func (g *Generator) Generate(ctx context.Context, a *analysis.PlanAnalysis) *Recommendation {
	heuristic := heuristicSuggestion(a)
	suggestion := heuristic
	heuristicOnly := true
	providerName := ""

	if g.provider != nil {
		if fetched, err := g.consult(ctx, a); err != nil {
			logger.Warn("Provider consultation failed, emitting heuristic-only recommendation",
				"fingerprint", a.Fingerprint,
				"provider", g.provider.Name(),
				"error", err)
		} else {
			suggestion = fetched
			heuristicOnly = false
			providerName = g.provider.Name()
		}
	}

	rec := &Recommendation{
		ID:                      uuid.NewString(),
		Fingerprint:             a.Fingerprint,
		QueryText:               a.QueryText,
		Kind:                    kindFor(a),
		Summary:                 suggestion.Summary,
		Rationale:               suggestion.Rationale,
		SQLFix:                  suggestion.SQLFix,
		EstimatedImprovementPct: suggestion.EstimatedImprovementPct,
		Confidence:              suggestion.Confidence,
		Risk:                    Risk(suggestion.Risk),
		HeuristicOnly:           heuristicOnly,
		Provider:                providerName,
		Caveats:                 suggestion.Caveats,
		CreatedAt:               time.Now().UTC(),
	}

	if rec.SQLFix == "" {
		rec.SQLFix = heuristic.SQLFix
	}
	if rec.EstimatedImprovementPct <= 0 {
		rec.EstimatedImprovementPct = heuristic.EstimatedImprovementPct
	}
	if rec.Risk == "" {
		rec.Risk = RiskLow
	}

	if heuristicOnly {
		rec.Confidence = max(0, rec.Confidence-heuristicPenalty)
		rec.Risk = rec.Risk.Raise()
	}

	rec.RollbackSQL = RollbackFor(rec.SQLFix)

	logger.Info("Generated recommendation",
		"fingerprint", rec.Fingerprint,
		"type", rec.Kind,
		"impact", rec.Impact(),
		"confidence", rec.Confidence,
		"heuristic_only", rec.HeuristicOnly)

	return rec
}

// consult asks the provider through the cache, bounded by the configured
// timeout. The cached value is the serialized suggestion.
func (g *Generator) consult(ctx context.Context, a *analysis.PlanAnalysis) (*ai.Suggestion, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	prompt, err := ai.NewPrompt(ai.WithAnalysis(a))
	if err != nil {
		return nil, NewRecommendError(ErrorTypeProvider, "failed to build prompt", err).
			WithFingerprint(a.Fingerprint)
	}

	fetch := func(ctx context.Context) ([]byte, error) {
		suggestion, err := g.provider.Suggest(ctx, prompt)
		if err != nil {
			return nil, err
		}
		return json.Marshal(suggestion)
	}

	var raw []byte
	if g.cache != nil {
		key := aicache.Key(a.Fingerprint, a.Bottleneck.String(), g.provider.Name())
		raw, err = g.cache.Fetch(ctx, key, fetch)
	} else {
		raw, err = fetch(ctx)
	}
	if err != nil {
		return nil, NewRecommendError(ErrorTypeProvider, "provider request failed", err).
			WithFingerprint(a.Fingerprint).
			WithProvider(g.provider.Name())
	}

	var suggestion ai.Suggestion
	if err := json.Unmarshal(raw, &suggestion); err != nil {
		return nil, NewRecommendError(ErrorTypeProvider, "malformed provider response", err).
			WithFingerprint(a.Fingerprint).
			WithProvider(g.provider.Name())
	}

	return &suggestion, nil
}
