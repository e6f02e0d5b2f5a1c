// Package cost prices LLM calls and accumulates spend per graph run,
// via a pricing table with prefix-matching model lookup and a
// Calculate/CalculateMultiple/EstimateCost surface.
package cost

import (
	"fmt"
	"strings"
	"sync"
)

// ModelPricing is the per-model USD-per-million-token rate table entry.
type ModelPricing struct {
	Model           string
	InputPer1M      float64
	OutputPer1M     float64
	CachedPer1M     float64
	SupportsCaching bool
}

// Usage is the token accounting for a single LLM call.
type Usage struct {
	Model        string
	InputTokens  int
	OutputTokens int
	CachedTokens int
	TotalTokens  int
}

// Cost is the priced-out USD breakdown for a Usage.
type Cost struct {
	InputCost  float64
	OutputCost float64
	CachedCost float64
	TotalCost  float64
	Currency   string
}

// Calculator prices Usage records against a pricing table covering the
// models internal/llmclient can dispatch to (OpenAI, Bedrock-hosted
// Anthropic/Titan models).
type Calculator struct {
	mu      sync.RWMutex
	pricing map[string]*ModelPricing
}

// NewCalculator builds a Calculator preloaded with default pricing.
func NewCalculator() *Calculator {
	c := &Calculator{pricing: make(map[string]*ModelPricing)}
	c.loadDefaultPricing()
	return c
}

// loadDefaultPricing seeds pricing for the models this system's
// llmclient providers actually dispatch to. Prices as of early 2026;
// update periodically.
func (c *Calculator) loadDefaultPricing() {
	models := []*ModelPricing{
		{Model: "gpt-4o", InputPer1M: 2.5, OutputPer1M: 10.0, CachedPer1M: 1.25, SupportsCaching: true},
		{Model: "gpt-4o-mini", InputPer1M: 0.15, OutputPer1M: 0.60, CachedPer1M: 0.075, SupportsCaching: true},
		{Model: "gpt-4-turbo", InputPer1M: 10.0, OutputPer1M: 30.0},
		{Model: "gpt-3.5-turbo", InputPer1M: 0.5, OutputPer1M: 1.5},

		{Model: "anthropic.claude-3-5-sonnet-20241022-v2:0", InputPer1M: 3.0, OutputPer1M: 15.0},
		{Model: "anthropic.claude-3-5-haiku-20241022-v1:0", InputPer1M: 1.0, OutputPer1M: 5.0},
		{Model: "anthropic.claude-3-haiku-20240307-v1:0", InputPer1M: 0.25, OutputPer1M: 1.25},
		{Model: "amazon.titan-text-express-v1", InputPer1M: 0.2, OutputPer1M: 0.6},

		{Model: "mock", InputPer1M: 0.0, OutputPer1M: 0.0},
	}
	for _, p := range models {
		c.pricing[p.Model] = p
	}
}

// AddPricing adds or overrides pricing for a model.
func (c *Calculator) AddPricing(pricing *ModelPricing) {
	if pricing == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pricing[pricing.Model] = pricing
}

// GetPricing looks up pricing for model, falling back to the longest
// matching prefix (so e.g. "gpt-4o-2026-01-01" matches "gpt-4o").
func (c *Calculator) GetPricing(model string) (*ModelPricing, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if p, ok := c.pricing[model]; ok {
		cp := *p
		return &cp, true
	}

	var best *ModelPricing
	for key, p := range c.pricing {
		if strings.HasPrefix(model, key) {
			if best == nil || len(key) > len(best.Model) {
				best = p
			}
		}
	}
	if best == nil {
		return nil, false
	}
	cp := *best
	return &cp, true
}

// Calculate prices usage. Returns an error if the model has no pricing
// entry and no prefix match.
func (c *Calculator) Calculate(usage *Usage) (*Cost, error) {
	pricing, ok := c.GetPricing(usage.Model)
	if !ok {
		return nil, fmt.Errorf("cost: no pricing for model %q", usage.Model)
	}

	out := &Cost{Currency: "USD"}
	if usage.InputTokens > 0 {
		out.InputCost = float64(usage.InputTokens) / 1_000_000 * pricing.InputPer1M
	}
	if usage.OutputTokens > 0 {
		out.OutputCost = float64(usage.OutputTokens) / 1_000_000 * pricing.OutputPer1M
	}
	if usage.CachedTokens > 0 && pricing.SupportsCaching {
		out.CachedCost = float64(usage.CachedTokens) / 1_000_000 * pricing.CachedPer1M
	}
	out.TotalCost = out.InputCost + out.OutputCost + out.CachedCost
	return out, nil
}

// CalculateMultiple sums the cost of several usage records.
func (c *Calculator) CalculateMultiple(usages []*Usage) (*Cost, error) {
	total := &Cost{Currency: "USD"}
	for i, u := range usages {
		if u == nil {
			return nil, fmt.Errorf("cost: usage at index %d is nil", i)
		}
		cost, err := c.Calculate(u)
		if err != nil {
			return nil, err
		}
		total.InputCost += cost.InputCost
		total.OutputCost += cost.OutputCost
		total.CachedCost += cost.CachedCost
		total.TotalCost += cost.TotalCost
	}
	return total, nil
}

// EstimateCost is a convenience Calculate for raw token counts.
func (c *Calculator) EstimateCost(model string, inputTokens, outputTokens int) (*Cost, error) {
	return c.Calculate(&Usage{Model: model, InputTokens: inputTokens, OutputTokens: outputTokens, TotalTokens: inputTokens + outputTokens})
}
