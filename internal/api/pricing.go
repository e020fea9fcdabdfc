package api

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/flowpilot-dev/flowpilot/pkg/models"
)

// Model identifiers for the default worker catalog.
const (
	// ModelHaiku is the lightweight, fast model for reviews.
	ModelHaiku = "claude-haiku-4-5-20251001"
	// ModelSonnet is the balanced model for standard work.
	ModelSonnet = "claude-sonnet-4-5-20250929"
	// ModelOpus is the most capable model for open-ended tasks.
	ModelOpus = "claude-opus-4-5-20251101"

	// ModelGPT4oMini is the OpenAI scout-tier default.
	ModelGPT4oMini = "gpt-4o-mini"
	// ModelGPT4o is the OpenAI builder-tier default.
	ModelGPT4o = "gpt-4o"
	// ModelGPT41 is the OpenAI architect-tier default.
	ModelGPT41 = "gpt-4.1"
)

// DefaultModelPricing contains pricing for known models, per 1M tokens.
var DefaultModelPricing = map[string]models.Pricing{
	"claude-opus-4-5-20251101":   {InputPerMillion: 5.00, OutputPerMillion: 25.00},
	"claude-opus-4-1-20250805":   {InputPerMillion: 15.00, OutputPerMillion: 75.00},
	"claude-sonnet-4-5-20250929": {InputPerMillion: 3.00, OutputPerMillion: 15.00},
	"claude-sonnet-4-20250514":   {InputPerMillion: 3.00, OutputPerMillion: 15.00},
	"claude-haiku-4-5-20251001":  {InputPerMillion: 1.00, OutputPerMillion: 5.00},
	"claude-3-5-haiku-20241022":  {InputPerMillion: 0.80, OutputPerMillion: 4.00},
	"gpt-4o":                     {InputPerMillion: 2.50, OutputPerMillion: 10.00},
	"gpt-4o-mini":                {InputPerMillion: 0.15, OutputPerMillion: 0.60},
	"gpt-4.1":                    {InputPerMillion: 2.00, OutputPerMillion: 8.00},
	"gpt-4.1-mini":               {InputPerMillion: 0.40, OutputPerMillion: 1.60},
}

// fallbackPricing is used for models missing from the table.
var fallbackPricing = models.Pricing{InputPerMillion: 3.00, OutputPerMillion: 15.00}

// PricingFor returns the pricing for model. Bedrock inference profile names
// ("us.anthropic.<model>-v1:0") resolve to the underlying model. Unknown
// models get Sonnet-class pricing.
func PricingFor(model string) models.Pricing {
	if p, ok := DefaultModelPricing[model]; ok {
		return p
	}
	base := strings.TrimPrefix(model, "us.")
	base = strings.TrimPrefix(base, "anthropic.")
	base = strings.TrimSuffix(base, "-v1:0")
	if p, ok := DefaultModelPricing[base]; ok {
		return p
	}
	return fallbackPricing
}

var perMillion = decimal.NewFromInt(1_000_000)

// Cost computes the USD cost of a call, rounded to 6 decimal places:
// input/1e6 * inputRate + output/1e6 * outputRate.
func Cost(p models.Pricing, inputTokens, outputTokens int64) float64 {
	in := decimal.NewFromInt(inputTokens).Div(perMillion).Mul(decimal.NewFromFloat(p.InputPerMillion))
	out := decimal.NewFromInt(outputTokens).Div(perMillion).Mul(decimal.NewFromFloat(p.OutputPerMillion))
	cost, _ := in.Add(out).Round(6).Float64()
	return cost
}
