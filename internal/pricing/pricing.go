// Package pricing turns a project intake into a priced quote.
//
// The formula is
//
//	price = round(BasePrice * complexity * features * timeline + integrationCost [+ rushCost])
//
// where integrationCost charges LowRate for each of the first five
// integrations and HighRate for every one after, and rushCost applies only to
// rush timelines. Rounding is half-up to whole dollars.
//
// A model may propose a quote; Reconcile keeps its multipliers but always
// recomputes the integration cost and overrides the price when the model's
// figure is outside tolerance. Fallback prices a project with no model input.
package pricing

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/solvdai/solvd/internal/intake"
)

// Source records where a quote's figures came from.
type Source string

const (
	SourceModel    Source = "model"
	SourceFallback Source = "fallback"
)

// Breakdown itemizes a quote.
type Breakdown struct {
	BasePrice            float64 `json:"basePrice"`
	ComplexityMultiplier float64 `json:"complexityMultiplier"`
	FeaturesMultiplier   float64 `json:"featuresMultiplier"`
	TimelineMultiplier   float64 `json:"timelineMultiplier"`
	IntegrationCost      float64 `json:"integrationCost"`
	RushCost             float64 `json:"rushCost"`
}

// Quote is a reconciled price for a project.
type Quote struct {
	ID                   string    `json:"id"`
	Price                int       `json:"price"`
	DeliveryDays         int       `json:"deliveryDays"`
	Breakdown            Breakdown `json:"breakdown"`
	DeterminedFeatures   []string  `json:"determinedFeatures"`
	RequiredIntegrations []string  `json:"requiredIntegrations"`
	Confidence           int       `json:"confidence"`
	Reasoning            string    `json:"reasoning,omitempty"`
	Source               Source    `json:"source"`
	// Reconciled is true when the model's price was replaced.
	Reconciled bool `json:"reconciled"`
}

// ModelQuote is the JSON object the language model is asked to return.
type ModelQuote struct {
	Price        float64 `json:"price"`
	DeliveryDays int     `json:"deliveryDays"`
	Breakdown    struct {
		BasePrice            float64 `json:"basePrice"`
		ComplexityMultiplier float64 `json:"complexityMultiplier"`
		FeaturesMultiplier   float64 `json:"featuresMultiplier"`
		TimelineMultiplier   float64 `json:"timelineMultiplier"`
		IntegrationCost      float64 `json:"integrationCost"`
	} `json:"breakdown"`
	Features             []string `json:"features"`
	RequiredIntegrations []string `json:"requiredIntegrations"`
	Confidence           float64  `json:"confidence"`
	Reasoning            string   `json:"reasoning"`
}

// IntegrationCost charges LowRate for indexes below LowRateCount and
// HighRate for every index at or above it.
func IntegrationCost(n int, c Constants) decimal.Decimal {
	if n <= 0 {
		return decimal.Zero
	}
	low := n
	if low > c.LowRateCount {
		low = c.LowRateCount
	}
	high := n - low
	return decimal.NewFromFloat(c.LowRate).Mul(decimal.NewFromInt(int64(low))).
		Add(decimal.NewFromFloat(c.HighRate).Mul(decimal.NewFromInt(int64(high))))
}

// Calculation is the locally computed result of the formula.
type Calculation struct {
	Price           int
	IntegrationCost decimal.Decimal
	RushCost        decimal.Decimal
}

// Calculate applies the pricing formula to the given multipliers.
func Calculate(cm, fm, tm float64, integrations int, timeline string, c Constants) Calculation {
	integrationCost := IntegrationCost(integrations, c)
	subtotal := decimal.NewFromFloat(c.BasePrice).
		Mul(decimal.NewFromFloat(cm)).
		Mul(decimal.NewFromFloat(fm)).
		Mul(decimal.NewFromFloat(tm)).
		Add(integrationCost)

	rush := decimal.Zero
	if timeline == intake.TimelineRush {
		rush = subtotal.Mul(decimal.NewFromFloat(c.RushSurcharge)).Round(0)
	}

	return Calculation{
		Price:           int(subtotal.Add(rush).Round(0).IntPart()),
		IntegrationCost: integrationCost,
		RushCost:        rush,
	}
}

// Reconcile merges a model quote with local arithmetic.
//
// The three multipliers are taken from the model verbatim. The integration
// list is the model's when non-empty, otherwise the intake's. Integration
// cost and rush cost are always recomputed. The model's price survives only
// when it lies within the tolerance of the calculated price.
func Reconcile(m ModelQuote, in intake.Intake, c Constants) Quote {
	integrations := nonEmpty(m.RequiredIntegrations)
	if len(integrations) == 0 {
		integrations = in.IntegrationList()
	}

	cm := m.Breakdown.ComplexityMultiplier
	fm := m.Breakdown.FeaturesMultiplier
	tm := m.Breakdown.TimelineMultiplier
	calc := Calculate(cm, fm, tm, len(integrations), in.Timeline, c)

	modelPrice := decimal.NewFromFloat(m.Price)
	price := int(modelPrice.Round(0).IntPart())
	reconciled := false
	if c.Tolerance.Exceeded(decimal.NewFromInt(int64(calc.Price)), modelPrice) {
		price = calc.Price
		reconciled = true
	}

	days := m.DeliveryDays
	if days <= 0 {
		days = DeliveryDays(in.Complexity, in.Timeline)
	}

	return Quote{
		Price:        price,
		DeliveryDays: days,
		Breakdown: Breakdown{
			BasePrice:            c.BasePrice,
			ComplexityMultiplier: cm,
			FeaturesMultiplier:   fm,
			TimelineMultiplier:   tm,
			IntegrationCost:      calc.IntegrationCost.InexactFloat64(),
			RushCost:             calc.RushCost.InexactFloat64(),
		},
		DeterminedFeatures:   nonEmpty(m.Features),
		RequiredIntegrations: integrations,
		Confidence:           clampConfidence(m.Confidence),
		Reasoning:            m.Reasoning,
		Source:               SourceModel,
		Reconciled:           reconciled,
	}
}

// Fallback prices a project from the fixed tables alone. The price is always
// defined.
func Fallback(in intake.Intake, c Constants) Quote {
	integrations := FallbackIntegrations(in.ProjectType)
	if len(integrations) == 0 {
		integrations = in.IntegrationList()
	}
	features := in.FeatureList()
	if len(features) == 0 {
		features = FallbackFeatures(in.ProjectType)
	}

	cm := ComplexityMultiplier(in.Complexity)
	fm := FeaturesMultiplier(len(features))
	tm := TimelineMultiplier(in.Timeline)
	calc := Calculate(cm, fm, tm, len(integrations), in.Timeline, c)

	return Quote{
		Price:        calc.Price,
		DeliveryDays: DeliveryDays(in.Complexity, in.Timeline),
		Breakdown: Breakdown{
			BasePrice:            c.BasePrice,
			ComplexityMultiplier: cm,
			FeaturesMultiplier:   fm,
			TimelineMultiplier:   tm,
			IntegrationCost:      calc.IntegrationCost.InexactFloat64(),
			RushCost:             calc.RushCost.InexactFloat64(),
		},
		DeterminedFeatures:   features,
		RequiredIntegrations: integrations,
		Confidence:           FallbackConfidence,
		Reasoning:            "Estimated from the standard price list for this project type.",
		Source:               SourceFallback,
	}
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func clampConfidence(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	return int(math.Round(math.Max(0, math.Min(100, v))))
}
