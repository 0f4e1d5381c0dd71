package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/solvdai/solvd/internal/config"
	"github.com/solvdai/solvd/internal/intake"
)

// ToleranceMode selects how a model price deviation is measured.
type ToleranceMode string

const (
	// Absolute overrides when |calculated-model| > Value dollars.
	Absolute ToleranceMode = "absolute"
	// Relative overrides when |calculated-model| > Value*model.
	Relative ToleranceMode = "relative"
)

// Tolerance decides whether a model-proposed price is kept.
type Tolerance struct {
	Mode  ToleranceMode `json:"mode"`
	Value float64       `json:"value"`
}

// Exceeded reports whether calculated deviates from model by more than the
// tolerance.
func (t Tolerance) Exceeded(calculated, model decimal.Decimal) bool {
	diff := calculated.Sub(model).Abs()
	limit := decimal.NewFromFloat(t.Value)
	if t.Mode == Relative {
		limit = limit.Mul(model.Abs())
	}
	return diff.GreaterThan(limit)
}

// Constants are the fixed inputs of the pricing formula.
type Constants struct {
	BasePrice float64
	// LowRate applies to the first LowRateCount integrations, HighRate to
	// every one after.
	LowRate      float64
	HighRate     float64
	LowRateCount int
	// RushSurcharge is the fraction of the pre-surcharge price added for
	// rush timelines.
	RushSurcharge float64
	Tolerance     Tolerance
}

// DefaultConstants returns the published price list.
func DefaultConstants() Constants {
	return Constants{
		BasePrice:     200,
		LowRate:       50,
		HighRate:      75,
		LowRateCount:  5,
		RushSurcharge: 0.5,
		Tolerance:     Tolerance{Mode: Absolute, Value: 10},
	}
}

// FromConfig builds constants from the pricing config section.
func FromConfig(p config.PricingConfig) (Constants, error) {
	c := DefaultConstants()
	if p.BasePrice > 0 {
		c.BasePrice = p.BasePrice
	}
	if p.LowRate > 0 {
		c.LowRate = p.LowRate
	}
	if p.HighRate > 0 {
		c.HighRate = p.HighRate
	}
	if p.RushSurcharge > 0 {
		c.RushSurcharge = p.RushSurcharge
	}
	switch ToleranceMode(strings.ToLower(p.ToleranceMode)) {
	case Absolute, "":
		c.Tolerance.Mode = Absolute
	case Relative:
		c.Tolerance.Mode = Relative
	default:
		return Constants{}, fmt.Errorf("unknown tolerance mode %q", p.ToleranceMode)
	}
	if p.ToleranceValue > 0 {
		c.Tolerance.Value = p.ToleranceValue
	}
	return c, nil
}

// FeatureIncrement is added to the features multiplier per feature.
const FeatureIncrement = 0.1

// FallbackConfidence is reported for quotes computed without the model.
const FallbackConfidence = 85

var complexityMultipliers = map[string]float64{
	intake.ComplexitySimple:   1.0,
	intake.ComplexityModerate: 1.3,
	intake.ComplexityComplex:  1.6,
}

var timelineMultipliers = map[string]float64{
	intake.TimelineRush:     1.0,
	intake.TimelineStandard: 1.0,
	intake.TimelineFlexible: 0.85,
}

var deliveryDays = map[string]int{
	intake.ComplexitySimple:   2,
	intake.ComplexityModerate: 4,
	intake.ComplexityComplex:  7,
}

// ComplexityMultiplier returns the tier multiplier; unknown tiers get 1.0.
func ComplexityMultiplier(tier string) float64 {
	if m, ok := complexityMultipliers[tier]; ok {
		return m
	}
	return 1.0
}

// TimelineMultiplier returns the tier multiplier; unknown tiers get 1.0.
// Rush is 1.0 because its cost is carried by the separate rush surcharge.
func TimelineMultiplier(tier string) float64 {
	if m, ok := timelineMultipliers[tier]; ok {
		return m
	}
	return 1.0
}

// FeaturesMultiplier is 1 + 0.1 per feature.
func FeaturesMultiplier(n int) float64 {
	m, _ := decimal.NewFromInt(1).
		Add(decimal.NewFromFloat(FeatureIncrement).Mul(decimal.NewFromInt(int64(n)))).
		Float64()
	return m
}

// DeliveryDays returns business days for a complexity tier. Rush halves it,
// rounding up. Unknown tiers are treated as moderate.
func DeliveryDays(complexity, timeline string) int {
	days, ok := deliveryDays[complexity]
	if !ok {
		days = deliveryDays[intake.ComplexityModerate]
	}
	if timeline == intake.TimelineRush {
		days = (days + 1) / 2
	}
	return days
}

var fallbackIntegrations = map[string][]string{
	intake.TypeEcommerce:    {"Payment Processing", "Inventory Management", "Email Marketing"},
	intake.TypeBusiness:     {"Database", "Email Service", "Analytics"},
	intake.TypeProductivity: {"Cloud Storage", "Authentication", "Email Service"},
	intake.TypeData:         {"Database", "Analytics", "Cloud Storage"},
	intake.TypeAutomation:   {"API Integration", "Email Service", "Database"},
}

var fallbackFeatures = map[string][]string{
	intake.TypeEcommerce:    {"Product Catalog", "Shopping Cart", "Checkout"},
	intake.TypeBusiness:     {"Dashboard", "User Management", "Reporting"},
	intake.TypeProductivity: {"Task Management", "Notifications", "File Sharing"},
	intake.TypeData:         {"Data Import", "Visualizations", "Scheduled Reports"},
	intake.TypeAutomation:   {"Workflow Builder", "Scheduling", "Notifications"},
	intake.TypeOther:        {"Custom Functionality"},
}

// FallbackIntegrations returns the rule-based integration guess for a
// project type. "other" and unknown types get none.
func FallbackIntegrations(projectType string) []string {
	return append([]string{}, fallbackIntegrations[projectType]...)
}

// FallbackFeatures returns the rule-based feature guess for a project type.
func FallbackFeatures(projectType string) []string {
	return append([]string{}, fallbackFeatures[projectType]...)
}
