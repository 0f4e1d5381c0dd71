package quote

import (
	"fmt"
	"strings"

	"github.com/solvdai/solvd/internal/intake"
	"github.com/solvdai/solvd/internal/pricing"
)

// systemPrompt describes the pricing rules the model must follow. The numbers
// come from the live constants so prompt and reconciliation never disagree.
func systemPrompt(c pricing.Constants) string {
	var b strings.Builder
	b.WriteString("You are a senior software consultant who scopes and prices small custom AI applications.\n\n")
	b.WriteString("Pricing rules:\n")
	fmt.Fprintf(&b, "- Base price: $%.0f.\n", c.BasePrice)
	fmt.Fprintf(&b, "- Complexity multiplier: simple %.1f, moderate %.1f, complex %.1f.\n",
		pricing.ComplexityMultiplier(intake.ComplexitySimple),
		pricing.ComplexityMultiplier(intake.ComplexityModerate),
		pricing.ComplexityMultiplier(intake.ComplexityComplex))
	fmt.Fprintf(&b, "- Features multiplier: 1.0 plus %.1f for each feature you determine the project needs.\n", pricing.FeatureIncrement)
	fmt.Fprintf(&b, "- Timeline multiplier: standard %.2f, flexible %.2f, rush %.2f. Rush work carries a separate %.0f%% surcharge that is added after the multipliers; do not fold it into timelineMultiplier.\n",
		pricing.TimelineMultiplier(intake.TimelineStandard),
		pricing.TimelineMultiplier(intake.TimelineFlexible),
		pricing.TimelineMultiplier(intake.TimelineRush),
		c.RushSurcharge*100)
	fmt.Fprintf(&b, "- Integrations: $%.0f each for the first %d, $%.0f each after that.\n", c.LowRate, c.LowRateCount, c.HighRate)
	b.WriteString("- price = basePrice * complexityMultiplier * featuresMultiplier * timelineMultiplier + integrationCost, rounded to whole dollars.\n\n")
	b.WriteString("Typical integration categories: payment processing, email service, authentication, database, cloud storage, analytics, CRM, messaging, calendar, maps, inventory management, email marketing, API integration.\n\n")
	b.WriteString("Determine the features and third-party integrations the project needs from the description. ")
	b.WriteString("Respond with a single JSON object and nothing else, shaped like:\n")
	b.WriteString(`{"price": 0, "deliveryDays": 0, "breakdown": {"basePrice": 0, "complexityMultiplier": 0, "featuresMultiplier": 0, "timelineMultiplier": 0, "integrationCost": 0}, "features": [], "requiredIntegrations": [], "confidence": 0, "reasoning": ""}`)
	b.WriteString("\nconfidence is a percentage from 0 to 100.")
	return b.String()
}

// userPrompt renders the intake. Free-text fields must already be scrubbed.
func userPrompt(in intake.Intake) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Project type: %s\n", in.ProjectTypeLabel())
	fmt.Fprintf(&b, "Description: %s\n", in.Description)
	fmt.Fprintf(&b, "Complexity: %s\n", orUnspecified(in.Complexity))
	fmt.Fprintf(&b, "Timeline: %s\n", orUnspecified(in.Timeline))
	fmt.Fprintf(&b, "Budget: %s\n", orUnspecified(in.Budget))
	fmt.Fprintf(&b, "Expected users: %s\n", orUnspecified(in.UserCount))
	fmt.Fprintf(&b, "Integrations requested: %s\n", orUnspecified(in.Integrations))
	fmt.Fprintf(&b, "Other features: %s\n", orUnspecified(in.OtherFeatures))
	return b.String()
}

func orUnspecified(s string) string {
	if strings.TrimSpace(s) == "" {
		return "not specified"
	}
	return s
}
