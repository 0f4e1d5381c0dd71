package analysis

import (
	"fmt"
	"strings"
)

const systemPrompt = `You are a senior consultant who scopes custom AI applications for a small development studio. Give the studio's engineers an accurate, practical assessment of a project that has just been quoted.

Respond with a single JSON object and nothing else, shaped like:
{"integrations": [], "projectScope": "", "timeEstimation": {"frontend": 0, "backend": 0, "integration": 0, "testing": 0, "total": 0}, "highlights": [], "technicalRecommendations": ""}

- integrations: integrations the project needs beyond those already listed, or corrections to them.
- projectScope: core functionality, technical requirements, user experience and data management needs.
- timeEstimation: development effort in hours.
- highlights: risks and special requirements.
- technicalRecommendations: stack, architecture and practices.`

func userPrompt(req Request) string {
	in, q := req.Intake, req.Quote
	var b strings.Builder
	b.WriteString("Project\n")
	fmt.Fprintf(&b, "- Type: %s\n", in.ProjectTypeLabel())
	fmt.Fprintf(&b, "- Description: %s\n", in.Description)
	fmt.Fprintf(&b, "- Complexity: %s\n", valueOr(in.Complexity, "not specified"))
	fmt.Fprintf(&b, "- Timeline: %s\n", valueOr(in.Timeline, "not specified"))
	fmt.Fprintf(&b, "- Budget: %s\n", valueOr(in.Budget, "not specified"))
	fmt.Fprintf(&b, "- Other features: %s\n", valueOr(in.OtherFeatures, "none"))
	fmt.Fprintf(&b, "- Expected users: %s\n", valueOr(in.UserCount, "not specified"))
	b.WriteString("\nQuote\n")
	fmt.Fprintf(&b, "- Price: $%d\n", q.Price)
	fmt.Fprintf(&b, "- Delivery: %d business days\n", q.DeliveryDays)
	fmt.Fprintf(&b, "- Confidence: %d%%\n", q.Confidence)
	fmt.Fprintf(&b, "- Determined features: %s\n", joinOr(q.DeterminedFeatures, "none"))
	fmt.Fprintf(&b, "- Required integrations: %s\n", joinOr(q.RequiredIntegrations, "none"))
	return b.String()
}

func valueOr(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func joinOr(items []string, def string) string {
	if len(items) == 0 {
		return def
	}
	return strings.Join(items, ", ")
}
