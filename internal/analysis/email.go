package analysis

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"text/template"

	"github.com/solvdai/solvd/internal/intake"
	"github.com/solvdai/solvd/internal/pricing"
)

var funcs = template.FuncMap{
	"bullets": func(items []string, none string) string {
		if len(items) == 0 {
			return "  - " + none
		}
		return "  - " + strings.Join(items, "\n  - ")
	},
	"default": valueOr,
	"num":     func(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) },
}

var emailTemplate = template.Must(template.New("analysis").Funcs(funcs).Parse(`NEW QUOTE PROJECT ANALYSIS

Client
  Name:    {{.Contact.Name}}
  Email:   {{.Contact.Email}}
  Company: {{default .Contact.Company "not provided"}}
  State:   {{default .Contact.State "not provided"}}

Project
  Type:         {{.Intake.ProjectTypeLabel}}
  Description:  {{.Intake.Description}}
  Complexity:   {{default .Intake.Complexity "not specified"}}
  Timeline:     {{default .Intake.Timeline "not specified"}}
  Budget:       {{default .Intake.Budget "not specified"}}
  Users:        {{default .Intake.UserCount "not specified"}}
  Integrations: {{default .Intake.Integrations "none"}}
  Other:        {{default .Intake.OtherFeatures "none"}}

Quote {{.Quote.ID}}
  Price:        ${{.Quote.Price}}
  Delivery:     {{.Quote.DeliveryDays}} business days
  Confidence:   {{.Quote.Confidence}}%
  Source:       {{.Quote.Source}}{{if .Quote.Reconciled}} (model price overridden){{end}}

Required integrations
{{bullets .Quote.RequiredIntegrations "none required"}}

Additional integrations
{{bullets .Analysis.Integrations "none"}}

Scope
{{.Analysis.ProjectScope}}

Time estimate
  Frontend:     {{num .Analysis.TimeEstimation.Frontend}} h
  Backend:      {{num .Analysis.TimeEstimation.Backend}} h
  Integration:  {{num .Analysis.TimeEstimation.Integration}} h
  Testing/QA:   {{num .Analysis.TimeEstimation.Testing}} h
  Total:        {{num .Analysis.TimeEstimation.Total}} h ({{.Analysis.TimeEstimation.BusinessDays}} business days)

Highlights
{{bullets .Analysis.Highlights "none"}}

Technical recommendations
{{.Analysis.TechnicalRecommendations}}

Cost breakdown
  Base:         ${{num .Quote.Breakdown.BasePrice}}
  Complexity:   x{{num .Quote.Breakdown.ComplexityMultiplier}}
  Features:     x{{num .Quote.Breakdown.FeaturesMultiplier}}
  Timeline:     x{{num .Quote.Breakdown.TimelineMultiplier}}
  Integrations: +${{num .Quote.Breakdown.IntegrationCost}}
{{- if gt .Quote.Breakdown.RushCost 0.0}}
  Rush:         +${{num .Quote.Breakdown.RushCost}}
{{- end}}
  Total:        ${{.Quote.Price}}
`))

// RenderEmail returns the subject and plain-text body of the operator email.
func RenderEmail(req Request, a Analysis) (string, string, error) {
	contact := req.ContactInfo()
	data := struct {
		Intake   intake.Intake
		Quote    pricing.Quote
		Contact  intake.Contact
		Analysis Analysis
	}{req.Intake, req.Quote, contact, a}

	var buf bytes.Buffer
	if err := emailTemplate.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("rendering analysis email: %w", err)
	}
	subject := fmt.Sprintf("New quote project details from %s", valueOr(contact.Name, "a prospect"))
	return subject, buf.String(), nil
}
