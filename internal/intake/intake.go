// Package intake defines the project description a prospect submits and the
// server-side validation applied to it.
package intake

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// Project types offered by the quote wizard.
const (
	TypeProductivity = "productivity"
	TypeBusiness     = "business"
	TypeEcommerce    = "ecommerce"
	TypeData         = "data"
	TypeAutomation   = "automation"
	TypeOther        = "other"
)

// Complexity tiers.
const (
	ComplexitySimple   = "simple"
	ComplexityModerate = "moderate"
	ComplexityComplex  = "complex"
)

// Timeline tiers.
const (
	TimelineRush     = "rush"
	TimelineStandard = "standard"
	TimelineFlexible = "flexible"
)

// Enumerations in display order.
var (
	ProjectTypes = []string{TypeProductivity, TypeBusiness, TypeEcommerce, TypeData, TypeAutomation, TypeOther}
	Complexities = []string{ComplexitySimple, ComplexityModerate, ComplexityComplex}
	Timelines    = []string{TimelineRush, TimelineStandard, TimelineFlexible}
	Budgets      = []string{"under-5k", "5k-15k", "15k-50k", "50k-plus"}
	UserCounts   = []string{"1-10", "11-100", "101-1000", "1000-plus"}
)

// Labels used by the wizard and in emails.
var ProjectTypeLabels = map[string]string{
	TypeProductivity: "Productivity Tool",
	TypeBusiness:     "Business Management",
	TypeEcommerce:    "E-commerce Solution",
	TypeData:         "Data Analysis Tool",
	TypeAutomation:   "Workflow Automation",
	TypeOther:        "Custom/Other",
}

// Contact identifies the prospect.
type Contact struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Company string `json:"company,omitempty"`
	// State is a US state abbreviation used for sales tax.
	State string `json:"state,omitempty"`
}

// Intake is a submitted project description. It is treated as immutable once
// it has been validated.
type Intake struct {
	ProjectType string `json:"projectType"`
	Description string `json:"description"`
	Complexity  string `json:"complexity"`
	Timeline    string `json:"timeline"`
	Budget      string `json:"budget,omitempty"`
	UserCount   string `json:"userCount,omitempty"`
	// Integrations is free text, comma separated.
	Integrations string `json:"integrations,omitempty"`
	// OtherFeatures is free text, comma separated.
	OtherFeatures string  `json:"otherFeatures,omitempty"`
	Contact       Contact `json:"contactInfo"`
}

// IntegrationList splits the free-text integrations field on commas, trimming
// entries and dropping empty ones.
func (in Intake) IntegrationList() []string {
	return SplitList(in.Integrations)
}

// FeatureList splits the free-text features field like IntegrationList.
func (in Intake) FeatureList() []string {
	return SplitList(in.OtherFeatures)
}

// ProjectTypeLabel returns the display name of the project type.
func (in Intake) ProjectTypeLabel() string {
	if l, ok := ProjectTypeLabels[in.ProjectType]; ok {
		return l
	}
	return in.ProjectType
}

// SplitList splits s on commas, trims whitespace and drops empty entries.
func SplitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Normalize trims whitespace, lower-cases enumerations and upper-cases the
// state. It returns a copy.
func (in Intake) Normalize() Intake {
	in.ProjectType = strings.ToLower(strings.TrimSpace(in.ProjectType))
	in.Description = strings.TrimSpace(in.Description)
	in.Complexity = strings.ToLower(strings.TrimSpace(in.Complexity))
	in.Timeline = strings.ToLower(strings.TrimSpace(in.Timeline))
	in.Budget = strings.TrimSpace(in.Budget)
	in.UserCount = strings.TrimSpace(in.UserCount)
	in.Contact.Name = strings.TrimSpace(in.Contact.Name)
	in.Contact.Email = strings.TrimSpace(in.Contact.Email)
	in.Contact.Company = strings.TrimSpace(in.Contact.Company)
	in.Contact.State = strings.ToUpper(strings.TrimSpace(in.Contact.State))
	return in
}

const (
	maxDescriptionLen = 5000
	maxFreeTextLen    = 1000
)

// ValidateProject checks the fields needed to price a project. Contact
// details are not required to generate a quote.
//
// Complexity and timeline accept unknown values: pricing falls back to the
// neutral multiplier for them.
func (in Intake) ValidateProject() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.ProjectType, validation.Required, validation.In(toAny(ProjectTypes)...)),
		validation.Field(&in.Description, validation.Required, validation.Length(1, maxDescriptionLen)),
		validation.Field(&in.Complexity, validation.Required, validation.Length(1, 32)),
		validation.Field(&in.Timeline, validation.Length(0, 32)),
		validation.Field(&in.Budget, validation.In(toAny(Budgets)...)),
		validation.Field(&in.UserCount, validation.In(toAny(UserCounts)...)),
		validation.Field(&in.Integrations, validation.Length(0, maxFreeTextLen)),
		validation.Field(&in.OtherFeatures, validation.Length(0, maxFreeTextLen)),
	)
}

// Validate checks the full submission, including contact details. It is used
// before analysis and acceptance, which email the prospect's details.
func (in Intake) Validate() error {
	if err := in.ValidateProject(); err != nil {
		return err
	}
	return in.Contact.Validate()
}

// Validate checks the contact details.
func (c Contact) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&c.Email, validation.Required, is.EmailFormat),
		validation.Field(&c.Company, validation.Length(0, 200)),
		validation.Field(&c.State, validation.Length(0, 2)),
	)
}

func toAny(ss []string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
