// Package wizard is the terminal version of the quote form: project basics,
// project details with contact information, then the priced quote.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/solvdai/solvd/internal/intake"
	"github.com/solvdai/solvd/internal/quote"
)

// Quoter prices an intake. *quote.Generator and the HTTP client both
// satisfy it.
type Quoter interface {
	Quote(ctx context.Context, in intake.Intake) (quote.Result, error)
}

type step int

const (
	stepProject step = iota + 1
	stepDetails
	stepQuote
)

const totalSteps = 3

// Result is what the wizard ends with.
type Result struct {
	Intake intake.Intake
	Quote  quote.Result
	// Accepted is true when the prospect chose to accept the quote.
	Accepted bool
}

type quoteMsg struct {
	res quote.Result
	err error
}

// Model is the bubbletea model for the wizard.
type Model struct {
	ctx    context.Context
	quoter Quoter
	pacer  Pacer

	step       step
	fields     map[step][]*field
	focus      int
	err        error
	generating bool
	spinner    spinner.Model
	progress   progress.Model

	result   Result
	done     bool
	quitting bool
}

// New creates a wizard that prices through quoter. ctx bounds the quote
// call.
func New(ctx context.Context, quoter Quoter, pacer Pacer) Model {
	m := Model{
		ctx:      ctx,
		quoter:   quoter,
		pacer:    pacer,
		step:     stepProject,
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot)),
		progress: progress.New(progress.WithDefaultGradient(), progress.WithWidth(40), progress.WithoutPercentage()),
		fields: map[step][]*field{
			stepProject: {
				choiceField("projectType", "Project type", intake.ProjectTypes, 0),
				textField("description", "Description", "Describe what you need your AI app to do...", 5000),
				choiceField("complexity", "Complexity", intake.Complexities, 0),
			},
			stepDetails: {
				choiceField("timeline", "Timeline", intake.Timelines, 1),
				choiceField("budget", "Budget", append([]string{""}, intake.Budgets...), 0),
				choiceField("userCount", "Users", append([]string{""}, intake.UserCounts...), 0),
				textField("integrations", "Integrations", "Stripe, SendGrid, Slack...", 1000),
				textField("otherFeatures", "Other features", "Comma separated", 1000),
				textField("name", "Name", "", 200),
				textField("email", "Email", "", 254),
				textField("company", "Company", "optional", 200),
				textField("state", "State", "e.g. CA", 2),
			},
		},
	}
	m.focusField(0)
	return m
}

// Result returns the wizard's outcome and whether it reached a quote.
func (m Model) Result() (Result, bool) {
	return m.result, m.step == stepQuote
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.quitting = true
			return m, tea.Quit
		}
		if m.generating {
			return m, nil
		}
		if m.step == stepQuote {
			return m.updateQuote(msg)
		}
		return m.updateForm(msg)

	case quoteMsg:
		m.generating = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.result.Quote = msg.res
		m.step = stepQuote
		return m, nil

	case spinner.TickMsg:
		if !m.generating {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	if f := m.focused(); f != nil && !f.isChoice() {
		var cmd tea.Cmd
		f.input, cmd = f.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	fields := m.fields[m.step]
	f := fields[m.focus]

	switch msg.Type {
	case tea.KeyTab, tea.KeyDown:
		return m, m.focusField((m.focus + 1) % len(fields))
	case tea.KeyShiftTab, tea.KeyUp:
		return m, m.focusField((m.focus + len(fields) - 1) % len(fields))
	case tea.KeyEsc:
		if m.step == stepDetails {
			m.step, m.err = stepProject, nil
			return m, m.focusField(0)
		}
		m.quitting = true
		return m, tea.Quit
	case tea.KeyEnter:
		return m.advance()
	case tea.KeyLeft, tea.KeyRight:
		if f.isChoice() {
			f.cycle(msg.Type == tea.KeyRight)
			return m, nil
		}
	}

	if f.isChoice() {
		return m, nil
	}
	var cmd tea.Cmd
	f.input, cmd = f.input.Update(msg)
	return m, cmd
}

// advance validates the current step and moves on. Leaving the details
// step starts the quote.
func (m Model) advance() (tea.Model, tea.Cmd) {
	in := m.intake()
	switch m.step {
	case stepProject:
		if err := in.ValidateProject(); err != nil {
			m.err = err
			return m, nil
		}
		m.step, m.err = stepDetails, nil
		return m, m.focusField(0)
	case stepDetails:
		if err := in.Validate(); err != nil {
			m.err = err
			return m, nil
		}
		m.err = nil
		m.result.Intake = in
		m.generating = true
		return m, tea.Batch(m.spinner.Tick, m.generate(in))
	}
	return m, nil
}

func (m Model) generate(in intake.Intake) tea.Cmd {
	ctx, quoter, pacer := m.ctx, m.quoter, m.pacer
	return func() tea.Msg {
		if quoter == nil {
			return quoteMsg{err: errors.New("no quote service configured")}
		}
		var res quote.Result
		err := pacer.Run(ctx, func(ctx context.Context) error {
			var err error
			res, err = quoter.Quote(ctx, in)
			return err
		})
		return quoteMsg{res: res, err: err}
	}
}

func (m Model) updateQuote(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "a", "enter":
		m.result.Accepted = true
		m.done = true
		return m, tea.Quit
	case "r":
		fresh := New(m.ctx, m.quoter, m.pacer)
		return fresh, fresh.Init()
	case "q", "esc":
		m.quitting = true
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) focused() *field {
	fields := m.fields[m.step]
	if m.focus < 0 || m.focus >= len(fields) {
		return nil
	}
	return fields[m.focus]
}

func (m *Model) focusField(i int) tea.Cmd {
	var cmd tea.Cmd
	for j, f := range m.fields[m.step] {
		if j == i {
			cmd = f.focus()
		} else {
			f.blur()
		}
	}
	m.focus = i
	return cmd
}

// intake assembles the form values.
func (m Model) intake() intake.Intake {
	v := map[string]string{}
	for _, fields := range m.fields {
		for _, f := range fields {
			v[f.key] = f.value()
		}
	}
	return intake.Intake{
		ProjectType:   v["projectType"],
		Description:   v["description"],
		Complexity:    v["complexity"],
		Timeline:      v["timeline"],
		Budget:        v["budget"],
		UserCount:     v["userCount"],
		Integrations:  v["integrations"],
		OtherFeatures: v["otherFeatures"],
		Contact: intake.Contact{
			Name:    v["name"],
			Email:   v["email"],
			Company: v["company"],
			State:   v["state"],
		},
	}.Normalize()
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting || m.done {
		return ""
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("SOLVD QUOTE  step %d of %d", m.step, totalSteps)))
	b.WriteString("\n")
	b.WriteString(m.progress.ViewAs(float64(m.step) / totalSteps))
	b.WriteString("\n")

	switch {
	case m.generating:
		b.WriteString("\n" + m.spinner.View() + " Generating your quote...\n")
	case m.step == stepQuote:
		b.WriteString(m.quoteView())
		b.WriteString(keyHint("a", "accept", "r", "start over", "q", "quit"))
	default:
		b.WriteString(m.formView())
		if m.err != nil {
			b.WriteString("\n" + errorStyle.Render(m.err.Error()) + "\n")
		}
		next := "next"
		if m.step == stepDetails {
			next = "generate quote"
		}
		b.WriteString(keyHint("tab", "next field", "←/→", "choose", "enter", next, "esc", "back"))
	}
	return containerStyle.Render(b.String())
}

func (m Model) formView() string {
	var b strings.Builder
	title := "Project basics"
	if m.step == stepDetails {
		title = "Details and contact"
	}
	b.WriteString(sectionStyle.Render(title) + "\n")
	for i, f := range m.fields[m.step] {
		label := labelStyle.Render(f.label)
		if i == m.focus {
			label = focusedLabelStyle.Render(f.label)
		}
		b.WriteString(label + " " + f.view() + "\n")
	}
	return b.String()
}

func (m Model) quoteView() string {
	q, adj := m.result.Quote.Quote, m.result.Quote.Tax

	var b strings.Builder
	b.WriteString(sectionStyle.Render("Your quote") + "\n")
	b.WriteString(priceStyle.Render(fmt.Sprintf("$%d", q.Price)) +
		dimStyle.Render(fmt.Sprintf("  delivered in %d days, %d%% confidence", q.DeliveryDays, q.Confidence)) + "\n")
	if adj.Tax > 0 {
		b.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render(fmt.Sprintf("%s tax (%g%%)", adj.State, adj.Rate)), valueStyle.Render(fmt.Sprintf("$%d", adj.Tax))))
	}
	b.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Total"), priceStyle.Render(fmt.Sprintf("$%d", adj.Total))))

	bd := q.Breakdown
	b.WriteString(sectionStyle.Render("Breakdown") + "\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("base $%g × complexity %g × features %g × timeline %g + integrations $%g",
		bd.BasePrice, bd.ComplexityMultiplier, bd.FeaturesMultiplier, bd.TimelineMultiplier, bd.IntegrationCost)))
	if bd.RushCost > 0 {
		b.WriteString(dimStyle.Render(fmt.Sprintf(" + rush $%g", bd.RushCost)))
	}
	b.WriteString("\n")

	if len(q.DeterminedFeatures) > 0 {
		b.WriteString(sectionStyle.Render("Features") + "\n")
		for _, f := range q.DeterminedFeatures {
			b.WriteString("  • " + f + "\n")
		}
	}
	if len(q.RequiredIntegrations) > 0 {
		b.WriteString(sectionStyle.Render("Integrations") + "\n")
		b.WriteString("  " + strings.Join(q.RequiredIntegrations, ", ") + "\n")
	}
	return b.String()
}
