package wizard

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/solvdai/solvd/internal/intake"
)

// field is either a free-text input or a fixed choice cycled with the
// arrow keys.
type field struct {
	key     string
	label   string
	input   textinput.Model
	options []string
	choice  int
	focused bool
}

func textField(key, label, placeholder string, limit int) *field {
	in := textinput.New()
	in.Placeholder = placeholder
	in.CharLimit = limit
	in.Width = 48
	return &field{key: key, label: label, input: in}
}

func choiceField(key, label string, options []string, selected int) *field {
	return &field{key: key, label: label, options: options, choice: selected}
}

func (f *field) isChoice() bool { return f.options != nil }

func (f *field) value() string {
	if f.isChoice() {
		return f.options[f.choice]
	}
	return strings.TrimSpace(f.input.Value())
}

func (f *field) cycle(forward bool) {
	n := len(f.options)
	if forward {
		f.choice = (f.choice + 1) % n
	} else {
		f.choice = (f.choice + n - 1) % n
	}
}

func (f *field) focus() tea.Cmd {
	f.focused = true
	if f.isChoice() {
		return nil
	}
	return f.input.Focus()
}

func (f *field) blur() {
	f.focused = false
	if !f.isChoice() {
		f.input.Blur()
	}
}

func (f *field) view() string {
	if !f.isChoice() {
		return f.input.View()
	}
	label := f.options[f.choice]
	switch {
	case label == "":
		label = "not specified"
	case f.key == "projectType":
		label = intake.Intake{ProjectType: label}.ProjectTypeLabel()
	}
	if f.focused {
		return valueStyle.Render("‹ " + label + " ›")
	}
	return dimStyle.Render(label)
}
