package wizard

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solvdai/solvd/internal/intake"
	"github.com/solvdai/solvd/internal/pricing"
	"github.com/solvdai/solvd/internal/quote"
)

// fakeClock advances only when told to.
type fakeClock struct {
	now   time.Time
	slept []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) pacer(floor time.Duration) Pacer {
	return Pacer{
		Floor: floor,
		now:   func() time.Time { return c.now },
		sleep: func(_ context.Context, d time.Duration) error {
			c.slept = append(c.slept, d)
			c.now = c.now.Add(d)
			return nil
		},
	}
}

func TestPacer_HoldsFastCallToFloor(t *testing.T) {
	clock := newFakeClock()
	p := clock.pacer(DefaultFloor)
	start := clock.now

	err := p.Run(context.Background(), func(context.Context) error {
		clock.now = clock.now.Add(200 * time.Millisecond)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []time.Duration{1800 * time.Millisecond}, clock.slept)
	assert.Equal(t, 2000*time.Millisecond, clock.now.Sub(start))
}

func TestPacer_SlowCallNotDelayed(t *testing.T) {
	clock := newFakeClock()
	p := clock.pacer(DefaultFloor)
	start := clock.now

	err := p.Run(context.Background(), func(context.Context) error {
		clock.now = clock.now.Add(2500 * time.Millisecond)
		return nil
	})
	require.NoError(t, err)

	assert.Empty(t, clock.slept)
	assert.Equal(t, 2500*time.Millisecond, clock.now.Sub(start))
}

func TestPacer_ErrorStillHeld(t *testing.T) {
	clock := newFakeClock()
	p := clock.pacer(DefaultFloor)
	boom := errors.New("boom")

	err := p.Run(context.Background(), func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []time.Duration{DefaultFloor}, clock.slept)
}

func TestPacer_CancelledWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewPacer(time.Hour)
	start := time.Now()
	err := p.Wait(ctx, start)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestPacer_ZeroFloor(t *testing.T) {
	called := false
	err := NewPacer(0).Run(context.Background(), func(context.Context) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
}

type stubQuoter struct {
	res   quote.Result
	err   error
	calls []intake.Intake
}

func (s *stubQuoter) Quote(_ context.Context, in intake.Intake) (quote.Result, error) {
	s.calls = append(s.calls, in)
	return s.res, s.err
}

func key(k tea.KeyType) tea.KeyMsg { return tea.KeyMsg{Type: k} }

func runes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

func send(t *testing.T, m Model, msgs ...tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, msg := range msgs {
		var next tea.Model
		next, cmd = m.Update(msg)
		var ok bool
		m, ok = next.(Model)
		require.True(t, ok)
	}
	return m, cmd
}

func (m Model) fieldByKey(s step, k string) *field {
	for _, f := range m.fields[s] {
		if f.key == k {
			return f
		}
	}
	return nil
}

func newTestModel(q Quoter) Model {
	clock := newFakeClock()
	return New(context.Background(), q, clock.pacer(DefaultFloor))
}

func TestWizard_ProjectStepValidation(t *testing.T) {
	m := newTestModel(&stubQuoter{})
	assert.Equal(t, stepProject, m.step)
	assert.Contains(t, m.View(), "step 1 of 3")

	m, _ = send(t, m, key(tea.KeyEnter))
	assert.Equal(t, stepProject, m.step)
	require.Error(t, m.err)
	assert.Contains(t, m.View(), "description")
}

func TestWizard_ChoiceCycling(t *testing.T) {
	m := newTestModel(&stubQuoter{})
	pt := m.fieldByKey(stepProject, "projectType")

	m, _ = send(t, m, key(tea.KeyRight))
	assert.Equal(t, intake.TypeBusiness, pt.value())

	m, _ = send(t, m, key(tea.KeyLeft), key(tea.KeyLeft))
	assert.Equal(t, intake.TypeOther, pt.value())
	assert.Contains(t, m.View(), "Custom/Other")
}

func fillProject(t *testing.T, m Model) Model {
	t.Helper()
	m, _ = send(t, m,
		key(tea.KeyRight), key(tea.KeyRight), // ecommerce
		key(tea.KeyTab),
		runes("Online store for handmade goods"),
		key(tea.KeyEnter),
	)
	require.NoError(t, m.err)
	require.Equal(t, stepDetails, m.step)
	return m
}

func TestWizard_FullFlow(t *testing.T) {
	gen := quote.NewGenerator(nil, pricing.DefaultConstants(), quote.WithIDFunc(func() string { return "q-1" }))
	m := newTestModel(gen)

	m = fillProject(t, m)
	assert.Contains(t, m.View(), "step 2 of 3")

	// Contact details are required before quoting.
	m, _ = send(t, m, key(tea.KeyEnter))
	require.Error(t, m.err)
	assert.Equal(t, stepDetails, m.step)

	m.fieldByKey(stepDetails, "integrations").input.SetValue("Stripe, SendGrid")
	m.fieldByKey(stepDetails, "name").input.SetValue("Jane Doe")
	m.fieldByKey(stepDetails, "email").input.SetValue("jane@example.com")
	m.fieldByKey(stepDetails, "state").input.SetValue("ca")

	m, cmd := send(t, m, key(tea.KeyEnter))
	require.NoError(t, m.err)
	require.NotNil(t, cmd)
	assert.True(t, m.generating)
	assert.Contains(t, m.View(), "Generating your quote")

	in := m.result.Intake
	assert.Equal(t, intake.TypeEcommerce, in.ProjectType)
	assert.Equal(t, intake.TimelineStandard, in.Timeline)
	assert.Equal(t, "CA", in.Contact.State)

	// Keys are ignored while generating.
	m, _ = send(t, m, runes("a"))
	assert.True(t, m.generating)

	m, _ = send(t, m, m.generate(in)())
	assert.False(t, m.generating)
	assert.Equal(t, stepQuote, m.step)

	res, ok := m.Result()
	require.True(t, ok)
	assert.Equal(t, 410, res.Quote.Quote.Price)
	assert.Equal(t, 440, res.Quote.Tax.Total)

	view := m.View()
	assert.Contains(t, view, "$410")
	assert.Contains(t, view, "$440")
	assert.Contains(t, view, "Payment Processing")

	m, cmd = send(t, m, runes("a"))
	require.NotNil(t, cmd)
	res, _ = m.Result()
	assert.True(t, res.Accepted)
	assert.Empty(t, m.View())
}

func TestWizard_QuoteErrorStaysOnDetails(t *testing.T) {
	q := &stubQuoter{err: errors.New("service unavailable")}
	m := newTestModel(q)
	m = fillProject(t, m)
	m.fieldByKey(stepDetails, "name").input.SetValue("Jane Doe")
	m.fieldByKey(stepDetails, "email").input.SetValue("jane@example.com")

	m, _ = send(t, m, key(tea.KeyEnter))
	m, _ = send(t, m, m.generate(m.result.Intake)())

	assert.Equal(t, stepDetails, m.step)
	assert.Contains(t, m.View(), "service unavailable")
	assert.Len(t, q.calls, 1)
	_, ok := m.Result()
	assert.False(t, ok)
}

func TestWizard_NoQuoter(t *testing.T) {
	m := New(context.Background(), nil, Pacer{})
	msg := m.generate(intake.Intake{})()
	qm, ok := msg.(quoteMsg)
	require.True(t, ok)
	assert.Error(t, qm.err)
}

func TestWizard_EscGoesBackThenQuits(t *testing.T) {
	m := fillProject(t, newTestModel(&stubQuoter{}))

	m, _ = send(t, m, key(tea.KeyEsc))
	assert.Equal(t, stepProject, m.step)
	assert.Equal(t, "Online store for handmade goods", m.fieldByKey(stepProject, "description").value())

	m, cmd := send(t, m, key(tea.KeyEsc))
	assert.True(t, m.quitting)
	assert.NotNil(t, cmd)
}

func TestWizard_StartOver(t *testing.T) {
	m := newTestModel(&stubQuoter{})
	m.step = stepQuote

	m, _ = send(t, m, runes("r"))
	assert.Equal(t, stepProject, m.step)
	assert.Empty(t, m.fieldByKey(stepProject, "description").value())
}

func TestWizard_CtrlC(t *testing.T) {
	m, cmd := send(t, newTestModel(&stubQuoter{}), key(tea.KeyCtrlC))
	assert.True(t, m.quitting)
	assert.NotNil(t, cmd)
}
