package llm

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/tmc/langchaingo/llms"
)

// FakeModel is a scripted llms.Model for tests.
type FakeModel struct {
	// Response is returned as the single choice.
	Response string
	// Err, when set, is returned instead of a response.
	Err error
	// Delay is waited before responding; the context may cut it short.
	Delay time.Duration

	mu    sync.Mutex
	calls []FakeCall
}

// FakeCall records one GenerateContent call.
type FakeCall struct {
	System   string
	User     string
	JSONMode bool
}

// GenerateContent implements llms.Model.
func (f *FakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	var opts llms.CallOptions
	for _, o := range options {
		o(&opts)
	}

	call := FakeCall{JSONMode: opts.JSONMode}
	for _, m := range messages {
		text := messageText(m)
		switch m.Role {
		case llms.ChatMessageTypeSystem:
			call.System = text
		case llms.ChatMessageTypeHuman:
			call.User = text
		}
	}
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()

	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.Err != nil {
		return nil, f.Err
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: f.Response}},
	}, nil
}

// Call implements llms.Model.
func (f *FakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

// Calls returns the recorded calls.
func (f *FakeModel) Calls() []FakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]FakeCall(nil), f.calls...)
}

func messageText(m llms.MessageContent) string {
	var b strings.Builder
	for _, p := range m.Parts {
		if t, ok := p.(llms.TextContent); ok {
			b.WriteString(t.Text)
		}
	}
	return b.String()
}

var _ llms.Model = (*FakeModel)(nil)
