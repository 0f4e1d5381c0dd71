package services

import (
	"github.com/solvdai/solvd/internal/analysis"
	"github.com/solvdai/solvd/internal/dispatch"
	"github.com/solvdai/solvd/internal/handoff"
	"github.com/solvdai/solvd/internal/mailer"
	"github.com/solvdai/solvd/internal/payment"
	"github.com/solvdai/solvd/internal/quote"
	"github.com/solvdai/solvd/internal/tax"
)

// Registry provides access to the quote pipeline components.
// Components that are not configured are nil.
type Registry interface {
	Quotes() *quote.Generator
	Analyzer() *analysis.Analyzer
	Dispatcher() dispatch.Dispatcher
	Acceptor() *handoff.Acceptor
	Sessions() *handoff.Signer
	Payments() payment.Provider
	Webhooks() *payment.Webhooks
	Mailer() mailer.Sender
	Taxes() *tax.Table
}

// Options configures the registry with component instances.
type Options struct {
	Quotes     *quote.Generator
	Analyzer   *analysis.Analyzer
	Dispatcher dispatch.Dispatcher
	Acceptor   *handoff.Acceptor
	Sessions   *handoff.Signer
	Payments   payment.Provider
	Webhooks   *payment.Webhooks
	Mailer     mailer.Sender
	Taxes      *tax.Table
}

type registry struct {
	quotes     *quote.Generator
	analyzer   *analysis.Analyzer
	dispatcher dispatch.Dispatcher
	acceptor   *handoff.Acceptor
	sessions   *handoff.Signer
	payments   payment.Provider
	webhooks   *payment.Webhooks
	mailer     mailer.Sender
	taxes      *tax.Table
}

// NewRegistry creates a registry. A missing mailer becomes mailer.Disabled
// and a missing tax table the embedded default; the tax table of a supplied
// generator is preferred so both see the same rates.
func NewRegistry(opts Options) Registry {
	r := &registry{
		quotes:     opts.Quotes,
		analyzer:   opts.Analyzer,
		dispatcher: opts.Dispatcher,
		acceptor:   opts.Acceptor,
		sessions:   opts.Sessions,
		payments:   opts.Payments,
		webhooks:   opts.Webhooks,
		mailer:     opts.Mailer,
		taxes:      opts.Taxes,
	}
	if r.mailer == nil {
		r.mailer = mailer.Disabled{}
	}
	if r.taxes == nil && r.quotes != nil {
		r.taxes = r.quotes.Taxes()
	}
	if r.taxes == nil {
		r.taxes = tax.Default()
	}
	return r
}

func (r *registry) Quotes() *quote.Generator        { return r.quotes }
func (r *registry) Analyzer() *analysis.Analyzer    { return r.analyzer }
func (r *registry) Dispatcher() dispatch.Dispatcher { return r.dispatcher }
func (r *registry) Acceptor() *handoff.Acceptor     { return r.acceptor }
func (r *registry) Sessions() *handoff.Signer       { return r.sessions }
func (r *registry) Payments() payment.Provider      { return r.payments }
func (r *registry) Webhooks() *payment.Webhooks     { return r.webhooks }
func (r *registry) Mailer() mailer.Sender           { return r.mailer }
func (r *registry) Taxes() *tax.Table               { return r.taxes }
