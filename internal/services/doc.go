// Package services holds the wired quote pipeline.
//
// The daemon builds every component once (generator, analyzer, dispatcher,
// acceptor, payment provider, webhooks, mailer, tax table) and hands them to
// the HTTP and MCP layers through a Registry.
package services
