// Package mcp serves the quoting tools over the Model Context Protocol.
//
// Tools:
//   - quote_estimate prices a project description, with state sales tax
//   - state_tax looks up a state's rate and applies it to a price
//   - tool_search and tool_list help clients discover the tools above
//
// Model reasoning is scrubbed for secrets before it is returned.
package mcp
