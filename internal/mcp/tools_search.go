package mcp

import (
	"context"
	"fmt"
	"strings"
)

// ===== TOOL DISCOVERY =====

type toolSearchInput struct {
	Query    string `json:"query" jsonschema:"Search text or regular expression matched against tool names, descriptions and keywords"`
	Category string `json:"category,omitempty" jsonschema:"Restrict results to a category: quote, tax or search"`
	Limit    int    `json:"limit,omitempty" jsonschema:"Maximum results to return (default 5)"`
}

type toolInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Keywords    []string `json:"keywords,omitempty"`
	Score       int      `json:"score,omitempty"`
	MatchReason string   `json:"match_reason,omitempty"`
}

type toolSearchOutput struct {
	Query      string     `json:"query" jsonschema:"Search query used"`
	Results    []toolInfo `json:"results" jsonschema:"Matching tools, best first"`
	Count      int        `json:"count" jsonschema:"Number of tools found"`
	TotalTools int        `json:"total_tools" jsonschema:"Total number of registered tools"`
}

type toolListInput struct {
	Category string `json:"category,omitempty" jsonschema:"Restrict the list to a category"`
}

type toolListOutput struct {
	Tools []toolInfo `json:"tools" jsonschema:"Registered tools"`
	Count int        `json:"count" jsonschema:"Number of tools returned"`
}

const defaultSearchLimit = 5

func (s *Server) registerSearchTools() {
	addTool(s, &ToolMetadata{
		Name:        "tool_search",
		Description: "Search the available tools by name, description or keyword",
		Category:    CategorySearch,
		Keywords:    []string{"find", "discover"},
	}, s.toolSearch)

	addTool(s, &ToolMetadata{
		Name:        "tool_list",
		Description: "List the available tools with their categories",
		Category:    CategorySearch,
	}, s.toolList)
}

func (s *Server) toolSearch(_ context.Context, args toolSearchInput) (string, toolSearchOutput, error) {
	if strings.TrimSpace(args.Query) == "" {
		return "", toolSearchOutput{}, fmt.Errorf("%w: query is required", errInvalidArgument)
	}
	limit := args.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	matches := s.tools.Search(args.Query, ToolCategory(args.Category))
	if len(matches) > limit {
		matches = matches[:limit]
	}

	out := toolSearchOutput{
		Query:      args.Query,
		Results:    make([]toolInfo, 0, len(matches)),
		TotalTools: s.tools.Count(),
	}
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		info := describe(m.Tool)
		info.Score, info.MatchReason = m.Score, m.MatchReason
		out.Results = append(out.Results, info)
		names = append(names, m.Tool.Name)
	}
	out.Count = len(out.Results)

	if out.Count == 0 {
		return fmt.Sprintf("No tools found matching: %s", args.Query), out, nil
	}
	return fmt.Sprintf("Found %d tool(s) for %q: %s", out.Count, args.Query, strings.Join(names, ", ")), out, nil
}

func (s *Server) toolList(_ context.Context, args toolListInput) (string, toolListOutput, error) {
	tools := s.tools.List(ToolCategory(args.Category))
	out := toolListOutput{Tools: make([]toolInfo, 0, len(tools))}
	for _, t := range tools {
		out.Tools = append(out.Tools, describe(t))
	}
	out.Count = len(out.Tools)
	return fmt.Sprintf("Found %d tools", out.Count), out, nil
}

func describe(t *ToolMetadata) toolInfo {
	return toolInfo{
		Name:        t.Name,
		Description: t.Description,
		Category:    string(t.Category),
		Keywords:    t.Keywords,
	}
}
