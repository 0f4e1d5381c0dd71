// Package secrets redacts credentials from free-text intake fields before
// they are sent to the language model or copied into operator emails.
package secrets

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Redaction replaces every detected secret.
const Redaction = "[REDACTED]"

// Engines selectable from configuration.
const (
	EngineRegex    = "regex"
	EngineGitleaks = "gitleaks"
	EngineOff      = "off"
)

// Scrubber detects and redacts secrets from content.
type Scrubber interface {
	// Scrub redacts secrets from content.
	Scrub(content string) Result

	// Enabled reports whether the scrubber does anything.
	Enabled() bool
}

// Result contains the scrubbing result.
type Result struct {
	Scrubbed string    `json:"scrubbed"`
	Findings []Finding `json:"findings,omitempty"`
}

// Finding describes a detected secret without its value.
type Finding struct {
	RuleID     string `json:"rule_id"`
	StartIndex int    `json:"start_index"`
	EndIndex   int    `json:"end_index"`
	Line       int    `json:"line"`
}

// HasFindings returns true if any secrets were found.
func (r Result) HasFindings() bool {
	return len(r.Findings) > 0
}

// RuleIDs returns the sorted unique rule IDs that matched.
func (r Result) RuleIDs() []string {
	seen := make(map[string]bool, len(r.Findings))
	ids := make([]string, 0, len(r.Findings))
	for _, f := range r.Findings {
		if !seen[f.RuleID] {
			seen[f.RuleID] = true
			ids = append(ids, f.RuleID)
		}
	}
	sort.Strings(ids)
	return ids
}

// New returns the scrubber for engine.
func New(engine string) (Scrubber, error) {
	switch engine {
	case EngineRegex, "":
		return NewRegex(DefaultRules())
	case EngineGitleaks:
		return NewGitleaks()
	case EngineOff:
		return Noop{}, nil
	default:
		return nil, fmt.Errorf("unknown secrets engine %q", engine)
	}
}

type compiledRule struct {
	id       string
	pattern  *regexp.Regexp
	keywords []string
}

// RegexScrubber applies a fixed set of regular expression rules.
type RegexScrubber struct {
	rules []compiledRule
}

// NewRegex compiles rules into a scrubber.
func NewRegex(rules []Rule) (*RegexScrubber, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for i, r := range rules {
		if r.ID == "" {
			return nil, fmt.Errorf("rule %d: ID is required", i)
		}
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule %s: invalid pattern: %w", r.ID, err)
		}
		kws := make([]string, len(r.Keywords))
		for j, kw := range r.Keywords {
			kws[j] = strings.ToLower(kw)
		}
		compiled = append(compiled, compiledRule{id: r.ID, pattern: re, keywords: kws})
	}
	return &RegexScrubber{rules: compiled}, nil
}

// Enabled returns true.
func (s *RegexScrubber) Enabled() bool { return true }

// Scrub redacts every rule match, merging overlapping matches.
func (s *RegexScrubber) Scrub(content string) Result {
	if content == "" {
		return Result{Scrubbed: content}
	}
	lower := strings.ToLower(content)

	var findings []Finding
	for _, r := range s.rules {
		if !hasKeyword(lower, r.keywords) {
			continue
		}
		for _, m := range r.pattern.FindAllStringIndex(content, -1) {
			findings = append(findings, Finding{
				RuleID:     r.id,
				StartIndex: m[0],
				EndIndex:   m[1],
				Line:       strings.Count(content[:m[0]], "\n") + 1,
			})
		}
	}
	return Result{Scrubbed: redact(content, findings), Findings: findings}
}

func hasKeyword(lower string, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

type span struct{ start, end int }

// redact replaces the union of the finding ranges with Redaction.
func redact(content string, findings []Finding) string {
	if len(findings) == 0 {
		return content
	}
	spans := make([]span, 0, len(findings))
	for _, f := range findings {
		if f.StartIndex >= 0 && f.EndIndex <= len(content) && f.StartIndex < f.EndIndex {
			spans = append(spans, span{f.StartIndex, f.EndIndex})
		}
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })

	var b strings.Builder
	b.Grow(len(content))
	pos := 0
	for i := 0; i < len(spans); {
		cur := spans[i]
		i++
		for i < len(spans) && spans[i].start <= cur.end {
			if spans[i].end > cur.end {
				cur.end = spans[i].end
			}
			i++
		}
		b.WriteString(content[pos:cur.start])
		b.WriteString(Redaction)
		pos = cur.end
	}
	b.WriteString(content[pos:])
	return b.String()
}

// Noop leaves content untouched.
type Noop struct{}

// Scrub returns content unchanged.
func (Noop) Scrub(content string) Result { return Result{Scrubbed: content} }

// Enabled returns false.
func (Noop) Enabled() bool { return false }

var (
	_ Scrubber = (*RegexScrubber)(nil)
	_ Scrubber = Noop{}
)
