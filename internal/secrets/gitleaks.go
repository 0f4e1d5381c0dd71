package secrets

import (
	"fmt"
	"strings"
	"sync"

	"github.com/zricethezav/gitleaks/v8/detect"
)

// GitleaksScrubber uses the full gitleaks rule set. It is slower than the
// regex engine and is meant for operators who want broader coverage.
type GitleaksScrubber struct {
	mu       sync.Mutex
	detector *detect.Detector
}

// NewGitleaks builds a scrubber around the default gitleaks configuration.
func NewGitleaks() (*GitleaksScrubber, error) {
	d, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("gitleaks detector: %w", err)
	}
	return &GitleaksScrubber{detector: d}, nil
}

// Enabled returns true.
func (g *GitleaksScrubber) Enabled() bool { return true }

// Scrub redacts every secret value gitleaks reports.
func (g *GitleaksScrubber) Scrub(content string) Result {
	if content == "" {
		return Result{Scrubbed: content}
	}

	// Scans are serialized; the detector keeps shared state between calls.
	g.mu.Lock()
	found := g.detector.DetectString(content)
	g.mu.Unlock()

	var findings []Finding
	for _, f := range found {
		secret := f.Secret
		if secret == "" {
			secret = f.Match
		}
		if secret == "" {
			continue
		}
		for offset := 0; ; {
			idx := strings.Index(content[offset:], secret)
			if idx < 0 {
				break
			}
			start := offset + idx
			findings = append(findings, Finding{
				RuleID:     f.RuleID,
				StartIndex: start,
				EndIndex:   start + len(secret),
				Line:       strings.Count(content[:start], "\n") + 1,
			})
			offset = start + len(secret)
		}
	}
	return Result{Scrubbed: redact(content, findings), Findings: findings}
}

var _ Scrubber = (*GitleaksScrubber)(nil)
