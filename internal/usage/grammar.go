package usage

import (
	"fmt"
	"regexp"
	"strings"
)

// Grammar describes the textual markers of the CLI's usage report.
// Labels are matched case-insensitively, earlier entries first.
type Grammar struct {
	SessionLabels []string `json:"sessionLabels,omitempty"`
	WeeklyLabels  []string `json:"weeklyLabels,omitempty"`
	ResetPattern  string   `json:"resetPattern,omitempty"`
	LookAhead     int      `json:"lookAhead,omitempty"`
}

// DefaultGrammar matches both the compact "Session: 42% (resets 3h)" form and
// the boxed "Current session / 11% used / Resets 5:59pm" layout of `claude /usage`.
func DefaultGrammar() Grammar {
	return Grammar{
		SessionLabels: []string{"current session", "session"},
		WeeklyLabels:  []string{"current week (all models)", "weekly", "current week", "week"},
		ResetPattern:  `(?i)\bresets?\s+(?:in\s+|at\s+|on\s+)?([^()\n]*[^()\s])`,
		LookAhead:     4,
	}
}

// Merge fills empty fields of g from def.
func (g Grammar) Merge(def Grammar) Grammar {
	if len(g.SessionLabels) == 0 {
		g.SessionLabels = def.SessionLabels
	}
	if len(g.WeeklyLabels) == 0 {
		g.WeeklyLabels = def.WeeklyLabels
	}
	if g.ResetPattern == "" {
		g.ResetPattern = def.ResetPattern
	}
	if g.LookAhead <= 0 {
		g.LookAhead = def.LookAhead
	}
	return g
}

type compiledGrammar struct {
	session   []string
	weekly    []string
	reset     *regexp.Regexp
	lookAhead int
}

func compile(g Grammar) (compiledGrammar, error) {
	g = g.Merge(DefaultGrammar())
	re, err := regexp.Compile(g.ResetPattern)
	if err != nil {
		return compiledGrammar{}, fmt.Errorf("reset pattern: %w", err)
	}
	if re.NumSubexp() < 1 {
		return compiledGrammar{}, fmt.Errorf("reset pattern %q needs a capture group", g.ResetPattern)
	}
	return compiledGrammar{
		session:   lowerAll(g.SessionLabels),
		weekly:    lowerAll(g.WeeklyLabels),
		reset:     re,
		lookAhead: g.LookAhead,
	}, nil
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
