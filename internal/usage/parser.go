package usage

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// CSI sequences, OSC sequences and lone two-byte escapes.
	ansiRe = regexp.MustCompile(`\x1b\[[0-?]*[ -/]*[@-~]|\x1b\][^\x07\x1b]*(?:\x07|\x1b\\)|\x1b[@-Z\\-_]`)

	percentRe    = regexp.MustCompile(`(?i)(?:^|[^\d.])(\d+(?:\.\d+)?)\s*%(?:\s*(used|left))?`)
	rawPercentRe = regexp.MustCompile(`\S*%`)
)

// account problems the CLI reports instead of a usage table
var accountProblems = []struct {
	re  *regexp.Regexp
	msg string
}{
	{regexp.MustCompile(`(?i)token (has )?expired|session expired`), "Claude login has expired; run claude to sign in again"},
	{regexp.MustCompile(`(?i)not logged in|please (log|sign) in|login required|authentication[_ ](error|failed)`), "Claude CLI is not logged in"},
	{regexp.MustCompile(`(?i)free tier|no active subscription|upgrade to pro`), "No Claude subscription with usage limits found"},
	{regexp.MustCompile(`(?i)let's get started|choose the text style`), "Claude CLI needs first-run setup; run claude once in a terminal"},
}

// StripANSI removes terminal escape sequences and carriage returns.
func StripANSI(s string) string {
	s = ansiRe.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// Parser turns raw CLI output into a Record.
type Parser struct {
	g compiledGrammar
}

// NewParser compiles g, filling unset fields from DefaultGrammar.
func NewParser(g Grammar) (*Parser, error) {
	cg, err := compile(g)
	if err != nil {
		return nil, err
	}
	return &Parser{g: cg}, nil
}

var defaultParser, _ = NewParser(DefaultGrammar())

// Parse uses the default grammar.
func Parse(raw string) (Record, error) {
	return defaultParser.Parse(raw)
}

// Parse extracts session and weekly percentages and the session reset text.
// Missing values are recorded as unknown; it fails with KindUnparsableOutput
// only when nothing at all can be read.
func (p *Parser) Parse(raw string) (Record, error) {
	clean := strings.TrimSpace(StripANSI(raw))
	if clean == "" {
		return Record{}, Unparsable("claude produced no output")
	}

	lines := strings.Split(clean, "\n")
	lower := make([]string, len(lines))
	for i, l := range lines {
		lower[i] = strings.ToLower(l)
	}

	sAt := findLabel(lower, p.g.session, noLabel)
	wAt := findLabel(lower, p.g.weekly, sAt)

	var rec Record
	if sAt.line < 0 && wAt.line < 0 {
		rec = p.positional(clean)
	} else {
		rec.Session = UnknownPercent("")
		rec.Weekly = UnknownPercent("")
		if sAt.line >= 0 {
			block := p.block(lines, lower, sAt, wAt)
			var at int
			rec.Session, at = percentIn(block)
			rec.SessionResets = p.resetIn(block, at)
		}
		if wAt.line >= 0 {
			rec.Weekly, _ = percentIn(p.block(lines, lower, wAt, sAt))
		}
	}

	if rec.empty() {
		return Record{}, Unparsable(accountProblem(clean))
	}
	return rec, nil
}

// labelAt locates a label match: line index and byte columns [col, end).
type labelAt struct {
	line, col, end int
}

var noLabel = labelAt{line: -1}

// findLabel returns the first match of labels, in priority order. Lines other
// than avoid's are preferred; on avoid's line only a match clear of the
// avoided label counts, so "Session: 42% Weekly: 7%" yields both.
func findLabel(lower []string, labels []string, avoid labelAt) labelAt {
	for _, label := range labels {
		for i, l := range lower {
			if i == avoid.line {
				continue
			}
			if c := strings.Index(l, label); c >= 0 {
				return labelAt{line: i, col: c, end: c + len(label)}
			}
		}
	}
	if avoid.line < 0 {
		return noLabel
	}
	l := lower[avoid.line]
	for _, label := range labels {
		for from := 0; from < len(l); {
			c := strings.Index(l[from:], label)
			if c < 0 {
				break
			}
			c += from
			if c >= avoid.end || c+len(label) <= avoid.col {
				return labelAt{line: avoid.line, col: c, end: c + len(label)}
			}
			from = c + 1
		}
	}
	return noLabel
}

// block returns the text that belongs to the label at: its line from the
// label onwards, cut at the other label when that follows on the same line,
// else continued through the label's window of following lines.
func (p *Parser) block(lines, lower []string, at, other labelAt) []string {
	line := lines[at.line]
	shared := other.line == at.line && other.col > at.col
	from, to := at.col, len(line)
	if shared {
		to = other.col
	}
	if len(line) != len(lower[at.line]) {
		// lowering changed byte offsets; fall back to the whole line
		from, to = 0, len(line)
	}
	out := []string{line[from:to]}
	if shared {
		return out
	}
	return append(out, lines[at.line+1:p.window(lower, at.line)]...)
}

// window returns the end (exclusive) of the block starting at line i: it
// spans LookAhead further lines and stops early at the next labelled line.
func (p *Parser) window(lower []string, i int) int {
	end := min(i+1+p.g.lookAhead, len(lower))
	for j := i + 1; j < end; j++ {
		if p.hasLabel(lower[j]) {
			return j
		}
	}
	return end
}

func (p *Parser) hasLabel(l string) bool {
	for _, label := range p.g.session {
		if strings.Contains(l, label) {
			return true
		}
	}
	for _, label := range p.g.weekly {
		if strings.Contains(l, label) {
			return true
		}
	}
	return false
}

// percentIn returns the first percentage in block and the index it was found at.
func percentIn(block []string) (Percent, int) {
	for j, l := range block {
		if pct, ok := parsePercent(l); ok {
			return pct, j
		}
	}
	for j, l := range block {
		if tok := rawPercentRe.FindString(l); tok != "" {
			return UnknownPercent(tok), j
		}
	}
	return UnknownPercent(""), 0
}

func (p *Parser) resetIn(block []string, from int) string {
	for _, l := range block[from:] {
		if m := p.g.reset.FindStringSubmatch(l); len(m) > 1 {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

// positional handles reports without recognisable labels: the first two
// percentages are taken as session and weekly.
func (p *Parser) positional(clean string) Record {
	rec := Record{Session: UnknownPercent(""), Weekly: UnknownPercent("")}
	matches := percentRe.FindAllStringSubmatch(clean, 2)
	if len(matches) > 0 {
		rec.Session = percentFromMatch(matches[0])
	}
	if len(matches) > 1 {
		rec.Weekly = percentFromMatch(matches[1])
	}
	if m := p.g.reset.FindStringSubmatch(clean); len(m) > 1 {
		rec.SessionResets = strings.TrimSpace(m[1])
	}
	return rec
}

func parsePercent(line string) (Percent, bool) {
	m := percentRe.FindStringSubmatch(line)
	if m == nil {
		return Percent{}, false
	}
	return percentFromMatch(m), true
}

func percentFromMatch(m []string) Percent {
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return UnknownPercent(m[0])
	}
	if strings.EqualFold(m[2], "left") {
		return KnownPercent(100 - v)
	}
	return Percent{Value: v, Known: true, Display: m[1] + "%"}
}

func accountProblem(clean string) string {
	for _, ap := range accountProblems {
		if ap.re.MatchString(clean) {
			return ap.msg
		}
	}
	return ""
}
