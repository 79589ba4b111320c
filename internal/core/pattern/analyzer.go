// Package pattern implements the local rule-based fraud indicator scorer.
//
// Text is folded (NFKC + Unicode case folding) before matching, so triggers
// match case-insensitively and on word boundaries. Recorded triggers are the
// spans of the original text that matched. Analysis is pure and never fails:
// empty or garbage text simply yields a zero score.
package pattern

import (
	"regexp"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/jp3tty/FraudDocAI/internal/core/domain"
)

const DefaultLargeAmountThreshold = 10000

// amountPattern matches currency amounts in folded text: "$76,036.50",
// "€ 12000", "usd 5000", "25000 dollars".
var amountPattern = regexp.MustCompile(
	`(?:[$€£]|\b(?:usd|eur|gbp)\b)\s?(` + numberPattern + `)` +
		`|\b(` + numberPattern + `)\s?(?:usd|eur|gbp|dollars)\b`,
)

const numberPattern = `\d{1,3}(?:,\d{3})+(?:\.\d+)?|\d+(?:\.\d+)?`

// foldPool hands out transformer chains; a chain keeps state and must not be
// shared between goroutines.
var foldPool = sync.Pool{
	New: func() any {
		return transform.Chain(norm.NFKC, cases.Fold())
	},
}

func fold(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ToValidUTF8(s, "")
	tr := foldPool.Get().(transform.Transformer)
	out, _, err := transform.String(tr, s)
	tr.Reset()
	foldPool.Put(tr)
	if err != nil {
		return strings.ToLower(s)
	}
	return out
}

// foldedText is a folded document that remembers, for every folded byte,
// the byte range of the original rune it came from.
type foldedText struct {
	original string
	text     string
	starts   []int
	ends     []int
}

// foldWithOffsets folds s rune by rune so matches in the folded text can be
// mapped back to the literal input.
func foldWithOffsets(s string) foldedText {
	s = strings.ToValidUTF8(s, "")
	out := foldedText{
		original: s,
		starts:   make([]int, 0, len(s)),
		ends:     make([]int, 0, len(s)),
	}
	var b strings.Builder
	b.Grow(len(s))
	for i, r := range s {
		end := i + utf8.RuneLen(r)
		if r < utf8.RuneSelf {
			if 'A' <= r && r <= 'Z' {
				r += 'a' - 'A'
			}
			b.WriteByte(byte(r))
			out.starts = append(out.starts, i)
			out.ends = append(out.ends, end)
			continue
		}
		folded := fold(string(r))
		b.WriteString(folded)
		for range len(folded) {
			out.starts = append(out.starts, i)
			out.ends = append(out.ends, end)
		}
	}
	out.text = b.String()
	return out
}

// literal returns the original text behind the folded span [start, end).
func (f foldedText) literal(start, end int) string {
	if start >= end || end > len(f.starts) {
		return ""
	}
	return f.original[f.starts[start]:f.ends[end-1]]
}

type compiledTrigger struct {
	phrase string
	re     *regexp.Regexp
}

type compiledRule struct {
	rule     PhraseRule
	triggers []compiledTrigger
}

// Analyzer is safe for concurrent use.
type Analyzer struct {
	pack      RulePack
	rules     []compiledRule
	threshold float64
}

// New compiles pack. Amounts strictly greater than largeAmountThreshold count
// as large; a non-positive threshold falls back to DefaultLargeAmountThreshold.
func New(pack RulePack, largeAmountThreshold float64) (*Analyzer, error) {
	if err := pack.validate(); err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "compile rule pack", err)
	}
	if largeAmountThreshold <= 0 {
		largeAmountThreshold = DefaultLargeAmountThreshold
	}

	rules := make([]compiledRule, 0, len(pack.Phrases))
	for _, rule := range pack.Phrases {
		compiled := compiledRule{rule: rule}
		for _, trigger := range rule.Triggers {
			phrase := fold(strings.TrimSpace(trigger))
			compiled.triggers = append(compiled.triggers, compiledTrigger{
				phrase: phrase,
				re:     phraseRegexp(phrase),
			})
		}
		rules = append(rules, compiled)
	}

	return &Analyzer{pack: pack, rules: rules, threshold: largeAmountThreshold}, nil
}

// NewDefault builds an analyzer over the embedded rule pack.
func NewDefault(largeAmountThreshold float64) (*Analyzer, error) {
	pack, err := LoadRules()
	if err != nil {
		return nil, err
	}
	return New(pack, largeAmountThreshold)
}

// phraseRegexp matches phrase on word boundaries, tolerating any run of
// whitespace between its words.
func phraseRegexp(phrase string) *regexp.Regexp {
	words := strings.Fields(phrase)
	for i, w := range words {
		words[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`\b` + strings.Join(words, `\s+`) + `\b`)
}

// Rules returns the rule pack the analyzer was built from.
func (a *Analyzer) Rules() RulePack {
	return a.pack
}

func (a *Analyzer) LargeAmountThreshold() float64 {
	return a.threshold
}

func (a *Analyzer) Analyze(text string) domain.PatternResult {
	result := domain.PatternResult{
		SchemaVersion: domain.ResultSchemaVersion,
		Matches:       []domain.PatternMatch{},
	}

	doc := foldWithOffsets(text)
	if strings.TrimSpace(doc.text) == "" {
		return result
	}

	for _, rule := range a.rules {
		var found []string
		for _, trigger := range rule.triggers {
			loc := trigger.re.FindStringIndex(doc.text)
			if loc == nil {
				continue
			}
			found = appendUnique(found, doc.literal(loc[0], loc[1]))
		}
		if len(found) == 0 {
			continue
		}
		result.Matches = append(result.Matches, domain.PatternMatch{
			Category: rule.rule.Category,
			Weight:   rule.rule.Weight,
			Triggers: found,
		})
	}

	if result.Matched(a.pack.Amount.Requires) {
		if amounts := a.largeAmounts(doc); len(amounts) > 0 {
			result.Matches = append(result.Matches, domain.PatternMatch{
				Category: a.pack.Amount.Category,
				Weight:   a.pack.Amount.Weight,
				Triggers: amounts,
			})
		}
	}

	result.Score = score(result.Matches)
	return result
}

// largeAmounts returns the literal amounts above the threshold, deduplicated,
// in order of appearance.
func (a *Analyzer) largeAmounts(doc foldedText) []string {
	var out []string
	for _, m := range amountPattern.FindAllStringSubmatchIndex(doc.text, -1) {
		start, end := m[2], m[3]
		if start < 0 {
			start, end = m[4], m[5]
		}
		number := doc.text[start:end]
		value, err := strconv.ParseFloat(strings.ReplaceAll(number, ",", ""), 64)
		if err != nil || value <= a.threshold {
			continue
		}
		out = appendUnique(out, strings.TrimSpace(doc.literal(m[0], m[1])))
	}
	return out
}

func appendUnique(list []string, s string) []string {
	if s == "" {
		return list
	}
	for _, existing := range list {
		if existing == s {
			return list
		}
	}
	return append(list, s)
}

func score(matches []domain.PatternMatch) float64 {
	var sum float64
	for _, m := range matches {
		sum += m.Weight
	}
	return domain.ClampScore(domain.RoundScore(sum))
}
