package pattern

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jp3tty/FraudDocAI/internal/core/domain"
)

//go:embed rules.yaml
var embeddedRules []byte

// PhraseRule is a category detected by literal trigger phrases.
type PhraseRule struct {
	Category    domain.PatternCategory `yaml:"category" json:"category"`
	Weight      float64                `yaml:"weight" json:"weight"`
	Description string                 `yaml:"description" json:"description"`
	Triggers    []string               `yaml:"triggers" json:"triggers"`
}

// AmountRule is the co-occurrence category: a large currency amount in a
// document that also matched the Requires category.
type AmountRule struct {
	Category    domain.PatternCategory `yaml:"category" json:"category"`
	Weight      float64                `yaml:"weight" json:"weight"`
	Requires    domain.PatternCategory `yaml:"requires" json:"requires"`
	Description string                 `yaml:"description" json:"description"`
}

type RulePack struct {
	Version int          `yaml:"version" json:"version"`
	Phrases []PhraseRule `yaml:"phrases" json:"phrases"`
	Amount  AmountRule   `yaml:"amount" json:"amount"`
}

// LoadRules parses the rule pack compiled into the binary.
func LoadRules() (RulePack, error) {
	return ParseRules(embeddedRules)
}

// ParseRules decodes and validates a YAML rule pack.
func ParseRules(raw []byte) (RulePack, error) {
	var pack RulePack
	if err := yaml.Unmarshal(raw, &pack); err != nil {
		return RulePack{}, fmt.Errorf("decode rule pack: %w", err)
	}
	if err := pack.validate(); err != nil {
		return RulePack{}, domain.WrapError(domain.ErrInvalidInput, "validate rule pack", err)
	}
	return pack, nil
}

func (p RulePack) validate() error {
	if len(p.Phrases) == 0 {
		return errors.New("no phrase categories")
	}
	seen := make(map[domain.PatternCategory]bool, len(p.Phrases)+1)
	for i, rule := range p.Phrases {
		if rule.Category == "" {
			return fmt.Errorf("phrase rule %d: empty category", i)
		}
		if seen[rule.Category] {
			return fmt.Errorf("duplicate category %q", rule.Category)
		}
		seen[rule.Category] = true
		if rule.Weight <= 0 || rule.Weight > 1 {
			return fmt.Errorf("category %q: weight %v outside (0,1]", rule.Category, rule.Weight)
		}
		if len(rule.Triggers) == 0 {
			return fmt.Errorf("category %q: no triggers", rule.Category)
		}
		for _, trigger := range rule.Triggers {
			if strings.TrimSpace(trigger) == "" {
				return fmt.Errorf("category %q: blank trigger", rule.Category)
			}
		}
	}

	amount := p.Amount
	if amount.Category == "" {
		return errors.New("amount rule: empty category")
	}
	if seen[amount.Category] {
		return fmt.Errorf("duplicate category %q", amount.Category)
	}
	if amount.Weight <= 0 || amount.Weight > 1 {
		return fmt.Errorf("category %q: weight %v outside (0,1]", amount.Category, amount.Weight)
	}
	if !seen[amount.Requires] {
		return fmt.Errorf("amount rule requires unknown category %q", amount.Requires)
	}
	return nil
}
