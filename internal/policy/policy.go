// Package policy loads the safety tables used to score risk and to gate generated replies.
package policy

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Keyword is a trigger term and the risk weight it contributes.
type Keyword struct {
	Term   string  `yaml:"term"`
	Weight float64 `yaml:"weight"`
}

type KeywordTable struct {
	Keywords []Keyword `yaml:"keywords"`
}

// Lookup returns the weight of term, or false when the term is not in the table.
func (t KeywordTable) Lookup(term string) (float64, bool) {
	for _, k := range t.Keywords {
		if k.Term == term {
			return k.Weight, true
		}
	}
	return 0, false
}

type Pattern struct {
	ID       string         `yaml:"id"`
	Regex    string         `yaml:"regex"`
	compiled *regexp.Regexp `yaml:"-"`
}

func (p Pattern) MatchString(s string) bool {
	return p.compiled != nil && p.compiled.MatchString(s)
}

type ValidatorPolicy struct {
	SelfHarmPhrases    []string  `yaml:"self_harm_phrases"`
	DisclaimerPatterns []Pattern `yaml:"disclaimer_patterns"`
	BoundaryStatements []string  `yaml:"boundary_statements"`
	MinWords           int       `yaml:"min_words"`
}

// Policy is immutable after Load and safe for concurrent use.
type Policy struct {
	Assessment KeywordTable    `yaml:"assessment"`
	Crisis     KeywordTable    `yaml:"crisis"`
	Validator  ValidatorPolicy `yaml:"validator"`
}

// Load parses a policy document, normalizes terms to lower case and compiles the regexes.
func Load(data []byte) (*Policy, error) {
	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("unmarshal safety policy: %w", err)
	}
	if err := p.normalize(); err != nil {
		return nil, err
	}
	return &p, nil
}

var loadDefault = sync.OnceValues(func() (*Policy, error) {
	return Load(safetyPolicyYAML)
})

// Default returns the embedded policy. It is parsed once per process.
func Default() (*Policy, error) {
	return loadDefault()
}

func (p *Policy) normalize() error {
	for _, table := range []*KeywordTable{&p.Assessment, &p.Crisis} {
		if len(table.Keywords) == 0 {
			return errors.New("safety policy: keyword table is empty")
		}
		for i := range table.Keywords {
			k := &table.Keywords[i]
			k.Term = strings.ToLower(strings.TrimSpace(k.Term))
			if k.Term == "" {
				return errors.New("safety policy: empty keyword term")
			}
			if k.Weight < 0 || k.Weight > 1 {
				return fmt.Errorf("safety policy: weight for %q out of range: %v", k.Term, k.Weight)
			}
		}
	}

	v := &p.Validator
	for i := range v.SelfHarmPhrases {
		v.SelfHarmPhrases[i] = strings.ToLower(v.SelfHarmPhrases[i])
	}
	for i := range v.BoundaryStatements {
		v.BoundaryStatements[i] = strings.ToLower(v.BoundaryStatements[i])
	}
	for i := range v.DisclaimerPatterns {
		re, err := regexp.Compile(v.DisclaimerPatterns[i].Regex)
		if err != nil {
			return fmt.Errorf("safety policy: compile %q: %w", v.DisclaimerPatterns[i].Regex, err)
		}
		v.DisclaimerPatterns[i].compiled = re
	}
	if v.MinWords < 0 {
		return fmt.Errorf("safety policy: negative min_words %d", v.MinWords)
	}
	return nil
}
