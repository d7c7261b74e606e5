// Package validator gates generated replies before they reach the user.
package validator

import (
	"strings"

	"github.com/PabloGalante/farum-therapy/internal/domain"
	"github.com/PabloGalante/farum-therapy/internal/policy"
)

// Violation names the first policy check a reply failed. The zero value means the reply passed.
type Violation string

const (
	None                     Violation = ""
	MissingSafetyDisclaimer  Violation = "missing_safety_disclaimer"
	MissingBoundaryStatement Violation = "missing_boundary_statement"
	TooShort                 Violation = "too_short"
)

func (v Violation) Passed() bool { return v == None }

// Guidance is the corrective note folded into the next generation attempt.
func (v Violation) Guidance() string {
	switch v {
	case MissingSafetyDisclaimer:
		return "Your previous draft mentioned self-harm without safety resources. " +
			"Include a pointer to a crisis hotline, emergency services or professional help."
	case MissingBoundaryStatement:
		return "Your previous draft did not state your professional boundaries. " +
			"Say clearly that you are not a licensed therapist and encourage the user to seek professional help."
	case TooShort:
		return "Your previous draft was too short. Reply with at least two full, warm sentences."
	}
	return ""
}

// Validator is pure and safe for concurrent use.
type Validator struct {
	rules policy.ValidatorPolicy
}

func New(pol *policy.Policy) *Validator {
	return &Validator{rules: pol.Validator}
}

// Validate runs the checks in order and returns the first violation.
func (v *Validator) Validate(msg domain.Message) Violation {
	content := strings.ToLower(msg.Content)

	if v.mentionsSelfHarm(content) && !v.hasSafetyDisclaimer(content) {
		return MissingSafetyDisclaimer
	}
	if msg.Flag(domain.MetaCrisis) && !v.hasBoundaryStatement(content) {
		return MissingBoundaryStatement
	}
	if len(strings.Fields(content)) < v.rules.MinWords {
		return TooShort
	}
	return None
}

func (v *Validator) mentionsSelfHarm(content string) bool {
	for _, p := range v.rules.SelfHarmPhrases {
		if strings.Contains(content, p) {
			return true
		}
	}
	return false
}

func (v *Validator) hasSafetyDisclaimer(content string) bool {
	for _, p := range v.rules.DisclaimerPatterns {
		if p.MatchString(content) {
			return true
		}
	}
	return false
}

func (v *Validator) hasBoundaryStatement(content string) bool {
	for _, s := range v.rules.BoundaryStatements {
		if strings.Contains(content, s) {
			return true
		}
	}
	return false
}
