package crisis

import (
	"math"
	"strings"
	"time"

	"github.com/PabloGalante/farum-therapy/internal/domain"
)

// DefaultEscalationLevel is the risk above which a crisis reply is escalated.
const DefaultEscalationLevel = 0.8

// Decision is the outcome of the escalation checkpoint.
type Decision int

const (
	DecisionRespond Decision = iota
	DecisionEscalate
)

func (d Decision) String() string {
	if d == DecisionEscalate {
		return "escalate"
	}
	return "respond"
}

// Outcome is the result of one pass through the crisis flow.
type Outcome struct {
	Decision  Decision
	Evaluated domain.SafetyStatus
	Reply     domain.Message
}

// Flow builds the reply for a turn that crossed the crisis threshold. It never calls a generator.
type Flow struct {
	evaluator       *Evaluator
	escalationLevel float64
	now             func() time.Time
}

func NewFlow(evaluator *Evaluator) *Flow {
	return &Flow{
		evaluator:       evaluator,
		escalationLevel: DefaultEscalationLevel,
		now:             time.Now,
	}
}

// Handle evaluates msg with the standalone evaluator, decides whether to escalate,
// and returns exactly one crisis reply.
func (f *Flow) Handle(msg domain.Message, history []domain.Message, assessed domain.SafetyStatus) Outcome {
	evaluated := f.evaluator.EvaluateRisk(msg, history)
	decision := f.checkEscalation(assessed, evaluated)

	actions := assessed.RecommendedActions
	if len(actions) == 0 {
		actions = evaluated.RecommendedActions
	}

	var b strings.Builder
	if decision == DecisionEscalate {
		b.WriteString(escalationHeader)
	}
	b.WriteString(Message(actions))

	meta := map[string]any{
		domain.MetaCrisis:           true,
		domain.MetaEscalated:        decision == DecisionEscalate,
		domain.MetaRiskLevel:        assessed.RiskLevel,
		domain.MetaCrisisIndicators: mergeIndicators(assessed.CrisisIndicators, evaluated.CrisisIndicators),
		domain.MetaEvaluatorRisk:    evaluated.RiskLevel,
	}

	return Outcome{
		Decision:  decision,
		Evaluated: evaluated,
		Reply:     domain.NewMessage(domain.SenderBot, b.String(), f.now(), meta),
	}
}

func (f *Flow) checkEscalation(assessed, evaluated domain.SafetyStatus) Decision {
	if math.Max(assessed.RiskLevel, evaluated.RiskLevel) > f.escalationLevel {
		return DecisionEscalate
	}
	return DecisionRespond
}

const escalationHeader = "YOUR SAFETY IS MY TOP PRIORITY\n\n" +
	"I need you to know:\n" +
	"1. You're not alone\n" +
	"2. Help is available right now\n" +
	"3. Your life has value\n\n" +
	"Please take one of these immediate actions:\n" +
	"- Call Emergency Services (911 in the US)\n" +
	"- Contact the Crisis Hotline: 988\n" +
	"- Go to the nearest emergency room\n" +
	"- Call a trusted person who can be with you\n\n"

// Message renders the crisis reply body for a list of recommended actions.
func Message(actions []string) string {
	var b strings.Builder
	b.WriteString("I notice you're going through a really difficult time right now. ")
	b.WriteString("Your safety and well-being are the top priority.\n\n")
	b.WriteString("I am not a licensed therapist, and I'm an AI assistant, not a replacement for ")
	b.WriteString("professional help. Here are some immediate steps you can take:\n\n")
	for _, a := range actions {
		b.WriteString("- ")
		b.WriteString(a)
		b.WriteString("\n")
	}
	b.WriteString("\nIf you're having thoughts of harming yourself or others, please:\n")
	b.WriteString("1. Call emergency services (911 in the US)\n")
	b.WriteString("2. Contact the National Crisis Hotline: 988\n")
	b.WriteString("3. Reach out to a trusted person or mental health professional\n")
	b.WriteString("\nWould you be willing to tell me if you're safe right now?")
	return b.String()
}

func mergeIndicators(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	seen := make(map[string]bool, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, s := range list {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	return out
}
