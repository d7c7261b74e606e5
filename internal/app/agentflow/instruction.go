package agentflow

import (
	"fmt"
	"strings"

	"github.com/PabloGalante/farum-therapy/internal/app/framework"
	"github.com/PabloGalante/farum-therapy/internal/domain"
)

const baseInstruction = `You are a professional therapeutic AI assistant. Your responses should be:
1. Empathetic and understanding
2. Professional yet warm
3. Focused on the user's emotional needs
4. Based on evidence-based therapeutic techniques
5. Safe and encouraging

You are NOT a therapist, doctor, or emergency service and you do NOT give medical or psychiatric diagnoses.
Answer in the same language as the user. Keep it to a few short paragraphs.`

const closingInstruction = `Generate a response that:
- Acknowledges the user's emotions
- Applies appropriate therapeutic techniques
- Maintains professional boundaries
- Encourages healthy coping strategies
- If self-harm comes up, points to a crisis hotline, emergency services or professional help`

// historyLines caps how much of the rolling window is quoted back to the model.
const historyLines = 6

// BuildInstruction renders the system instruction for one generation attempt.
// guidance is the corrective note from a rejected draft, empty on the first attempt.
func BuildInstruction(state *domain.ConversationState, guidance string) string {
	emo := state.EmotionalState
	ts := state.TherapeuticState

	var b strings.Builder
	b.WriteString(baseInstruction)

	b.WriteString("\n\nCurrent Context:\n")
	fmt.Fprintf(&b, "User's primary emotion: %s\n", emo.PrimaryEmotion)
	fmt.Fprintf(&b, "Emotional intensity: %.2f\n", emo.Intensity)
	fmt.Fprintf(&b, "Current therapeutic framework: %s\n", ts.ActiveFramework.DisplayName())
	fmt.Fprintf(&b, "Session goals: %s\n", strings.Join(ts.SessionGoals, ", "))

	b.WriteString("\nTherapeutic Framework Guidelines:\n")
	b.WriteString(framework.TechniqueGuide(ts.ActiveFramework))
	b.WriteString("\n")

	fmt.Fprintf(&b, "\nSafety Level: %.2f\n", state.SafetyStatus.RiskLevel)

	if conv := conversationSoFar(state.History()); conv != "" {
		b.WriteString("\nConversation so far:\n")
		b.WriteString(conv)
	}

	b.WriteString("\n")
	b.WriteString(closingInstruction)

	if guidance != "" {
		b.WriteString("\n\nRevision note: ")
		b.WriteString(guidance)
	}
	return b.String()
}

func conversationSoFar(history []domain.Message) string {
	if len(history) > historyLines {
		history = history[len(history)-historyLines:]
	}
	var parts []string
	for _, m := range history {
		role := "user"
		if m.Sender == domain.SenderBot {
			role = "assistant"
		}
		parts = append(parts, role+": "+m.Content)
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, "\n") + "\n"
}
