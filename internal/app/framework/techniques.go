package framework

import "github.com/PabloGalante/farum-therapy/internal/domain"

var techniqueGuides = map[domain.Framework]string{
	domain.FrameworkCBT: `Use Cognitive Behavioral Therapy techniques:
1. Identify cognitive distortions
2. Challenge negative thought patterns
3. Encourage behavioral activation
4. Guide thought recording
5. Focus on present situations and specific thoughts`,

	domain.FrameworkDBT: `Use Dialectical Behavior Therapy techniques:
1. Practice mindfulness
2. Focus on emotion regulation
3. Improve distress tolerance
4. Enhance interpersonal effectiveness
5. Find balance between acceptance and change`,

	domain.FrameworkPersonCentered: `Use Person-Centered Therapy techniques:
1. Show unconditional positive regard
2. Practice empathetic understanding
3. Maintain genuineness in responses
4. Reflect feelings and meanings
5. Support self-discovery and growth`,

	domain.FrameworkMindfulness: `Use Mindfulness-Based techniques:
1. Encourage present-moment awareness
2. Guide gentle observation of thoughts and feelings
3. Promote non-judgmental acceptance
4. Suggest grounding exercises
5. Support mindful self-compassion`,

	domain.FrameworkSolutionFocused: `Use Solution-Focused Brief Therapy techniques:
1. Focus on solutions rather than problems
2. Look for exceptions to problems
3. Set concrete, achievable goals
4. Use scaling questions
5. Identify and build on existing strengths`,
}

// TechniqueGuide is the framework-specific block embedded in the generation instruction.
func TechniqueGuide(f domain.Framework) string {
	if g, ok := techniqueGuides[f]; ok {
		return g
	}
	return techniqueGuides[domain.FrameworkPersonCentered]
}
