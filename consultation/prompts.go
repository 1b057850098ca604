package consultation

import (
	"fmt"
	"strings"

	"github.com/medrounds/med-consult-api/models"
)

// Role instructions for each specialist persona. Kept short on purpose: the
// product wants a 2-3 sentence expert opinion per role, not a full report.
var rolePrompts = map[models.Persona]string{
	models.PersonaRadiologist: `You are Dr. Michael Rodriguez, a diagnostic radiologist. Focus on:
- Image quality and technical aspects
- Anatomical structures visible
- Abnormalities or variations from normal
- Recommendations for additional imaging if needed

Provide a concise 2-3 sentence expert opinion focusing on imaging interpretation.`,

	models.PersonaCardiologist: `You are Dr. Sarah Chen, an experienced cardiologist. Focus on:
- Heart function and circulation
- Cardiovascular risk factors
- Heart-related implications of the findings
- Blood flow and cardiac output concerns

Provide a concise 2-3 sentence expert opinion focusing on cardiac aspects.`,

	models.PersonaPulmonologist: `You are Dr. Emily Johnson, a pulmonologist. Focus on:
- Lung function and airway concerns
- Respiratory implications of the findings
- Breathing patterns and oxygenation
- Pulmonary recommendations

Provide a concise 2-3 sentence expert opinion focusing on respiratory aspects.`,

	models.PersonaNeurologist: `You are Dr. David Park, a neurologist. Focus on:
- Neurological structures and function
- Nervous system implications of the findings
- Cognitive or motor concerns
- Neurological follow-up recommendations

Provide a concise 2-3 sentence expert opinion focusing on neurological aspects.`,
}

// summaryPrompt is the chief synthesis role instruction
const summaryPrompt = `You are Dr. Lisa Thompson, Chief Medical Officer leading a multidisciplinary team review.
Your role is to synthesize specialist opinions into a clear, actionable summary that patients can understand.

Create a unified summary that includes:
- What we found, combining all specialist insights into one clear picture
- What this means for the patient's daily life
- What we recommend as immediate next steps
- A simple action plan with clear warning signs to watch for

Keep the language at a 6th-grade reading level. Avoid medical jargon. Be reassuring but honest.`

// specialistSystemPrompt assembles the system instruction for one specialist:
// role instruction, case description, and any prior findings context
func specialistSystemPrompt(p models.Persona, caseDescription string, findings []string) string {
	var b strings.Builder
	b.WriteString(rolePrompts[p])
	b.WriteString(fmt.Sprintf("\n\nCase: %q\n", caseDescription))
	if len(findings) > 0 {
		b.WriteString("Key findings:\n")
		for i, f := range findings {
			b.WriteString(fmt.Sprintf("%d. %s\n", i+1, f))
		}
	}
	return b.String()
}

// summarySystemPrompt assembles the chief synthesis instruction with the full
// ordered list of opinions collected so far
func summarySystemPrompt(caseDescription string, opinions []string, findings []string) string {
	var b strings.Builder
	b.WriteString(summaryPrompt)
	b.WriteString(fmt.Sprintf("\n\nCase: %q\n", caseDescription))
	if len(findings) > 0 {
		b.WriteString("Key findings:\n")
		for i, f := range findings {
			b.WriteString(fmt.Sprintf("%d. %s\n", i+1, f))
		}
	}
	b.WriteString("\nSpecialist Opinions from our team:\n")
	for _, opinion := range opinions {
		b.WriteString("- ")
		b.WriteString(opinion)
		b.WriteString("\n")
	}
	b.WriteString("\nPlease provide your comprehensive multidisciplinary summary with specific doctor recommendations.")
	return b.String()
}
