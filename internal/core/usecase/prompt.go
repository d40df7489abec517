package usecase

import "fmt"

// systemPrompt enumerates the answer priority order: indexed brochure
// context with citation first, then web context with citation, then (when
// general chat is enabled) unconstrained model knowledge, else expressed
// uncertainty.
func systemPrompt(allowGeneralChat bool) string {
	return fmt.Sprintf(`You are the brochure assistant.
Rules:
1) If brochure context contains the answer, use it and cite those sources.
2) If web context exists and is useful, use it and cite web URLs.
3) If the answer is not in context and general chat is %s, then answer normally from your general knowledge.
4) If unsure, say you are unsure.
Keep answers concise and structured (bullet points when useful).`, enabledWord(allowGeneralChat))
}

func streamSystemPrompt(allowGeneralChat bool) string {
	return fmt.Sprintf(`You are the brochure assistant.
Use brochure/web context if it contains the answer.
If not in context and general chat is %s, answer normally.
Be concise.`, enabledWord(allowGeneralChat))
}

func userPrompt(question, contextBlock string, askForSources bool) string {
	prompt := fmt.Sprintf("Question: %s\n\nContext:\n%s", question, contextBlock)
	if askForSources {
		prompt += "\n\nReturn sources you used."
	}
	return prompt
}

func enabledWord(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}
