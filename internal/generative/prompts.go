package generative

import (
	"strings"
)

const generateSystemPrompt = `You write entries for a customer support FAQ.
Answer only from the provided material. Prefer short numbered steps for procedures.
Reply with a single JSON object: {"answer": string, "category": string, "confidence": number 0-100, "keywords": [string]}.`

const mergeSystemPrompt = `You maintain a customer support FAQ. Two answers to the same question must become one.
Keep every correct step from both, remove repetition, and keep the style of the existing answer.
Reply with the merged answer text only.`

func buildGeneratePrompt(req Request) string {
	var b strings.Builder
	b.WriteString("Question: ")
	b.WriteString(strings.TrimSpace(req.Question))
	b.WriteString("\n")

	if req.DraftAnswer != "" {
		b.WriteString("\nDraft answer to refine:\n")
		b.WriteString(strings.TrimSpace(req.DraftAnswer))
		b.WriteString("\n")
	}
	if req.Context != "" {
		b.WriteString("\nConversation:\n")
		b.WriteString(strings.TrimSpace(req.Context))
		b.WriteString("\n")
	}
	if len(req.Keywords) > 0 {
		b.WriteString("\nKeywords: ")
		b.WriteString(strings.Join(req.Keywords, ", "))
		b.WriteString("\n")
	}
	if len(req.Categories) > 0 {
		b.WriteString("\nChoose the category from: ")
		b.WriteString(strings.Join(req.Categories, ", "))
		b.WriteString("\n")
	} else if req.Category != "" {
		b.WriteString("\nCategory: ")
		b.WriteString(req.Category)
		b.WriteString("\n")
	}
	return b.String()
}

func buildMergePrompt(req MergeRequest) string {
	var b strings.Builder
	b.WriteString("Question: ")
	b.WriteString(strings.TrimSpace(req.Question))
	b.WriteString("\n\nExisting answer:\n")
	b.WriteString(strings.TrimSpace(req.ExistingAnswer))
	b.WriteString("\n\nNew answer:\n")
	b.WriteString(strings.TrimSpace(req.CandidateAnswer))
	b.WriteString("\n")
	return b.String()
}
