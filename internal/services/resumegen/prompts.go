package resumegen

import (
	"fmt"

	"applyq/internal/queue"
)

func tierInstructions(tier queue.Tier) string {
	if tier == queue.TierFull {
		return "Perform a thorough rewrite: reorder experience bullets, surface matching keywords, and adjust the summary to mirror the posting's language."
	}
	return "Perform a fast pass: keep the existing structure and only adjust the summary and skills sections toward the posting."
}

func tailorPrompt(req Request) string {
	return fmt.Sprintf(`You are a resume tailoring assistant.

Tailor a resume for the following posting.

Title: %s
Company: %s

Job description:
%s

%s

Respond with a single JSON object and nothing else:
{"resume": "<full resume in markdown>", "resume_score": <0-100 fit estimate>}`,
		req.Title, req.Company, req.Description, tierInstructions(req.Tier))
}

func coverLetterPrompt(req Request) string {
	return fmt.Sprintf(`Write a concise cover letter (under 300 words) for this posting.

Title: %s
Company: %s

Job description:
%s

Respond with only the letter body, no preamble.`,
		req.Title, req.Company, req.Description)
}

func outreachPrompt(req Request) string {
	return fmt.Sprintf(`Write a short LinkedIn outreach message (under 80 words) to a recruiter about this posting.

Title: %s
Company: %s

Respond with only the message text.`,
		req.Title, req.Company)
}
