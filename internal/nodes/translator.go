package nodes

import (
	"context"
	"strings"

	"github.com/qagraph/qagraph/internal/llmclient"
	"github.com/qagraph/qagraph/pkg/state"
)

// Translator produces the final-language rendering of draft_answer.
// It's an identity operation whenever no (non-base) target_language
// was requested.
func (d *Deps) Translator(ctx context.Context, s *state.AgentState) (*state.AgentState, error) {
	target := strings.TrimSpace(s.TargetLanguage)
	if target == "" || strings.ToLower(target) == d.baseLanguage() {
		s.FinalAnswer = s.DraftAnswer
		return s, nil
	}

	prompt := "Translate the following text to " + target + ". Respond with only the translated text, no commentary.\n\n" + s.DraftAnswer

	resp, err := d.LLM.CreateCompletion(ctx, llmclient.CompletionRequest{
		Model:    d.Model,
		Messages: []llmclient.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return nil, &state.StageError{Stage: "translator", Message: err.Error(), Retryable: true}
	}
	s.FinalAnswer = resp.Content
	return s, nil
}
