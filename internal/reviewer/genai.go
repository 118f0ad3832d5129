package reviewer

import (
	"context"
	"errors"

	genai "github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GenAI wraps the official Gemini SDK client.
type GenAI struct {
	model *genai.GenerativeModel
}

func NewGenAI(ctx context.Context, apiKey, model string) (*GenAI, error) {
	c, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return &GenAI{model: c.GenerativeModel(model)}, nil
}

func (g *GenAI) GenerateFeedback(ctx context.Context, name, summary string) (string, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(feedbackPrompt(name, summary)))
	if err != nil {
		return "", err
	}
	if txt := firstText(resp); txt != "" {
		return txt, nil
	}
	return "", errors.New("empty response")
}

func firstText(r *genai.GenerateContentResponse) string {
	if r == nil {
		return ""
	}
	for _, c := range r.Candidates {
		if c.Content == nil {
			continue
		}
		for _, part := range c.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				return string(t)
			}
		}
	}
	return ""
}
