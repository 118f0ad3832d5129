package reviewer

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Client produces review feedback for a rejected work product. The CEO
// principal is LLM-backed; when it rejects without a written reason the
// engine asks the client to synthesize one.
type Client interface {
	GenerateFeedback(ctx context.Context, name, summary string) (string, error)
}

const defaultModel = "gemini-1.5-flash"

// New builds a client for the configured provider. Falls back to the mock
// when no API key is available, so local workflows never hard-require a key.
func New(provider, model string) Client {
	if model == "" {
		model = defaultModel
	}
	apiKey := os.Getenv("GOOGLE_API_KEY")
	switch provider {
	case "gemini":
		if apiKey == "" {
			return &Mock{}
		}
		return &GeminiHTTP{APIKey: apiKey, Model: model}
	case "gemini-sdk":
		if apiKey == "" {
			return &Mock{}
		}
		c, err := NewGenAI(context.Background(), apiKey, model)
		if err != nil {
			return &Mock{}
		}
		return c
	default:
		return &Mock{}
	}
}

func feedbackPrompt(name, summary string) string {
	var b strings.Builder
	b.WriteString("You are reviewing a deliverable that did not meet the bar.\n")
	fmt.Fprintf(&b, "Deliverable: %s\n", name)
	if summary != "" {
		fmt.Fprintf(&b, "Content summary:\n%s\n", summary)
	}
	b.WriteString("Write two or three sentences of concrete, actionable revision feedback. Plain text only.")
	return b.String()
}

// Mock is used in tests and when no real provider is configured.
type Mock struct {
	// Fail forces errors, for exercising the no-side-effect failure path.
	Fail bool
}

func (m *Mock) GenerateFeedback(ctx context.Context, name, summary string) (string, error) {
	if m.Fail {
		return "", fmt.Errorf("reviewer unavailable")
	}
	return fmt.Sprintf("Needs revision: tighten the scope of %q and back each claim with a citation.", name), nil
}
