package prompt

import (
	"context"
	"sync"

	"github.com/shouni/go-gemini-client/gemini"
	"google.golang.org/genai"
)

// mockTextModel は呼び出しごとに replies を順に返すのだ。
// 要素が error ならそれを返すのだ。
type mockTextModel struct {
	mu      sync.Mutex
	replies []any
	prompts []string
	models  []string
}

func (m *mockTextModel) GenerateContent(ctx context.Context, model string, prompt string) (*gemini.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, prompt)
	m.models = append(m.models, model)

	idx := len(m.prompts) - 1
	var reply any = "Seamlessly extend the valley."
	if idx < len(m.replies) {
		reply = m.replies[idx]
	}
	if err, ok := reply.(error); ok {
		return nil, err
	}
	return textResponse(reply.(string)), nil
}

func textResponse(text string) *gemini.Response {
	return &gemini.Response{
		RawResponse: &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{
				Content: &genai.Content{Parts: []*genai.Part{{Text: text}}},
			}},
		},
	}
}
