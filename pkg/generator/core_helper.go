package generator

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/shouni/panorama-kit/pkg/domain"

	"github.com/shouni/go-gemini-client/gemini"
	"google.golang.org/genai"
)

// policyFinishReasons はコンテンツフィルタによる打ち切りを示す FinishReason です。
var policyFinishReasons = map[genai.FinishReason]bool{
	"SAFETY":                   true,
	"PROHIBITED_CONTENT":       true,
	"IMAGE_SAFETY":             true,
	"IMAGE_PROHIBITED_CONTENT": true,
	"BLOCKLIST":                true,
}

func toPart(data []byte) *genai.Part {
	mimeType := http.DetectContentType(data)
	if !strings.HasPrefix(mimeType, "image/") {
		return nil
	}
	return &genai.Part{InlineData: &genai.Blob{MIMEType: mimeType, Data: data}}
}

// parseToResponse は Gemini の応答から最初のインライン画像を取り出すのだ。
// ブロックや安全性による打ち切りはコンテンツポリシー違反として分類するのだ。
func parseToResponse(resp *gemini.Response, seed int64) (*domain.ImageResponse, error) {
	if resp == nil || resp.RawResponse == nil {
		return nil, &RemoteGenerationError{Backend: backendGemini, Message: "invalid response"}
	}
	raw := resp.RawResponse
	if raw.PromptFeedback != nil && raw.PromptFeedback.BlockReason != "" {
		return nil, &RemoteGenerationError{
			Backend:       backendGemini,
			ContentPolicy: true,
			Message:       fmt.Sprintf("prompt blocked: %s", raw.PromptFeedback.BlockReason),
		}
	}
	if len(raw.Candidates) == 0 {
		return nil, &RemoteGenerationError{Backend: backendGemini, Message: "invalid response"}
	}

	candidate := raw.Candidates[0]
	if policyFinishReasons[candidate.FinishReason] {
		return nil, &RemoteGenerationError{
			Backend:       backendGemini,
			ContentPolicy: true,
			Message:       fmt.Sprintf("finish reason %s", candidate.FinishReason),
		}
	}
	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			if part.InlineData != nil {
				return &domain.ImageResponse{Data: part.InlineData.Data, MimeType: part.InlineData.MIMEType, UsedSeed: seed}, nil
			}
		}
	}
	return nil, &RemoteGenerationError{Backend: backendGemini, Message: "no image data"}
}
