package generator

import (
	"context"
	"errors"
	"testing"

	"github.com/shouni/panorama-kit/pkg/domain"
	"github.com/shouni/panorama-kit/pkg/imgutil"

	"github.com/shouni/go-gemini-client/gemini"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func segmentRequest() domain.SegmentRequest {
	return domain.SegmentRequest{
		Index:  3,
		Prompt: "湖に朝霧がかかる山並み",
		Image:  pngBytes(12, 8),
		Mask:   pngBytes(12, 8),
		Canvas: domain.Size{Width: 12, Height: 8},
		Output: domain.Size{Width: 12, Height: 8},
	}
}

func TestNewGeminiGenerator(t *testing.T) {
	_, err := NewGeminiGenerator(nil, "model")
	assert.Error(t, err)
	_, err = NewGeminiGenerator(&mockAIClient{}, "")
	assert.Error(t, err)
}

func TestGeminiGenerator_Generate(t *testing.T) {
	ctx := context.Background()
	modelName := "gemini-image"

	t.Run("成功: プロンプト・キャンバス・マスクの順でパーツが渡されるのだ", func(t *testing.T) {
		req := segmentRequest()
		var seedVal int64 = 777
		req.Seed = &seedVal

		ai := &mockAIClient{
			generateWithPartsFunc: func(ctx context.Context, model string, parts []*genai.Part, opts gemini.GenerateOptions) (*gemini.Response, error) {
				assert.Equal(t, modelName, model)
				require.Len(t, parts, 3)
				assert.Contains(t, parts[0].Text, req.Prompt)
				assert.Contains(t, parts[0].Text, "second image is a mask")
				assert.Equal(t, req.Image, parts[1].InlineData.Data)
				assert.Equal(t, req.Mask, parts[2].InlineData.Data)
				assert.Equal(t, "3:2", opts.AspectRatio)
				return imageResponse(pngBytes(12, 8)), nil
			},
		}

		gen, err := NewGeminiGenerator(ai, modelName)
		require.NoError(t, err)
		resp, err := gen.Generate(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, seedVal, resp.UsedSeed)
		assert.Equal(t, "image/png", resp.MimeType)
	})

	t.Run("出力の寸法が違えば期待サイズへ揃えるのだ", func(t *testing.T) {
		ai := &mockAIClient{
			generateWithPartsFunc: func(ctx context.Context, model string, parts []*genai.Part, opts gemini.GenerateOptions) (*gemini.Response, error) {
				return imageResponse(pngBytes(30, 20)), nil
			},
		}
		gen, _ := NewGeminiGenerator(ai, modelName)
		resp, err := gen.Generate(ctx, segmentRequest())
		require.NoError(t, err)

		img, err := imgutil.Decode(resp.Data)
		require.NoError(t, err)
		assert.Equal(t, domain.Size{Width: 12, Height: 8}, imgutil.Dimensions(img))
	})

	t.Run("マスクなしならパーツは2つなのだ", func(t *testing.T) {
		req := segmentRequest()
		req.Mask = nil
		ai := &mockAIClient{
			generateWithPartsFunc: func(ctx context.Context, model string, parts []*genai.Part, opts gemini.GenerateOptions) (*gemini.Response, error) {
				assert.Len(t, parts, 2)
				assert.NotContains(t, parts[0].Text, "mask", "マスクを送らないときはマスクに触れないのだ")
				assert.Contains(t, parts[0].Text, "blank padding")
				assert.Contains(t, parts[0].Text, req.Prompt)
				return imageResponse(pngBytes(12, 8)), nil
			},
		}
		gen, _ := NewGeminiGenerator(ai, modelName, WithCompression(0))
		_, err := gen.Generate(ctx, req)
		require.NoError(t, err)
	})

	t.Run("SAFETY で打ち切られたらコンテンツポリシーエラーなのだ", func(t *testing.T) {
		ai := &mockAIClient{
			generateWithPartsFunc: func(ctx context.Context, model string, parts []*genai.Part, opts gemini.GenerateOptions) (*gemini.Response, error) {
				return &gemini.Response{RawResponse: &genai.GenerateContentResponse{
					Candidates: []*genai.Candidate{{FinishReason: "IMAGE_SAFETY"}},
				}}, nil
			},
		}
		gen, _ := NewGeminiGenerator(ai, modelName)
		_, err := gen.Generate(ctx, segmentRequest())
		require.Error(t, err)
		assert.True(t, IsContentPolicy(err))
	})

	t.Run("通信エラーは RemoteGenerationError で包むのだ", func(t *testing.T) {
		cause := errors.New("quota exceeded")
		ai := &mockAIClient{
			generateWithPartsFunc: func(ctx context.Context, model string, parts []*genai.Part, opts gemini.GenerateOptions) (*gemini.Response, error) {
				return nil, cause
			},
		}
		gen, _ := NewGeminiGenerator(ai, modelName)
		_, err := gen.Generate(ctx, segmentRequest())

		var rerr *RemoteGenerationError
		require.ErrorAs(t, err, &rerr)
		assert.Equal(t, backendGemini, rerr.Backend)
		assert.ErrorIs(t, err, cause)
		assert.False(t, IsContentPolicy(err))
	})

	t.Run("画像でないキャンバスは送らないのだ", func(t *testing.T) {
		req := segmentRequest()
		req.Image = []byte("plain text")
		gen, _ := NewGeminiGenerator(&mockAIClient{}, modelName)
		_, err := gen.Generate(ctx, req)
		assert.Error(t, err)
	})
}

func TestAspectRatioFor(t *testing.T) {
	assert.Equal(t, "3:2", aspectRatioFor(domain.Size{Width: 768, Height: 512}))
	assert.Equal(t, "16:9", aspectRatioFor(domain.Size{Width: 896, Height: 512}))
	assert.Equal(t, "1:1", aspectRatioFor(domain.Size{Width: 512, Height: 512}))
	assert.Equal(t, "", aspectRatioFor(domain.Size{}))
}
