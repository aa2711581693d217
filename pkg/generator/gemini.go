package generator

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/shouni/panorama-kit/pkg/domain"
	"github.com/shouni/panorama-kit/pkg/imgutil"

	"github.com/shouni/go-gemini-client/gemini"
	"google.golang.org/genai"
)

const (
	backendGemini = "gemini"
	// DefaultCompressionQuality は WithCompression に 0 以下が渡されたときの JPEG 品質なのだ。
	DefaultCompressionQuality = 90
)

// supportedAspectRatios は Gemini 画像モデルが受け付けるアスペクト比なのだ。
var supportedAspectRatios = []struct {
	label string
	value float64
}{
	{"1:1", 1}, {"4:3", 4.0 / 3}, {"3:2", 1.5}, {"16:9", 16.0 / 9}, {"21:9", 21.0 / 9},
}

// maskedInstruction はマスク付きでキャンバスを送るときの前置きなのだ。
const maskedInstruction = "The first image is a landscape canvas and the second image is a mask. " +
	"Keep every pixel where the mask is black exactly as it is. " +
	"Paint the white region so that it seamlessly continues the scene to the right with no visible seam. " +
	"Return only the completed image."

// unmaskedInstruction はキャンバスだけを送るときの前置きなのだ。右端の空白や続きを描かせるのだ。
const unmaskedInstruction = "The image is a landscape canvas. " +
	"Keep the existing scene on the left exactly as it is. " +
	"Extend the scene to the right, painting over any blank padding, so that it continues seamlessly with no visible seam. " +
	"Return only the completed image."

// outpaintInstruction はマスクの有無に合わせた前置きを返すのだ。
func outpaintInstruction(hasMask bool) string {
	if hasMask {
		return maskedInstruction
	}
	return unmaskedInstruction
}

// GeminiGenerator は、Gemini 画像モデルでセグメントをアウトペイントするジェネレーターなのだ。
type GeminiGenerator struct {
	aiClient ImageModel
	model    string
	quality  int // 0 のときキャンバスは PNG のまま送る
}

// GeminiOption は GeminiGenerator の設定を調整するのだ。
type GeminiOption func(*GeminiGenerator)

// WithCompression はキャンバスを JPEG に再圧縮して送るようにするのだ。
func WithCompression(quality int) GeminiOption {
	return func(g *GeminiGenerator) {
		if quality <= 0 {
			quality = DefaultCompressionQuality
		}
		g.quality = quality
	}
}

// NewGeminiGenerator は GeminiGenerator を初期化するのだ。
func NewGeminiGenerator(aiClient ImageModel, model string, opts ...GeminiOption) (*GeminiGenerator, error) {
	if aiClient == nil {
		return nil, fmt.Errorf("aiClient (gemini.GenerativeModel) is required")
	}
	if model == "" {
		return nil, fmt.Errorf("model is required")
	}

	g := &GeminiGenerator{aiClient: aiClient, model: model}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Generate はキャンバスとマスクを Gemini に渡し、出力を req.Output の寸法に揃えて返すのだ。
func (g *GeminiGenerator) Generate(ctx context.Context, req domain.SegmentRequest) (*domain.ImageResponse, error) {
	parts, err := g.buildParts(req)
	if err != nil {
		return nil, err
	}

	slog.DebugContext(ctx, "Gemini セグメント生成リクエスト", "model", g.model, "segment", req.Index, "canvas", req.Canvas.String())

	resp, err := g.aiClient.GenerateWithParts(ctx, g.model, parts, gemini.GenerateOptions{
		AspectRatio: aspectRatioFor(req.Canvas),
	})
	if err != nil {
		return nil, &RemoteGenerationError{Backend: backendGemini, Err: err}
	}

	out, err := parseToResponse(resp, dereferenceSeed(req.Seed))
	if err != nil {
		return nil, err
	}

	data, err := normalize(out.Data, req.Output)
	if err != nil {
		return nil, &RemoteGenerationError{Backend: backendGemini, Message: "出力画像を解釈できません", Err: err}
	}
	return &domain.ImageResponse{Data: data, MimeType: "image/png", UsedSeed: out.UsedSeed}, nil
}

func (g *GeminiGenerator) buildParts(req domain.SegmentRequest) ([]*genai.Part, error) {
	canvas := req.Image
	if g.quality > 0 {
		compressed, err := imgutil.CompressToJPEG(canvas, g.quality)
		if err != nil {
			return nil, err
		}
		canvas = compressed
	}

	parts := []*genai.Part{{Text: outpaintInstruction(len(req.Mask) > 0) + "\n\n" + req.Prompt}}
	imgPart := toPart(canvas)
	if imgPart == nil {
		return nil, fmt.Errorf("セグメント %d のキャンバスが画像データではありません", req.Index)
	}
	parts = append(parts, imgPart)

	if len(req.Mask) > 0 {
		maskPart := toPart(req.Mask)
		if maskPart == nil {
			return nil, fmt.Errorf("セグメント %d のマスクが画像データではありません", req.Index)
		}
		parts = append(parts, maskPart)
	}
	return parts, nil
}

// normalize は生成結果を expected の寸法の PNG に揃えるのだ。
// Gemini は指定どおりの解像度を返さないことがあるため、ここで吸収するのだ。
func normalize(data []byte, expected domain.Size) ([]byte, error) {
	img, err := imgutil.Decode(data)
	if err != nil {
		return nil, err
	}
	if imgutil.Dimensions(img) != expected {
		img = imgutil.Resize(img, expected)
	}
	return imgutil.EncodePNG(img)
}

// aspectRatioFor はキャンバスに最も近い対応アスペクト比を返すのだ。
func aspectRatioFor(size domain.Size) string {
	if size.Width <= 0 || size.Height <= 0 {
		return ""
	}
	ratio := float64(size.Width) / float64(size.Height)
	best := supportedAspectRatios[0]
	for _, r := range supportedAspectRatios[1:] {
		if math.Abs(r.value-ratio) < math.Abs(best.value-ratio) {
			best = r
		}
	}
	return best.label
}
