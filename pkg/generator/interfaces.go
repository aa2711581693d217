package generator

import (
	"context"
	"net/http"
	"time"

	"github.com/shouni/panorama-kit/pkg/domain"

	"github.com/shouni/go-gemini-client/gemini"
	"google.golang.org/genai"
)

// SegmentGenerator は、1セグメント分の画像をリモートモデルに生成させる窓口です。
// 各バックエンドのアダプターは、(画像, マスク, プロンプト) を自分の API 形式に変換します。
type SegmentGenerator interface {
	Generate(ctx context.Context, req domain.SegmentRequest) (*domain.ImageResponse, error)
}

// ImageFetcher は URL またはパス（ローカル / gs://）から画像を取得します。
type ImageFetcher interface {
	FetchImage(ctx context.Context, uri string) ([]byte, error)
}

// ImageModel は go-gemini-client のうち、画像生成に使う部分だけを切り出したものです。
type ImageModel interface {
	GenerateWithParts(ctx context.Context, model string, parts []*genai.Part, opts gemini.GenerateOptions) (*gemini.Response, error)
}

// ImageCacher は、画像をキャッシュするためのインターフェースです。
type ImageCacher interface {
	// Get は、指定されたキーに紐づくアイテムを取得します。
	Get(key string) (any, bool)
	// Set は、指定されたキーと値、有効期限でアイテムを保存します。
	Set(key string, value any, d time.Duration)
}

// HTTPClient は、URLからデータを取得するためのインターフェースです。
type HTTPClient interface {
	FetchBytes(ctx context.Context, url string) ([]byte, error)
}

// RequestDoer は、組み立て済みのリクエストを送信してボディを受け取るためのインターフェースです。
// go-http-kit の Client がこれを満たし、5xx のリトライとボディサイズの制限を担います。
type RequestDoer interface {
	DoRequest(req *http.Request) ([]byte, error)
}
