package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"strings"
	"time"

	"github.com/shouni/panorama-kit/pkg/domain"

	"github.com/shouni/go-http-kit/httpkit"
)

const (
	backendReplicate        = "replicate"
	defaultReplicateBaseURL = "https://api.replicate.com/v1"
	defaultPollInterval     = 2 * time.Second
	// replicateNSFWMarker は Replicate がセーフティチェッカーで出力を破棄したときのメッセージです。
	replicateNSFWMarker = "NSFW content detected"
)

// ReplicateModel は Replicate 上のモデルと、そのモデル固有の入力パラメータです。
type ReplicateModel struct {
	// Model は "owner/name" 形式。Version が空のときは公式モデルのエンドポイントを使います。
	Model   string
	Version string
	// Params はリクエストごとに prompt / image / mask とマージされる固定入力です。
	Params map[string]any
	// SizeParams が true のとき width / height にキャンバス寸法を渡します。
	SizeParams bool
}

// ReplicateOptions は ReplicateGenerator の接続設定です。
type ReplicateOptions struct {
	BaseURL      string
	APIToken     string
	PollInterval time.Duration
}

// ReplicateGenerator は Replicate の predictions API でセグメントを生成します。
type ReplicateGenerator struct {
	httpClient   RequestDoer
	fetcher      ImageFetcher
	baseURL      string
	token        string
	model        ReplicateModel
	pollInterval time.Duration
}

type predictionRequest struct {
	Version string         `json:"version,omitempty"`
	Input   map[string]any `json:"input"`
}

type prediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  any             `json:"error"`
	URLs   struct {
		Get string `json:"get"`
	} `json:"urls"`
	Detail string `json:"detail"`
}

// NewReplicateGenerator は ReplicateGenerator を初期化します。
// API 呼び出しは httpClient で行い、生成結果の画像は fetcher 経由でダウンロードします。
func NewReplicateGenerator(httpClient RequestDoer, opts ReplicateOptions, model ReplicateModel, fetcher ImageFetcher) (*ReplicateGenerator, error) {
	if httpClient == nil {
		return nil, errors.New("replicate: httpClient is required")
	}
	token := strings.TrimSpace(opts.APIToken)
	if token == "" {
		return nil, errors.New("replicate: API token is missing")
	}
	if model.Model == "" && model.Version == "" {
		return nil, errors.New("replicate: model or version is required")
	}
	if fetcher == nil {
		return nil, errors.New("replicate: fetcher is required")
	}

	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = defaultReplicateBaseURL
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}

	return &ReplicateGenerator{
		httpClient:   httpClient,
		fetcher:      fetcher,
		baseURL:      base,
		token:        token,
		model:        model,
		pollInterval: interval,
	}, nil
}

// Generate は prediction を作成し、完了まで待ってから出力画像を取得します。
func (g *ReplicateGenerator) Generate(ctx context.Context, req domain.SegmentRequest) (*domain.ImageResponse, error) {
	body, err := json.Marshal(g.buildRequest(req))
	if err != nil {
		return nil, err
	}

	endpoint := g.baseURL + "/predictions"
	if g.model.Version == "" {
		endpoint = fmt.Sprintf("%s/models/%s/predictions", g.baseURL, g.model.Model)
	}

	slog.DebugContext(ctx, "Replicate prediction を作成します", "model", g.model.Model, "segment", req.Index)

	p, err := g.do(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, err
	}
	for !isTerminal(p.Status) {
		if p.URLs.Get == "" {
			return nil, &RemoteGenerationError{Backend: backendReplicate, Message: "prediction has no polling url"}
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(g.pollInterval):
		}
		if p, err = g.do(ctx, http.MethodGet, p.URLs.Get, nil); err != nil {
			return nil, err
		}
	}

	if p.Status != "succeeded" {
		msg := predictionError(p)
		return nil, &RemoteGenerationError{
			Backend:       backendReplicate,
			ContentPolicy: strings.Contains(msg, replicateNSFWMarker),
			Message:       fmt.Sprintf("prediction %s %s: %s", p.ID, p.Status, msg),
		}
	}

	outURL, err := firstOutput(p.Output)
	if err != nil {
		return nil, &RemoteGenerationError{Backend: backendReplicate, Message: err.Error()}
	}
	data, err := g.fetcher.FetchImage(ctx, outURL)
	if err != nil {
		return nil, &RemoteGenerationError{Backend: backendReplicate, Message: "出力画像のダウンロードに失敗しました", Err: err}
	}
	return &domain.ImageResponse{
		Data:     data,
		MimeType: http.DetectContentType(data),
		UsedSeed: dereferenceSeed(req.Seed),
	}, nil
}

func (g *ReplicateGenerator) buildRequest(req domain.SegmentRequest) predictionRequest {
	input := make(map[string]any, len(g.model.Params)+6)
	maps.Copy(input, g.model.Params)
	input["prompt"] = req.Prompt
	input["image"] = dataURI(req.Image)
	if len(req.Mask) > 0 {
		input["mask"] = dataURI(req.Mask)
	}
	if g.model.SizeParams {
		input["width"] = req.Canvas.Width
		input["height"] = req.Canvas.Height
	}
	if req.Seed != nil {
		input["seed"] = *req.Seed
	}
	return predictionRequest{Version: g.model.Version, Input: input}
}

func (g *ReplicateGenerator) do(ctx context.Context, method, endpoint string, body []byte) (*prediction, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+g.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Prefer", "wait")
	}

	data, err := g.httpClient.DoRequest(req)
	if err != nil {
		var httpErr *httpkit.NonRetryableHTTPError
		if errors.As(err, &httpErr) {
			msg := errorDetail(httpErr.Body)
			return nil, &RemoteGenerationError{
				Backend:       backendReplicate,
				StatusCode:    httpErr.StatusCode,
				ContentPolicy: strings.Contains(msg, replicateNSFWMarker),
				Message:       msg,
			}
		}
		return nil, &RemoteGenerationError{Backend: backendReplicate, Err: err}
	}

	var p prediction
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, &RemoteGenerationError{Backend: backendReplicate, Message: "invalid response", Err: err}
	}
	return &p, nil
}

// errorDetail は 4xx のボディから detail か error を取り出します。JSON でなければ本文をそのまま返します。
func errorDetail(body []byte) string {
	var p prediction
	if err := json.Unmarshal(body, &p); err == nil {
		if p.Detail != "" {
			return p.Detail
		}
		if msg := predictionError(&p); msg != "" {
			return msg
		}
	}
	return strings.TrimSpace(string(body))
}

func isTerminal(status string) bool {
	switch status {
	case "succeeded", "failed", "canceled":
		return true
	}
	return false
}

func predictionError(p *prediction) string {
	switch v := p.Error.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		b, _ := json.Marshal(v)
		return string(b)
	}
}

// firstOutput は output（文字列または文字列配列）から最初の URL を取り出します。
func firstOutput(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", errors.New("prediction succeeded without output")
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil && single != "" {
		return single, nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 && list[0] != "" {
		return list[0], nil
	}
	return "", fmt.Errorf("unexpected output: %s", string(raw))
}
