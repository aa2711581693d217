package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/shouni/panorama-kit/pkg/domain"
	"github.com/shouni/panorama-kit/pkg/generator"
	"github.com/shouni/panorama-kit/pkg/imgutil"

	"github.com/cenkalti/backoff/v4"
)

const (
	// DefaultMaxRetries はコンテンツフィルタ拒否に対する再試行回数です（初回を含めず）。
	DefaultMaxRetries = 3
	// DefaultRetryInterval は再試行の固定待ち時間です。
	DefaultRetryInterval = time.Second
)

// ErrOutputSize は、生成結果がジオメトリの OutputSize と一致しないことを表します。
var ErrOutputSize = errors.New("generated segment has unexpected size")

// Result は1回の実行で得られたセグメントと、翌日に引き継ぐ最終シードです。
type Result struct {
	Segments         []domain.Segment
	FinalSeed        image.Image
	FinalDescription string
}

// SegmentPipeline は、シードから右方向へセグメントを1枚ずつ生成する逐次パイプラインです。
type SegmentPipeline struct {
	gen           generator.SegmentGenerator
	geo           domain.SegmentGeometry
	maxRetries    int
	retryInterval time.Duration
	scratchDir    string
	scratchPrefix string
}

// Option は SegmentPipeline の設定を調整します。
type Option func(*SegmentPipeline)

// WithRetry はコンテンツフィルタ拒否時の再試行回数と待ち時間を設定します。
func WithRetry(maxRetries int, interval time.Duration) Option {
	return func(p *SegmentPipeline) {
		p.maxRetries = maxRetries
		p.retryInterval = interval
	}
}

// WithScratchDir は各セグメントの生画像を dir に {prefix}_segment_{NN}.png として保存します。
// ディレクトリの削除は呼び出し側の責任です。
func WithScratchDir(dir, prefix string) Option {
	return func(p *SegmentPipeline) {
		p.scratchDir = dir
		p.scratchPrefix = prefix
	}
}

// NewSegmentPipeline はジオメトリを検証してからパイプラインを構築します。
// ジオメトリが不正なら、リモート呼び出しを一度も行わずに GeometryConfigurationError を返します。
func NewSegmentPipeline(gen generator.SegmentGenerator, geo domain.SegmentGeometry, opts ...Option) (*SegmentPipeline, error) {
	if err := geo.Validate(); err != nil {
		return nil, err
	}
	if gen == nil {
		return nil, fmt.Errorf("generator is required")
	}

	p := &SegmentPipeline{
		gen:           gen,
		geo:           geo,
		maxRetries:    DefaultMaxRetries,
		retryInterval: DefaultRetryInterval,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Geometry はパイプラインが使うジオメトリを返します。
func (p *SegmentPipeline) Geometry() domain.SegmentGeometry {
	return p.geo
}

// Run は prompts の数だけセグメントを生成します。
// 途中で1枚でも失敗した場合はそれまでの結果を破棄してエラーを返します。
func (p *SegmentPipeline) Run(ctx context.Context, initialSeed image.Image, prompts []string) (*Result, error) {
	if len(prompts) == 0 {
		return nil, fmt.Errorf("prompts must not be empty")
	}
	if initialSeed == nil {
		return nil, fmt.Errorf("initial seed is required")
	}

	seed, err := imgutil.Fit(initialSeed, p.geo.SeedSize)
	if err != nil {
		return nil, fmt.Errorf("初期シードの調整に失敗しました: %w", err)
	}

	segments := make([]domain.Segment, 0, len(prompts))
	for i, prompt := range prompts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		seg, err := p.generateSegment(ctx, i, prompt, seed)
		if err != nil {
			return nil, fmt.Errorf("セグメント %d/%d の生成に失敗しました: %w", i+1, len(prompts), err)
		}

		next, err := imgutil.Crop(seg.Image, p.geo.NextSeedCrop())
		if err != nil {
			return nil, fmt.Errorf("セグメント %d から次のシードを切り出せません: %w", i+1, err)
		}
		seed = next
		segments = append(segments, *seg)

		slog.InfoContext(ctx, "セグメントを生成しました", "segment", i+1, "total", len(prompts), "size", seg.OutputSize.String())
	}

	return &Result{
		Segments:         segments,
		FinalSeed:        seed,
		FinalDescription: prompts[len(prompts)-1],
	}, nil
}

func (p *SegmentPipeline) generateSegment(ctx context.Context, index int, prompt string, seed image.Image) (*domain.Segment, error) {
	req, err := p.buildRequest(index, prompt, seed)
	if err != nil {
		return nil, err
	}

	resp, err := p.generateWithRetry(ctx, req)
	if err != nil {
		return nil, err
	}

	img, err := imgutil.Decode(resp.Data)
	if err != nil {
		return nil, err
	}
	got := imgutil.Dimensions(img)
	if got != p.geo.OutputSize {
		return nil, fmt.Errorf("%w: got %s, want %s", ErrOutputSize, got, p.geo.OutputSize)
	}

	if p.scratchDir != "" {
		if err := p.writeScratch(index, resp.Data); err != nil {
			return nil, err
		}
	}

	return &domain.Segment{
		Index:      index,
		Prompt:     prompt,
		Image:      img,
		Data:       resp.Data,
		OutputSize: got,
	}, nil
}

// buildRequest はキャンバスモードに応じてリクエスト画像とマスクを組み立てます。
func (p *SegmentPipeline) buildRequest(index int, prompt string, seed image.Image) (domain.SegmentRequest, error) {
	req := domain.SegmentRequest{
		Index:  index,
		Prompt: prompt,
		Canvas: p.geo.CanvasSize,
		Output: p.geo.OutputSize,
	}

	var src image.Image = seed
	if p.geo.Mode != domain.ModeSeed {
		src = imgutil.ComposeCanvas(seed, p.geo.CanvasSize)
	}
	data, err := imgutil.EncodePNG(src)
	if err != nil {
		return req, err
	}
	req.Image = data

	if p.geo.Mode == domain.ModeMask {
		mask, err := imgutil.EncodePNG(imgutil.BuildMask(p.geo.CanvasSize, p.geo.PreserveWidth()))
		if err != nil {
			return req, err
		}
		req.Mask = mask
	}
	return req, nil
}

// generateWithRetry は、コンテンツフィルタ拒否のときだけ固定間隔で再試行します。
// それ以外のエラーは即座に返します。
func (p *SegmentPipeline) generateWithRetry(ctx context.Context, req domain.SegmentRequest) (*domain.ImageResponse, error) {
	attempt := 0
	op := func() (*domain.ImageResponse, error) {
		attempt++
		resp, err := p.gen.Generate(ctx, req)
		if err == nil {
			return resp, nil
		}
		if generator.IsContentPolicy(err) {
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}
	notify := func(err error, wait time.Duration) {
		slog.WarnContext(ctx, "コンテンツフィルタに拒否されたため再試行します",
			"segment", req.Index+1, "attempt", attempt, "max_retries", p.maxRetries, "wait", wait, "error", err)
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(p.retryInterval), uint64(max(p.maxRetries, 0))),
		ctx,
	)
	resp, err := backoff.RetryNotifyWithData(op, policy, notify)
	if err != nil {
		if generator.IsContentPolicy(err) {
			return nil, fmt.Errorf("%d 回試行してもコンテンツフィルタを通過できませんでした: %w", attempt, err)
		}
		return nil, err
	}
	return resp, nil
}

func (p *SegmentPipeline) writeScratch(index int, data []byte) error {
	name := fmt.Sprintf("%s_segment_%02d.png", p.scratchPrefix, index)
	if err := os.WriteFile(filepath.Join(p.scratchDir, name), data, 0o644); err != nil {
		return fmt.Errorf("作業ファイル %s の保存に失敗しました: %w", name, err)
	}
	return nil
}
