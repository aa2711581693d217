package builder

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shouni/panorama-kit/assets"
	"github.com/shouni/panorama-kit/internal/config"
	"github.com/shouni/panorama-kit/internal/runner"
	"github.com/shouni/panorama-kit/pkg/continuity"
	"github.com/shouni/panorama-kit/pkg/generator"
	"github.com/shouni/panorama-kit/pkg/imgutil"
	"github.com/shouni/panorama-kit/pkg/pipeline"
	"github.com/shouni/panorama-kit/pkg/prompt"
	"github.com/shouni/panorama-kit/pkg/variant"
)

// BuildDailyRunner は日次生成を担当する Runner を構築するのだ。
func BuildDailyRunner(ctx context.Context, appCtx *AppContext) (*runner.DailyRunner, error) {
	v := appCtx.Variant

	gen, err := BuildGenerator(appCtx, v)
	if err != nil {
		return nil, fmt.Errorf("セグメント生成器の初期化に失敗したのだ: %w", err)
	}

	chainOpts := []prompt.Option{}
	if n := appCtx.Options.SegmentCount; n > 0 {
		chainOpts = append(chainOpts, prompt.WithCount(n))
	}
	chain, err := prompt.NewChain(appCtx.aiClient, appCtx.Config.GeminiModel, chainOpts...)
	if err != nil {
		return nil, fmt.Errorf("プロンプトチェーンの初期化に失敗したのだ: %w", err)
	}

	outputDir := appCtx.Options.OutputDir
	store, err := continuity.NewRemoteStore(appCtx.Reader, appCtx.Writer, outputDir)
	if err != nil {
		return nil, err
	}
	artifacts, err := continuity.NewArtifactWriter(appCtx.Reader, appCtx.Writer, outputDir)
	if err != nil {
		return nil, err
	}

	defaults, err := LoadDefaults(ctx, appCtx)
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "日次生成の準備ができたのだ",
		"variant", v.Name,
		"backend", v.Backend,
		"text_model", appCtx.Config.GeminiModel,
		"segments", chain.Count(),
		"output", outputDir)

	return runner.NewDailyRunner(runner.Deps{
		Generator: gen,
		Geometry:  v.Geometry,
		Prompts:   chain,
		States:    appCtx.States,
		Store:     store,
		Artifacts: artifacts,
		Defaults:  defaults,
		Heartbeat: config.DefaultHeartbeatInterval,
	})
}

// BuildGenerator はバリアントのバックエンドに応じた生成アダプターを返すのだ。
func BuildGenerator(appCtx *AppContext, v variant.Variant) (generator.SegmentGenerator, error) {
	switch v.Backend {
	case variant.BackendReplicate:
		if appCtx.Config.ReplicateAPIToken == "" {
			return nil, fmt.Errorf("バリアント %s には REPLICATE_API_TOKEN が必要なのだ", v.Name)
		}
		gen, err := generator.NewReplicateGenerator(appCtx.apiClient, generator.ReplicateOptions{
			APIToken: appCtx.Config.ReplicateAPIToken,
		}, v.ReplicateModel(), appCtx.Core)
		if err != nil {
			return nil, err
		}
		return gen, nil
	case variant.BackendGemini:
		model := v.Model
		if model == "" {
			model = appCtx.Config.GeminiImageModel
		}
		var opts []generator.GeminiOption
		if appCtx.Options.Compress {
			opts = append(opts, generator.WithCompression(generator.DefaultCompressionQuality))
		}
		gen, err := generator.NewGeminiGenerator(appCtx.aiClient, model, opts...)
		if err != nil {
			return nil, err
		}
		return gen, nil
	default:
		return nil, fmt.Errorf("未対応のバックエンド %q なのだ", v.Backend)
	}
}

// LoadDefaults は新規開始に使う既定シード画像と説明文を読み込むのだ。
// シードはローカルパス・gs://・http(s) のいずれでもよく、未指定なら同梱の画像を使うのだ。
func LoadDefaults(ctx context.Context, appCtx *AppContext) (pipeline.Defaults, error) {
	data := assets.DefaultSeed
	if uri := appCtx.Config.DefaultSeed; uri != "" {
		fetched, err := appCtx.Core.FetchImage(ctx, uri)
		if err != nil {
			return pipeline.Defaults{}, fmt.Errorf("既定シード画像 %s を読み込めないのだ: %w", uri, err)
		}
		data = fetched
	} else {
		slog.DebugContext(ctx, "同梱の既定シード画像を使うのだ", "name", assets.DefaultSeedName)
	}
	seed, err := imgutil.Decode(data)
	if err != nil {
		return pipeline.Defaults{}, fmt.Errorf("既定シード画像をデコードできないのだ: %w", err)
	}

	description := appCtx.Config.DefaultDescription
	if description == "" {
		description = prompt.DefaultDescription
	}
	return pipeline.Defaults{Seed: seed, Description: description}, nil
}
