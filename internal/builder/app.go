package builder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/shouni/panorama-kit/internal/config"
	"github.com/shouni/panorama-kit/pkg/generator"
	"github.com/shouni/panorama-kit/pkg/runstate"
	"github.com/shouni/panorama-kit/pkg/variant"

	"github.com/patrickmn/go-cache"
	"github.com/shouni/go-gemini-client/gemini"
	"github.com/shouni/go-http-kit/httpkit"
	"github.com/shouni/go-remote-io/pkg/gcsfactory"
	"github.com/shouni/go-remote-io/pkg/remoteio"
	"google.golang.org/genai"
)

const defaultGeminiTemperature = float32(0.7)

// AppContext は、アプリケーション実行に必要な共通コンテキストを保持するのだ。
// これを各 Build 関数に渡すことで、依存関係の注入を簡素化するのだ。
type AppContext struct {
	Config  *config.Config         // 環境変数から読み込まれた設定（APIキーなど）
	Options config.GenerateOptions // コマンドラインから渡された実行時の設定
	Reader  remoteio.InputReader   // 継続レコードや既定シードの読み込み元
	Writer  remoteio.OutputWriter  // パノラマや継続レコードの保存先
	Variant variant.Variant        // 今回使う生成バリアント
	States  *runstate.Registry     // 日付ごとの実行状態
	Core    *generator.ImageCore   // 画像取得の共通基盤

	aiClient   gemini.GenerativeModel
	httpClient httpkit.Requester // 画像ダウンロード用
	apiClient  httpkit.Requester // 生成 API 用。prediction を待つのでタイムアウトが長いのだ
	ioFactory  remoteio.IOFactory
}

// NewAppContext は外部クライアントを初期化して AppContext を組み立てるのだ。
func NewAppContext(ctx context.Context, cfg *config.Config) (*AppContext, error) {
	opts := cfg.Options

	v, err := LoadVariant(opts.Variant, opts.VariantsFile)
	if err != nil {
		return nil, err
	}

	timeout := opts.HTTPTimeout
	if timeout <= 0 {
		timeout = config.DefaultHTTPTimeout
	}
	httpClient := httpkit.New(timeout)

	aiClient, err := InitializeAIClient(ctx, cfg.GeminiAPIKey)
	if err != nil {
		return nil, err
	}

	ioFactory, err := gcsfactory.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("GCS クライアントファクトリの作成に失敗したのだ: %w", err)
	}
	reader, err := ioFactory.InputReader()
	if err != nil {
		ioFactory.Close()
		return nil, err
	}
	writer, err := ioFactory.OutputWriter()
	if err != nil {
		ioFactory.Close()
		return nil, err
	}

	imgCache := cache.New(config.DefaultCacheTTL, config.DefaultCleanInterval)
	core, err := generator.NewImageCore(reader, httpClient, imgCache, config.DefaultCacheTTL)
	if err != nil {
		ioFactory.Close()
		return nil, fmt.Errorf("ImageCore の初期化に失敗したのだ: %w", err)
	}

	states, err := OpenStates(ctx, opts.StateDB)
	if err != nil {
		ioFactory.Close()
		return nil, err
	}

	return &AppContext{
		Config:     cfg,
		Options:    opts,
		Reader:     reader,
		Writer:     writer,
		Variant:    v,
		States:     states,
		Core:       core,
		aiClient:   aiClient,
		httpClient: httpClient,
		apiClient:  httpkit.New(config.DefaultAPITimeout),
		ioFactory:  ioFactory,
	}, nil
}

// Close は AppContext が保持するリソースを解放するのだ。
func (a *AppContext) Close() error {
	var errs []error
	if a.States != nil {
		errs = append(errs, a.States.Close())
	}
	if a.ioFactory != nil {
		errs = append(errs, a.ioFactory.Close())
	}
	return errors.Join(errs...)
}

// InitializeAIClient は gemini クライアントを初期化するのだ。
func InitializeAIClient(ctx context.Context, apiKey string) (gemini.GenerativeModel, error) {
	clientConfig := gemini.Config{
		APIKey:      apiKey,
		Temperature: genai.Ptr(defaultGeminiTemperature),
	}
	aiClient, err := gemini.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("AIクライアントの初期化に失敗しました: %w", err)
	}
	return aiClient, nil
}

// LoadVariant は組み込みバリアントに上書きファイルを重ねて、name のバリアントを返すのだ。
func LoadVariant(name, overridesFile string) (variant.Variant, error) {
	registry, err := LoadRegistry(overridesFile)
	if err != nil {
		return variant.Variant{}, err
	}
	if name == "" {
		name = variant.DefaultName
	}
	return registry.Lookup(name)
}

// LoadRegistry は組み込みバリアントと上書きファイルから Registry を作るのだ。
func LoadRegistry(overridesFile string) (*variant.Registry, error) {
	registry := variant.NewRegistry()
	if overridesFile != "" {
		if err := registry.LoadFile(overridesFile); err != nil {
			return nil, fmt.Errorf("バリアント定義 %s の読み込みに失敗したのだ: %w", overridesFile, err)
		}
	}
	return registry, nil
}

// OpenStates は実行状態 DB を開くのだ。
// running の記録には所有者とリースが付くので、ここでは他プロセスの実行に触れないのだ。
// 異常終了の回収はリースの切れた記録だけを対象に serve の起動時に行うのだ。
func OpenStates(ctx context.Context, dsn string, opts ...runstate.Option) (*runstate.Registry, error) {
	if dsn == "" {
		dsn = config.DefaultStateDB
	}
	if dsn != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("実行状態 DB のディレクトリを作れないのだ: %w", err)
		}
	}

	opts = append([]runstate.Option{runstate.WithLease(config.DefaultRunLease)}, opts...)
	states, err := runstate.Open(ctx, dsn, opts...)
	if err != nil {
		return nil, fmt.Errorf("実行状態 DB を開けないのだ: %w", err)
	}
	return states, nil
}

// RecoverInterrupted はリースが切れたまま running で残った実行を failed に戻すのだ。
func RecoverInterrupted(ctx context.Context, states *runstate.Registry) error {
	recovered, err := states.RecoverStale(ctx)
	if err != nil {
		return fmt.Errorf("中断された実行の回復に失敗したのだ: %w", err)
	}
	if recovered > 0 {
		slog.WarnContext(ctx, "中断されていた実行を failed に戻したのだ", "count", recovered, "lease", states.Lease())
	}
	return nil
}
