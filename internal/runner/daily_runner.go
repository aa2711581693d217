package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/shouni/panorama-kit/pkg/continuity"
	"github.com/shouni/panorama-kit/pkg/domain"
	"github.com/shouni/panorama-kit/pkg/generator"
	"github.com/shouni/panorama-kit/pkg/imgutil"
	"github.com/shouni/panorama-kit/pkg/pipeline"
	"github.com/shouni/panorama-kit/pkg/prompt"
	"github.com/shouni/panorama-kit/pkg/runstate"
)

// Runner は、指定日の24時間パノラマを1本生成するためのインターフェース。
type Runner interface {
	Run(ctx context.Context, date string) (*RunResult, error)
}

// PromptSource は1日分のプロンプトを用意するのだ。
type PromptSource interface {
	Generate(ctx context.Context, initialDescription string, date time.Time) ([]string, error)
}

// StateRegistry は日付ごとの実行状態を管理するのだ。
// Heartbeat は実行中の記録のリースを延長するのだ。
type StateRegistry interface {
	Begin(ctx context.Context, date string) (string, error)
	Heartbeat(ctx context.Context, date, runID string) error
	Finish(ctx context.Context, date, runID string, runErr error) error
}

const defaultHeartbeat = time.Minute

// ArtifactStore は1日分の成果物を保存するのだ。
type ArtifactStore interface {
	HasPanorama(ctx context.Context, date string) (bool, error)
	WritePanorama(ctx context.Context, date string, png []byte) (string, error)
	WritePrompts(ctx context.Context, date string, text string) (string, error)
}

// RunResult は1回の日次実行の結果なのだ。
type RunResult struct {
	Date         string           `json:"date"`
	RunID        string           `json:"run_id,omitempty"`
	Mode         domain.StartMode `json:"mode,omitempty"`
	Skipped      bool             `json:"skipped,omitempty"`
	PanoramaPath string           `json:"panorama_path,omitempty"`
	PromptsPath  string           `json:"prompts_path,omitempty"`
	Width        int              `json:"width,omitempty"`
	Height       int              `json:"height,omitempty"`
	Segments     int              `json:"segments,omitempty"`
}

// DailyRunner は、前日からの継続判定・プロンプト生成・セグメント生成・結合・保存を
// 1日分まとめて実行する実体。
type DailyRunner struct {
	gen          generator.SegmentGenerator
	geo          domain.SegmentGeometry
	prompts      PromptSource
	states       StateRegistry
	store        continuity.Store
	artifacts    ArtifactStore
	defaults     pipeline.Defaults
	pipelineOpts []pipeline.Option
	scratchRoot  string
	heartbeat    time.Duration
}

// Deps は DailyRunner の依存関係をまとめたものなのだ。
type Deps struct {
	Generator    generator.SegmentGenerator
	Geometry     domain.SegmentGeometry
	Prompts      PromptSource
	States       StateRegistry
	Store        continuity.Store
	Artifacts    ArtifactStore
	Defaults     pipeline.Defaults
	PipelineOpts []pipeline.Option
	// ScratchRoot は作業ディレクトリを作る親ディレクトリ。空ならシステムの一時ディレクトリなのだ。
	ScratchRoot string
	// Heartbeat は実行中にリースを延長する間隔。0 なら1分なのだ。
	Heartbeat time.Duration
}

// NewDailyRunner は DailyRunner を初期化するのだ。ジオメトリはここで検証するのだ。
func NewDailyRunner(d Deps) (*DailyRunner, error) {
	if err := d.Geometry.Validate(); err != nil {
		return nil, err
	}
	switch {
	case d.Generator == nil:
		return nil, fmt.Errorf("generator is required")
	case d.Prompts == nil:
		return nil, fmt.Errorf("prompt source is required")
	case d.States == nil:
		return nil, fmt.Errorf("state registry is required")
	case d.Store == nil:
		return nil, fmt.Errorf("continuity store is required")
	case d.Artifacts == nil:
		return nil, fmt.Errorf("artifact store is required")
	case d.Defaults.Seed == nil:
		return nil, fmt.Errorf("default seed is required")
	}

	heartbeat := d.Heartbeat
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}

	return &DailyRunner{
		heartbeat:    heartbeat,
		gen:          d.Generator,
		geo:          d.Geometry,
		prompts:      d.Prompts,
		states:       d.States,
		store:        d.Store,
		artifacts:    d.Artifacts,
		defaults:     d.Defaults,
		pipelineOpts: d.PipelineOpts,
		scratchRoot:  d.ScratchRoot,
	}, nil
}

// Run は date の1日分を生成するのだ。
// すでに完了済みの日付は何もせず Skipped を返すのだ。
func (r *DailyRunner) Run(ctx context.Context, date string) (result *RunResult, err error) {
	day, err := domain.ParseDate(date)
	if err != nil {
		return nil, fmt.Errorf("日付 %q を解釈できないのだ: %w", date, err)
	}

	runID, err := r.states.Begin(ctx, date)
	if errors.Is(err, runstate.ErrAlreadyCompleted) {
		slog.InfoContext(ctx, "この日付は生成済みなのでスキップするのだ", "date", date)
		return &RunResult{Date: date, Skipped: true}, nil
	}
	if err != nil {
		return nil, err
	}
	defer func() {
		// 呼び出し元のキャンセルに関係なく状態は必ず確定させるのだ
		if ferr := r.states.Finish(context.WithoutCancel(ctx), date, runID, err); ferr != nil {
			slog.ErrorContext(ctx, "実行状態の更新に失敗したのだ", "date", date, "run_id", runID, "error", ferr)
		}
	}()
	stopHeartbeat := r.keepAlive(ctx, date, runID)
	defer stopHeartbeat()

	exists, err := r.artifacts.HasPanorama(ctx, date)
	if err != nil {
		return nil, err
	}
	if exists {
		slog.InfoContext(ctx, "パノラマがすでに存在するのでスキップするのだ", "date", date)
		return &RunResult{Date: date, RunID: runID, Skipped: true}, nil
	}

	start, err := pipeline.ResolveStart(ctx, r.store, date, r.geo, r.defaults)
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "日次生成を開始するのだ", "date", date, "run_id", runID, "mode", start.Mode, "source", start.SourceDate)

	prompts, err := r.prompts.Generate(ctx, start.Description, day)
	if err != nil {
		return nil, fmt.Errorf("プロンプト生成に失敗したのだ: %w", err)
	}

	scratch, err := os.MkdirTemp(r.scratchRoot, "panorama-"+date+"-")
	if err != nil {
		return nil, fmt.Errorf("作業ディレクトリを作れないのだ: %w", err)
	}
	defer func() {
		if rerr := os.RemoveAll(scratch); rerr != nil {
			slog.WarnContext(ctx, "作業ディレクトリの削除に失敗したのだ", "dir", scratch, "error", rerr)
		}
	}()

	opts := append(append([]pipeline.Option{}, r.pipelineOpts...), pipeline.WithScratchDir(scratch, date))
	segPipeline, err := pipeline.NewSegmentPipeline(r.gen, r.geo, opts...)
	if err != nil {
		return nil, err
	}
	res, err := segPipeline.Run(ctx, start.Seed, prompts)
	if err != nil {
		return nil, err
	}

	panorama, err := pipeline.Assemble(r.geo, res.Segments)
	if err != nil {
		return nil, fmt.Errorf("パノラマの結合に失敗したのだ: %w", err)
	}
	png, err := imgutil.EncodePNG(panorama)
	if err != nil {
		return nil, err
	}

	// パノラマの存在を完了の目印にするので、継続レコードとプロンプトを先に書くのだ
	record, err := pipeline.NewContinuityRecord(date, res)
	if err != nil {
		return nil, err
	}
	if err := r.store.Put(ctx, record); err != nil {
		return nil, fmt.Errorf("継続レコードの保存に失敗したのだ: %w", err)
	}
	promptsPath, err := r.artifacts.WritePrompts(ctx, date, prompt.FormatPromptsFile(prompts))
	if err != nil {
		return nil, err
	}
	panoramaPath, err := r.artifacts.WritePanorama(ctx, date, png)
	if err != nil {
		return nil, err
	}

	size := imgutil.Dimensions(panorama)
	slog.InfoContext(ctx, "24時間パノラマが完成したのだ！", "date", date, "path", panoramaPath, "width", size.Width, "height", size.Height, "segments", len(res.Segments))

	return &RunResult{
		Date:         date,
		RunID:        runID,
		Mode:         start.Mode,
		PanoramaPath: panoramaPath,
		PromptsPath:  promptsPath,
		Width:        size.Width,
		Height:       size.Height,
		Segments:     len(res.Segments),
	}, nil
}

// keepAlive は実行中のリースを定期的に延長するのだ。返した関数でゴルーチンの終了まで待つのだ。
func (r *DailyRunner) keepAlive(ctx context.Context, date, runID string) func() {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(r.heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := r.states.Heartbeat(ctx, date, runID); err != nil {
					slog.WarnContext(ctx, "リースの延長に失敗したのだ", "date", date, "run_id", runID, "error", err)
				}
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}
