package prompt

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/shouni/go-gemini-client/gemini"
	"golang.org/x/time/rate"
)

const (
	// DefaultDescription は継続元が無い日の初期説明文です。
	DefaultDescription = "a natural landscape with mountains, turquoise lake and pine forests at dawn"
	// DefaultInterval はテキストモデル呼び出しの最小間隔です。
	DefaultInterval = 300 * time.Millisecond
	// dateLayout はプロンプト中の日付表記（例: October 15, 2025）です。
	dateLayout = "January 2, 2006"
)

// HourLabels は 6 AM から翌 5 AM までの24時間分のラベルです。
var HourLabels = []string{
	"6 AM", "7 AM", "8 AM", "9 AM", "10 AM", "11 AM",
	"12 PM", "1 PM", "2 PM", "3 PM", "4 PM", "5 PM",
	"6 PM", "7 PM", "8 PM", "9 PM", "10 PM", "11 PM",
	"12 AM", "1 AM", "2 AM", "3 AM", "4 AM", "5 AM",
}

var firstSentence = regexp.MustCompile(`^[^.!?]+[.!?]`)

// TextModel は go-gemini-client のうち、テキスト生成に使う部分です。
type TextModel interface {
	GenerateContent(ctx context.Context, model string, prompt string) (*gemini.Response, error)
}

// Chain は、直前の説明文を次の時間帯の入力にして24本のプロンプトを連鎖生成します。
type Chain struct {
	ai      TextModel
	model   string
	builder *Builder
	limiter *rate.Limiter
	count   int
}

// Option は Chain の設定を調整します。
type Option func(*Chain)

// WithCount は生成するプロンプト数を変更します（1〜24）。デバッグ用の短い日に使います。
func WithCount(n int) Option {
	return func(c *Chain) {
		c.count = n
	}
}

// WithInterval はテキストモデル呼び出しの間隔を変更します。
func WithInterval(d time.Duration) Option {
	return func(c *Chain) {
		c.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// NewChain は Chain を初期化します。
func NewChain(ai TextModel, model string, opts ...Option) (*Chain, error) {
	if ai == nil {
		return nil, fmt.Errorf("aiClient is required")
	}
	if model == "" {
		return nil, fmt.Errorf("model is required")
	}
	builder, err := NewBuilder()
	if err != nil {
		return nil, err
	}

	c := &Chain{
		ai:      ai,
		model:   model,
		builder: builder,
		limiter: rate.NewLimiter(rate.Every(DefaultInterval), 1),
		count:   len(HourLabels),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.count < 1 || c.count > len(HourLabels) {
		return nil, fmt.Errorf("prompt count must be between 1 and %d, got %d", len(HourLabels), c.count)
	}
	return c, nil
}

// Count は生成するプロンプト数です。
func (c *Chain) Count() int {
	return c.count
}

// Generate は date の1日分のプロンプトを生成します。
// テキストモデルが失敗した時間帯は定型文で埋め、直前の説明文は更新しません。
func (c *Chain) Generate(ctx context.Context, initialDescription string, date time.Time) ([]string, error) {
	if initialDescription == "" {
		initialDescription = DefaultDescription
	}
	currentDate := date.Format(dateLayout)
	previous := initialDescription

	slog.InfoContext(ctx, "プロンプトを連鎖生成します", "count", c.count, "date", currentDate, "initial", initialDescription)

	prompts := make([]string, 0, c.count)
	for i, hour := range HourLabels[:c.count] {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		desc, err := c.describe(ctx, TemplateData{
			PreviousDescription: previous,
			CurrentTime:         hour,
			CurrentDate:         currentDate,
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			fallback := Fallback(hour)
			slog.WarnContext(ctx, "プロンプト生成に失敗したため定型文を使います", "hour", hour, "error", err)
			prompts = append(prompts, fallback)
			continue
		}

		slog.DebugContext(ctx, "プロンプトを生成しました", "index", i+1, "hour", hour, "prompt", desc)
		prompts = append(prompts, desc)
		previous = desc
	}
	return prompts, nil
}

func (c *Chain) describe(ctx context.Context, data TemplateData) (string, error) {
	text, err := c.builder.Build(data)
	if err != nil {
		return "", err
	}
	resp, err := c.ai.GenerateContent(ctx, c.model, text)
	if err != nil {
		return "", err
	}
	if resp == nil || resp.RawResponse == nil {
		return "", fmt.Errorf("empty response")
	}
	desc := FirstSentence(resp.RawResponse.Text())
	if desc == "" {
		return "", fmt.Errorf("empty description")
	}
	return desc, nil
}

// FirstSentence は応答の最初の1文を取り出します。文末記号が無ければ全体を返します。
func FirstSentence(text string) string {
	text = strings.TrimSpace(text)
	if m := firstSentence.FindString(text); m != "" {
		return strings.TrimSpace(m)
	}
	return text
}

// Fallback はテキストモデルが使えない時間帯の定型プロンプトです。
func Fallback(hour string) string {
	return fmt.Sprintf("Seamlessly extend mountain landscape at %s, matching existing style and lighting", hour)
}

// FormatPromptsFile はプロンプト一覧を "1. ..." 形式の番号付きテキストにします。
func FormatPromptsFile(prompts []string) string {
	lines := make([]string, len(prompts))
	for i, p := range prompts {
		lines[i] = fmt.Sprintf("%d. %s", i+1, p)
	}
	return strings.Join(lines, "\n\n")
}
