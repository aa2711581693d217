package domain

import (
	"fmt"
	"strings"
)

// CanvasMode は、リモート生成器に渡すリクエスト画像の組み立て方を表します。
type CanvasMode string

const (
	// ModeMask はシードを左端に置いたキャンバスと、保持/再生成を示すマスクを送ります。
	ModeMask CanvasMode = "mask"
	// ModePad はマスクなしでキャンバスのみを送ります。
	ModePad CanvasMode = "pad"
	// ModeSeed はシード画像そのものを送ります。拡張はモデル側のパラメータで指定します。
	ModeSeed CanvasMode = "seed"
)

// Size はピクセル単位の幅と高さです。
type Size struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// Rect は画像から切り出す矩形です。Top は常に 0 です（縦方向の拡張はしません）。
type Rect struct {
	Left   int
	Width  int
	Height int
}

// Right は矩形の右端（排他的）の x 座標を返します。
func (r Rect) Right() int {
	return r.Left + r.Width
}

// SegmentGeometry は、バックエンドごとに固定されるキャンバス・マスク・切り出しの寸法です。
// 生成後の画像から「次のシード」と「パノラマへの寄与分」を切り出すための唯一の情報源になります。
type SegmentGeometry struct {
	SeedSize       Size       `json:"seed_size" yaml:"seed_size"`
	CanvasSize     Size       `json:"canvas_size" yaml:"canvas_size"`
	OutputSize     Size       `json:"output_size" yaml:"output_size"`
	ExtensionWidth int        `json:"extension_width" yaml:"extension_width"`
	Mode           CanvasMode `json:"mode" yaml:"mode"`
}

// OverlapWidth は、出力のうち前セグメントと重なる（新規ではない）列数です。
func (g SegmentGeometry) OverlapWidth() int {
	return g.OutputSize.Width - g.ExtensionWidth
}

// PreserveWidth は、マスクで保持（黒）として扱うキャンバス左側の幅です。
func (g SegmentGeometry) PreserveWidth() int {
	return g.CanvasSize.Width - g.ExtensionWidth
}

// NextSeedCrop は、出力画像の右端から次のシードとして切り出す矩形です。
func (g SegmentGeometry) NextSeedCrop() Rect {
	return Rect{
		Left:   g.OutputSize.Width - g.SeedSize.Width,
		Width:  g.SeedSize.Width,
		Height: g.SeedSize.Height,
	}
}

// PanoramaCrop は、2枚目以降のセグメントからパノラマへ追加する右端の矩形です。
func (g SegmentGeometry) PanoramaCrop() Rect {
	return Rect{
		Left:   g.OutputSize.Width - g.ExtensionWidth,
		Width:  g.ExtensionWidth,
		Height: g.OutputSize.Height,
	}
}

// PanoramaWidth は segmentCount 枚を繋いだときの最終的なパノラマ幅です。
func (g SegmentGeometry) PanoramaWidth(segmentCount int) int {
	if segmentCount <= 0 {
		return 0
	}
	return g.OutputSize.Width + (segmentCount-1)*g.ExtensionWidth
}

// Validate は寸法の整合性を検証します。
// 実行時ではなく起動時（パイプライン構築時）に一度だけ呼び出す想定です。
func (g SegmentGeometry) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	sizes := []struct {
		name string
		size Size
	}{
		{"seed_size", g.SeedSize},
		{"canvas_size", g.CanvasSize},
		{"output_size", g.OutputSize},
	}
	for _, s := range sizes {
		if s.size.Width <= 0 || s.size.Height <= 0 {
			add("%s must be positive, got %s", s.name, s.size)
		}
	}
	if g.ExtensionWidth <= 0 {
		add("extension_width must be positive, got %d", g.ExtensionWidth)
	}
	if g.ExtensionWidth >= g.OutputSize.Width {
		add("extension_width (%d) must be smaller than output width (%d)", g.ExtensionWidth, g.OutputSize.Width)
	}
	if g.SeedSize.Width > g.OutputSize.Width {
		add("seed width (%d) exceeds output width (%d)", g.SeedSize.Width, g.OutputSize.Width)
	}
	if g.SeedSize.Height != g.OutputSize.Height || g.CanvasSize.Height != g.SeedSize.Height {
		add("heights must agree: seed=%d canvas=%d output=%d", g.SeedSize.Height, g.CanvasSize.Height, g.OutputSize.Height)
	}
	if g.CanvasSize.Width < g.SeedSize.Width {
		add("canvas width (%d) is smaller than seed width (%d)", g.CanvasSize.Width, g.SeedSize.Width)
	}

	switch g.Mode {
	case ModeMask:
		if p := g.PreserveWidth(); p < 0 || p > g.SeedSize.Width {
			add("mask preserve band (%d) must be within the seed width (%d)", p, g.SeedSize.Width)
		}
	case ModePad:
	case ModeSeed:
		if g.CanvasSize != g.SeedSize {
			add("seed mode requires canvas_size == seed_size, got %s and %s", g.CanvasSize, g.SeedSize)
		}
	default:
		add("unknown canvas mode %q", g.Mode)
	}

	if len(problems) > 0 {
		return &GeometryConfigurationError{Geometry: g, Problems: problems}
	}
	return nil
}

// GeometryConfigurationError は、SegmentGeometry が不正な場合の起動時エラーです。回復は想定しません。
type GeometryConfigurationError struct {
	Geometry SegmentGeometry
	Problems []string
}

func (e *GeometryConfigurationError) Error() string {
	return "invalid segment geometry: " + strings.Join(e.Problems, "; ")
}
