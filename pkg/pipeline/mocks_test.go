package pipeline

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"sync"
	"testing"

	"github.com/shouni/panorama-kit/pkg/domain"
	"github.com/shouni/panorama-kit/pkg/imgutil"

	"github.com/stretchr/testify/require"
)

// testGeometry は小さな画像で検証するためのマスク方式ジオメトリなのだ
var testGeometry = domain.SegmentGeometry{
	SeedSize:       domain.Size{Width: 8, Height: 4},
	CanvasSize:     domain.Size{Width: 12, Height: 4},
	OutputSize:     domain.Size{Width: 12, Height: 4},
	ExtensionWidth: 4,
	Mode:           domain.ModeMask,
}

// fakeGenerator は、キャンバスの保持領域をそのまま残し、右端の拡張領域を
// 呼び出し番号ごとの色で塗った画像を返すのだ
type fakeGenerator struct {
	mu       sync.Mutex
	geo      domain.SegmentGeometry
	calls    int
	requests []domain.SegmentRequest
	failures []error
	output   *domain.Size
}

func (f *fakeGenerator) Generate(ctx context.Context, req domain.SegmentRequest) (*domain.ImageResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.requests = append(f.requests, req)
	if len(f.failures) > 0 {
		err := f.failures[0]
		f.failures = f.failures[1:]
		return nil, err
	}

	size := f.geo.OutputSize
	if f.output != nil {
		size = *f.output
	}
	src, err := imgutil.Decode(req.Image)
	if err != nil {
		return nil, err
	}
	out := image.NewRGBA(image.Rect(0, 0, size.Width, size.Height))
	draw.Draw(out, out.Bounds(), src, src.Bounds().Min, draw.Src)
	for y := 0; y < size.Height; y++ {
		for x := size.Width - f.geo.ExtensionWidth; x < size.Width; x++ {
			out.Set(x, y, color.RGBA{R: uint8(f.calls * 20), G: uint8(x), B: uint8(y), A: 255})
		}
	}
	data, err := imgutil.EncodePNG(out)
	if err != nil {
		return nil, err
	}
	return &domain.ImageResponse{Data: data, MimeType: "image/png"}, nil
}

func (f *fakeGenerator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// testSeed は座標を色に埋め込んだシード画像なのだ
func testSeed(size domain.Size) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size.Width, size.Height))
	for y := 0; y < size.Height; y++ {
		for x := 0; x < size.Width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(200 + x), G: uint8(y), B: 99, A: 255})
		}
	}
	return img
}

// assertSamePixels は2つの画像の寸法と全画素が一致することを確認するのだ
func assertSamePixels(t *testing.T, want, got image.Image) {
	t.Helper()
	require.Equal(t, imgutil.Dimensions(want), imgutil.Dimensions(got))
	wb, gb := want.Bounds(), got.Bounds()
	for y := 0; y < wb.Dy(); y++ {
		for x := 0; x < wb.Dx(); x++ {
			w := color.RGBAModel.Convert(want.At(wb.Min.X+x, wb.Min.Y+y))
			g := color.RGBAModel.Convert(got.At(gb.Min.X+x, gb.Min.Y+y))
			require.Equal(t, w, g, "pixel (%d,%d)", x, y)
		}
	}
}

func prompts(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = "hour " + string(rune('A'+i))
	}
	return out
}
