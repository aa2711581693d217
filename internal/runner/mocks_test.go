package runner

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"sync"
	"time"

	"github.com/shouni/panorama-kit/pkg/continuity"
	"github.com/shouni/panorama-kit/pkg/domain"
	"github.com/shouni/panorama-kit/pkg/imgutil"
)

var testGeometry = domain.SegmentGeometry{
	SeedSize:       domain.Size{Width: 8, Height: 4},
	CanvasSize:     domain.Size{Width: 12, Height: 4},
	OutputSize:     domain.Size{Width: 12, Height: 4},
	ExtensionWidth: 4,
	Mode:           domain.ModeMask,
}

// fakeGenerator はキャンバスをそのまま出力サイズに描いて返すのだ
type fakeGenerator struct {
	mu    sync.Mutex
	calls int
	err   error
	delay time.Duration
}

func (f *fakeGenerator) Generate(ctx context.Context, req domain.SegmentRequest) (*domain.ImageResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	src, err := imgutil.Decode(req.Image)
	if err != nil {
		return nil, err
	}
	out := image.NewRGBA(image.Rect(0, 0, req.Output.Width, req.Output.Height))
	draw.Draw(out, out.Bounds(), &image.Uniform{C: color.RGBA{R: uint8(f.calls), A: 255}}, image.Point{}, draw.Src)
	draw.Draw(out, src.Bounds(), src, image.Point{}, draw.Src)
	data, err := imgutil.EncodePNG(out)
	if err != nil {
		return nil, err
	}
	return &domain.ImageResponse{Data: data, MimeType: "image/png"}, nil
}

type fakePrompts struct {
	count    int
	initials []string
	err      error
}

func (f *fakePrompts) Generate(ctx context.Context, initial string, date time.Time) ([]string, error) {
	f.initials = append(f.initials, initial)
	if f.err != nil {
		return nil, f.err
	}
	out := make([]string, f.count)
	for i := range out {
		out[i] = date.Format("Jan 2") + " hour prompt"
	}
	out[len(out)-1] = "final " + date.Format(domain.DateLayout)
	return out, nil
}

type memArtifacts struct {
	mu       sync.Mutex
	panorama map[string][]byte
	prompts  map[string]string
}

func newMemArtifacts() *memArtifacts {
	return &memArtifacts{panorama: map[string][]byte{}, prompts: map[string]string{}}
}

func (m *memArtifacts) HasPanorama(ctx context.Context, date string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.panorama[date]
	return ok, nil
}

func (m *memArtifacts) WritePanorama(ctx context.Context, date string, png []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.panorama[date] = png
	return "mem://" + date + "_full_day_landscape.png", nil
}

func (m *memArtifacts) WritePrompts(ctx context.Context, date string, text string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts[date] = text
	return "mem://" + date + "_prompts.txt", nil
}

// fakeRunner は Scheduler のテスト用なのだ
type fakeRunner struct {
	mu    sync.Mutex
	dates []string
	onRun func()
}

func (f *fakeRunner) Run(ctx context.Context, date string) (*RunResult, error) {
	f.mu.Lock()
	f.dates = append(f.dates, date)
	cb := f.onRun
	f.mu.Unlock()
	if cb != nil {
		cb()
	}
	return &RunResult{Date: date}, nil
}

func (f *fakeRunner) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.dates...)
}

// failingStore は Put だけ失敗する継続ストアなのだ
type failingStore struct {
	*continuity.MemoryStore
}

func (failingStore) Put(ctx context.Context, record domain.ContinuityRecord) error {
	return errors.New("bucket unavailable")
}
