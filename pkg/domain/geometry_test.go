package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stabilityGeometry() SegmentGeometry {
	return SegmentGeometry{
		SeedSize:       Size{Width: 512, Height: 512},
		CanvasSize:     Size{Width: 768, Height: 512},
		OutputSize:     Size{Width: 768, Height: 512},
		ExtensionWidth: 256,
		Mode:           ModeMask,
	}
}

func TestSegmentGeometry_Derived(t *testing.T) {
	g := stabilityGeometry()

	assert.Equal(t, 512, g.OverlapWidth())
	assert.Equal(t, 512, g.PreserveWidth())
	assert.Equal(t, Rect{Left: 256, Width: 512, Height: 512}, g.NextSeedCrop())
	assert.Equal(t, Rect{Left: 512, Width: 256, Height: 512}, g.PanoramaCrop())

	t.Run("次のシードは常に出力の右端に接する", func(t *testing.T) {
		assert.Equal(t, g.OutputSize.Width, g.NextSeedCrop().Right())
		assert.Equal(t, g.OutputSize.Width, g.PanoramaCrop().Right())
	})

	t.Run("パノラマ幅は先頭セグメント幅 + (n-1) * 拡張幅", func(t *testing.T) {
		assert.Equal(t, 0, g.PanoramaWidth(0))
		assert.Equal(t, 768, g.PanoramaWidth(1))
		assert.Equal(t, 768+23*256, g.PanoramaWidth(24))
	})
}

func TestSegmentGeometry_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(g *SegmentGeometry)
		wantErr bool
	}{
		{"正常なマスク構成", func(g *SegmentGeometry) {}, false},
		{"pad モード", func(g *SegmentGeometry) { g.Mode = ModePad }, false},
		{"seed モード", func(g *SegmentGeometry) {
			g.Mode = ModeSeed
			g.CanvasSize = g.SeedSize
		}, false},
		{"拡張幅が出力幅と同じ", func(g *SegmentGeometry) { g.ExtensionWidth = 768 }, true},
		{"拡張幅が出力幅より大きい", func(g *SegmentGeometry) { g.ExtensionWidth = 1024 }, true},
		{"拡張幅がゼロ", func(g *SegmentGeometry) { g.ExtensionWidth = 0 }, true},
		{"高さの不一致", func(g *SegmentGeometry) { g.OutputSize.Height = 768 }, true},
		{"シードが出力より広い", func(g *SegmentGeometry) { g.SeedSize.Width = 1024 }, true},
		{"キャンバスがシードより狭い", func(g *SegmentGeometry) { g.CanvasSize.Width = 256 }, true},
		{"保持帯がシード幅を超える", func(g *SegmentGeometry) {
			g.CanvasSize.Width = 896
			g.OutputSize.Width = 896
		}, true},
		{"seed モードでキャンバスが異なる", func(g *SegmentGeometry) { g.Mode = ModeSeed }, true},
		{"未知のモード", func(g *SegmentGeometry) { g.Mode = "stretch" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := stabilityGeometry()
			tt.mutate(&g)

			err := g.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			var geoErr *GeometryConfigurationError
			require.True(t, errors.As(err, &geoErr), "expected GeometryConfigurationError, got %T", err)
			assert.NotEmpty(t, geoErr.Problems)
		})
	}
}

func TestPreviousDate(t *testing.T) {
	got, err := PreviousDate("2025-03-01")
	require.NoError(t, err)
	assert.Equal(t, "2025-02-28", got)

	_, err = PreviousDate("not-a-date")
	assert.Error(t, err)
}
