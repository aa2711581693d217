package pipeline

import (
	"errors"
	"fmt"
	"image"
	"image/draw"

	"github.com/shouni/panorama-kit/pkg/domain"
	"github.com/shouni/panorama-kit/pkg/imgutil"
)

// ErrSegmentHeight は、セグメント間で高さが揃っていないことを表します。
var ErrSegmentHeight = errors.New("segment heights differ")

// Placement は、セグメントのどの範囲をパノラマのどの x 座標へ置くかを表します。
type Placement struct {
	Index  int
	Source domain.Rect
	X      int
}

// OffsetTable は各セグメントの配置を計算します。
// 先頭は全幅を x=0 に、以降は右端 ExtensionWidth 列だけを直前の右隣に置きます。
func OffsetTable(geo domain.SegmentGeometry, widths []int, height int) ([]Placement, error) {
	if len(widths) == 0 {
		return nil, fmt.Errorf("no segments to place")
	}
	ext := geo.ExtensionWidth

	table := make([]Placement, 0, len(widths))
	cursor := 0
	for i, w := range widths {
		if i == 0 {
			table = append(table, Placement{Index: 0, Source: domain.Rect{Left: 0, Width: w, Height: height}, X: 0})
			cursor = w
			continue
		}
		if w < ext {
			return nil, fmt.Errorf("segment %d is %dpx wide, narrower than the extension width %d", i, w, ext)
		}
		table = append(table, Placement{Index: i, Source: domain.Rect{Left: w - ext, Width: ext, Height: height}, X: cursor})
		cursor += ext
	}
	return table, nil
}

// Width はテーブルが覆う合計幅です。
func Width(table []Placement) int {
	if len(table) == 0 {
		return 0
	}
	last := table[len(table)-1]
	return last.X + last.Source.Width
}

// Assemble はセグメントを左から順に繋いで1枚のパノラマを作ります。
func Assemble(geo domain.SegmentGeometry, segments []domain.Segment) (*image.RGBA, error) {
	if len(segments) == 0 {
		return nil, fmt.Errorf("no segments to assemble")
	}

	// パノラマの高さはシードの高さで固定
	height := geo.SeedSize.Height
	if geo.OutputSize.Height != height {
		return nil, fmt.Errorf("%w: output height %dpx differs from seed height %dpx", ErrSegmentHeight, geo.OutputSize.Height, height)
	}
	widths := make([]int, len(segments))
	for i, seg := range segments {
		size := imgutil.Dimensions(seg.Image)
		if size.Height != height {
			return nil, fmt.Errorf("%w: segment %d is %dpx tall, expected %dpx", ErrSegmentHeight, i, size.Height, height)
		}
		widths[i] = size.Width
	}

	table, err := OffsetTable(geo, widths, height)
	if err != nil {
		return nil, err
	}

	panorama := image.NewRGBA(image.Rect(0, 0, Width(table), height))
	for _, pl := range table {
		src := segments[pl.Index].Image
		b := src.Bounds()
		dst := image.Rect(pl.X, 0, pl.X+pl.Source.Width, height)
		draw.Draw(panorama, dst, src, image.Pt(b.Min.X+pl.Source.Left, b.Min.Y), draw.Src)
	}
	return panorama, nil
}
