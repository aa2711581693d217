package imgutil

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/shouni/panorama-kit/pkg/domain"

	xdraw "golang.org/x/image/draw"
)

// PaddingColor はキャンバス右側の未生成領域を埋める中間グレーです。
var PaddingColor = color.RGBA{R: 128, G: 128, B: 128, A: 255}

const (
	maskPreserve = 0   // 黒: 保持
	maskPaint    = 255 // 白: 再生成
)

// Dimensions は画像の寸法を返します。
func Dimensions(img image.Image) domain.Size {
	b := img.Bounds()
	return domain.Size{Width: b.Dx(), Height: b.Dy()}
}

// Crop は画像の上端から rect の領域を切り出し、原点 (0,0) の新しい画像として返します。
func Crop(img image.Image, rect domain.Rect) (*image.RGBA, error) {
	b := img.Bounds()
	if rect.Left < 0 || rect.Width <= 0 || rect.Height <= 0 || rect.Right() > b.Dx() || rect.Height > b.Dy() {
		return nil, fmt.Errorf("切り出し範囲 (left=%d width=%d height=%d) が画像サイズ %dx%d の外側です",
			rect.Left, rect.Width, rect.Height, b.Dx(), b.Dy())
	}

	dst := image.NewRGBA(image.Rect(0, 0, rect.Width, rect.Height))
	draw.Draw(dst, dst.Bounds(), img, image.Pt(b.Min.X+rect.Left, b.Min.Y), draw.Src)
	return dst, nil
}

// ComposeCanvas はシードを左端に配置し、残りを PaddingColor で埋めたキャンバスを作ります。
func ComposeCanvas(seed image.Image, canvas domain.Size) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, canvas.Width, canvas.Height))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: PaddingColor}, image.Point{}, draw.Src)
	sb := seed.Bounds()
	draw.Draw(dst, image.Rect(0, 0, sb.Dx(), sb.Dy()), seed, sb.Min, draw.Src)
	return dst
}

// BuildMask はインペイント用のグレースケールマスクを作ります。
// x < preserveWidth は黒（保持）、それ以外は白（再生成）です。
func BuildMask(canvas domain.Size, preserveWidth int) *image.Gray {
	mask := image.NewGray(image.Rect(0, 0, canvas.Width, canvas.Height))
	for y := 0; y < canvas.Height; y++ {
		row := mask.Pix[y*mask.Stride : y*mask.Stride+canvas.Width]
		for x := range row {
			if x < preserveWidth {
				row[x] = maskPreserve
			} else {
				row[x] = maskPaint
			}
		}
	}
	return mask
}

// Resize は画像を指定サイズに拡大縮小します。
func Resize(img image.Image, size domain.Size) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, size.Width, size.Height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Src, nil)
	return dst
}

// Fit は画像を size に合わせます。
// 十分に大きい画像は右上を基準に切り出し（前日パノラマの右端を使う運用に合わせる）、
// 小さい画像は拡大します。すでに同じ寸法ならそのまま返します。
func Fit(img image.Image, size domain.Size) (image.Image, error) {
	got := Dimensions(img)
	if got == size {
		return img, nil
	}
	if got.Width >= size.Width && got.Height >= size.Height {
		return Crop(img, domain.Rect{Left: got.Width - size.Width, Width: size.Width, Height: size.Height})
	}
	return Resize(img, size), nil
}
