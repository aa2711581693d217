// Package assets はバイナリに同梱する静的ファイルを提供するのだ。
package assets

import _ "embed"

// DefaultSeedName は同梱の既定シード画像の名前なのだ。
const DefaultSeedName = "default_seed.png"

// DefaultSeed は前日のレコードが無いときに使う 512x512 の風景画像（PNG）なのだ。
//
//go:embed default_seed.png
var DefaultSeed []byte
