package domain

// SegmentRequest は、1イテレーション分のリモート生成要求です。
// Image と Mask はエンコード済み（PNG）のバイト列です。Mask はマスクを使わないバックエンドでは nil です。
type SegmentRequest struct {
	Index  int
	Prompt string
	Image  []byte
	Mask   []byte
	// Canvas は Image の寸法です。アダプターがモデル固有のパラメータ（width/height 等）を組み立てるのに使います。
	Canvas Size
	// Output は期待する出力寸法です。出力を正規化するアダプター（Gemini）が使います。
	Output Size
	Seed   *int64
}

// ImageResponse は生成された画像データとそのメタデータです。
type ImageResponse struct {
	Data     []byte
	MimeType string
	UsedSeed int64 // 戻り値は情報欠落を防ぐため int64
}
