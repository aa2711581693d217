package continuity

import (
	"bytes"
	"context"
	"fmt"

	"github.com/shouni/go-remote-io/pkg/remoteio"
	"github.com/shouni/go-utils/urlpath"
)

// ArtifactWriter は、1日分の成果物（パノラマ画像とプロンプト一覧）を出力先に書き出します。
type ArtifactWriter struct {
	reader  remoteio.InputReader
	writer  remoteio.OutputWriter
	baseDir string
}

// NewArtifactWriter は ArtifactWriter を初期化します。
func NewArtifactWriter(reader remoteio.InputReader, writer remoteio.OutputWriter, baseDir string) (*ArtifactWriter, error) {
	if reader == nil {
		return nil, fmt.Errorf("reader is required")
	}
	if writer == nil {
		return nil, fmt.Errorf("writer is required")
	}
	if baseDir == "" {
		return nil, fmt.Errorf("baseDir is required")
	}
	return &ArtifactWriter{reader: reader, writer: writer, baseDir: baseDir}, nil
}

// PanoramaPath は date のパノラマの保存先を返します。
func (w *ArtifactWriter) PanoramaPath(date string) (string, error) {
	return urlpath.ResolvePath(w.baseDir, PanoramaFileName(date))
}

// WritePanorama はパノラマ PNG を保存し、そのパスを返します。
func (w *ArtifactWriter) WritePanorama(ctx context.Context, date string, png []byte) (string, error) {
	return w.put(ctx, PanoramaFileName(date), png, "image/png")
}

// WritePrompts はプロンプト一覧のテキストを保存し、そのパスを返します。
func (w *ArtifactWriter) WritePrompts(ctx context.Context, date string, text string) (string, error) {
	return w.put(ctx, PromptsFileName(date), []byte(text), "text/plain; charset=utf-8")
}

// HasPanorama は date のパノラマがすでに出力先にあるかどうかを返します。
func (w *ArtifactWriter) HasPanorama(ctx context.Context, date string) (bool, error) {
	p, err := w.PanoramaPath(date)
	if err != nil {
		return false, err
	}
	rc, err := w.reader.Open(ctx, p)
	if err != nil {
		if isNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("パノラマ %s の確認に失敗しました: %w", p, err)
	}
	return true, rc.Close()
}

func (w *ArtifactWriter) put(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	p, err := urlpath.ResolvePath(w.baseDir, name)
	if err != nil {
		return "", err
	}
	if err := w.writer.Write(ctx, p, bytes.NewReader(data), contentType); err != nil {
		return "", fmt.Errorf("成果物 %s の保存に失敗しました: %w", p, err)
	}
	return p, nil
}
