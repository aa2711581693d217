package continuity

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/shouni/panorama-kit/pkg/domain"

	"github.com/shouni/go-remote-io/pkg/remoteio"
	"github.com/shouni/go-utils/urlpath"
)

const (
	seedSuffix        = "_final_seed.png"
	descriptionSuffix = "_final_description.txt"
	panoramaSuffix    = "_full_day_landscape.png"
	promptsSuffix     = "_prompts.txt"
)

// SeedFileName は継続用シード画像のファイル名です。
func SeedFileName(date string) string { return date + seedSuffix }

// DescriptionFileName は継続用説明文のファイル名です。
func DescriptionFileName(date string) string { return date + descriptionSuffix }

// PanoramaFileName は完成したパノラマのファイル名です。
func PanoramaFileName(date string) string { return date + panoramaSuffix }

// PromptsFileName はその日に使ったプロンプト一覧のファイル名です。
func PromptsFileName(date string) string { return date + promptsSuffix }

// RemoteStore は、ローカルディレクトリまたは gs:// 配下に継続レコードを置く Store です。
type RemoteStore struct {
	reader  remoteio.InputReader
	writer  remoteio.OutputWriter
	baseDir string
}

// NewRemoteStore は RemoteStore を初期化します。
func NewRemoteStore(reader remoteio.InputReader, writer remoteio.OutputWriter, baseDir string) (*RemoteStore, error) {
	if reader == nil {
		return nil, fmt.Errorf("reader is required")
	}
	if writer == nil {
		return nil, fmt.Errorf("writer is required")
	}
	if baseDir == "" {
		return nil, fmt.Errorf("baseDir is required")
	}
	return &RemoteStore{reader: reader, writer: writer, baseDir: baseDir}, nil
}

// Get は date の最終シードと説明文を読み込みます。どちらかが無ければ ErrNotFound です。
func (s *RemoteStore) Get(ctx context.Context, date string) (*domain.ContinuityRecord, error) {
	seed, err := s.read(ctx, SeedFileName(date))
	if err != nil {
		return nil, err
	}
	desc, err := s.read(ctx, DescriptionFileName(date))
	if err != nil {
		return nil, err
	}
	return &domain.ContinuityRecord{
		Date:             date,
		FinalSeed:        seed,
		FinalDescription: strings.TrimSpace(string(desc)),
	}, nil
}

// Put はシード画像を先に、説明文を後に書き込みます。
// 説明文の存在をもってレコード完成とみなすため、この順序を崩さないでください。
func (s *RemoteStore) Put(ctx context.Context, record domain.ContinuityRecord) error {
	if record.Date == "" {
		return fmt.Errorf("record date is required")
	}
	if err := s.write(ctx, SeedFileName(record.Date), record.FinalSeed, "image/png"); err != nil {
		return err
	}
	return s.write(ctx, DescriptionFileName(record.Date), []byte(record.FinalDescription), "text/plain; charset=utf-8")
}

func (s *RemoteStore) read(ctx context.Context, name string) ([]byte, error) {
	p, err := urlpath.ResolvePath(s.baseDir, name)
	if err != nil {
		return nil, err
	}
	rc, err := s.reader.Open(ctx, p)
	if err != nil {
		if isNotExist(err) {
			return nil, fmt.Errorf("%s: %w", p, ErrNotFound)
		}
		return nil, fmt.Errorf("継続レコード %s の読み込みに失敗しました: %w", p, err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func (s *RemoteStore) write(ctx context.Context, name string, data []byte, contentType string) error {
	p, err := urlpath.ResolvePath(s.baseDir, name)
	if err != nil {
		return err
	}
	if err := s.writer.Write(ctx, p, bytes.NewReader(data), contentType); err != nil {
		return fmt.Errorf("継続レコード %s の書き込みに失敗しました: %w", p, err)
	}
	return nil
}

// isNotExist はローカル（fs.ErrNotExist）と GCS（object doesn't exist）の両方の欠損を判定します。
func isNotExist(err error) bool {
	if errors.Is(err, fs.ErrNotExist) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "doesn't exist") ||
		strings.Contains(msg, "does not exist") ||
		strings.Contains(msg, "not found")
}
