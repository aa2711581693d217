package generator

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shouni/go-remote-io/pkg/remoteio"
)

const cacheKeyImage = "image:"

// ImageCore は、生成バックエンドが共有する画像取得まわりの基盤です。
// http(s) は HTTPClient、gs:// とローカルパスは remoteio の InputReader で読み込みます。
type ImageCore struct {
	reader     remoteio.InputReader
	httpClient HTTPClient
	cache      ImageCacher
	expiration time.Duration
	urlCheck   func(string) (bool, error)
}

// CoreOption は ImageCore の挙動を調整します。
type CoreOption func(*ImageCore)

// WithURLValidator は http(s) 取得前の URL 検証関数を差し替えます。
func WithURLValidator(fn func(string) (bool, error)) CoreOption {
	return func(c *ImageCore) {
		c.urlCheck = fn
	}
}

// NewImageCore は依存関係を注入して ImageCore を初期化します。
func NewImageCore(reader remoteio.InputReader, httpClient HTTPClient, cache ImageCacher, cacheTTL time.Duration, opts ...CoreOption) (*ImageCore, error) {
	if reader == nil {
		return nil, fmt.Errorf("reader is required")
	}
	if httpClient == nil {
		return nil, fmt.Errorf("httpClient is required")
	}
	// cache は nil を許容（キャッシュなし動作）

	c := &ImageCore{
		reader:     reader,
		httpClient: httpClient,
		cache:      cache,
		expiration: cacheTTL,
		urlCheck:   IsSafeURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// FetchImage は uri の画像を取得します。取得済みの uri はキャッシュから返します。
func (c *ImageCore) FetchImage(ctx context.Context, uri string) ([]byte, error) {
	key := cacheKeyImage + uri
	if c.cache != nil {
		if val, ok := c.cache.Get(key); ok {
			if data, ok := val.([]byte); ok {
				return data, nil
			}
		}
	}

	data, err := c.fetchImageData(ctx, uri)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		c.cache.Set(key, data, c.expiration)
	}
	return data, nil
}

func (c *ImageCore) fetchImageData(ctx context.Context, uri string) ([]byte, error) {
	if strings.HasPrefix(uri, "http://") || strings.HasPrefix(uri, "https://") {
		safe, err := c.urlCheck(uri)
		if err != nil {
			return nil, fmt.Errorf("URL %s の検証に失敗しました: %w", uri, err)
		}
		if !safe {
			return nil, fmt.Errorf("安全ではないURLが指定されました: %s", uri)
		}
		return c.httpClient.FetchBytes(ctx, uri)
	}

	rc, err := c.reader.Open(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("画像 %s のオープンに失敗しました: %w", uri, err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
