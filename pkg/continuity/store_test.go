package continuity

import (
	"context"
	"errors"
	"testing"

	"github.com/shouni/panorama-kit/pkg/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord(date string) domain.ContinuityRecord {
	return domain.ContinuityRecord{
		Date:             date,
		FinalSeed:        []byte("\x89PNG fake seed"),
		FinalDescription: "Twilight settles over the turquoise lake.",
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.Get(ctx, "2025-10-15")
	assert.ErrorIs(t, err, ErrNotFound)

	rec := sampleRecord("2025-10-15")
	require.NoError(t, s.Put(ctx, rec))

	got, err := s.Get(ctx, "2025-10-15")
	require.NoError(t, err)
	assert.Equal(t, rec, *got)

	got.FinalSeed[0] = 0
	again, _ := s.Get(ctx, "2025-10-15")
	assert.Equal(t, rec.FinalSeed, again.FinalSeed, "取得結果を書き換えても保存値は変わらない")

	assert.Error(t, s.Put(ctx, domain.ContinuityRecord{}))
}

func TestRemoteStore(t *testing.T) {
	ctx := context.Background()

	t.Run("書いたレコードを読み戻せる", func(t *testing.T) {
		fsys := newMemFS()
		s, err := NewRemoteStore(fsys, fsys, "output")
		require.NoError(t, err)

		rec := sampleRecord("2025-10-15")
		require.NoError(t, s.Put(ctx, rec))

		seedPath, ok := fsys.findFile("2025-10-15_final_seed.png")
		require.True(t, ok)
		assert.Equal(t, "image/png", fsys.types[seedPath])
		_, ok = fsys.findFile("2025-10-15_final_description.txt")
		require.True(t, ok)

		got, err := s.Get(ctx, "2025-10-15")
		require.NoError(t, err)
		assert.Equal(t, rec, *got)
	})

	t.Run("無ければ ErrNotFound", func(t *testing.T) {
		fsys := newMemFS()
		s, _ := NewRemoteStore(fsys, fsys, "output")
		_, err := s.Get(ctx, "2025-10-14")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("欠損以外の読み込みエラーはそのまま返す", func(t *testing.T) {
		fsys := newMemFS()
		fsys.openErr = errors.New("permission denied")
		s, _ := NewRemoteStore(fsys, fsys, "output")
		_, err := s.Get(ctx, "2025-10-14")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrNotFound)
	})

	t.Run("GCS の欠損メッセージも ErrNotFound とみなす", func(t *testing.T) {
		fsys := newMemFS()
		fsys.openErr = errors.New("storage: object doesn't exist")
		s, _ := NewRemoteStore(fsys, fsys, "gs://bucket/panoramas")
		_, err := s.Get(ctx, "2025-10-14")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("書き込み失敗はエラー", func(t *testing.T) {
		s, _ := NewRemoteStore(newMemFS(), failingWriter{}, "output")
		assert.Error(t, s.Put(ctx, sampleRecord("2025-10-15")))
	})

	t.Run("依存関係の検証", func(t *testing.T) {
		fsys := newMemFS()
		_, err := NewRemoteStore(nil, fsys, "output")
		assert.Error(t, err)
		_, err = NewRemoteStore(fsys, nil, "output")
		assert.Error(t, err)
		_, err = NewRemoteStore(fsys, fsys, "")
		assert.Error(t, err)
	})
}

func TestArtifactWriter(t *testing.T) {
	ctx := context.Background()
	fsys := newMemFS()
	w, err := NewArtifactWriter(fsys, fsys, "output")
	require.NoError(t, err)

	has, err := w.HasPanorama(ctx, "2025-10-15")
	require.NoError(t, err)
	assert.False(t, has)

	p, err := w.WritePanorama(ctx, "2025-10-15", []byte("png"))
	require.NoError(t, err)
	assert.Contains(t, p, "2025-10-15_full_day_landscape.png")

	expected, err := w.PanoramaPath("2025-10-15")
	require.NoError(t, err)
	assert.Equal(t, expected, p)

	has, err = w.HasPanorama(ctx, "2025-10-15")
	require.NoError(t, err)
	assert.True(t, has)

	pp, err := w.WritePrompts(ctx, "2025-10-15", "1. a\n\n2. b")
	require.NoError(t, err)
	assert.Contains(t, pp, "2025-10-15_prompts.txt")
	assert.Equal(t, []byte("1. a\n\n2. b"), fsys.files[pp])

	fsys.openErr = errors.New("timeout")
	_, err = w.HasPanorama(ctx, "2025-10-15")
	assert.Error(t, err)
}
