package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/shouni/panorama-kit/pkg/continuity"
	"github.com/shouni/panorama-kit/pkg/domain"
	"github.com/shouni/panorama-kit/pkg/imgutil"
)

// Defaults は、前日のレコードが使えないときの初期シードと説明文です。
type Defaults struct {
	Seed        image.Image
	Description string
}

// FinalSeedRect は、最後のセグメントから翌日用シードとして切り出す矩形です。
func FinalSeedRect(geo domain.SegmentGeometry) domain.Rect {
	return geo.NextSeedCrop()
}

// ResolveStart は date の実行の起点を決めます。
// 前日のレコードがあれば継続、無いか読めなければ既定値から開始します。
func ResolveStart(ctx context.Context, store continuity.Store, date string, geo domain.SegmentGeometry, defaults Defaults) (*domain.StartPoint, error) {
	prev, err := domain.PreviousDate(date)
	if err != nil {
		return nil, fmt.Errorf("日付 %q を解釈できません: %w", date, err)
	}

	rec, err := store.Get(ctx, prev)
	switch {
	case err == nil:
		start, convErr := continuityStart(rec, geo)
		if convErr == nil {
			slog.InfoContext(ctx, "前日の最終シードから継続します", "date", date, "source", prev)
			return start, nil
		}
		slog.WarnContext(ctx, "前日の継続レコードを利用できないため新規に開始します", "source", prev, "error", convErr)
	case errors.Is(err, continuity.ErrNotFound):
		slog.InfoContext(ctx, "前日の継続レコードが無いため新規に開始します", "date", date, "source", prev)
	default:
		slog.WarnContext(ctx, "継続レコードの取得に失敗したため新規に開始します", "source", prev, "error", err)
	}

	return freshStart(defaults, geo)
}

func continuityStart(rec *domain.ContinuityRecord, geo domain.SegmentGeometry) (*domain.StartPoint, error) {
	img, err := imgutil.Decode(rec.FinalSeed)
	if err != nil {
		return nil, err
	}
	seed, err := imgutil.Fit(img, geo.SeedSize)
	if err != nil {
		return nil, err
	}
	return &domain.StartPoint{
		Seed:        seed,
		Description: rec.FinalDescription,
		Mode:        domain.StartContinuity,
		SourceDate:  rec.Date,
	}, nil
}

func freshStart(defaults Defaults, geo domain.SegmentGeometry) (*domain.StartPoint, error) {
	if defaults.Seed == nil {
		return nil, fmt.Errorf("default seed is required for a fresh start")
	}
	seed, err := imgutil.Fit(defaults.Seed, geo.SeedSize)
	if err != nil {
		return nil, err
	}
	return &domain.StartPoint{
		Seed:        seed,
		Description: defaults.Description,
		Mode:        domain.StartFresh,
	}, nil
}

// NewContinuityRecord は実行結果から翌日に引き継ぐレコードを作ります。
func NewContinuityRecord(date string, result *Result) (domain.ContinuityRecord, error) {
	if result == nil || result.FinalSeed == nil {
		return domain.ContinuityRecord{}, fmt.Errorf("result has no final seed")
	}
	data, err := imgutil.EncodePNG(result.FinalSeed)
	if err != nil {
		return domain.ContinuityRecord{}, err
	}
	return domain.ContinuityRecord{
		Date:             date,
		FinalSeed:        data,
		FinalDescription: result.FinalDescription,
	}, nil
}
