package domain

import (
	"image"
	"time"
)

// DateLayout は日付キーの書式です（例: 2025-10-15）。
const DateLayout = "2006-01-02"

// StartMode は、その日の生成が前日から継続したかどうかのラベルです。
type StartMode string

const (
	StartContinuity StartMode = "continuity"
	StartFresh      StartMode = "fresh start"
)

// Segment は1回の生成呼び出しの結果です。作成後は変更しません。
type Segment struct {
	Index      int
	Prompt     string
	Image      image.Image
	Data       []byte
	OutputSize Size
}

// ContinuityRecord は、ある日付の最終シードと説明文です。翌日の生成の起点になります。
type ContinuityRecord struct {
	Date             string
	FinalSeed        []byte // PNG
	FinalDescription string
}

// StartPoint は、1回の実行の初期シードと初期説明文です。
type StartPoint struct {
	Seed        image.Image
	Description string
	Mode        StartMode
	// SourceDate は継続元の日付です。fresh start の場合は空です。
	SourceDate string
}

// FormatDate は日付キーの文字列を返します。
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate は日付キーを解析します。
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// PreviousDate は日付キーの前日を返します。
func PreviousDate(date string) (string, error) {
	t, err := ParseDate(date)
	if err != nil {
		return "", err
	}
	return FormatDate(t.AddDate(0, 0, -1)), nil
}
