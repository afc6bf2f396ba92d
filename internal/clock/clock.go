// Package clock は暦日境界と時間帯バケットのポリシーを提供する。
// ストリーク計算・セッション分割・集計ビューはすべてこのポリシーを通じて
// 「日」と「時間帯」を解釈する。タイムゾーンはアプリ全体で1つに固定される。
package clock

import "time"

// TimeBucket は1日の中の時間帯を表す。
type TimeBucket string

const (
	// BucketMorning は05:00〜12:00の時間帯。
	BucketMorning TimeBucket = "morning"
	// BucketAfternoon は12:00〜17:00の時間帯。
	BucketAfternoon TimeBucket = "afternoon"
	// BucketEvening は17:00〜21:00の時間帯。
	BucketEvening TimeBucket = "evening"
	// BucketNight は21:00〜05:00の時間帯。
	BucketNight TimeBucket = "night"
)

// Policy は暦日境界の解釈に使うタイムゾーンを保持する。
type Policy struct {
	loc *time.Location
}

// NewPolicy は指定タイムゾーンのPolicyを生成する。
// locがnilの場合はUTCを使用する。
func NewPolicy(loc *time.Location) *Policy {
	if loc == nil {
		loc = time.UTC
	}
	return &Policy{loc: loc}
}

// Location はポリシーのタイムゾーンを返す。
func (p *Policy) Location() *time.Location {
	return p.loc
}

// DateOf は指定時刻が属する暦日を、その日の00:00（ポリシータイムゾーン）として返す。
func (p *Policy) DateOf(t time.Time) time.Time {
	local := t.In(p.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, p.loc)
}

// StartOfNextDay は指定時刻の翌日00:00を返す。
// 日付分割の境界計算に使用する。DSTによる23/25時間の日も正しく扱う。
func (p *Policy) StartOfNextDay(t time.Time) time.Time {
	return p.DateOf(t).AddDate(0, 0, 1)
}

// NextDay は暦日dの翌日を返す。dはDateOfが返す正規化済みの値であること。
func (p *Policy) NextDay(d time.Time) time.Time {
	return d.AddDate(0, 0, 1)
}

// SameDay は2つの時刻が同じ暦日に属するかを返す。
func (p *Policy) SameDay(a, b time.Time) bool {
	return p.DateOf(a).Equal(p.DateOf(b))
}

// NormalizeDate はDATE列から読み取った値を、同じ年月日のポリシータイムゾーンの
// 00:00に正規化する。ドライバがどのタイムゾーンでスキャンしたかに依存しない。
func (p *Policy) NormalizeDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, p.loc)
}

// HourOf は指定時刻のローカル時（0〜23）を返す。
func (p *Policy) HourOf(t time.Time) int {
	return t.In(p.loc).Hour()
}

// BucketOf はローカル時から時間帯バケットを判定する。
func BucketOf(hour int) TimeBucket {
	switch {
	case hour >= 5 && hour < 12:
		return BucketMorning
	case hour >= 12 && hour < 17:
		return BucketAfternoon
	case hour >= 17 && hour < 21:
		return BucketEvening
	default:
		return BucketNight
	}
}
