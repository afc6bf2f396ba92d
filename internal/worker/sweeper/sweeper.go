// Package sweeper は放置されたオープンセッションの自動クローズジョブを提供する。
// session.endが届かないままクライアントが消えたセッション（タブのクラッシュ、
// 端末のオフライン化など）を日次バッチで検出し、分割クローズする。
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/scholarvault/studylog/internal/repository"
)

// SessionCloser はオープンセッションのクローズに必要なインターフェース。
// session.Serviceの部分集合として定義する。
type SessionCloser interface {
	End(ctx context.Context, userID string, endedAt time.Time) (bool, error)
}

// SweepJob は放置オープンセッションの自動クローズジョブ。
// 定期実行のバッチジョブとして設計されており、冪等に動作する。
// クローズは通常の分割クローズと同じ経路を通るため、日付またぎも正しく処理される。
type SweepJob struct {
	sessions   repository.SessionRepository
	closer     SessionCloser
	logger     *slog.Logger
	StaleAfter time.Duration // この時間を超えて開いたままのセッションが対象（デフォルト: 12h）
}

// NewSweepJob は新しいSweepJobを生成する。
// デフォルトの放置判定時間は12時間。
func NewSweepJob(sessions repository.SessionRepository, closer SessionCloser, logger *slog.Logger) *SweepJob {
	return &SweepJob{
		sessions:   sessions,
		closer:     closer,
		logger:     logger,
		StaleAfter: 12 * time.Hour,
	}
}

// Run はStaleAfterを超えて開いたままのセッションを現在時刻でクローズする。
// 対象がない場合でもエラーにならない。1件の失敗は残りの処理を止めない。
func (j *SweepJob) Run(ctx context.Context) error {
	start := time.Now()
	olderThan := start.Add(-j.StaleAfter)

	stale, err := j.sessions.ListStaleOpen(ctx, olderThan)
	if err != nil {
		j.logger.Error("放置セッションの検索に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("放置セッションの検索に失敗: %w", err)
	}

	var closed, failed int
	for _, s := range stale {
		ok, err := j.closer.End(ctx, s.UserID, start)
		if err != nil {
			failed++
			j.logger.Error("放置セッションのクローズに失敗しました",
				slog.String("user_id", s.UserID),
				slog.String("session_id", s.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		// listとcloseの間にユーザー自身がクローズしたケースはno-op
		if ok {
			closed++
		}
	}

	j.logger.Info("放置セッションスイープが完了しました",
		slog.Int("found", len(stale)),
		slog.Int("closed", closed),
		slog.Int("failed", failed),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	if failed > 0 {
		return fmt.Errorf("放置セッションのクローズに%d件失敗", failed)
	}
	return nil
}
