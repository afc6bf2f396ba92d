package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/scholarvault/studylog/internal/model"
)

// PostgresSessionRepo はPostgreSQLを使用した学習セッションリポジトリ。
type PostgresSessionRepo struct {
	db *sql.DB
}

// NewPostgresSessionRepo はPostgresSessionRepoを生成する。
func NewPostgresSessionRepo(db *sql.DB) *PostgresSessionRepo {
	return &PostgresSessionRepo{db: db}
}

// FindOpen は指定ユーザーのオープンセッションを取得する。見つからない場合はnilを返す。
func (r *PostgresSessionRepo) FindOpen(ctx context.Context, userID string) (*model.Session, error) {
	session := &model.Session{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, started_at, session_date, created_at, updated_at
		 FROM study_sessions
		 WHERE user_id = $1 AND ended_at IS NULL`,
		userID,
	).Scan(&session.ID, &session.UserID, &session.StartedAt,
		&session.SessionDate, &session.CreatedAt, &session.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("オープンセッションの取得に失敗しました: %w", err)
	}

	return session, nil
}

// Open は新しいオープンセッションを作成する。
// 既存のオープンセッションが残っている場合は、新セッションの開始時刻を
// 終了時刻として先に分割クローズする。全体を1トランザクションで実行する。
func (r *PostgresSessionRepo) Open(ctx context.Context, session *model.Session, split SplitFunc) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	// 既存のオープンセッションを行ロックで取得し、残っていれば自己修復クローズ
	if _, err := closeOpenLocked(ctx, tx, session.UserID, session.StartedAt, split); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO study_sessions (id, user_id, started_at, ended_at, session_date, duration_seconds, created_at, updated_at)
		 VALUES ($1, $2, $3, NULL, $4, 0, $5, $5)`,
		session.ID, session.UserID, session.StartedAt, session.SessionDate, session.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("セッションの作成に失敗しました: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}
	return nil
}

// Close はオープンセッションをsplitの結果に従いクローズする。
// オープンセッションが存在しない場合は(false, nil)を返す（重複endイベントの許容）。
func (r *PostgresSessionRepo) Close(ctx context.Context, userID string, endedAt time.Time, split SplitFunc) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	closed, err := closeOpenLocked(ctx, tx, userID, endedAt, split)
	if err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}
	return closed, nil
}

// closeOpenLocked はトランザクション内でオープンセッションをFOR UPDATEで取得し、
// splitが返すセグメント列に従ってクローズする。先頭セグメントは既存行の更新、
// 2つめ以降は新規行の挿入となる。オープンセッションがなければ(false, nil)。
// 行ロックにより同一ユーザーへの並行クローズは直列化され、二重分割は起きない。
func closeOpenLocked(ctx context.Context, tx *sql.Tx, userID string, endedAt time.Time, split SplitFunc) (bool, error) {
	var id string
	var startedAt time.Time

	err := tx.QueryRowContext(ctx,
		`SELECT id, started_at FROM study_sessions
		 WHERE user_id = $1 AND ended_at IS NULL
		 FOR UPDATE`,
		userID,
	).Scan(&id, &startedAt)

	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("オープンセッションのロック取得に失敗しました: %w", err)
	}

	segments, err := split(startedAt, endedAt)
	if err != nil {
		return false, err
	}
	if len(segments) == 0 {
		return false, fmt.Errorf("セッション分割の結果が空です")
	}

	now := time.Now().UTC()

	// 先頭セグメントは既存行をその場でクローズする
	first := segments[0]
	_, err = tx.ExecContext(ctx,
		`UPDATE study_sessions
		 SET ended_at = $2, session_date = $3, duration_seconds = $4, updated_at = $5
		 WHERE id = $1`,
		id, first.EndedAt, first.SessionDate, first.DurationSeconds, now,
	)
	if err != nil {
		return false, fmt.Errorf("セッションのクローズに失敗しました: %w", err)
	}

	// 日付をまたいだ残りのセグメントを単一日行として挿入する
	for _, seg := range segments[1:] {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO study_sessions (id, user_id, started_at, ended_at, session_date, duration_seconds, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`,
			uuid.New().String(), userID, seg.StartedAt, seg.EndedAt, seg.SessionDate, seg.DurationSeconds, now,
		)
		if err != nil {
			return false, fmt.Errorf("分割セッションの書き込みに失敗しました: %w", err)
		}
	}

	return true, nil
}

// DailyMinutes はクローズ済みセッションをsession_dateごとに合計し、
// from〜to（両端含む）の日次学習分数を昇順で返す。
func (r *PostgresSessionRepo) DailyMinutes(ctx context.Context, userID string, from, to time.Time) ([]model.DailyMinutes, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT session_date, COALESCE(SUM(duration_seconds), 0)
		 FROM study_sessions
		 WHERE user_id = $1 AND ended_at IS NOT NULL
		   AND session_date BETWEEN $2 AND $3
		 GROUP BY session_date
		 ORDER BY session_date ASC`,
		userID, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("日次学習時間の集計に失敗しました: %w", err)
	}
	defer rows.Close()

	var result []model.DailyMinutes
	for rows.Next() {
		var date time.Time
		var seconds int
		if err := rows.Scan(&date, &seconds); err != nil {
			return nil, fmt.Errorf("日次学習時間の読み取りに失敗しました: %w", err)
		}
		result = append(result, model.DailyMinutes{Date: date, Minutes: seconds / 60})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("日次学習時間の走査に失敗しました: %w", err)
	}

	return result, nil
}

// ListStartTimes は指定ユーザーの全セッションのstarted_atを返す。
func (r *PostgresSessionRepo) ListStartTimes(ctx context.Context, userID string) ([]time.Time, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT started_at FROM study_sessions WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("セッション開始時刻の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var result []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("セッション開始時刻の読み取りに失敗しました: %w", err)
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("セッション開始時刻の走査に失敗しました: %w", err)
	}

	return result, nil
}

// ListStaleOpen はolderThanより前に開始され放置されているオープンセッションを返す。
func (r *PostgresSessionRepo) ListStaleOpen(ctx context.Context, olderThan time.Time) ([]*model.Session, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, started_at, session_date, created_at, updated_at
		 FROM study_sessions
		 WHERE ended_at IS NULL AND started_at < $1`,
		olderThan,
	)
	if err != nil {
		return nil, fmt.Errorf("放置セッションの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var result []*model.Session
	for rows.Next() {
		s := &model.Session{}
		if err := rows.Scan(&s.ID, &s.UserID, &s.StartedAt, &s.SessionDate, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("放置セッションの読み取りに失敗しました: %w", err)
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("放置セッションの走査に失敗しました: %w", err)
	}

	return result, nil
}

// compile-time interface check
var _ SessionRepository = (*PostgresSessionRepo)(nil)
