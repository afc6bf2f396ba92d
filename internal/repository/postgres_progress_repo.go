package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/scholarvault/studylog/internal/model"
)

// PostgresProgressRepo はPostgreSQLを使用したノート進捗リポジトリ。
// 加算系の更新はINSERT ON CONFLICTのアトミックな加算で行い、
// read-then-writeによる更新消失を避ける。
type PostgresProgressRepo struct {
	db *sql.DB
}

// NewPostgresProgressRepo はPostgresProgressRepoを生成する。
func NewPostgresProgressRepo(db *sql.DB) *PostgresProgressRepo {
	return &PostgresProgressRepo{db: db}
}

const progressColumns = `id, user_id, note_id, subject_id, is_completed, completed_at,
	total_time_spent_seconds, last_study_date, revisit_count, created_at, updated_at`

// scanProgress は1行分の進捗レコードを読み取る。
func scanProgress(row interface {
	Scan(dest ...any) error
}) (*model.ProgressRecord, error) {
	rec := &model.ProgressRecord{}
	var completedAt sql.NullTime
	var lastStudyDate sql.NullTime

	err := row.Scan(
		&rec.ID, &rec.UserID, &rec.NoteID, &rec.SubjectID,
		&rec.IsCompleted, &completedAt,
		&rec.TotalTimeSpentSeconds, &lastStudyDate, &rec.RevisitCount,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if completedAt.Valid {
		rec.CompletedAt = &completedAt.Time
	}
	if lastStudyDate.Valid {
		rec.LastStudyDate = &lastStudyDate.Time
	}
	return rec, nil
}

// FindByUserAndNote は進捗レコードを取得する。見つからない場合はnilを返す。
func (r *PostgresProgressRepo) FindByUserAndNote(ctx context.Context, userID, noteID string) (*model.ProgressRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+progressColumns+` FROM progress_records
		 WHERE user_id = $1 AND note_id = $2`,
		userID, noteID,
	)

	rec, err := scanProgress(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("進捗レコードの取得に失敗しました: %w", err)
	}
	return rec, nil
}

// IncrementRevisit は完了済みレコードのrevisit_countを1増やす。
// レコードが存在しない、または未完了の場合は何もしない（note.startは常に安全）。
func (r *PostgresProgressRepo) IncrementRevisit(ctx context.Context, userID, noteID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE progress_records
		 SET revisit_count = revisit_count + 1, updated_at = $3
		 WHERE user_id = $1 AND note_id = $2 AND is_completed`,
		userID, noteID, at.UTC(),
	)
	if err != nil {
		return fmt.Errorf("再訪回数の更新に失敗しました: %w", err)
	}
	return nil
}

// AddStudyTime はtotal_time_spent_secondsへsecondsをアトミックに加算する。
// レコードがなければ遅延生成する。同一ノートへの並行加算でも消失しない。
func (r *PostgresProgressRepo) AddStudyTime(ctx context.Context, userID, noteID, subjectID string, seconds int, studyDate, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO progress_records
		   (`+progressColumns+`)
		 VALUES ($1, $2, $3, $4, FALSE, NULL, $5, $6, 0, $7, $7)
		 ON CONFLICT (user_id, note_id) DO UPDATE SET
		   total_time_spent_seconds = progress_records.total_time_spent_seconds + EXCLUDED.total_time_spent_seconds,
		   last_study_date = EXCLUDED.last_study_date,
		   subject_id = EXCLUDED.subject_id,
		   updated_at = EXCLUDED.updated_at`,
		uuid.New().String(), userID, noteID, subjectID, seconds, studyDate, at.UTC(),
	)
	if err != nil {
		return fmt.Errorf("学習時間の加算に失敗しました: %w", err)
	}
	return nil
}

// SetCompletion は完了フラグを冪等に設定する。
// true設定時、既存のcompleted_atがあれば再スタンプしない（COALESCE）。
// false設定時はcompleted_atをクリアするが、累計時間とrevisit_countは保持する。
func (r *PostgresProgressRepo) SetCompletion(ctx context.Context, userID, noteID, subjectID string, completed bool, at time.Time) (*model.ProgressRecord, error) {
	var row *sql.Row
	if completed {
		row = r.db.QueryRowContext(ctx,
			`INSERT INTO progress_records
			   (`+progressColumns+`)
			 VALUES ($1, $2, $3, $4, TRUE, $5, 0, NULL, 0, $6, $6)
			 ON CONFLICT (user_id, note_id) DO UPDATE SET
			   is_completed = TRUE,
			   completed_at = COALESCE(progress_records.completed_at, EXCLUDED.completed_at),
			   subject_id = EXCLUDED.subject_id,
			   updated_at = EXCLUDED.updated_at
			 RETURNING `+progressColumns,
			uuid.New().String(), userID, noteID, subjectID, at.UTC(), at.UTC(),
		)
	} else {
		row = r.db.QueryRowContext(ctx,
			`INSERT INTO progress_records
			   (`+progressColumns+`)
			 VALUES ($1, $2, $3, $4, FALSE, NULL, 0, NULL, 0, $5, $5)
			 ON CONFLICT (user_id, note_id) DO UPDATE SET
			   is_completed = FALSE,
			   completed_at = NULL,
			   subject_id = EXCLUDED.subject_id,
			   updated_at = EXCLUDED.updated_at
			 RETURNING `+progressColumns,
			uuid.New().String(), userID, noteID, subjectID, at.UTC(),
		)
	}

	rec, err := scanProgress(row)
	if err != nil {
		return nil, fmt.Errorf("完了状態の更新に失敗しました: %w", err)
	}
	return rec, nil
}

// SubjectProgress は科目ごとの完了数・記録済み数・完了ノートID一覧を返す。
func (r *PostgresProgressRepo) SubjectProgress(ctx context.Context, userID, subjectID string) (*model.SubjectProgress, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT note_id, is_completed FROM progress_records
		 WHERE user_id = $1 AND subject_id = $2
		 ORDER BY note_id ASC`,
		userID, subjectID,
	)
	if err != nil {
		return nil, fmt.Errorf("科目進捗の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	progress := &model.SubjectProgress{
		SubjectID:        subjectID,
		CompletedNoteIDs: []string{},
	}
	for rows.Next() {
		var noteID string
		var done bool
		if err := rows.Scan(&noteID, &done); err != nil {
			return nil, fmt.Errorf("科目進捗の読み取りに失敗しました: %w", err)
		}
		progress.TrackedCount++
		if done {
			progress.CompletedCount++
			progress.CompletedNoteIDs = append(progress.CompletedNoteIDs, noteID)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("科目進捗の走査に失敗しました: %w", err)
	}

	return progress, nil
}

// SubjectTimeTotals は科目ごとの累計学習秒数を降順で返す。
func (r *PostgresProgressRepo) SubjectTimeTotals(ctx context.Context, userID string) ([]SubjectSeconds, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT subject_id, COALESCE(SUM(total_time_spent_seconds), 0)
		 FROM progress_records
		 WHERE user_id = $1
		 GROUP BY subject_id
		 ORDER BY 2 DESC, subject_id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("科目別学習時間の集計に失敗しました: %w", err)
	}
	defer rows.Close()

	var result []SubjectSeconds
	for rows.Next() {
		var s SubjectSeconds
		if err := rows.Scan(&s.SubjectID, &s.TotalSeconds); err != nil {
			return nil, fmt.Errorf("科目別学習時間の読み取りに失敗しました: %w", err)
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("科目別学習時間の走査に失敗しました: %w", err)
	}

	return result, nil
}

// ListCompletedSince はcompleted_atがsince以降のレコードの完了時刻を昇順で返す。
func (r *PostgresProgressRepo) ListCompletedSince(ctx context.Context, userID string, since time.Time) ([]time.Time, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT completed_at FROM progress_records
		 WHERE user_id = $1 AND completed_at IS NOT NULL AND completed_at >= $2
		 ORDER BY completed_at ASC`,
		userID, since,
	)
	if err != nil {
		return nil, fmt.Errorf("完了履歴の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var result []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("完了履歴の読み取りに失敗しました: %w", err)
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("完了履歴の走査に失敗しました: %w", err)
	}

	return result, nil
}

// compile-time interface check
var _ ProgressRepository = (*PostgresProgressRepo)(nil)
