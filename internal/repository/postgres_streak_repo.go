package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/scholarvault/studylog/internal/model"
)

// PostgresStreakRepo はPostgreSQLを使用したフリーズ状態リポジトリ。
type PostgresStreakRepo struct {
	db *sql.DB
}

// NewPostgresStreakRepo はPostgresStreakRepoを生成する。
func NewPostgresStreakRepo(db *sql.DB) *PostgresStreakRepo {
	return &PostgresStreakRepo{db: db}
}

// Find は指定ユーザーのフリーズ状態を取得する。見つからない場合はnilを返す。
func (r *PostgresStreakRepo) Find(ctx context.Context, userID string) (*model.StreakState, error) {
	state := &model.StreakState{}
	var activeUntil sql.NullTime

	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, freeze_tokens, freeze_active_until, created_at, updated_at
		 FROM streak_states WHERE user_id = $1`,
		userID,
	).Scan(&state.UserID, &state.FreezeTokens, &activeUntil, &state.CreatedAt, &state.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("フリーズ状態の取得に失敗しました: %w", err)
	}

	if activeUntil.Valid {
		state.FreezeActiveUntil = &activeUntil.Time
	}
	return state, nil
}

// TryActivateFreeze はトークンが残っており、かつ有効なフリーズがない場合に限り、
// トークンを1消費してフリーズを起動する。判定と更新を1つのUPDATE文で行うため、
// 並行呼び出しでもトークンの二重消費や二重起動は起きない。
// 条件を満たさず更新されなかった場合は(false, nil)を返す。
func (r *PostgresStreakRepo) TryActivateFreeze(ctx context.Context, userID string, now, until time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE streak_states
		 SET freeze_tokens = freeze_tokens - 1,
		     freeze_active_until = $3,
		     updated_at = $2
		 WHERE user_id = $1
		   AND freeze_tokens > 0
		   AND (freeze_active_until IS NULL OR freeze_active_until <= $2)`,
		userID, now.UTC(), until.UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("フリーズの起動に失敗しました: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("フリーズ起動結果の確認に失敗しました: %w", err)
	}
	return affected > 0, nil
}

// GrantTokens はフリーズトークンをn枚付与する。行がなければ遅延生成する。
func (r *PostgresStreakRepo) GrantTokens(ctx context.Context, userID string, n int) (*model.StreakState, error) {
	now := time.Now().UTC()
	state := &model.StreakState{}
	var activeUntil sql.NullTime

	err := r.db.QueryRowContext(ctx,
		`INSERT INTO streak_states (user_id, freeze_tokens, freeze_active_until, created_at, updated_at)
		 VALUES ($1, $2, NULL, $3, $3)
		 ON CONFLICT (user_id) DO UPDATE SET
		   freeze_tokens = streak_states.freeze_tokens + EXCLUDED.freeze_tokens,
		   updated_at = EXCLUDED.updated_at
		 RETURNING user_id, freeze_tokens, freeze_active_until, created_at, updated_at`,
		userID, n, now,
	).Scan(&state.UserID, &state.FreezeTokens, &activeUntil, &state.CreatedAt, &state.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("トークンの付与に失敗しました: %w", err)
	}

	if activeUntil.Valid {
		state.FreezeActiveUntil = &activeUntil.Time
	}
	return state, nil
}

// compile-time interface check
var _ StreakRepository = (*PostgresStreakRepo)(nil)
