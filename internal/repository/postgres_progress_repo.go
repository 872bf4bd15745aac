package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/glowup/internal/model"
)

// PostgresEnrollmentRepo はPostgreSQLを使用したプログラム参加リポジトリ。
type PostgresEnrollmentRepo struct {
	db *sql.DB
}

// NewPostgresEnrollmentRepo はPostgresEnrollmentRepoを生成する。
func NewPostgresEnrollmentRepo(db *sql.DB) *PostgresEnrollmentRepo {
	return &PostgresEnrollmentRepo{db: db}
}

// Ensure は開始日を1度だけ記録し、記録済みの参加情報を返す。
// 同時に初回アクセスが重なっても、ON CONFLICT DO NOTHINGにより最初の書き込みだけが残る。
func (r *PostgresEnrollmentRepo) Ensure(ctx context.Context, userID string, startDate time.Time) (*model.Enrollment, error) {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO enrollments (user_id, start_date, created_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (user_id) DO NOTHING`,
		userID, startDate.Format(time.DateOnly),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert enrollment: %w", err)
	}

	e, err := r.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, fmt.Errorf("enrollment disappeared for user: %s", userID)
	}
	return e, nil
}

// FindByUserID はユーザーの参加情報を取得する。見つからない場合はnilを返す。
// start_dateはdate型で保存しており、文字列として読み出してから日付に変換する。
func (r *PostgresEnrollmentRepo) FindByUserID(ctx context.Context, userID string) (*model.Enrollment, error) {
	e := &model.Enrollment{}
	var start string
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, to_char(start_date, 'YYYY-MM-DD'), created_at FROM enrollments WHERE user_id = $1`,
		userID,
	).Scan(&e.UserID, &start, &e.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find enrollment: %w", err)
	}

	e.StartDate, err = time.Parse(time.DateOnly, start)
	if err != nil {
		return nil, fmt.Errorf("failed to parse start date %q: %w", start, err)
	}
	return e, nil
}

// PostgresProgressRepo はPostgreSQLを使用した完了記録リポジトリ。
type PostgresProgressRepo struct {
	db *sql.DB
}

// NewPostgresProgressRepo はPostgresProgressRepoを生成する。
func NewPostgresProgressRepo(db *sql.DB) *PostgresProgressRepo {
	return &PostgresProgressRepo{db: db}
}

// ListByUserID はユーザーの完了記録を日の昇順で返す。
func (r *PostgresProgressRepo) ListByUserID(ctx context.Context, userID string) ([]model.CompletionRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id, day, completed_at FROM challenge_progress WHERE user_id = $1 ORDER BY day`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list progress: %w", err)
	}
	defer rows.Close()

	var records []model.CompletionRecord
	for rows.Next() {
		var rec model.CompletionRecord
		if err := rows.Scan(&rec.UserID, &rec.Day, &rec.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan progress: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate progress: %w", err)
	}
	return records, nil
}

// Upsert は完了記録を作成し、既に存在する場合はcompleted_atを更新する。
func (r *PostgresProgressRepo) Upsert(ctx context.Context, rec model.CompletionRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO challenge_progress (user_id, day, completed_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, day) DO UPDATE SET completed_at = EXCLUDED.completed_at`,
		rec.UserID, rec.Day, rec.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert progress: %w", err)
	}
	return nil
}

// Delete は完了記録を削除する。存在しない場合もエラーにしない。
func (r *PostgresProgressRepo) Delete(ctx context.Context, userID string, day int) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM challenge_progress WHERE user_id = $1 AND day = $2`,
		userID, day,
	); err != nil {
		return fmt.Errorf("failed to delete progress: %w", err)
	}
	return nil
}

// compile-time interface checks
var (
	_ EnrollmentRepository = (*PostgresEnrollmentRepo)(nil)
	_ ProgressRepository   = (*PostgresProgressRepo)(nil)
)
