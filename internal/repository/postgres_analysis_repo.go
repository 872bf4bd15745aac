package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/glowup/internal/model"
)

// PostgresAnalysisRepo はPostgreSQLを使用した肌分析結果リポジトリ。
// concernsはtext[]、recommendationsはjsonbとして保存する。
type PostgresAnalysisRepo struct {
	db *sql.DB
}

// NewPostgresAnalysisRepo はPostgresAnalysisRepoを生成する。
func NewPostgresAnalysisRepo(db *sql.DB) *PostgresAnalysisRepo {
	return &PostgresAnalysisRepo{db: db}
}

// Create は分析結果を追加する。
func (r *PostgresAnalysisRepo) Create(ctx context.Context, a *model.SkinAnalysis) error {
	recs, err := json.Marshal(a.Recommendations)
	if err != nil {
		return fmt.Errorf("failed to encode recommendations: %w", err)
	}

	var imageRef sql.NullString
	if a.ImageRef != "" {
		imageRef = sql.NullString{String: a.ImageRef, Valid: true}
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO skin_analyses (id, user_id, skin_type, score, concerns, image_ref, recommendations, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.UserID, a.SkinType, a.Score, pq.Array(a.Concerns), imageRef, recs, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert skin analysis: %w", err)
	}
	return nil
}

// FindLatestByUserID はユーザーの最新の分析結果を取得する。見つからない場合はnilを返す。
func (r *PostgresAnalysisRepo) FindLatestByUserID(ctx context.Context, userID string) (*model.SkinAnalysis, error) {
	a := &model.SkinAnalysis{}
	var (
		concerns pq.StringArray
		imageRef sql.NullString
		recs     []byte
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, skin_type, score, concerns, image_ref, recommendations, created_at
		 FROM skin_analyses
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1`,
		userID,
	).Scan(&a.ID, &a.UserID, &a.SkinType, &a.Score, &concerns, &imageRef, &recs, &a.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find latest skin analysis: %w", err)
	}

	a.Concerns = []string(concerns)
	a.ImageRef = imageRef.String
	if len(recs) > 0 {
		if err := json.Unmarshal(recs, &a.Recommendations); err != nil {
			return nil, fmt.Errorf("failed to decode recommendations: %w", err)
		}
	}
	return a, nil
}

// ListImageRefsByUserID はユーザーの分析結果に紐づく画像参照を返す。
func (r *PostgresAnalysisRepo) ListImageRefsByUserID(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT image_ref FROM skin_analyses WHERE user_id = $1 AND image_ref IS NOT NULL`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list image refs: %w", err)
	}
	defer rows.Close()

	var refs []string
	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			return nil, fmt.Errorf("failed to scan image ref: %w", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate image refs: %w", err)
	}
	return refs, nil
}

// compile-time interface check
var _ AnalysisRepository = (*PostgresAnalysisRepo)(nil)
