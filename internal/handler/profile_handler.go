package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/glowup/internal/user"
)

// UserServiceInterface はプロフィール・退会ハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	GetProfile(ctx context.Context, userID string) (*user.Profile, error)
	UpdateName(ctx context.Context, userID, name string) (*user.Profile, error)
	// Withdraw はユーザーの退会処理を実行する。
	// 完了記録、分析結果、参加情報、セッション、ユーザーを削除する。
	Withdraw(ctx context.Context, userID string) error
}

// ProfileHandler はプロフィールと退会のHTTPハンドラー。
type ProfileHandler struct {
	service UserServiceInterface
}

// NewProfileHandler はProfileHandlerを生成する。
func NewProfileHandler(service UserServiceInterface) *ProfileHandler {
	return &ProfileHandler{service: service}
}

type updateProfileRequest struct {
	Name string `json:"name" validate:"required"`
}

// profileResponse はプロフィールのAPIレスポンス。
type profileResponse struct {
	UserID         string            `json:"userId"`
	Name           string            `json:"name"`
	Email          string            `json:"email"`
	MemberSince    time.Time         `json:"memberSince"`
	LatestAnalysis *analysisResponse `json:"latestAnalysis"`
}

func toProfileResponse(p *user.Profile) profileResponse {
	return profileResponse{
		UserID:         p.UserID,
		Name:           p.Name,
		Email:          p.Email,
		MemberSince:    p.MemberSince,
		LatestAnalysis: toAnalysisResponse(p.LatestAnalysis),
	}
}

// GetProfile はプロフィールと最新の分析結果を返す。
// GET /api/profile
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	p, err := h.service.GetProfile(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileResponse(p))
}

// UpdateProfile は表示名を更新する。
// PATCH /api/profile
func (h *ProfileHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	var req updateProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	p, err := h.service.UpdateName(r.Context(), userID, req.Name)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileResponse(p))
}

// Withdraw はユーザーの退会処理を実行する。
// DELETE /api/users/me
func (h *ProfileHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.Withdraw(r.Context(), userID); err != nil {
		handleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
