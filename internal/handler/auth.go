package handler

import (
	"net/http"

	"github.com/laissez/laissez/internal/handler/dto"
)

// VerifyAuth reports the identity resolved by the auth middleware.
//
// GET /auth/verify
func VerifyAuth(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, dto.VerifyResponse{Authenticated: true, UserID: userID})
}
