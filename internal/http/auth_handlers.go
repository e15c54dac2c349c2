package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"noteshare/internal/apperr"
	"noteshare/internal/auth"
	"noteshare/internal/domain"
)

type registerRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Role     string `json:"role" binding:"omitempty,oneof=user admin"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=6"`
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, bindError(err))
		return
	}

	role, err := domain.ParseRole(req.Role)
	if err != nil {
		h.fail(c, apperr.Validation("invalid input", apperr.FieldError{Field: "role", Message: err.Error()}))
		return
	}

	user, err := h.users.Register(c.Request.Context(), req.Username, req.Email, req.Password, role)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.respondWithToken(c, http.StatusCreated, user)
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, bindError(err))
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.respondWithToken(c, http.StatusOK, user)
}

func (h *Handler) respondWithToken(c *gin.Context, status int, user *domain.User) {
	token, err := h.tokens.Issue(user.ID)
	if err != nil {
		h.fail(c, apperr.Internal("issue token", err))
		return
	}
	c.JSON(status, AuthResponse{Token: token, User: userToResponse(*user)})
}

func (h *Handler) me(c *gin.Context) {
	user := currentUser(c)
	c.JSON(http.StatusOK, gin.H{"user": userToResponse(*user)})
}

// logout revokes the presented token when a revocation list is configured.
// Without one the client simply discards its token.
func (h *Handler) logout(c *gin.Context) {
	if h.revocations != nil {
		if token := bearerToken(c); token != "" {
			if claims, err := h.tokens.Verify(token); err == nil {
				if err := h.revokeClaims(c, claims); err != nil {
					h.fail(c, err)
					return
				}
			}
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out successfully"})
}

func (h *Handler) revokeClaims(c *gin.Context, claims *auth.Claims) error {
	until := time.Now().Add(h.tokens.TTL())
	if claims.ExpiresAt != nil {
		until = claims.ExpiresAt.Time
	}
	if err := h.revocations.Revoke(c.Request.Context(), claims.ID, until); err != nil {
		return apperr.Internal("revoke token", err)
	}
	return nil
}

func (h *Handler) changePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, bindError(err))
		return
	}

	user := currentUser(c)
	if err := h.users.ChangePassword(c.Request.Context(), user.ID, req.CurrentPassword, req.NewPassword); err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "password updated successfully"})
}
