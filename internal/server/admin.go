package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sitefreelance/backend/internal/admin"
	apierrors "github.com/sitefreelance/backend/internal/errors"
	"github.com/sitefreelance/backend/internal/logging"
	"github.com/sitefreelance/backend/internal/middleware"
	"github.com/sitefreelance/backend/internal/monitoring"
)

// handleAdminLogin exchanges the admin password for a session token
func (s *APIServer) handleAdminLogin(c *gin.Context) {
	var req adminLoginRequest
	if err := bindOptionalBody(c, &req); err != nil {
		respondFailure(c, apierrors.NewInvalidRequestError("Invalid request body"))
		return
	}

	session, err := s.admin.Login(req.Password)
	if err != nil {
		if !errors.Is(err, apierrors.ErrAuth) {
			logFailure(c, err, "admin_login")
			respondFailure(c, apierrors.ErrInternalServerError)
			return
		}
		logging.LogSecurityEvent(logging.EventAdminLoginFail, c.ClientIP(), "wrong admin password")
		monitoring.RecordAdminAuthFailure(c.FullPath())
		respondFailure(c, apierrors.ErrInvalidCredentialsError)
		return
	}

	body := gin.H{"success": true, "token": session.Token}
	if !session.ExpiresAt.IsZero() {
		body["expires_at"] = session.ExpiresAt
	}
	c.JSON(http.StatusOK, body)
}

// authorizeAdmin re-verifies the admin credential on every privileged call.
// The body token wins over an Authorization header.
func (s *APIServer) authorizeAdmin(c *gin.Context, req *adminRequest) bool {
	if err := bindOptionalBody(c, req); err != nil {
		respondAuthError(c, apierrors.NewInvalidRequestError("Invalid request body"))
		return false
	}

	credential := req.Token
	if credential == "" {
		credential = middleware.BearerToken(c)
	}

	err := s.admin.Verify(credential)
	if err == nil {
		return true
	}

	if !errors.Is(err, apierrors.ErrAuth) {
		logFailure(c, err, "admin_verify")
		respondAuthError(c, apierrors.ErrInternalServerError)
		return false
	}

	logging.LogSecurityEvent(logging.EventAdminDenied, c.ClientIP(), c.FullPath())
	monitoring.RecordAdminAuthFailure(c.FullPath())
	if errors.Is(err, admin.ErrSessionExpired) {
		respondAuthError(c, apierrors.ErrTokenExpiredError)
	} else {
		respondAuthError(c, apierrors.ErrInvalidCredentialsError)
	}
	return false
}

// handleAdminListReviews returns every review with its delete token
func (s *APIServer) handleAdminListReviews(c *gin.Context) {
	var req adminRequest
	if !s.authorizeAdmin(c, &req) {
		return
	}
	if s.reviews == nil {
		respondAuthError(c, apierrors.ErrStorageError)
		return
	}

	reviews, err := s.reviews.AdminList(c.Request.Context())
	if err != nil {
		logFailure(c, err, "admin_list_reviews")
		respondAuthError(c, apierrors.FromError(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"reviews": reviews})
}

// handleAdminDeleteReview deletes any review by id
func (s *APIServer) handleAdminDeleteReview(c *gin.Context) {
	var req adminRequest
	if !s.authorizeAdmin(c, &req) {
		return
	}
	if s.reviews == nil {
		respondAuthError(c, apierrors.ErrStorageError)
		return
	}

	deleted, err := s.reviews.AdminDelete(c.Request.Context(), int64(req.ID))
	if err != nil {
		logFailure(c, err, "admin_delete_review")
		respondAuthError(c, apierrors.FromError(err))
		return
	}
	if deleted {
		s.cache.Invalidate(c.Request.Context())
		monitoring.RecordReviewDeleted("admin")
	}

	c.JSON(http.StatusOK, gin.H{"success": deleted})
}
