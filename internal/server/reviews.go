package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	apierrors "github.com/sitefreelance/backend/internal/errors"
	"github.com/sitefreelance/backend/internal/monitoring"
	"github.com/sitefreelance/backend/internal/review"
)

// reviewsAvailable answers 500 when the datastore never came up
func (s *APIServer) reviewsAvailable(c *gin.Context) bool {
	if s.reviews == nil {
		respondFailure(c, apierrors.ErrStorageError)
		return false
	}
	return true
}

func (s *APIServer) handleCreateReview(c *gin.Context) {
	var req createReviewRequest
	if err := bindBody(c, &req); err != nil {
		respondFailure(c, apierrors.NewInvalidRequestError("Invalid request body"))
		return
	}
	if !s.reviewsAvailable(c) {
		return
	}

	created, err := s.reviews.Create(c.Request.Context(), review.CreateInput{
		Name:    req.Name,
		Rating:  int(req.Rating),
		Message: req.Message,
	})
	if err != nil {
		logFailure(c, err, "create_review")
		respondFailure(c, apierrors.FromError(err))
		return
	}

	s.cache.Invalidate(c.Request.Context())
	monitoring.RecordReviewCreated(int(req.Rating))

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"id":           created.ID,
		"delete_token": created.DeleteToken,
		"date":         created.Date,
	})
}

// handleListReviews serves the public list, newest first, without tokens
func (s *APIServer) handleListReviews(c *gin.Context) {
	if !s.reviewsAvailable(c) {
		return
	}

	ctx := c.Request.Context()
	if cached, ok := s.cache.GetPublic(ctx); ok {
		c.JSON(http.StatusOK, gin.H{"success": true, "reviews": cached})
		return
	}

	fill := s.cache.BeginFill(ctx)
	reviews, err := s.reviews.List(ctx)
	if err != nil {
		logFailure(c, err, "list_reviews")
		respondFailure(c, apierrors.FromError(err))
		return
	}
	s.cache.SetPublic(ctx, fill, reviews)

	c.JSON(http.StatusOK, gin.H{"success": true, "reviews": reviews})
}

func (s *APIServer) handleReviewStats(c *gin.Context) {
	if !s.reviewsAvailable(c) {
		return
	}

	ctx := c.Request.Context()
	stats, ok := s.cache.GetStats(ctx)
	if !ok {
		fill := s.cache.BeginFill(ctx)
		var err error
		stats, err = s.reviews.Stats(ctx)
		if err != nil {
			logFailure(c, err, "review_stats")
			respondFailure(c, apierrors.FromError(err))
			return
		}
		s.cache.SetStats(ctx, fill, stats)
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"count":        stats.Count,
		"average":      stats.Average,
		"distribution": stats.Distribution,
	})
}

// handleDeleteReview lets an author delete their review with its token.
// A wrong, missing or non-numeric id or token is an ordinary {success:false},
// not an error status.
func (s *APIServer) handleDeleteReview(c *gin.Context) {
	var req deleteReviewRequest
	if err := bindBody(c, &req); err != nil {
		respondFailure(c, apierrors.NewInvalidRequestError("Invalid request body"))
		return
	}
	if !s.reviewsAvailable(c) {
		return
	}

	deleted, err := s.reviews.DeleteBySelf(c.Request.Context(), req.ID.Int64(), req.DeleteToken)
	if err != nil {
		logFailure(c, err, "delete_review")
		respondFailure(c, apierrors.FromError(err))
		return
	}
	if deleted {
		s.cache.Invalidate(c.Request.Context())
		monitoring.RecordReviewDeleted("author")
	}

	c.JSON(http.StatusOK, gin.H{"success": deleted})
}
