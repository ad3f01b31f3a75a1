package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sitefreelance/backend/internal/contact"
	apierrors "github.com/sitefreelance/backend/internal/errors"
	"github.com/sitefreelance/backend/internal/monitoring"
)

// handleContact relays a contact-form post. Honeypot and rate-limit trips
// answer exactly like a real send.
func (s *APIServer) handleContact(c *gin.Context) {
	req, err := bindContact(c)
	if err != nil {
		monitoring.RecordContactSubmission("invalid")
		respondFailure(c, apierrors.NewInvalidRequestError("Invalid request body"))
		return
	}

	outcome, err := s.contact.Submit(c.Request.Context(), contact.Submission{
		Name:     req.Name,
		Email:    req.Email,
		Title:    req.Title,
		Message:  req.Message,
		Honeypot: string(req.Website),
		ClientIP: c.ClientIP(),
	})
	if err != nil {
		apiErr := apierrors.FromError(err)
		if apiErr.HTTPStatus == http.StatusBadRequest {
			monitoring.RecordContactSubmission("invalid")
		} else {
			monitoring.RecordContactSubmission("failed")
		}
		logFailure(c, err, "contact")
		respondFailure(c, apiErr)
		return
	}

	monitoring.RecordContactSubmission(string(outcome))
	c.JSON(http.StatusOK, gin.H{"success": true})
}
