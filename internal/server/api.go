package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/sitefreelance/backend/internal/admin"
	"github.com/sitefreelance/backend/internal/cache"
	"github.com/sitefreelance/backend/internal/config"
	"github.com/sitefreelance/backend/internal/contact"
	apierrors "github.com/sitefreelance/backend/internal/errors"
	"github.com/sitefreelance/backend/internal/logging"
	"github.com/sitefreelance/backend/internal/middleware"
	"github.com/sitefreelance/backend/internal/models"
	"github.com/sitefreelance/backend/internal/monitoring"
	"github.com/sitefreelance/backend/internal/review"
)

// LivenessMessage is the plain-text answer of GET /
const LivenessMessage = "Backend opérationnel 👍"

// ReviewService is the review store as the HTTP layer uses it
type ReviewService interface {
	Create(ctx context.Context, in review.CreateInput) (*review.Created, error)
	List(ctx context.Context) ([]models.Review, error)
	AdminList(ctx context.Context) ([]models.Review, error)
	DeleteBySelf(ctx context.Context, id int64, token string) (bool, error)
	AdminDelete(ctx context.Context, id int64) (bool, error)
	Stats(ctx context.Context) (*models.ReviewStats, error)
}

// ContactRelay forwards contact submissions
type ContactRelay interface {
	Submit(ctx context.Context, s contact.Submission) (contact.Outcome, error)
}

// AdminGate authenticates moderation requests
type AdminGate interface {
	Login(password string) (*admin.Session, error)
	Verify(credential string) error
}

// HealthChecker reports datastore reachability
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Dependencies are the collaborators behind the routes. Reviews and DB are
// nil when the datastore never came up; review routes then answer 500.
type Dependencies struct {
	Reviews ReviewService
	Contact ContactRelay
	Admin   AdminGate
	Cache   *cache.ReviewCache
	DB      HealthChecker
}

// APIServer represents the main API server
type APIServer struct {
	config  *config.Config
	router  *gin.Engine
	reviews ReviewService
	contact ContactRelay
	admin   AdminGate
	cache   *cache.ReviewCache
	db      HealthChecker
}

// NewAPIServer creates a new API server instance
func NewAPIServer(cfg *config.Config, deps Dependencies) *APIServer {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	proxies := cfg.Server.TrustedProxies
	if proxies == nil {
		proxies = config.DefaultTrustedProxies
	}
	if err := router.SetTrustedProxies(proxies); err != nil {
		log.Warn().Err(err).Msg("Invalid TRUSTED_PROXIES, trusting no proxy")
		_ = router.SetTrustedProxies(nil)
	}

	// Add middleware in order
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS(cfg.CORS.AllowedOrigins))
	router.Use(middleware.BodyLimit(middleware.DefaultMaxBodyBytes))
	router.Use(monitoring.MetricsMiddleware())
	router.Use(logging.RequestLogger())

	srv := &APIServer{
		config:  cfg,
		router:  router,
		reviews: deps.Reviews,
		contact: deps.Contact,
		admin:   deps.Admin,
		cache:   deps.Cache,
		db:      deps.DB,
	}

	srv.setupRoutes()
	return srv
}

// Router returns the gin router
func (s *APIServer) Router() http.Handler {
	return s.router
}

// setupRoutes configures all API routes
func (s *APIServer) setupRoutes() {
	s.router.GET("/", s.handleLiveness)
	s.router.GET("/health", s.healthCheck)

	s.router.POST("/contact", s.handleContact)

	reviews := s.router.Group("/reviews")
	{
		reviews.GET("", s.handleListReviews)
		reviews.POST("", s.handleCreateReview)
		reviews.GET("/stats", s.handleReviewStats)
		reviews.POST("/delete", s.handleDeleteReview)
	}

	adminGroup := s.router.Group("/admin")
	{
		adminGroup.POST("/login", s.handleAdminLogin)
		adminGroup.POST("/reviews", s.handleAdminListReviews)
		adminGroup.POST("/review/delete", s.handleAdminDeleteReview)
	}
}

func (s *APIServer) handleLiveness(c *gin.Context) {
	c.String(http.StatusOK, LivenessMessage)
}

// Health check handler
func (s *APIServer) healthCheck(c *gin.Context) {
	status, database := "healthy", "up"

	if s.db == nil {
		status, database = "degraded", "unavailable"
	} else {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.Health(ctx); err != nil {
			log.Warn().Err(err).Msg("Health check: database ping failed")
			status, database = "degraded", "down"
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   status,
		"database": database,
		"service":  s.config.Server.Name,
	})
}

// respondFailure sends the {success:false} body used by public routes
func respondFailure(c *gin.Context, err *apierrors.APIError) {
	c.JSON(err.HTTPStatus, apierrors.Failure(err, middleware.GetRequestIDFromContext(c)))
}

// respondAuthError sends the {error} body used by admin routes
func respondAuthError(c *gin.Context, err *apierrors.APIError) {
	c.JSON(err.HTTPStatus, apierrors.AuthFailure(err, middleware.GetRequestIDFromContext(c)))
}

// logFailure logs server-side faults; caller mistakes are not logged
func logFailure(c *gin.Context, err error, operation string) {
	if apiErr := apierrors.FromError(err); apiErr.HTTPStatus >= http.StatusInternalServerError {
		logging.LogError(err, middleware.GetRequestIDFromContext(c), "server", operation)
	}
}
