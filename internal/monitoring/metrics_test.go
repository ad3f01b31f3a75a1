package monitoring

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestInit_Idempotent(t *testing.T) {
	assert.Same(t, Init(), Init())
	assert.Same(t, Init(), Get())
}

func TestMetricsMiddleware_CountsByRoute(t *testing.T) {
	router := gin.New()
	router.Use(MetricsMiddleware())
	router.GET("/reviews", func(c *gin.Context) { c.Status(http.StatusOK) })

	before := testutil.ToFloat64(Get().HTTPRequestsTotal.WithLabelValues("GET", "/reviews", "200"))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/reviews", nil))

	after := testutil.ToFloat64(Get().HTTPRequestsTotal.WithLabelValues("GET", "/reviews", "200"))
	assert.Equal(t, before+1, after)
}

func TestSetCircuitBreakerState(t *testing.T) {
	SetCircuitBreakerState("resend", "open")
	assert.Equal(t, 1.0, testutil.ToFloat64(Get().CircuitBreakerState.WithLabelValues("resend")))
	SetCircuitBreakerState("resend", "half-open")
	assert.Equal(t, 0.5, testutil.ToFloat64(Get().CircuitBreakerState.WithLabelValues("resend")))
	SetCircuitBreakerState("resend", "closed")
	assert.Equal(t, 0.0, testutil.ToFloat64(Get().CircuitBreakerState.WithLabelValues("resend")))
}

func TestRecorders(t *testing.T) {
	RecordContactSubmission("sent")
	RecordMailSend("log", time.Millisecond, nil)
	RecordMailSend("log", time.Millisecond, errors.New("boom"))
	RecordLedgerEviction()
	SetLedgerEntries(3)
	RecordReviewCreated(5)
	RecordReviewDeleted("admin")
	RecordAdminAuthFailure("/admin/reviews")
	SetDBAvailable(true)

	assert.Equal(t, 3.0, testutil.ToFloat64(Get().LedgerEntries))
	assert.Equal(t, 1.0, testutil.ToFloat64(Get().DBAvailable))
	assert.GreaterOrEqual(t, testutil.ToFloat64(Get().ReviewsCreated.WithLabelValues("5")), 1.0)
}
