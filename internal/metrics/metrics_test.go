package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveAllocation(t *testing.T) {
	before := testutil.ToFloat64(AllocationsTotal.WithLabelValues(ResultNoAllocation))
	ObserveAllocation(ResultNoAllocation, time.Now())
	after := testutil.ToFloat64(AllocationsTotal.WithLabelValues(ResultNoAllocation))
	assert.Equal(t, before+1, after)
}

func TestObserveHTTP(t *testing.T) {
	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("500"))
	ObserveHTTP(http.StatusInternalServerError)
	assert.Equal(t, before+1, testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("500")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	ObserveAllocation(ResultAllocated, time.Now())

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "slavealloc_allocations_total"))
	assert.True(t, strings.Contains(body, "slavealloc_allocation_duration_seconds"))
}
