package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/go-ports/casefile/internal/metrics"
)

func families(c *qt.C) map[string]bool {
	mfs, err := metrics.Registry.Gather()
	c.Assert(err, qt.IsNil)
	names := make(map[string]bool, len(mfs))
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	return names
}

func TestRecorders(t *testing.T) {
	c := qt.New(t)

	metrics.ObserveRequest(http.MethodGet, "/v1/clients", 200, 3*time.Millisecond)
	metrics.ObserveRequest(http.MethodGet, "", 404, time.Millisecond)
	metrics.RecordRateLimited()
	metrics.RecordSubmission(metrics.SubmitCreated)
	metrics.RecordDerive(2)

	names := families(c)
	for _, want := range []string{
		"casefile_http_requests_total",
		"casefile_http_request_duration_seconds",
		"casefile_http_rate_limited_total",
		"casefile_intake_submissions_total",
		"casefile_intake_derive_passes",
	} {
		c.Assert(names[want], qt.IsTrue, qt.Commentf("missing %s", want))
	}
}

func TestHandler(t *testing.T) {
	c := qt.New(t)

	metrics.RecordSubmission(metrics.SubmitInvalid)

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	c.Assert(rec.Code, qt.Equals, http.StatusOK)
	c.Assert(strings.Contains(rec.Body.String(), `casefile_intake_submissions_total{result="invalid"}`), qt.IsTrue)
}
