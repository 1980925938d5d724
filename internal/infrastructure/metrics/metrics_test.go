package metrics_test

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/acc-network/relay/internal/core/domain"
	"github.com/acc-network/relay/internal/infrastructure/metrics"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, registry *metrics.Registry) string {
	rec := httptest.NewRecorder()
	registry.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestRelayCounters(t *testing.T) {
	registry := metrics.New()
	registry.PaymentTransition(domain.PaymentOpenedNew)
	registry.PaymentTransition(domain.PaymentOpenedNew)
	registry.PaymentTransition(domain.PaymentClosedNew)
	registry.SweepItem("receipts", nil)
	registry.SweepItem("receipts", errors.New("rpc down"))

	body := scrape(t, registry)
	require.Contains(t, body, `relay_payment_transitions_total{status="OPENED_NEW"} 2`)
	require.Contains(t, body, `relay_payment_transitions_total{status="CLOSED_NEW"} 1`)
	require.Contains(t, body, `relay_sweep_items_total{result="ok",sweep="receipts"} 1`)
	require.Contains(t, body, `relay_sweep_items_total{result="failed",sweep="receipts"} 1`)
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	registry := metrics.New()

	engine := gin.New()
	engine.Use(registry.Middleware())
	engine.GET("/v1/payment/item", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/v1/payment/item?paymentId=0x01", "/v1/payment/item", "/missing"} {
		engine.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	body := scrape(t, registry)
	require.Contains(t, body, `relay_http_requests_total{method="GET",route="/v1/payment/item",status="200"} 2`)
	require.Contains(t, body, `relay_http_requests_total{method="GET",route="unmatched",status="404"} 1`)
}

func TestNilRegistry(t *testing.T) {
	var registry *metrics.Registry
	require.NotPanics(t, func() {
		registry.PaymentTransition(domain.PaymentOpenedNew)
		registry.SweepItem("replies", nil)
	})
}
