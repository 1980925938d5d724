package callback_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/acc-network/relay/internal/core/ports"
	"github.com/acc-network/relay/internal/infrastructure/callback"
	"github.com/stretchr/testify/require"
)

var event = ports.CallbackEvent{
	Type:    ports.CallbackPayNew,
	Code:    ports.CallbackCodeSuccess,
	Message: "Success",
	Data:    map[string]string{"paymentId": "0x01"},
}

func TestNotify(t *testing.T) {
	t.Run("delivered", func(t *testing.T) {
		var received map[string]any
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPost, r.Method)
			require.Equal(t, "application/json", r.Header.Get("Content-Type"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		}))
		defer server.Close()

		notifier, err := callback.NewNotifier(callback.Config{Endpoint: server.URL, AccessKey: "secret"})
		require.NoError(t, err)

		require.NoError(t, notifier.Notify(context.Background(), event))
		require.Equal(t, "secret", received["accessKey"])
		require.Equal(t, "pay_new", received["type"])
		require.Equal(t, float64(0), received["code"])
		require.Equal(t, "Success", received["message"])
		require.Equal(t, map[string]any{"paymentId": "0x01"}, received["data"])
	})

	t.Run("retried on server error", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusBadGateway)
			}
		}))
		defer server.Close()

		notifier, err := callback.NewNotifier(callback.Config{
			Endpoint: server.URL, RetryInterval: 10 * time.Millisecond,
		})
		require.NoError(t, err)

		require.NoError(t, notifier.Notify(context.Background(), event))
		require.Equal(t, int32(3), calls.Load())
	})

	t.Run("rejected", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			http.Error(w, "bad access key", http.StatusUnauthorized)
		}))
		defer server.Close()

		notifier, err := callback.NewNotifier(callback.Config{Endpoint: server.URL})
		require.NoError(t, err)

		err = notifier.Notify(context.Background(), event)
		var httpErr *callback.HTTPError
		require.ErrorAs(t, err, &httpErr)
		require.Equal(t, http.StatusUnauthorized, httpErr.StatusCode)
		require.Equal(t, "bad access key", httpErr.Message)
		require.Equal(t, int32(1), calls.Load())
	})

	t.Run("timed out", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		notifier, err := callback.NewNotifier(callback.Config{
			Endpoint:      server.URL,
			Timeout:       100 * time.Millisecond,
			RetryInterval: 20 * time.Millisecond,
		})
		require.NoError(t, err)

		require.ErrorContains(t, notifier.Notify(context.Background(), event), "timed out")
	})

	t.Run("not configured", func(t *testing.T) {
		notifier, err := callback.NewNotifier(callback.Config{})
		require.NoError(t, err)
		require.NoError(t, notifier.Notify(context.Background(), event))
	})

	t.Run("invalid endpoint", func(t *testing.T) {
		_, err := callback.NewNotifier(callback.Config{Endpoint: "ftp://shop.example"})
		require.ErrorContains(t, err, "invalid callback endpoint")
	})
}
