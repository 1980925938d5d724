package relayclient_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/acc-network/relay/internal/core/domain"
	"github.com/acc-network/relay/internal/infrastructure/relayclient"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

var (
	ctx       = context.Background()
	paymentId = common.HexToHash("0x5c")
)

func newServer(t *testing.T, handler http.HandlerFunc) string {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server.URL
}

func TestGetPaymentStatus(t *testing.T) {
	url := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/payment/item", r.URL.Path)
		if r.URL.Query().Get("paymentId") != paymentId.Hex() {
			w.Write([]byte(`{"code":2003,"data":null,"error":{"message":"The payment ID is not exist"}}`))
			return
		}
		w.Write([]byte(`{"code":0,"data":{"paymentId":"0x5c","paymentStatus":51}}`))
	})
	client, err := relayclient.NewClient(url)
	require.NoError(t, err)

	status, err := client.GetPaymentStatus(ctx, paymentId)
	require.NoError(t, err)
	require.Equal(t, domain.PaymentOpenedCancel, status)

	_, err = client.GetPaymentStatus(ctx, common.HexToHash("0x01"))
	require.ErrorIs(t, err, domain.ErrPaymentNotFound)

	var apiErr *relayclient.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, "The payment ID is not exist", apiErr.Message)
}

func TestApprovals(t *testing.T) {
	received := map[string]map[string]any{}
	url := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		body := map[string]any{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		received[r.URL.Path] = body

		if r.URL.Path == "/v1/shop/status/approval" {
			w.Write([]byte(`{"code":2020,"data":null,"error":{"message":"already decided"}}`))
			return
		}
		w.Write([]byte(`{"code":0,"data":{}}`))
	})
	client, err := relayclient.NewClient(url)
	require.NoError(t, err)

	require.NoError(t, client.ApproveCancelPayment(ctx, paymentId, true, []byte{0xaa, 0xbb}))
	require.Equal(t, map[string]any{
		"paymentId": paymentId.Hex(),
		"approval":  true,
		"signature": "0xaabb",
	}, received["/v1/payment/cancel/approval"])

	require.NoError(t, client.ApproveShopUpdate(ctx, "task-1", false, []byte{0x01}))
	require.Equal(t, map[string]any{
		"taskId":    "task-1",
		"approval":  false,
		"signature": "0x01",
	}, received["/v1/shop/update/approval"])

	err = client.ApproveShopStatus(ctx, "task-2", true, []byte{0x01})
	require.ErrorIs(t, err, domain.ErrAlreadyDecided)
}

func TestInvalidResponse(t *testing.T) {
	url := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("<html>bad gateway</html>"))
	})
	client, err := relayclient.NewClient(url)
	require.NoError(t, err)

	_, err = client.GetPaymentStatus(ctx, paymentId)
	require.ErrorContains(t, err, "decode response (status 502)")
}

func TestInvalidEndpoint(t *testing.T) {
	_, err := relayclient.NewClient("")
	require.ErrorContains(t, err, "invalid relay endpoint")
}
