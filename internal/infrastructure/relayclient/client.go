package relayclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/acc-network/relay/internal/core/domain"
	"github.com/acc-network/relay/internal/core/ports"
	"github.com/acc-network/relay/utils"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

const defaultTimeout = 15 * time.Second

// envelope is the response shape of every relay endpoint.
type envelope[T any] struct {
	Code  int `json:"code"`
	Data  *T  `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// APIError carries a non zero envelope code back to the caller.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("relay replied with code %d: %s", e.Code, e.Message)
}

// Is makes an APIError match the domain error with the same code.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*domain.Error)
	return ok && t.Code == e.Code
}

type paymentItem struct {
	PaymentStatus domain.PaymentStatus `json:"paymentStatus"`
}

type approval struct {
	PaymentID string `json:"paymentId,omitempty"`
	TaskID    string `json:"taskId,omitempty"`
	Approval  bool   `json:"approval"`
	Signature string `json:"signature"`
}

type client struct {
	url    string
	client *http.Client
}

// NewClient returns a client of the relay HTTP API rooted at endpoint.
func NewClient(endpoint string) (ports.RelayClient, error) {
	u, err := utils.ValidateEndpoint(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid relay endpoint: %w", err)
	}
	return &client{url: u + "/v1", client: &http.Client{Timeout: defaultTimeout}}, nil
}

func (c *client) GetPaymentStatus(ctx context.Context, paymentId common.Hash) (domain.PaymentStatus, error) {
	query := url.Values{"paymentId": {paymentId.Hex()}}
	item, err := callApi[paymentItem](ctx, c.client, http.MethodGet, c.url+"/payment/item?"+query.Encode(), nil)
	if err != nil {
		return domain.PaymentStatusNull, err
	}
	return item.PaymentStatus, nil
}

func (c *client) ApproveCancelPayment(
	ctx context.Context, paymentId common.Hash, approved bool, signature []byte,
) error {
	_, err := callApi[json.RawMessage](ctx, c.client, http.MethodPost, c.url+"/payment/cancel/approval", approval{
		PaymentID: paymentId.Hex(),
		Approval:  approved,
		Signature: hexutil.Encode(signature),
	})
	return err
}

func (c *client) ApproveShopUpdate(ctx context.Context, taskId string, approved bool, signature []byte) error {
	return c.approveTask(ctx, "/shop/update/approval", taskId, approved, signature)
}

func (c *client) ApproveShopStatus(ctx context.Context, taskId string, approved bool, signature []byte) error {
	return c.approveTask(ctx, "/shop/status/approval", taskId, approved, signature)
}

func (c *client) approveTask(
	ctx context.Context, endpoint, taskId string, approved bool, signature []byte,
) error {
	_, err := callApi[json.RawMessage](ctx, c.client, http.MethodPost, c.url+endpoint, approval{
		TaskID:    taskId,
		Approval:  approved,
		Signature: hexutil.Encode(signature),
	})
	return err
}

func callApi[T any](ctx context.Context, c *http.Client, method, url string, reqBody any) (*T, error) {
	var body io.Reader
	if reqBody != nil {
		b, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("new %s %s: %w", method, url, err)
	}
	req.Header.Set("Accept", "application/json")
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer res.Body.Close()

	var reply envelope[T]
	if err := json.NewDecoder(res.Body).Decode(&reply); err != nil {
		return nil, fmt.Errorf("%s %s: decode response (status %d): %w", method, url, res.StatusCode, err)
	}
	if reply.Code != 0 {
		msg := ""
		if reply.Error != nil {
			msg = reply.Error.Message
		}
		return nil, &APIError{Code: reply.Code, Message: msg}
	}
	if reply.Data == nil {
		return new(T), nil
	}
	return reply.Data, nil
}
