package execute

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ClobClient submits orders to the CLOB REST API. It implements Submitter.
type ClobClient struct {
	baseURL    string
	privateKey string
	httpc      *http.Client
	now        func() time.Time
}

// NewClobClient creates a CLOB submitter signing with the given key.
func NewClobClient(baseURL, privateKey string) *ClobClient {
	return &ClobClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		privateKey: privateKey,
		httpc:      &http.Client{Timeout: 10 * time.Second},
		now:        time.Now,
	}
}

type clobOrder struct {
	TokenID   string  `json:"token_id"`
	Side      string  `json:"side"`
	Price     float64 `json:"price"`
	SizeUSD   float64 `json:"size_usd"`
	OrderType string  `json:"order_type"`
	Timestamp int64   `json:"timestamp"`
	Signature string  `json:"signature"`
}

type clobResponse struct {
	OrderID string `json:"orderID"`
	Status  string `json:"status"`
	Error   string `json:"error"`
}

// Submit posts one signed order.
func (c *ClobClient) Submit(ctx context.Context, req Request) (Response, error) {
	order := clobOrder{
		TokenID:   req.Asset,
		Side:      req.Side,
		Price:     req.Price,
		SizeUSD:   req.NotionalUSD,
		OrderType: req.OrderType,
		Timestamp: c.now().Unix(),
	}
	order.Signature = c.sign(order)

	body, err := json.Marshal(order)
	if err != nil {
		return Response{}, fmt.Errorf("encode order failed: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/order", bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("create request failed: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("order request failed: %w", err)
	}
	defer resp.Body.Close()

	var decoded clobResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Response{}, fmt.Errorf("decode order response failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		reason := decoded.Error
		if reason == "" {
			reason = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return Response{}, fmt.Errorf("order rejected: %s", reason)
	}

	return Response{OrderID: decoded.OrderID, Status: decoded.Status}, nil
}

// sign authenticates the order payload with the account key.
func (c *ClobClient) sign(order clobOrder) string {
	mac := hmac.New(sha256.New, []byte(c.privateKey))
	fmt.Fprintf(mac, "%s|%s|%.6f|%.2f|%s|%d",
		order.TokenID, order.Side, order.Price, order.SizeUSD, order.OrderType, order.Timestamp)
	return hex.EncodeToString(mac.Sum(nil))
}
