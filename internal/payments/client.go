// README: HTTP client for the external card-payment gateway.
package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"bistro/internal/modules/order"
	"bistro/internal/types"
)

// Client talks to the external gateway's charge/refund endpoints. It
// implements order.Gateway.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

type chargeRequest struct {
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Reference string `json:"reference"`
}

type chargeResponse struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transactionId"`
	Error         string `json:"error"`
}

func (c *Client) Charge(ctx context.Context, amount types.Money, reference string) (order.ChargeResult, error) {
	var resp chargeResponse
	err := c.post(ctx, "/charge", chargeRequest{
		Amount:    amount.Amount,
		Currency:  amount.Currency,
		Reference: reference,
	}, &resp)
	if err != nil {
		return order.ChargeResult{}, err
	}
	return order.ChargeResult{
		Success:       resp.Success,
		TransactionID: resp.TransactionID,
		Error:         resp.Error,
	}, nil
}

type refundRequest struct {
	TransactionID string `json:"transactionId"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
}

func (c *Client) Refund(ctx context.Context, transactionID string, amount types.Money) error {
	var resp chargeResponse
	err := c.post(ctx, "/refund", refundRequest{
		TransactionID: transactionID,
		Amount:        amount.Amount,
		Currency:      amount.Currency,
	}, &resp)
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("refund declined: %s", resp.Error)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("gateway returned %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
