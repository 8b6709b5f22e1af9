// Package uis is a client for the UIS telephony Data API (JSON-RPC 2.0).
package uis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Lavr-18/OKK-Tropic/internal/timeutil"
)

// Call is a single call session from get.calls_report.
type Call struct {
	Direction    string  `json:"direction"`
	IsLost       bool    `json:"is_lost"`
	ContactPhone string  `json:"contact_phone_number"`
	StartTime    string  `json:"start_time"`
	Duration     float64 `json:"call_session_duration"`
}

// Start parses the call's start time in the given location.
func (c Call) Start(loc *time.Location) (time.Time, error) {
	t, err := timeutil.ParseCRMTime(c.StartTime)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc), nil
}

// Client talks to the UIS Data API.
type Client struct {
	baseURL     string
	accessToken string
	http        *http.Client
}

// New creates a client for the given Data API endpoint.
func New(baseURL, accessToken string, timeout time.Duration) *Client {
	return &Client{
		baseURL:     baseURL,
		accessToken: accessToken,
		http:        &http.Client{Timeout: timeout},
	}
}

type rpcRequest struct {
	ID      string      `json:"id"`
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type callsReportParams struct {
	AccessToken string `json:"access_token"`
	DateFrom    string `json:"date_from"`
	DateTill    string `json:"date_till"`
}

type callsReportResponse struct {
	Result struct {
		Data []Call `json:"data"`
	} `json:"result"`
	Error *rpcError `json:"error"`
}

// CallsReport returns the call sessions between from and till. Times are
// rendered in their own zone; UIS expects the account's local time.
func (c *Client) CallsReport(ctx context.Context, from, till time.Time) ([]Call, error) {
	req := rpcRequest{
		ID:      "1",
		JSONRPC: "2.0",
		Method:  "get.calls_report",
		Params: callsReportParams{
			AccessToken: c.accessToken,
			DateFrom:    timeutil.FormatFilter(from),
			DateTill:    timeutil.FormatFilter(till),
		},
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("uis calls_report: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("uis calls_report: status %d", resp.StatusCode)
	}

	var out callsReportResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("uis calls_report: decode: %w", err)
	}
	if out.Error != nil {
		return nil, fmt.Errorf("uis calls_report: %s (code %d)", out.Error.Message, out.Error.Code)
	}
	return out.Result.Data, nil
}
