// Package client is the Go SDK for the mining service: a thin HTTP client plus
// a timer presenter that drives a countdown display. The presenter is
// advisory only; balances and session state always come back from the server.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// APIClient calls the mining service with a user bearer token.
type APIClient struct {
	BaseURL  string
	Token    string
	DeviceID string
	Client   *http.Client
}

func NewAPIClient(baseURL, token, deviceID string) *APIClient {
	return &APIClient{
		BaseURL:  baseURL,
		Token:    token,
		DeviceID: deviceID,
		Client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// WalletSnapshot mirrors the wallet document the server returns. SessionStart
// and ServerNow are what Reconcile feeds the presenter after a resume.
type WalletSnapshot struct {
	UserID          string     `json:"user_id"`
	Username        string     `json:"username"`
	Balance         float64    `json:"balance"`
	BalanceMicro    int64      `json:"balance_micro"`
	MiningActive    bool       `json:"mining_active"`
	SessionStart    *time.Time `json:"session_start"`
	Multiplier      float64    `json:"multiplier"`
	AdGateSatisfied bool       `json:"ad_gate_satisfied"`
	ReferralCode    string     `json:"referral_code"`
	RemainingMs     int64      `json:"remaining_ms"`
	AccruedMicro    int64      `json:"accrued_micro"`
}

// ClaimResult is the settlement outcome of POST /mining/claim.
type ClaimResult struct {
	Reward      float64 `json:"reward"`
	RewardMicro int64   `json:"reward_micro"`
}

type apiEnvelope struct {
	Success     bool            `json:"success"`
	Message     string          `json:"message"`
	RemainingMs int64           `json:"remainingMs"`
	Reward      float64         `json:"reward"`
	RewardMicro int64           `json:"reward_micro"`
	Wallet      *WalletSnapshot `json:"wallet"`
}

func (c *APIClient) do(method, path string, body interface{}) (*apiEnvelope, error) {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequest(method, c.BaseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("X-Device-ID", c.DeviceID)

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)

	var out apiEnvelope
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("malformed response (%d): %w", resp.StatusCode, err)
	}
	if !out.Success {
		return &out, fmt.Errorf("%s (%d)", out.Message, resp.StatusCode)
	}
	return &out, nil
}

// GetWallet fetches the caller's wallet, creating it on first call.
func (c *APIClient) GetWallet() (*WalletSnapshot, error) {
	out, err := c.do(http.MethodGet, "/wallet", nil)
	if err != nil {
		return nil, err
	}
	if out.Wallet == nil {
		return nil, fmt.Errorf("response missing wallet")
	}
	return out.Wallet, nil
}

// StartMining opens a mining session.
func (c *APIClient) StartMining() error {
	_, err := c.do(http.MethodPost, "/mining/start", nil)
	return err
}

// Claim settles the finished session.
func (c *APIClient) Claim() (*ClaimResult, error) {
	out, err := c.do(http.MethodPost, "/mining/claim", nil)
	if err != nil {
		return nil, err
	}
	return &ClaimResult{Reward: out.Reward, RewardMicro: out.RewardMicro}, nil
}

// StopMining closes the session without a reward.
func (c *APIClient) StopMining() error {
	_, err := c.do(http.MethodPost, "/mining/stop", nil)
	return err
}
