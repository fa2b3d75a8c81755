// Package kyc talks to the identity verification provider.
package kyc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"rental-agents-service/internal/service/verification"

	"go.uber.org/zap"
)

type Config struct {
	BaseURL string
	APIKey  string
	AppID   string
	Timeout time.Duration
}

// HTTPVerifier submits documents to the provider's REST API.
type HTTPVerifier struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

var _ verification.IdentityVerifier = (*HTTPVerifier)(nil)

func NewHTTPVerifier(cfg Config, logger *zap.Logger) *HTTPVerifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &HTTPVerifier{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

type verifyRequest struct {
	VendorData  string `json:"vendor_data"`
	IDType      string `json:"id_type"`
	IDNumber    string `json:"id_number"`
	SelfieImage string `json:"selfie_image,omitempty"`
	FullName    string `json:"full_name,omitempty"`
	DateOfBirth string `json:"date_of_birth,omitempty"`
}

type verifyResponse struct {
	Status    string `json:"status"`
	Reference string `json:"reference_id"`
	Reason    string `json:"reason"`
	Verified  *bool  `json:"verified"`
}

func (v *HTTPVerifier) VerifyIdentity(ctx context.Context, doc verification.Document) (*verification.Result, error) {
	body, err := json.Marshal(verifyRequest{
		VendorData:  fmt.Sprintf("%d", doc.UserID),
		IDType:      string(doc.IDType),
		IDNumber:    doc.IDNumber,
		SelfieImage: doc.SelfieImage,
		FullName:    doc.FullName,
		DateOfBirth: doc.DateOfBirth,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode kyc request: %w", err)
	}

	url := strings.TrimRight(v.cfg.BaseURL, "/") + "/api/v1/kyc/verify"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build kyc request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", v.cfg.APIKey)
	if v.cfg.AppID != "" {
		req.Header.Set("AppId", v.cfg.AppID)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("kyc provider unreachable: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read kyc response: %w", err)
	}
	if resp.StatusCode >= 300 {
		v.logger.Warn("kyc provider returned error",
			zap.Int("status", resp.StatusCode),
			zap.Int64("user_id", doc.UserID),
		)
		return nil, fmt.Errorf("kyc provider returned status %d", resp.StatusCode)
	}

	var out verifyResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode kyc response: %w", err)
	}

	return out.result(), nil
}

func (r verifyResponse) result() *verification.Result {
	res := &verification.Result{Reference: r.Reference, Reason: r.Reason}
	switch strings.ToLower(r.Status) {
	case "success", "verified", "approved", "completed":
		res.Approved = true
	case "pending", "processing", "in_review":
		res.Pending = true
	default:
		if r.Verified != nil && *r.Verified {
			res.Approved = true
		}
	}
	if !res.Approved && !res.Pending && res.Reason == "" {
		res.Reason = "identity could not be verified"
	}
	return res
}

// Manual leaves every submission pending for an admin to review.
type Manual struct{}

func (Manual) VerifyIdentity(context.Context, verification.Document) (*verification.Result, error) {
	return &verification.Result{Pending: true}, nil
}
