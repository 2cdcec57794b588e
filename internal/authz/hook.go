package authz

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"emsp/internal/models"
)

// HTTPHook delegates authorization to an external service over HTTP.
type HTTPHook struct {
	URL     string
	APIKey  string
	Timeout time.Duration
	HTTP    *http.Client
}

func NewHTTPHook(url, apiKey string, timeout time.Duration) *HTTPHook {
	return &HTTPHook{
		URL:     url,
		APIKey:  apiKey,
		Timeout: timeout,
		HTTP:    &http.Client{},
	}
}

type hookRequest struct {
	From     models.PartyScope         `json:"from"`
	To       models.PartyScope         `json:"to"`
	TokenUid string                    `json:"token_uid"`
	Location *models.LocationReference `json:"location,omitempty"`
}

func (h *HTTPHook) TryAuthorize(ctx context.Context, from, to models.PartyScope, tokenId string, loc *models.LocationReference) (models.AuthorizationInfo, error) {
	body, err := json.Marshal(hookRequest{From: from, To: to, TokenUid: tokenId, Location: loc})
	if err != nil {
		return models.AuthorizationInfo{}, err
	}

	if h.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.URL, bytes.NewReader(body))
	if err != nil {
		return models.AuthorizationInfo{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if h.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.APIKey)
	}

	resp, err := h.HTTP.Do(req)
	if err != nil {
		return models.AuthorizationInfo{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return models.AuthorizationInfo{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return models.AuthorizationInfo{}, fmt.Errorf("hook returned status %d", resp.StatusCode)
	}

	var info models.AuthorizationInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return models.AuthorizationInfo{}, fmt.Errorf("decode hook response: %w", err)
	}
	if info.Allowed == "" {
		return models.AuthorizationInfo{}, fmt.Errorf("hook response is missing 'allowed'")
	}
	return info, nil
}
