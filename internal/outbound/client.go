package outbound

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"emsp/internal/models"
)

// Client is bound to one remote party's access endpoint. It is never mutated
// after construction; a changed configuration needs a cache eviction.
type Client struct {
	party       models.RemotePartyId
	versionsURL string
	baseURL     string
	token       string
	createdAt   time.Time
	http        *http.Client
}

// NewClient only derives fields; it performs no I/O so racing callers may
// build duplicates safely.
func NewClient(party models.RemotePartyId, access models.RemoteAccessInfo, httpClient *http.Client, createdAt time.Time) *Client {
	return &Client{
		party:       party,
		versionsURL: access.VersionsURL,
		baseURL:     moduleBase(access.VersionsURL),
		token:       access.AccessToken,
		createdAt:   createdAt,
		http:        httpClient,
	}
}

func (c *Client) Party() models.RemotePartyId { return c.party }

func (c *Client) VersionsURL() string { return c.versionsURL }

func (c *Client) CreatedAt() time.Time { return c.createdAt }

// CommandURL is the CPO commands module endpoint for commandType.
func (c *Client) CommandURL(commandType models.CommandType) string {
	return c.baseURL + "/commands/" + string(commandType)
}

func (c *Client) SendCommand(ctx context.Context, commandType models.CommandType, body []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.CommandURL(commandType), bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Token "+base64.StdEncoding.EncodeToString([]byte(c.token)))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("send %s to %s: %w", commandType, c.party, err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, b, nil
}

// moduleBase maps ".../ocpi/versions" to ".../ocpi/2.2/cpo".
func moduleBase(versionsURL string) string {
	base := strings.TrimRight(versionsURL, "/")
	base = strings.TrimSuffix(base, "/versions")
	return base + "/2.2/cpo"
}
