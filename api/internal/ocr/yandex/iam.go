package yandex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

const defaultIAMURL = "https://iam.api.cloud.yandex.net/iam/v1/tokens"

// IamClient exchanges an OAuth token for a short-lived IAM token and caches it.
type IamClient struct {
	httpc *http.Client
	url   string
	oauth string

	mu     sync.Mutex
	token  string
	expiry time.Time
}

func NewIamClient(oauth string, httpc *http.Client) *IamClient {
	return &IamClient{httpc: httpc, url: defaultIAMURL, oauth: oauth}
}

// Token returns a cached token, refreshing it a minute before expiry.
func (c *IamClient) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && time.Now().Before(c.expiry.Add(-time.Minute)) {
		return c.token, nil
	}

	b, err := json.Marshal(map[string]string{"yandexPassportOauthToken": c.oauth})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("iam token: status %d", resp.StatusCode)
	}

	var out struct {
		IamToken  string    `json:"iamToken"`
		ExpiresAt time.Time `json:"expiresAt"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("iam token: %w", err)
	}
	c.token = out.IamToken
	c.expiry = out.ExpiresAt
	if c.expiry.IsZero() {
		c.expiry = time.Now().Add(11 * time.Hour)
	}
	return c.token, nil
}

// invalidate drops the cached token after the API rejected it.
func (c *IamClient) invalidate() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}
