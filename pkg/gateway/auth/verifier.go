package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/serenova-ai/serenova/pkg/core"
)

var errInvalidToken = core.NewAuthenticationError("invalid or expired ID token")

// IdentityVerifier verifies ID tokens against the identity service's
// accounts:lookup endpoint.
type IdentityVerifier struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// IdentityOption configures an IdentityVerifier.
type IdentityOption func(*IdentityVerifier)

// WithIdentityHTTPClient sets a custom HTTP client.
func WithIdentityHTTPClient(client *http.Client) IdentityOption {
	return func(v *IdentityVerifier) {
		if client != nil {
			v.httpClient = client
		}
	}
}

// NewIdentityVerifier creates a verifier for the identity service at
// baseURL.
func NewIdentityVerifier(baseURL, apiKey string, opts ...IdentityOption) *IdentityVerifier {
	v := &IdentityVerifier{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

type lookupRequest struct {
	IDToken string `json:"idToken"`
}

type lookupResponse struct {
	Users []struct {
		LocalID     string `json:"localId"`
		DisplayName string `json:"displayName"`
	} `json:"users"`
}

func (v *IdentityVerifier) Verify(ctx context.Context, idToken string) (*Principal, error) {
	body, err := json.Marshal(lookupRequest{IDToken: idToken})
	if err != nil {
		return nil, fmt.Errorf("marshal lookup request: %w", err)
	}

	endpoint := v.baseURL + "/v1/accounts:lookup"
	if v.apiKey != "" {
		endpoint += "?key=" + v.apiKey
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create lookup request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, core.NewProviderError("identity", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized {
		return nil, errInvalidToken
	}
	if resp.StatusCode != http.StatusOK {
		return nil, core.NewProviderError("identity", fmt.Errorf("status %d", resp.StatusCode))
	}

	var out lookupResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return nil, core.NewProviderError("identity", fmt.Errorf("decode lookup response: %w", err))
	}
	if len(out.Users) == 0 || out.Users[0].LocalID == "" {
		return nil, errInvalidToken
	}
	return &Principal{UserID: out.Users[0].LocalID, DisplayName: out.Users[0].DisplayName}, nil
}

// StaticVerifier maps fixed tokens to user IDs. Dev and test use only.
type StaticVerifier struct {
	tokens map[string]string
}

// NewStaticVerifier creates a verifier over token→userID pairs.
func NewStaticVerifier(tokens map[string]string) *StaticVerifier {
	copied := make(map[string]string, len(tokens))
	for token, userID := range tokens {
		copied[token] = userID
	}
	return &StaticVerifier{tokens: copied}
}

func (v *StaticVerifier) Verify(ctx context.Context, idToken string) (*Principal, error) {
	userID, ok := v.tokens[idToken]
	if !ok {
		return nil, errInvalidToken
	}
	return &Principal{UserID: userID}, nil
}
