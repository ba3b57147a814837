package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/luciancaetano/socialnet"
)

type loginIdentifier struct {
	Type string `json:"type"`
	User string `json:"user"`
}

type loginRequest struct {
	AuthChain  AuthChain       `json:"auth_chain"`
	Identifier loginIdentifier `json:"identifier"`
	Timestamp  string          `json:"timestamp"`
	Type       string          `json:"type"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	Error       string `json:"error"`
}

// Login exchanges a signed timestamp for a bearer token at the synapse
// server. Every failure is returned as a *socialnet.AuthenticationError.
//
// client may be nil to use http.DefaultClient. Login has no timeout of its
// own; bound it with ctx or the client.
func Login(ctx context.Context, client *http.Client, endpoint string, identity Identity, now time.Time) (string, error) {
	token, err := login(ctx, client, endpoint, identity, now)
	if err != nil {
		return "", socialnet.NewAuthenticationError(err)
	}
	return token, nil
}

func login(ctx context.Context, client *http.Client, endpoint string, identity Identity, now time.Time) (string, error) {
	if client == nil {
		client = http.DefaultClient
	}

	timestamp := strconv.FormatInt(now.UnixMilli(), 10)
	chain, err := identity.SignPayload(timestamp)
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(loginRequest{
		AuthChain:  chain,
		Identifier: loginIdentifier{Type: socialnet.LoginIdentifierType, User: identity.Address()},
		Timestamp:  timestamp,
		Type:       socialnet.LoginType,
	})
	if err != nil {
		return "", err
	}

	url := strings.TrimSuffix(endpoint, "/") + socialnet.LoginPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var decoded loginResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&decoded)

	if resp.StatusCode != http.StatusOK {
		if decodeErr == nil && decoded.Error != "" {
			return "", errors.New(decoded.Error)
		}
		return "", fmt.Errorf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	if decodeErr != nil {
		return "", fmt.Errorf("decode login response: %w", decodeErr)
	}
	if decoded.AccessToken == "" {
		return "", errors.New("login response has no access token")
	}
	return decoded.AccessToken, nil
}

// Logout revokes token at the synapse server.
func Logout(ctx context.Context, client *http.Client, endpoint, token string) error {
	if client == nil {
		client = http.DefaultClient
	}

	url := strings.TrimSuffix(endpoint, "/") + socialnet.LogoutPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader("{}"))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("synapse logout: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var decoded loginResponse
		if json.NewDecoder(resp.Body).Decode(&decoded) == nil && decoded.Error != "" {
			return fmt.Errorf("synapse logout: %s", decoded.Error)
		}
		return fmt.Errorf("synapse logout: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	return nil
}
