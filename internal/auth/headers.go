package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Signed header names.
const (
	HeaderAuthChainPrefix = "x-identity-auth-chain-"
	HeaderTimestamp       = "x-identity-timestamp"
	HeaderMetadata        = "x-identity-metadata"
)

// DefaultHeaderMaxAge bounds how old a signed header set may be when it is
// verified.
const DefaultHeaderMaxAge = 5 * time.Minute

var ErrHeadersExpired = errors.New("signed headers expired")

// SignedPayload is the payload a signed header set signs for one request.
func SignedPayload(method, path string, timestamp int64, metadata string) string {
	return strings.ToLower(strings.Join([]string{method, path, strconv.FormatInt(timestamp, 10), metadata}, ":"))
}

// SignHeaders derives the signed header set for a request, entirely offline.
// metadata is sent verbatim and is usually "{}".
func SignHeaders(identity Identity, method, path, metadata string, now time.Time) (map[string]string, error) {
	timestamp := now.UnixMilli()

	chain, err := identity.SignPayload(SignedPayload(method, path, timestamp, metadata))
	if err != nil {
		return nil, err
	}

	headers := make(map[string]string, len(chain)+2)
	for i, link := range chain {
		data, err := json.Marshal(link)
		if err != nil {
			return nil, fmt.Errorf("encode auth link %d: %w", i, err)
		}
		headers[HeaderAuthChainPrefix+strconv.Itoa(i)] = string(data)
	}
	headers[HeaderTimestamp] = strconv.FormatInt(timestamp, 10)
	headers[HeaderMetadata] = metadata
	return headers, nil
}

// VerifyHeaders checks a signed header set produced by SignHeaders for
// method and path and returns the owner address. Header sets older than
// maxAge are rejected.
func VerifyHeaders(headers map[string]string, method, path string, now time.Time, maxAge time.Duration) (string, error) {
	timestamp, err := strconv.ParseInt(headers[HeaderTimestamp], 10, 64)
	if err != nil {
		return "", fmt.Errorf("%w: timestamp: %v", ErrInvalidAuthChain, err)
	}
	if maxAge > 0 && now.Sub(time.UnixMilli(timestamp)) > maxAge {
		return "", ErrHeadersExpired
	}

	var chain AuthChain
	for i := 0; ; i++ {
		raw, ok := headers[HeaderAuthChainPrefix+strconv.Itoa(i)]
		if !ok {
			break
		}
		var link AuthLink
		if err := json.Unmarshal([]byte(raw), &link); err != nil {
			return "", fmt.Errorf("%w: link %d: %v", ErrInvalidAuthChain, i, err)
		}
		chain = append(chain, link)
	}

	metadata := headers[HeaderMetadata]
	return VerifyAuthChain(chain, SignedPayload(method, path, timestamp, metadata), now)
}
