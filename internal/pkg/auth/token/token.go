/*
Package token implements the credential signer and session token issuer.

A token has three dot-separated segments: the standard-base64 header JSON, the
standard-base64 claims JSON, and an HMAC-SHA256 signature of the first two
segments, also standard-base64. Unlike RFC 7519 the segments keep their base64
padding, which is what the backend expects.
*/
package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"matchup/internal/pkg/errs"
)

// Sign returns the base64 HMAC-SHA256 of message under key. It is a pure function.
func Sign(message, key string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Issue builds a session token for identifier and secret, signed with key.
// Output is deterministic for fixed inputs. Inputs that are not valid UTF-8
// cannot be represented in the JSON payload and fail with ErrTokenIssuance.
func Issue(identifier, secret, key string) (string, error) {
	if !utf8.ValidString(identifier) || !utf8.ValidString(secret) {
		return "", errs.Wrap(errs.ErrTokenIssuance, errors.New("identifier or secret is not valid UTF-8"))
	}

	headerJSON, err := json.Marshal(defaultHeader)
	if err != nil {
		return "", errs.Wrap(errs.ErrTokenIssuance, fmt.Errorf("marshal header: %w", err))
	}

	claimsJSON, err := json.Marshal(Claims{Identifier: identifier, Password: secret})
	if err != nil {
		return "", errs.Wrap(errs.ErrTokenIssuance, fmt.Errorf("marshal claims: %w", err))
	}

	toSign := base64.StdEncoding.EncodeToString(headerJSON) + "." + base64.StdEncoding.EncodeToString(claimsJSON)

	return toSign + "." + Sign(toSign, key), nil
}

// Verify checks the signature of tokenString under key and returns its claims.
func Verify(tokenString, key string) (*Claims, error) {
	parts := strings.Split(tokenString, ".")
	if len(parts) != 3 {
		return nil, errors.New("token must have three segments")
	}

	expected := Sign(parts[0]+"."+parts[1], key)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(parts[2])) != 1 {
		return nil, errors.New("token signature mismatch")
	}

	headerJSON, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, fmt.Errorf("decode header: %w", err)
	}

	var header Header
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return nil, fmt.Errorf("parse header: %w", err)
	}
	if header != defaultHeader {
		return nil, fmt.Errorf("unexpected token header alg=%q typ=%q", header.Alg, header.Typ)
	}

	claimsJSON, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("decode claims: %w", err)
	}

	claims := &Claims{}
	if err := json.Unmarshal(claimsJSON, claims); err != nil {
		return nil, fmt.Errorf("parse claims: %w", err)
	}

	return claims, nil
}
