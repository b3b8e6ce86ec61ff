package cex

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
)

// ErrMemoRequired is returned when a venue needs a sub-account identifier and
// the credential has none. Without it the venue answers with a misleading
// signature error, so callers surface this as its own warning instead.
var ErrMemoRequired = errors.New("venue requires a sub-account memo/UID and the credential has none")

// Signer produces the authentication headers for one signed request.
// Each venue's quirks (header names, derived keys, memo) live behind this
// single contract so they can be unit-tested with fixed vectors.
type Signer interface {
	Sign(ts int64, payload string) (map[string]string, error)
}

func hmacSHA256Hex(key, message string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

// timestampSigner signs timestamp+payload with the secret directly (MEXC).
type timestampSigner struct {
	key    string
	secret string
}

// NewTimestampSigner creates the plain timestamp+HMAC signing strategy.
func NewTimestampSigner(creds Credentials) Signer {
	return &timestampSigner{key: creds.Key, secret: creds.Secret}
}

func (s *timestampSigner) Sign(ts int64, payload string) (map[string]string, error) {
	if s.key == "" || s.secret == "" {
		return nil, errors.New("missing API key or secret")
	}
	tsStr := strconv.FormatInt(ts, 10)
	return map[string]string{
		"X-MEXC-APIKEY":    s.key,
		"X-MEXC-TIMESTAMP": tsStr,
		"X-MEXC-SIGN":      hmacSHA256Hex(s.secret, tsStr+payload),
	}, nil
}

// memoSigner signs timestamp#memo#payload and requires the sub-account memo
// (BitMart). A missing memo fails here with ErrMemoRequired rather than at the
// venue with a bad-signature response.
type memoSigner struct {
	key    string
	secret string
	memo   string
}

// NewMemoSigner creates the memo-qualified signing strategy.
func NewMemoSigner(creds Credentials) Signer {
	return &memoSigner{key: creds.Key, secret: creds.Secret, memo: creds.Memo}
}

func (s *memoSigner) Sign(ts int64, payload string) (map[string]string, error) {
	if s.key == "" || s.secret == "" {
		return nil, errors.New("missing API key or secret")
	}
	if s.memo == "" {
		return nil, ErrMemoRequired
	}
	tsStr := strconv.FormatInt(ts, 10)
	message := fmt.Sprintf("%s#%s#%s", tsStr, s.memo, payload)
	return map[string]string{
		"X-BM-KEY":       s.key,
		"X-BM-TIMESTAMP": tsStr,
		"X-BM-SIGN":      hmacSHA256Hex(s.secret, message),
	}, nil
}

// derivedKeySigner is the two-stage scheme (Coinstore): an intermediate key is
// HMAC(secret, floor(expires/30000)) and the payload is signed with that
// intermediate key, not the secret itself.
type derivedKeySigner struct {
	key    string
	secret string
}

// NewDerivedKeySigner creates the two-stage derived-key signing strategy.
func NewDerivedKeySigner(creds Credentials) Signer {
	return &derivedKeySigner{key: creds.Key, secret: creds.Secret}
}

func (s *derivedKeySigner) Sign(expires int64, payload string) (map[string]string, error) {
	if s.key == "" || s.secret == "" {
		return nil, errors.New("missing API key or secret")
	}
	window := strconv.FormatInt(expires/30000, 10)
	intermediate := hmacSHA256Hex(s.secret, window)
	return map[string]string{
		"X-CS-APIKEY":  s.key,
		"X-CS-EXPIRES": strconv.FormatInt(expires, 10),
		"X-CS-SIGN":    hmacSHA256Hex(intermediate, payload),
	}, nil
}
