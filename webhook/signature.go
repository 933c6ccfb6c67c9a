package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"
)

const (
	TimestampHeader = "X-Webhook-Timestamp"
	SignatureHeader = "X-Webhook-Signature"
)

var (
	ErrInvalidTimestamp       = errors.New("invalid timestamp")
	ErrTimestampOutsideWindow = errors.New("timestamp outside allowed window")
	ErrInvalidSignature       = errors.New("invalid signature")
)

// Window bounds how far a signed timestamp may drift from now (replay protection).
const Window = 5 * time.Minute

type VerifyInput struct {
	Secret    string
	Timestamp string
	Signature string
	Body      []byte
	Now       time.Time
}

// Verify checks a hex HMAC-SHA256 signature over "<timestamp>.<body>".
func Verify(in VerifyInput) error {
	tsHeader := strings.TrimSpace(in.Timestamp)

	tsInt, err := strconv.ParseInt(tsHeader, 10, 64)
	if err != nil {
		return ErrInvalidTimestamp
	}
	ts := time.Unix(tsInt, 0).UTC()

	now := in.Now.UTC()
	if ts.Before(now.Add(-Window)) || ts.After(now.Add(Window)) {
		return ErrTimestampOutsideWindow
	}

	provided, err := hex.DecodeString(strings.TrimSpace(in.Signature))
	if err != nil {
		return ErrInvalidSignature
	}
	if !hmac.Equal(provided, mac(in.Secret, tsHeader, in.Body)) {
		return ErrInvalidSignature
	}
	return nil
}

// Sign returns the hex signature Verify expects for body sent at timestamp.
func Sign(secret, timestamp string, body []byte) string {
	return hex.EncodeToString(mac(secret, timestamp, body))
}

func mac(secret, timestamp string, body []byte) []byte {
	msg := make([]byte, 0, len(timestamp)+1+len(body))
	msg = append(msg, timestamp...)
	msg = append(msg, '.')
	msg = append(msg, body...)

	h := hmac.New(sha256.New, []byte(secret))
	_, _ = h.Write(msg)
	return h.Sum(nil)
}
