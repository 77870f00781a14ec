// Package token issues and verifies signed verification tokens. A token
// attests that a session resolved to a human verdict; downstream services
// verify it without calling back into the engine.
package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"math"
	"time"

	"github.com/goccy/go-json"
)

// DefaultTTL is how long an issued token stays valid.
const DefaultTTL = 5 * time.Minute

// Issuer signs and verifies tokens with an HMAC-SHA256 secret.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer creates an issuer with the default TTL.
func NewIssuer(secret string) *Issuer {
	return &Issuer{
		secret: []byte(secret),
		ttl:    DefaultTTL,
		now:    time.Now,
	}
}

// VerifyResult reports the outcome of token verification.
type VerifyResult struct {
	Valid     bool    `json:"valid"`
	Reason    string  `json:"reason,omitempty"`
	SessionID string  `json:"sessionId,omitempty"`
	Score     float64 `json:"score,omitempty"`
	Timestamp int64   `json:"timestamp,omitempty"`
}

// Issue signs a token for a verified session. The payload is a JSON object;
// Go marshals map keys in sorted order, so signing the marshaled bytes is
// deterministic.
func (i *Issuer) Issue(sessionID string, riskScore float64) string {
	data := map[string]interface{}{
		"session_id": sessionID,
		"timestamp":  i.now().Unix(),
		"score":      math.Round(riskScore*1000) / 1000,
	}

	payload, _ := json.Marshal(data)
	data["sig"] = i.sign(payload)

	tokenData, _ := json.Marshal(data)
	return base64.URLEncoding.EncodeToString(tokenData)
}

// Verify checks encoding, expiry and signature.
func (i *Issuer) Verify(tok string) VerifyResult {
	decoded, err := base64.URLEncoding.DecodeString(tok)
	if err != nil {
		return VerifyResult{Valid: false, Reason: "invalid_encoding"}
	}

	var data map[string]interface{}
	if err := json.Unmarshal(decoded, &data); err != nil {
		return VerifyResult{Valid: false, Reason: "invalid_json"}
	}

	timestamp, ok := data["timestamp"].(float64)
	if !ok || i.now().Unix()-int64(timestamp) > int64(i.ttl.Seconds()) {
		return VerifyResult{Valid: false, Reason: "expired"}
	}

	sig, ok := data["sig"].(string)
	if !ok {
		return VerifyResult{Valid: false, Reason: "missing_signature"}
	}

	delete(data, "sig")
	payload, _ := json.Marshal(data)
	if !hmac.Equal([]byte(sig), []byte(i.sign(payload))) {
		return VerifyResult{Valid: false, Reason: "invalid_signature"}
	}

	sessionID, _ := data["session_id"].(string)
	score, _ := data["score"].(float64)

	return VerifyResult{
		Valid:     true,
		SessionID: sessionID,
		Score:     score,
		Timestamp: int64(timestamp),
	}
}

func (i *Issuer) sign(payload []byte) string {
	h := hmac.New(sha256.New, i.secret)
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))[:16]
}
