// Package crossdomain encodes session and attribution state into a
// signed URL parameter carried across linked origins.
package crossdomain

import (
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/convertrack/convertrack-go/internal/domain/entities/attribution"
)

// Payload is the state propagated across domains.
type Payload struct {
	SessionID  string
	FirstTouch *attribution.Snapshot
	LastTouch  *attribution.Snapshot
	Timestamp  time.Time
}

type payloadClaims struct {
	SessionID  string                `json:"sid"`
	FirstTouch *attribution.Snapshot `json:"ft,omitempty"`
	LastTouch  *attribution.Snapshot `json:"lt,omitempty"`
	jwt.RegisteredClaims
}

// Codec signs and verifies cross-domain payloads. Signature or age
// failures hard-reject; there is no permissive fallback.
type Codec struct {
	key           []byte
	ttl           time.Duration
	param         string
	linkedDomains map[string]bool
}

// NewCodec creates a codec for the given signing key, payload TTL,
// query parameter name, and linked-domain allow-list.
func NewCodec(key string, ttl time.Duration, param string, linkedDomains []string) *Codec {
	domains := make(map[string]bool, len(linkedDomains))
	for _, d := range linkedDomains {
		domains[normalizeHost(d)] = true
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	if param == "" {
		param = "_ctxd"
	}
	return &Codec{key: []byte(key), ttl: ttl, param: param, linkedDomains: domains}
}

// Param returns the query parameter name the codec uses.
func (c *Codec) Param() string { return c.param }

// Encode serializes a payload to a signed compact token.
func (c *Codec) Encode(p Payload) (string, error) {
	issued := p.Timestamp
	if issued.IsZero() {
		issued = time.Now().UTC()
	}

	claims := payloadClaims{
		SessionID:  p.SessionID,
		FirstTouch: p.FirstTouch,
		LastTouch:  p.LastTouch,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(issued),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.key)
}

// Decode verifies a token and returns its payload. Invalid signatures,
// malformed structure, missing session, or age beyond the TTL all
// decode to nil.
func (c *Codec) Decode(tokenString string) (*Payload, bool) {
	claims := &payloadClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return c.key, nil
	})
	if err != nil || !token.Valid {
		return nil, false
	}

	if claims.SessionID == "" || claims.IssuedAt == nil {
		return nil, false
	}
	if time.Since(claims.IssuedAt.Time) > c.ttl {
		return nil, false
	}

	return &Payload{
		SessionID:  claims.SessionID,
		FirstTouch: claims.FirstTouch,
		LastTouch:  claims.LastTouch,
		Timestamp:  claims.IssuedAt.Time,
	}, true
}

// IsLinkedDomain reports whether a hostname is on the allow-list.
// Matching strips a leading www. and any port.
func (c *Codec) IsLinkedDomain(host string) bool {
	return c.linkedDomains[normalizeHost(host)]
}

// DecorateURL appends the signed payload to an outbound link when its
// host is on the allow-list. Non-matching or unparseable URLs are
// returned unchanged.
func (c *Codec) DecorateURL(rawURL string, p Payload) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return rawURL
	}
	if !c.IsLinkedDomain(parsed.Hostname()) {
		return rawURL
	}

	token, err := c.Encode(p)
	if err != nil {
		return rawURL
	}

	query := parsed.Query()
	query.Set(c.param, token)
	parsed.RawQuery = query.Encode()
	return parsed.String()
}

// ExtractToken pulls the cross-domain parameter out of a URL, returning
// the token and the URL with the parameter stripped.
func (c *Codec) ExtractToken(rawURL string) (string, string) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", rawURL
	}

	query := parsed.Query()
	token := query.Get(c.param)
	if token == "" {
		return "", rawURL
	}

	query.Del(c.param)
	parsed.RawQuery = query.Encode()
	return token, parsed.String()
}

func normalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if idx := strings.IndexByte(host, ':'); idx >= 0 {
		host = host[:idx]
	}
	return strings.TrimPrefix(host, "www.")
}
