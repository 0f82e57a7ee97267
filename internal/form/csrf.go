// internal/form/csrf.go
//
// Stateless CSRF tokens for the admin forms.
//
// Context
// -------
// Every admin page embeds a hidden `csrf_token` input generated at render
// time, and every POST must echo it back.  The token needs no session:
//
//	base64url( nonce | unixMicro | HMAC_SHA256(key, nonce+unixMicro) )
//
//   • nonce      16 random bytes.
//   • unixMicro  issue time, 8 bytes big-endian.
//   • HMAC       signed with the key from `security.csrf_key`.
//
// Verification checks the signature and that the token is younger than
// MaxAge.  Any instance holding the same key accepts the token.
//
// Notes
// -----
// • An empty key makes NewSigner generate a random one.  Tokens then stop
//   verifying after a restart.
// • Oxford commas, two spaces after periods.
package form

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"net/http"
	"time"
)

// FieldName is the hidden input and header carrying the token.
const (
	FieldName  = "csrf_token"
	HeaderName = "X-CSRF-Token"
)

// MaxAge is how long a token stays valid.
const MaxAge = 2 * time.Hour

const (
	nonceLen   = 16
	tsLen      = 8
	tokenBytes = nonceLen + tsLen + sha256.Size
	minKeyLen  = 32
)

// ErrShortKey is returned for keys under 32 bytes.
var ErrShortKey = errors.New("form: csrf key must be at least 32 bytes")

// Signer issues and verifies tokens.  Safe for concurrent use.
type Signer struct {
	key []byte
	now func() time.Time
}

// NewSigner decodes a base64url key (padding optional).  An empty key
// yields a random, process-local one.
func NewSigner(encodedKey string) (*Signer, error) {
	if encodedKey == "" {
		key := make([]byte, minKeyLen)
		if _, err := rand.Read(key); err != nil {
			return nil, err
		}
		return &Signer{key: key, now: time.Now}, nil
	}

	key, err := base64.RawURLEncoding.DecodeString(trimPadding(encodedKey))
	if err != nil {
		return nil, err
	}
	if len(key) < minKeyLen {
		return nil, ErrShortKey
	}
	return &Signer{key: key, now: time.Now}, nil
}

// Token creates a new token.  Call once per form render.
func (s *Signer) Token() (string, error) {
	buf := make([]byte, nonceLen+tsLen, tokenBytes)
	if _, err := rand.Read(buf[:nonceLen]); err != nil {
		return "", err
	}
	binary.BigEndian.PutUint64(buf[nonceLen:], uint64(s.now().UnixMicro()))
	buf = append(buf, s.sign(buf[:nonceLen], buf[nonceLen:])...)
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Verify reports whether tok passes the HMAC and age checks.
func (s *Signer) Verify(tok string) bool {
	raw, err := base64.RawURLEncoding.DecodeString(tok)
	if err != nil || len(raw) != tokenBytes {
		return false
	}

	nonce := raw[:nonceLen]
	ts := raw[nonceLen : nonceLen+tsLen]
	sig := raw[nonceLen+tsLen:]

	issued := time.UnixMicro(int64(binary.BigEndian.Uint64(ts)))
	now := s.now()
	if now.Sub(issued) > MaxAge || issued.Sub(now) > time.Minute {
		return false
	}
	return hmac.Equal(sig, s.sign(nonce, ts))
}

// Protect rejects unsafe requests without a valid token with 403.  The
// token is read from the form field, then the header.
func (s *Signer) Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}
		tok := r.PostFormValue(FieldName)
		if tok == "" {
			tok = r.Header.Get(HeaderName)
		}
		if !s.Verify(tok) {
			http.Error(w, "invalid or expired form token", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Signer) sign(nonce, ts []byte) []byte {
	mac := hmac.New(sha256.New, s.key)
	mac.Write(nonce)
	mac.Write(ts)
	return mac.Sum(nil)
}

func trimPadding(s string) string {
	for len(s) > 0 && s[len(s)-1] == '=' {
		s = s[:len(s)-1]
	}
	return s
}
