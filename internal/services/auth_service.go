package services

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"io"
	"time"

	"github.com/damacus/iron-studio/internal/errs"
)

// SessionTicket is the cookie payload identifying a server-side session.
// Credentials never leave the server.
type SessionTicket struct {
	SessionID string    `json:"sid"`
	ProfileID string    `json:"pid"`
	IssuedAt  time.Time `json:"iat"`
}

// OperatorTicket is the cookie payload of an operator signed in with the
// admin token.
type OperatorTicket struct {
	Operator bool      `json:"op"`
	IssuedAt time.Time `json:"iat"`
}

// AuthService seals session and operator tickets with AES-GCM.
type AuthService struct {
	encryptionKey []byte
}

// NewAuthService uses key when it is 32 bytes long. Any other key is
// replaced by a random one, so sessions do not survive a restart.
func NewAuthService(key []byte) *AuthService {
	if len(key) != 32 {
		newKey := make([]byte, 32)
		if _, err := io.ReadFull(rand.Reader, newKey); err != nil {
			panic("failed to generate random key")
		}
		return &AuthService{encryptionKey: newKey}
	}
	return &AuthService{encryptionKey: append([]byte(nil), key...)}
}

func (s *AuthService) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(s.encryptionKey)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Seal encrypts a ticket into a cookie-safe string.
func (s *AuthService) Seal(t SessionTicket) (string, error) {
	return s.seal(t)
}

// Open decodes a cookie value back into a ticket. Anything that was not
// sealed with this key fails with SessionClosed.
func (s *AuthService) Open(sealed string) (*SessionTicket, error) {
	var t SessionTicket
	if err := s.open(sealed, &t); err != nil {
		return nil, err
	}
	if t.SessionID == "" {
		return nil, errs.New(errs.KindSessionClosed, "session cookie has no session")
	}
	return &t, nil
}

// SealOperator issues the cookie of an operator who presented the admin
// token.
func (s *AuthService) SealOperator(issuedAt time.Time) (string, error) {
	return s.seal(OperatorTicket{Operator: true, IssuedAt: issuedAt})
}

// OpenOperator accepts an operator cookie issued within ttl of now.
func (s *AuthService) OpenOperator(sealed string, now time.Time, ttl time.Duration) (*OperatorTicket, error) {
	var t OperatorTicket
	if err := s.open(sealed, &t); err != nil {
		return nil, err
	}
	if !t.Operator {
		return nil, errs.New(errs.KindPermissionDenied, "not an operator cookie")
	}
	if now.Sub(t.IssuedAt) > ttl || t.IssuedAt.After(now.Add(time.Minute)) {
		return nil, errs.New(errs.KindPermissionDenied, "operator cookie expired")
	}
	return &t, nil
}

func (s *AuthService) seal(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	gcm, err := s.gcm()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ciphertext := gcm.Seal(nonce, nonce, data, nil)
	return base64.URLEncoding.EncodeToString(ciphertext), nil
}

func (s *AuthService) open(sealed string, v interface{}) error {
	ciphertext, err := base64.URLEncoding.DecodeString(sealed)
	if err != nil {
		return errs.Wrap(errs.KindSessionClosed, "malformed session cookie", err)
	}
	gcm, err := s.gcm()
	if err != nil {
		return err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return errs.New(errs.KindSessionClosed, "malformed ciphertext")
	}

	nonce, ciphertext := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return errs.Wrap(errs.KindSessionClosed, "invalid session cookie", err)
	}
	if err := json.Unmarshal(plaintext, v); err != nil {
		return errs.Wrap(errs.KindSessionClosed, "invalid session payload", err)
	}
	return nil
}
