// Package codec turns display names into opaque URL tokens and back.
package codec

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

type INameCodec interface {
	Encode(identity domain.Identity) (string, error)
	Decode(token string) (domain.Identity, error)
}

// NameCodec seals names with XChaCha20-Poly1305. Tokens issued by one key are
// rejected by any other, so a restart without NAME_KEY invalidates old links.
type NameCodec struct {
	aead cipher.AEAD
}

// NewNameCodec accepts a 64 hex characters key. An empty key draws a random one.
func NewNameCodec(hexKey string) (*NameCodec, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if hexKey == "" {
		if _, err := rand.Read(key); err != nil {
			return nil, err
		}
	} else {
		decoded, err := hex.DecodeString(hexKey)
		if err != nil {
			return nil, fmt.Errorf("name key: %w", err)
		}
		if len(decoded) != chacha20poly1305.KeySize {
			return nil, fmt.Errorf("name key: expected %d bytes, got %d", chacha20poly1305.KeySize, len(decoded))
		}
		key = decoded
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	return &NameCodec{aead: aead}, nil
}

func (c *NameCodec) Encode(identity domain.Identity) (string, error) {
	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(identity)+c.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(identity), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

func (c *NameCodec) Decode(token string) (domain.Identity, error) {
	sealed, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrInvalidToken, err)
	}
	if len(sealed) < c.aead.NonceSize()+c.aead.Overhead() {
		return "", errors.ErrInvalidToken
	}

	nonce, ciphertext := sealed[:c.aead.NonceSize()], sealed[c.aead.NonceSize():]
	plain, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrInvalidToken, err)
	}
	return domain.Identity(plain), nil
}
