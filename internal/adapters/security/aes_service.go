package security

import (
	"SuggestBot/internal/core/ports"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
)

var errShortCiphertext = errors.New("ciphertext is too short")

// aesService seals journal fields with AES-GCM. The nonce is prepended to
// every ciphertext.
type aesService struct {
	gcm cipher.AEAD
	log zerolog.Logger
}

// NewAESService accepts a 16 or 32 byte key.
func NewAESService(key []byte, baseLogger *zerolog.Logger) (ports.SecurityPort, error) {
	if len(key) != 16 && len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 16 or 32 bytes, got %d", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("could not create AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("could not create GCM: %w", err)
	}

	log := baseLogger.With().Str("component", "journal_cipher").Logger()
	log.Debug().Int("key_bits", len(key)*8).Msg("Journal cipher ready")

	return &aesService{gcm: gcm, log: log}, nil
}

// NewAESServiceFromHex decodes ENCRYPTION_KEY as it appears in the config.
func NewAESServiceFromHex(hexKey string, baseLogger *zerolog.Logger) (ports.SecurityPort, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("encryption key is not valid hex: %w", err)
	}
	return NewAESService(key, baseLogger)
}

func (s *aesService) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, s.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		s.log.Error().Err(err).Msg("Failed to generate nonce")
		return nil, fmt.Errorf("could not generate nonce: %w", err)
	}
	return s.gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func (s *aesService) Decrypt(ciphertext []byte) ([]byte, error) {
	n := s.gcm.NonceSize()
	if len(ciphertext) < n {
		return nil, errShortCiphertext
	}

	plaintext, err := s.gcm.Open(nil, ciphertext[:n], ciphertext[n:], nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to open journal field")
		return nil, fmt.Errorf("could not decrypt: %w", err)
	}
	return plaintext, nil
}

// SealString encrypts s and encodes it for a text column.
func SealString(sec ports.SecurityPort, s string) (string, error) {
	ct, err := sec.Encrypt([]byte(s))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(ct), nil
}

// OpenString reverses SealString.
func OpenString(sec ports.SecurityPort, sealed string) (string, error) {
	ct, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("sealed field is not base64: %w", err)
	}
	pt, err := sec.Decrypt(ct)
	if err != nil {
		return "", err
	}
	return string(pt), nil
}
