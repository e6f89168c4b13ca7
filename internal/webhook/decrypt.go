// Package webhook decrypts GlobalPay webhook notifications. Payloads arrive
// AES-CBC encrypted with a shared key, the IV prepended to the ciphertext and
// the whole thing base64 encoded.
package webhook

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"fmt"
)

// DecryptionError marks a payload that could not be decrypted. Handlers map
// it to a 401 rather than the 404 used for unknown transactions; a payload we
// cannot decrypt is a key problem, not a data problem.
type DecryptionError struct {
	Reason string
}

func (e *DecryptionError) Error() string {
	return "webhook decryption failed: " + e.Reason
}

// Decryptor decrypts webhook payloads with a fixed shared key.
type Decryptor struct {
	key []byte
}

// NewDecryptor creates a decryptor. The key length must be valid for AES
// (16, 24, or 32 bytes); config validation enforces this before startup.
func NewDecryptor(key []byte) (*Decryptor, error) {
	switch len(key) {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("webhook encryption key must be 16, 24, or 32 bytes, got %d", len(key))
	}
	return &Decryptor{key: key}, nil
}

// Decrypt base64-decodes the payload, splits off the IV, decrypts with
// AES-CBC, and strips PKCS#7 padding. All failures return *DecryptionError.
func (d *Decryptor) Decrypt(encrypted string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		return nil, &DecryptionError{Reason: "payload is not valid base64"}
	}

	block, err := aes.NewCipher(d.key)
	if err != nil {
		return nil, &DecryptionError{Reason: err.Error()}
	}

	if len(raw) < aes.BlockSize*2 || (len(raw)-aes.BlockSize)%aes.BlockSize != 0 {
		return nil, &DecryptionError{Reason: "ciphertext length is not a whole number of blocks"}
	}

	iv := raw[:aes.BlockSize]
	ciphertext := make([]byte, len(raw)-aes.BlockSize)
	copy(ciphertext, raw[aes.BlockSize:])

	cipher.NewCBCDecrypter(block, iv).CryptBlocks(ciphertext, ciphertext)

	plaintext, err := stripPKCS7(ciphertext)
	if err != nil {
		return nil, &DecryptionError{Reason: err.Error()}
	}
	return plaintext, nil
}

func stripPKCS7(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty plaintext")
	}
	padding := int(data[len(data)-1])
	if padding == 0 || padding > aes.BlockSize || padding > len(data) {
		return nil, fmt.Errorf("invalid padding")
	}
	for _, b := range data[len(data)-padding:] {
		if int(b) != padding {
			return nil, fmt.Errorf("invalid padding")
		}
	}
	return data[:len(data)-padding], nil
}
