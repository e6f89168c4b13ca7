package webhook

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"testing"
)

// encrypt mirrors what GlobalPay does on its side: AES-CBC with PKCS#7
// padding, random IV prepended, whole payload base64 encoded.
func encrypt(t *testing.T, key, plaintext []byte) string {
	t.Helper()

	block, err := aes.NewCipher(key)
	if err != nil {
		t.Fatalf("aes.NewCipher: %v", err)
	}

	padding := aes.BlockSize - len(plaintext)%aes.BlockSize
	padded := make([]byte, len(plaintext)+padding)
	copy(padded, plaintext)
	for i := len(plaintext); i < len(padded); i++ {
		padded[i] = byte(padding)
	}

	out := make([]byte, aes.BlockSize+len(padded))
	iv := out[:aes.BlockSize]
	if _, err := rand.Read(iv); err != nil {
		t.Fatalf("rand.Read: %v", err)
	}
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[aes.BlockSize:], padded)

	return base64.StdEncoding.EncodeToString(out)
}

func TestDecrypt_RoundTrip(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef")
	d, err := NewDecryptor(key)
	if err != nil {
		t.Fatalf("NewDecryptor: %v", err)
	}

	plaintext := []byte(`{"merchantTxnref":"TINGO-abc","paymentStatus":"successful","isSuccessful":true}`)
	got, err := d.Decrypt(encrypt(t, key, plaintext))
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if string(got) != string(plaintext) {
		t.Errorf("Decrypt() = %q, want %q", got, plaintext)
	}
}

func TestDecrypt_Failures(t *testing.T) {
	key := []byte("0123456789abcdef")
	d, err := NewDecryptor(key)
	if err != nil {
		t.Fatalf("NewDecryptor: %v", err)
	}

	tests := []struct {
		name    string
		payload string
	}{
		{"not base64", "%%%not-base64%%%"},
		{"too short", base64.StdEncoding.EncodeToString([]byte("short"))},
		{"partial block", base64.StdEncoding.EncodeToString(make([]byte, aes.BlockSize+5))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.Decrypt(tt.payload)
			if err == nil {
				t.Fatal("Expected an error")
			}
			var decErr *DecryptionError
			if !errors.As(err, &decErr) {
				t.Errorf("Expected *DecryptionError, got %T: %v", err, err)
			}
		})
	}
}

func TestDecrypt_WrongKey(t *testing.T) {
	key := []byte("0123456789abcdef")
	otherKey := []byte("fedcba9876543210")
	d, err := NewDecryptor(key)
	if err != nil {
		t.Fatalf("NewDecryptor: %v", err)
	}

	plaintext := []byte(`{"ok":true}`)
	got, err := d.Decrypt(encrypt(t, otherKey, plaintext))
	// A wrong key almost always fails padding validation; on the rare IV
	// where padding happens to validate, the plaintext is still garbage.
	if err == nil && string(got) == string(plaintext) {
		t.Error("Decryption with the wrong key recovered the plaintext")
	}
	if err != nil {
		var decErr *DecryptionError
		if !errors.As(err, &decErr) {
			t.Errorf("Expected *DecryptionError, got %T: %v", err, err)
		}
	}
}

func TestNewDecryptor_KeyLength(t *testing.T) {
	for _, n := range []int{16, 24, 32} {
		if _, err := NewDecryptor(make([]byte, n)); err != nil {
			t.Errorf("NewDecryptor with %d byte key: %v", n, err)
		}
	}
	if _, err := NewDecryptor(make([]byte, 20)); err == nil {
		t.Error("Expected error for 20 byte key")
	}
}
