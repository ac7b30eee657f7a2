package crypto

import (
	"encoding/base64"
	"encoding/hex"
	"strings"
	"testing"
)

// TestEncryptDecrypt проверяет базовый цикл шифрования/расшифровки
func TestEncryptDecrypt(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}

	tests := []struct {
		name      string
		plaintext string
	}{
		{"empty string", ""},
		{"api key example", "abc123def456ghi789"},
		{"unicode text", "Привет мир 你好世界"},
		{"special chars", "!@#$%^&*()_+-=[]{}|;':\",./<>?"},
		{"long text", strings.Repeat("a", 1000)},
		{"json credentials", `{"api_key": "secret", "api_secret": "very_secret"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encrypted, err := Encrypt(tt.plaintext, key)
			if err != nil {
				t.Fatalf("Encrypt failed: %v", err)
			}

			// Результат должен быть валидным base64
			if _, err := base64.StdEncoding.DecodeString(encrypted); err != nil {
				t.Errorf("Encrypted result is not valid base64: %v", err)
			}

			decrypted, err := Decrypt(encrypted, key)
			if err != nil {
				t.Fatalf("Decrypt failed: %v", err)
			}

			if decrypted != tt.plaintext {
				t.Errorf("Decrypted text mismatch: got %q, want %q", decrypted, tt.plaintext)
			}
		})
	}
}

// TestEncryptDifferentResults проверяет что каждое шифрование даёт разный результат (разный nonce)
func TestEncryptDifferentResults(t *testing.T) {
	key, _ := GenerateKey()
	plaintext := "same text"

	encrypted1, _ := Encrypt(plaintext, key)
	encrypted2, _ := Encrypt(plaintext, key)

	if encrypted1 == encrypted2 {
		t.Error("Two encryptions of the same text should produce different ciphertexts")
	}
}

// TestEncryptInvalidKeyLength проверяет ошибку при неправильной длине ключа
func TestEncryptInvalidKeyLength(t *testing.T) {
	for _, keyLen := range []int{0, 16, 31, 33, 64} {
		key := make([]byte, keyLen)
		if _, err := Encrypt("test", key); err != ErrInvalidKeyLength {
			t.Errorf("Encrypt with %d byte key: got error %v, want %v", keyLen, err, ErrInvalidKeyLength)
		}
		if _, err := Decrypt("YWJj", key); err != ErrInvalidKeyLength {
			t.Errorf("Decrypt with %d byte key: got error %v, want %v", keyLen, err, ErrInvalidKeyLength)
		}
	}
}

// TestDecryptWrongKey проверяет что расшифровка с неправильным ключом возвращает ошибку
func TestDecryptWrongKey(t *testing.T) {
	key1, _ := GenerateKey()
	key2, _ := GenerateKey()

	encrypted, _ := Encrypt("secret data", key1)

	if _, err := Decrypt(encrypted, key2); err != ErrDecryptionFailed {
		t.Errorf("Decrypt with wrong key: got error %v, want %v", err, ErrDecryptionFailed)
	}
}

// TestDecryptInvalidInput проверяет обработку невалидного входа
func TestDecryptInvalidInput(t *testing.T) {
	key, _ := GenerateKey()

	tests := []struct {
		name       string
		ciphertext string
		wantErr    error
	}{
		{"not base64", "not-valid-base64!!!", ErrInvalidCiphertext},
		{"truncated", "YWJj", ErrCiphertextTooShort}, // слишком короткий после декодирования
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decrypt(tt.ciphertext, key); err != tt.wantErr {
				t.Errorf("Decrypt(%q): got error %v, want %v", tt.ciphertext, err, tt.wantErr)
			}
		})
	}
}

// TestDecryptTamperedCiphertext проверяет обнаружение изменённого шифротекста
func TestDecryptTamperedCiphertext(t *testing.T) {
	key, _ := GenerateKey()
	encrypted, _ := Encrypt("original data", key)

	decoded, _ := base64.StdEncoding.DecodeString(encrypted)
	if len(decoded) > 20 {
		decoded[20] ^= 0xFF
	}
	tampered := base64.StdEncoding.EncodeToString(decoded)

	if _, err := Decrypt(tampered, key); err != ErrDecryptionFailed {
		t.Errorf("Decrypt tampered ciphertext: got error %v, want %v", err, ErrDecryptionFailed)
	}
}

// TestKeyFromHex проверяет декодирование мастер-ключа из .env формата
func TestKeyFromHex(t *testing.T) {
	raw, _ := GenerateKey()
	encoded := hex.EncodeToString(raw)

	key, err := KeyFromHex(encoded)
	if err != nil {
		t.Fatalf("KeyFromHex failed: %v", err)
	}
	if string(key) != string(raw) {
		t.Error("KeyFromHex round trip mismatch")
	}

	tests := []struct {
		name  string
		input string
	}{
		{"not hex", "zz"},
		{"too short", "abcd"},
		{"too long", strings.Repeat("ab", 33)},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := KeyFromHex(tt.input); err != ErrInvalidKeyLength {
				t.Errorf("KeyFromHex(%q): got error %v, want %v", tt.input, err, ErrInvalidKeyLength)
			}
		})
	}
}

// TestGenerateKey проверяет генерацию ключей
func TestGenerateKey(t *testing.T) {
	key1, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	if len(key1) != 32 {
		t.Errorf("GenerateKey: got %d bytes, want 32", len(key1))
	}

	key2, _ := GenerateKey()
	if string(key1) == string(key2) {
		t.Error("Two generated keys should be different")
	}
}

// TestValidateKey проверяет валидацию длины ключа
func TestValidateKey(t *testing.T) {
	if err := ValidateKey(make([]byte, 32)); err != nil {
		t.Errorf("ValidateKey(32 bytes): got error %v, want nil", err)
	}
	for _, keyLen := range []int{0, 16, 64} {
		if err := ValidateKey(make([]byte, keyLen)); err != ErrInvalidKeyLength {
			t.Errorf("ValidateKey(%d bytes): got error %v, want %v", keyLen, err, ErrInvalidKeyLength)
		}
	}
}

// BenchmarkEncryptDecryptCycle измеряет полный цикл
func BenchmarkEncryptDecryptCycle(b *testing.B) {
	key, _ := GenerateKey()
	plaintext := "This is a typical API key: abc123def456"

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		encrypted, _ := Encrypt(plaintext, key)
		_, _ = Decrypt(encrypted, key)
	}
}
