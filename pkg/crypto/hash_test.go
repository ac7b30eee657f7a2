package crypto

import (
	"strings"
	"testing"
)

func TestHashPasswordRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{"plain token", "api-token-123"},
		{"symbols", "T0k3n!#$%^&*()"},
		{"unicode", "токен123"},
		{"near bcrypt limit", strings.Repeat("a", 70)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := HashPassword(tt.token)
			if err != nil {
				t.Fatalf("HashPassword failed: %v", err)
			}
			if !strings.HasPrefix(hash, "$2a$") && !strings.HasPrefix(hash, "$2b$") {
				t.Errorf("hash prefix = %s, want bcrypt", hash[:4])
			}
			if err := VerifyPassword(tt.token, hash); err != nil {
				t.Errorf("round trip failed: %v", err)
			}
		})
	}
}

func TestHashPasswordRejects(t *testing.T) {
	if _, err := HashPassword(""); err != ErrEmptyPassword {
		t.Errorf("empty: err = %v, want %v", err, ErrEmptyPassword)
	}
	if _, err := HashPassword(strings.Repeat("a", 73)); err != ErrPasswordTooLong {
		t.Errorf("over limit: err = %v, want %v", err, ErrPasswordTooLong)
	}
}

func TestHashPasswordSaltsDiffer(t *testing.T) {
	h1, _ := HashPassword("same-token")
	h2, _ := HashPassword("same-token")
	if h1 == h2 {
		t.Error("two hashes of one token must differ by salt")
	}
}

func TestVerifyPassword(t *testing.T) {
	hash, _ := HashPassword("correct-token")

	if err := VerifyPassword("correct-token", hash); err != nil {
		t.Errorf("correct token: err = %v", err)
	}
	if err := VerifyPassword("wrong-token", hash); err != ErrPasswordMismatch {
		t.Errorf("wrong token: err = %v, want %v", err, ErrPasswordMismatch)
	}
	if err := VerifyPassword("", hash); err != ErrEmptyPassword {
		t.Errorf("empty token: err = %v, want %v", err, ErrEmptyPassword)
	}
	if err := VerifyPassword("correct-token", ""); err != ErrInvalidHash {
		t.Errorf("empty hash: err = %v, want %v", err, ErrInvalidHash)
	}
}

func TestVerifyPasswordMalformedHash(t *testing.T) {
	for _, hash := range []string{"notahash", "$2a$12$abc", "sha256:abcdef"} {
		if err := VerifyPassword("token", hash); err != ErrInvalidHash {
			t.Errorf("hash %q: err = %v, want %v", hash, err, ErrInvalidHash)
		}
	}
}

func TestCheckPasswordMatch(t *testing.T) {
	hash, _ := HashPassword("secret-token")

	if !CheckPasswordMatch("secret-token", hash) {
		t.Error("correct token must match")
	}
	if CheckPasswordMatch("other-token", hash) {
		t.Error("wrong token must not match")
	}
	if CheckPasswordMatch("", hash) {
		t.Error("empty token must not match")
	}
}
