package crypto

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// hash.go - bcrypt для API токена
//
// В конфигурации хранится не токен, а его хеш: утечка окружения
// не раскрывает сам токен.

var (
	ErrEmptyPassword    = errors.New("password cannot be empty")
	ErrPasswordMismatch = errors.New("password does not match hash")
	ErrInvalidHash      = errors.New("invalid password hash format")
	ErrPasswordTooLong  = errors.New("password exceeds maximum length of 72 bytes")
)

// DefaultCost - стоимость bcrypt; проверка токена не на горячем пути
const DefaultCost = 12

// MaxPasswordLength - лимит bcrypt в байтах
const MaxPasswordLength = 72

// HashPassword хеширует токен; соль генерируется bcrypt'ом
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	if len(password) > MaxPasswordLength {
		return "", ErrPasswordTooLong
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword сравнивает токен с хешем за константное время
func VerifyPassword(password, hash string) error {
	if password == "" {
		return ErrEmptyPassword
	}
	if hash == "" {
		return ErrInvalidHash
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrPasswordMismatch
		}
		return ErrInvalidHash
	}
	return nil
}

// CheckPasswordMatch проверяет соответствие пароля хешу и возвращает bool
func CheckPasswordMatch(password, hash string) bool {
	return VerifyPassword(password, hash) == nil
}
