package exchange

import (
	"arbscan/pkg/crypto"
)

// credentials.go - расшифровка API ключей
//
// В БД и конфиге ключи лежат как AES-256-GCM шифротекст JSON документа
// {"api_key": "...", "secret": "...", "passphrase": "..."}.

type credentialsPayload struct {
	APIKey     string `json:"api_key"`
	Secret     string `json:"secret"`
	Passphrase string `json:"passphrase,omitempty"`
}

// SealCredentials шифрует ключи для хранения
func SealCredentials(creds Credentials, key []byte) (string, error) {
	payload, err := restJSON.MarshalToString(credentialsPayload{
		APIKey:     creds.APIKey,
		Secret:     creds.Secret,
		Passphrase: creds.Passphrase,
	})
	if err != nil {
		return "", err
	}
	return crypto.Encrypt(payload, key)
}

// OpenCredentials расшифровывает ключи из хранимого вида
func OpenCredentials(sealed string, key []byte) (*Credentials, error) {
	plaintext, err := crypto.Decrypt(sealed, key)
	if err != nil {
		return nil, err
	}

	var payload credentialsPayload
	if err := restJSON.UnmarshalFromString(plaintext, &payload); err != nil {
		return nil, err
	}

	return &Credentials{
		APIKey:     payload.APIKey,
		Secret:     payload.Secret,
		Passphrase: payload.Passphrase,
	}, nil
}
