package exchange

import (
	"context"
	"errors"
	"testing"

	"arbscan/pkg/utils"
)

type fakeSealedStore struct {
	sealed map[string]string
}

func (f *fakeSealedStore) Get(_ context.Context, venue string) (string, error) {
	s, ok := f.sealed[venue]
	if !ok {
		return "", errors.New("credentials not found")
	}
	return s, nil
}

func TestCredentialedSourceAttachesKeys(t *testing.T) {
	log := utils.InitLogger(utils.LogConfig{Level: "error", Format: "text"})
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}

	sealed, err := SealCredentials(Credentials{APIKey: "k", Secret: "s"}, key)
	if err != nil {
		t.Fatalf("SealCredentials failed: %v", err)
	}

	source := NewCredentialedSource(NewRegistry(log), &fakeSealedStore{
		sealed: map[string]string{"kraken": sealed},
	}, key, log)

	// Биржа с ключами
	client, err := source.NewClient("kraken")
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	rc, ok := client.(*RESTClient)
	if !ok {
		t.Fatalf("client type = %T", client)
	}
	if rc.creds == nil || rc.creds.APIKey != "k" {
		t.Error("stored credentials must be attached to the client")
	}

	// Биржа без ключей остается публичной
	client, err = source.NewClient("binance")
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if client.(*StreamingClient).creds != nil {
		t.Error("venue without stored credentials must stay public")
	}
}

func TestCredentialedSourceToleratesBadCiphertext(t *testing.T) {
	log := utils.InitLogger(utils.LogConfig{Level: "error", Format: "text"})
	key := make([]byte, 32)

	source := NewCredentialedSource(NewRegistry(log), &fakeSealedStore{
		sealed: map[string]string{"kraken": "not-a-ciphertext"},
	}, key, log)

	client, err := source.NewClient("kraken")
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if client.(*RESTClient).creds != nil {
		t.Error("unreadable credentials must be ignored, client stays public")
	}
}
