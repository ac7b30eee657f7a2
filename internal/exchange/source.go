package exchange

import (
	"context"

	"arbscan/pkg/utils"
)

// SealedStore выдаёт шифротекст сохраненных API ключей биржи
// Реализуется repository.CredentialsRepository
type SealedStore interface {
	Get(ctx context.Context, venue string) (string, error)
}

// CredentialedSource оборачивает Registry и подставляет сохраненные
// ключи при создании клиента
//
// Ключи опциональны: публичные endpoints работают без них, поэтому
// отсутствие или нечитаемость ключей - не ошибка создания клиента.
type CredentialedSource struct {
	*Registry

	store SealedStore
	key   []byte
	log   *utils.Logger
}

// NewCredentialedSource создает источник клиентов с подстановкой ключей
func NewCredentialedSource(reg *Registry, store SealedStore, key []byte, log *utils.Logger) *CredentialedSource {
	return &CredentialedSource{Registry: reg, store: store, key: key, log: log}
}

// NewClient создает клиента, добавляя сохраненные ключи если они есть
func (s *CredentialedSource) NewClient(name string, opts ...RESTOption) (Client, error) {
	if s.store != nil && len(s.key) > 0 {
		sealed, err := s.store.Get(context.Background(), name)
		if err == nil {
			creds, err := OpenCredentials(sealed, s.key)
			if err != nil {
				// Ключ ротировался или запись побита; клиент остается публичным
				s.log.Warn("stored credentials unreadable", utils.Exchange(name), utils.Err(err))
			} else {
				opts = append(opts, WithCredentials(*creds))
			}
		}
	}
	return s.Registry.NewClient(name, opts...)
}
