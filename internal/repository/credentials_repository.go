package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Ошибки репозитория ключей
var (
	ErrCredentialsNotFound = errors.New("credentials not found")
)

// CredentialsRepository - работа с таблицей venue_credentials
//
// Хранится только AES-256-GCM шифротекст; расшифровка происходит
// в момент создания клиента биржи.
type CredentialsRepository struct {
	db *sql.DB
}

// NewCredentialsRepository создает новый экземпляр репозитория
func NewCredentialsRepository(db *sql.DB) *CredentialsRepository {
	return &CredentialsRepository{db: db}
}

// Upsert сохраняет или заменяет ключи биржи
func (r *CredentialsRepository) Upsert(ctx context.Context, venue, sealed string) error {
	query := `
		INSERT INTO venue_credentials (venue, sealed, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (venue) DO UPDATE SET sealed = $2, updated_at = $3`

	_, err := r.db.ExecContext(ctx, query, venue, sealed, time.Now().UTC())
	return err
}

// Get возвращает шифротекст ключей биржи
func (r *CredentialsRepository) Get(ctx context.Context, venue string) (string, error) {
	query := `SELECT sealed FROM venue_credentials WHERE venue = $1`

	var sealed string
	err := r.db.QueryRowContext(ctx, query, venue).Scan(&sealed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrCredentialsNotFound
		}
		return "", err
	}

	return sealed, nil
}

// Delete удаляет ключи биржи
func (r *CredentialsRepository) Delete(ctx context.Context, venue string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM venue_credentials WHERE venue = $1`, venue)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrCredentialsNotFound
	}

	return nil
}

// List возвращает биржи с сохраненными ключами
func (r *CredentialsRepository) List(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT venue FROM venue_credentials ORDER BY venue`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var venues []string
	for rows.Next() {
		var venue string
		if err := rows.Scan(&venue); err != nil {
			return nil, err
		}
		venues = append(venues, venue)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return venues, nil
}
