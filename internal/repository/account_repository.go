package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"taskhive/api/internal/database"
	"taskhive/api/internal/models"
)

var ErrAccountNotFound = errors.New("account not found")

type AccountRepository struct {
	pool *pgxpool.Pool
}

func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

func (r *AccountRepository) Create(ctx context.Context, account models.Account) error {
	const query = `
		INSERT INTO accounts (
			id, user_id, provider, provider_account_id, password_hash, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, NOW(), NOW()
		)
	`

	_, err := database.QuerierFrom(ctx, r.pool).Exec(ctx, query,
		account.ID,
		account.UserID,
		account.Provider,
		account.ProviderAccountID,
		account.PasswordHash,
	)
	return err
}

func (r *AccountRepository) FindByProviderAccount(ctx context.Context, provider models.Provider, providerAccountID string) (models.Account, error) {
	const query = `
		SELECT id, user_id, provider, provider_account_id, password_hash, created_at, updated_at
		FROM accounts
		WHERE provider = $1 AND provider_account_id = $2
	`
	row := database.QuerierFrom(ctx, r.pool).QueryRow(ctx, query, provider, providerAccountID)
	return scanAccount(row)
}

func (r *AccountRepository) FindByUserAndProvider(ctx context.Context, userID string, provider models.Provider) (models.Account, error) {
	const query = `
		SELECT id, user_id, provider, provider_account_id, password_hash, created_at, updated_at
		FROM accounts
		WHERE user_id = $1 AND provider = $2
	`
	row := database.QuerierFrom(ctx, r.pool).QueryRow(ctx, query, userID, provider)
	return scanAccount(row)
}

func (r *AccountRepository) ListByUser(ctx context.Context, userID string) ([]models.Account, error) {
	const query = `
		SELECT id, user_id, provider, provider_account_id, password_hash, created_at, updated_at
		FROM accounts
		WHERE user_id = $1
		ORDER BY created_at ASC
	`

	rows, err := database.QuerierFrom(ctx, r.pool).Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

func (r *AccountRepository) UpdatePasswordHash(ctx context.Context, id string, hash []byte) error {
	const query = `
		UPDATE accounts SET password_hash = $2, updated_at = NOW() WHERE id = $1
	`
	cmd, err := database.QuerierFrom(ctx, r.pool).Exec(ctx, query, id, hash)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *AccountRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM accounts WHERE id = $1`
	cmd, err := database.QuerierFrom(ctx, r.pool).Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func scanAccount(row pgx.Row) (models.Account, error) {
	var account models.Account
	if err := row.Scan(
		&account.ID,
		&account.UserID,
		&account.Provider,
		&account.ProviderAccountID,
		&account.PasswordHash,
		&account.CreatedAt,
		&account.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Account{}, ErrAccountNotFound
		}
		return models.Account{}, err
	}
	return account, nil
}
