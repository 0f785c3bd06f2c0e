package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"hubgateway/internal/models"
)

// GetSigner looks up a signer by its public key. It returns ErrNotFound
// if absent; any other DB error is mapped to a plain domain error. Unlike
// the profile/link reads, this lookup has no upstream fallback.
func (r *Repository) GetSigner(ctx context.Context, pk []byte) (*models.Signer, error) {
	var s models.Signer
	s.PK = pk
	err := r.Pool.Raw().QueryRow(ctx, `
		SELECT fid, active FROM signers WHERE pk = $1
	`, pk).Scan(&s.FID, &s.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("repository: get signer: %w", err)
	}
	return &s, nil
}

// InsertSigner upserts a signer row, first ensuring the owning user row
// exists (empty if new) to preserve the FK, then writing the signer
// itself. Both writes happen in one transaction.
func (r *Repository) InsertSigner(ctx context.Context, pk []byte, fid uint64, active bool) error {
	return r.Pool.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO users (fid) VALUES ($1)
			ON CONFLICT (fid) DO NOTHING
		`, int64(fid)); err != nil {
			return fmt.Errorf("repository: upsert empty user fid=%d: %w", fid, err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO signers (pk, fid, active)
			VALUES ($1, $2, $3)
			ON CONFLICT (pk) DO UPDATE SET fid = EXCLUDED.fid, active = EXCLUDED.active
		`, pk, int64(fid), active); err != nil {
			return fmt.Errorf("repository: upsert signer fid=%d: %w", fid, err)
		}
		return nil
	})
}
