package registry

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
)

func (p *Postgres) CreateBatch(ctx context.Context, batch Batch) error {
	errorsJSON, err := json.Marshal(batch.Errors)
	if err != nil {
		return err
	}
	_, err = p.DB.Exec(ctx, `
    INSERT INTO import_batches (id, file_name, checksum, state, accepted, updated, duplicates, rejected,
                                errors_json, fail_reason, last_row, created_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
  `, batch.ID, batch.FileName, batch.Checksum, batch.State, batch.Accepted, batch.Updated,
		batch.Duplicates, batch.Rejected, errorsJSON, batch.FailReason, batch.LastRow, batch.CreatedAt)
	return err
}

func (p *Postgres) UpdateBatch(ctx context.Context, batch Batch) error {
	errorsJSON, err := json.Marshal(batch.Errors)
	if err != nil {
		return err
	}
	tag, err := p.DB.Exec(ctx, `
    UPDATE import_batches
    SET state = $1, accepted = $2, updated = $3, duplicates = $4, rejected = $5,
        errors_json = $6, fail_reason = $7, last_row = $8, finalized_at = $9
    WHERE id = $10 AND finalized_at IS NULL
  `, batch.State, batch.Accepted, batch.Updated, batch.Duplicates, batch.Rejected,
		errorsJSON, batch.FailReason, batch.LastRow, batch.FinalizedAt, batch.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, lookupErr := p.BatchByID(ctx, batch.ID); lookupErr != nil {
			return lookupErr
		}
		return ErrBatchFinalized
	}
	return nil
}

func (p *Postgres) FinalizeBatch(ctx context.Context, batch Batch) error {
	if batch.FinalizedAt == nil {
		return ErrBatchFinalized
	}
	return p.UpdateBatch(ctx, batch)
}

func (p *Postgres) BatchByID(ctx context.Context, id string) (Batch, error) {
	var batch Batch
	var errorsJSON []byte
	err := p.DB.QueryRow(ctx, `
    SELECT id, file_name, COALESCE(checksum,''), state, accepted, updated, duplicates, rejected,
           errors_json, COALESCE(fail_reason,''), last_row, created_at, finalized_at
    FROM import_batches
    WHERE id = $1
  `, id).Scan(&batch.ID, &batch.FileName, &batch.Checksum, &batch.State, &batch.Accepted,
		&batch.Updated, &batch.Duplicates, &batch.Rejected, &errorsJSON, &batch.FailReason,
		&batch.LastRow, &batch.CreatedAt, &batch.FinalizedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Batch{}, ErrNotFound
	}
	if err != nil {
		return Batch{}, err
	}
	if len(errorsJSON) > 0 {
		if err := json.Unmarshal(errorsJSON, &batch.Errors); err != nil {
			return Batch{}, err
		}
	}
	return batch, nil
}

func (p *Postgres) BatchByChecksum(ctx context.Context, checksum string) (Batch, error) {
	if checksum == "" {
		return Batch{}, ErrNotFound
	}
	var id string
	err := p.DB.QueryRow(ctx, `
    SELECT id
    FROM import_batches
    WHERE checksum = $1
    ORDER BY created_at DESC
    LIMIT 1
  `, checksum).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return Batch{}, ErrNotFound
	}
	if err != nil {
		return Batch{}, err
	}
	return p.BatchByID(ctx, id)
}
