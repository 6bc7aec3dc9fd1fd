package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TxRepositories exposes transaction-bound repositories to a WithTx callback.
type TxRepositories interface {
	Chunks() *ChunkRepository
	Documents() *DocumentRepository
}

// TxRunner provides transactional repositories using a pgx pool. The
// lexical chunk rows are written inside these transactions; the vector
// index upsert deliberately happens outside them.
type TxRunner struct {
	pool *pgxpool.Pool
}

func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

func (r *TxRunner) WithTx(ctx context.Context, fn func(repos TxRepositories) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}

	repos := &txRepos{tx: tx}
	if err := fn(repos); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	return tx.Commit(ctx)
}

type txRepos struct {
	tx pgx.Tx
}

func (r *txRepos) Chunks() *ChunkRepository {
	return NewChunkRepositoryWithTx(r.tx)
}

func (r *txRepos) Documents() *DocumentRepository {
	return NewDocumentRepositoryWithTx(r.tx)
}
