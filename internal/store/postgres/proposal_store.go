package postgres

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/useQlick/qlickd/internal/domain"
)

// ProposalStore implements domain.ProposalStore using PostgreSQL.
type ProposalStore struct {
	pool *pgxpool.Pool
}

// NewProposalStore creates a new ProposalStore backed by the given connection pool.
func NewProposalStore(pool *pgxpool.Pool) *ProposalStore {
	return &ProposalStore{pool: pool}
}

// Upsert inserts or updates a single proposal projection row.
func (s *ProposalStore) Upsert(ctx context.Context, p domain.Proposal) error {
	const query = `
		INSERT INTO proposals (
			id, market_id, creator, description, committed,
			accept_instance, reject_instance, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, NOW()
		)
		ON CONFLICT (id) DO UPDATE SET
			description = EXCLUDED.description,
			committed   = EXCLUDED.committed,
			updated_at  = NOW()`

	_, err := s.pool.Exec(ctx, query,
		int64(p.ID), int64(p.MarketID), p.Creator.Hex(), p.Description, int64(p.Committed),
		p.AcceptInstance.Hex(), p.RejectInstance.Hex(), p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert proposal %d: %w", p.ID, err)
	}
	return nil
}

const proposalCols = `id, market_id, creator, description, committed,
	accept_instance, reject_instance, created_at`

// scanProposal scans a single proposal row into a domain.Proposal.
func scanProposal(row pgx.Row) (domain.Proposal, error) {
	var p domain.Proposal
	var id, marketID, committed int64
	var creator, acceptInstance, rejectInstance string
	err := row.Scan(
		&id, &marketID, &creator, &p.Description, &committed,
		&acceptInstance, &rejectInstance, &p.CreatedAt,
	)
	if err != nil {
		return domain.Proposal{}, err
	}
	p.ID = uint64(id)
	p.MarketID = uint64(marketID)
	p.Creator = common.HexToAddress(creator)
	p.Committed = uint64(committed)
	p.AcceptInstance = common.HexToHash(acceptInstance)
	p.RejectInstance = common.HexToHash(rejectInstance)
	return p, nil
}

// GetByID retrieves a proposal by its primary key.
func (s *ProposalStore) GetByID(ctx context.Context, id uint64) (domain.Proposal, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+proposalCols+` FROM proposals WHERE id = $1`, int64(id))
	p, err := scanProposal(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Proposal{}, domain.ErrNotFound
		}
		return domain.Proposal{}, fmt.Errorf("postgres: get proposal %d: %w", id, err)
	}
	return p, nil
}

// ListByMarket returns every proposal submitted against a market, oldest
// first.
func (s *ProposalStore) ListByMarket(ctx context.Context, marketID uint64) ([]domain.Proposal, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+proposalCols+` FROM proposals WHERE market_id = $1 ORDER BY id ASC`,
		int64(marketID))
	if err != nil {
		return nil, fmt.Errorf("postgres: list proposals for market %d: %w", marketID, err)
	}
	defer rows.Close()

	var proposals []domain.Proposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan proposal: %w", err)
		}
		proposals = append(proposals, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list proposals rows: %w", err)
	}
	return proposals, nil
}
