package postgres

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/useQlick/qlickd/internal/domain"
)

// MarketStore implements domain.MarketStore using PostgreSQL.
type MarketStore struct {
	pool *pgxpool.Pool
}

// NewMarketStore creates a new MarketStore backed by the given connection pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

// Upsert inserts or updates a single market projection row. accepted is the
// winning proposal ID once the market has graduated, nil before that.
func (s *MarketStore) Upsert(ctx context.Context, m domain.Market, accepted *uint64) error {
	const query = `
		INSERT INTO markets (
			id, asset, min_deposit, deadline, gateway,
			status, total_deposits, proposal_count, accepted_proposal,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, NOW()
		)
		ON CONFLICT (id) DO UPDATE SET
			status            = EXCLUDED.status,
			total_deposits    = EXCLUDED.total_deposits,
			proposal_count    = EXCLUDED.proposal_count,
			accepted_proposal = EXCLUDED.accepted_proposal,
			updated_at        = NOW()`

	var acceptedArg any
	if accepted != nil {
		acceptedArg = int64(*accepted)
	}

	_, err := s.pool.Exec(ctx, query,
		int64(m.ID), m.Asset.Hex(), int64(m.MinDeposit), m.Deadline, m.Gateway.Hex(),
		string(m.Status), int64(m.TotalDeposits), int64(m.ProposalCount), acceptedArg,
		m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert market %d: %w", m.ID, err)
	}
	return nil
}

const marketCols = `id, asset, min_deposit, deadline, gateway,
	status, total_deposits, proposal_count, created_at`

// scanMarket scans a single market row into a domain.Market.
func scanMarket(row pgx.Row) (domain.Market, error) {
	var m domain.Market
	var id, minDeposit, totalDeposits, proposalCount int64
	var asset, gateway, status string
	err := row.Scan(
		&id, &asset, &minDeposit, &m.Deadline, &gateway,
		&status, &totalDeposits, &proposalCount, &m.CreatedAt,
	)
	if err != nil {
		return domain.Market{}, err
	}
	m.ID = uint64(id)
	m.Asset = common.HexToAddress(asset)
	m.MinDeposit = uint64(minDeposit)
	m.Gateway = common.HexToAddress(gateway)
	m.Status = domain.MarketStatus(status)
	m.TotalDeposits = uint64(totalDeposits)
	m.ProposalCount = uint64(proposalCount)
	return m, nil
}

// GetByID retrieves a market by its primary key.
func (s *MarketStore) GetByID(ctx context.Context, id uint64) (domain.Market, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+marketCols+` FROM markets WHERE id = $1`, int64(id))
	m, err := scanMarket(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: get market %d: %w", id, err)
	}
	return m, nil
}

// ListByStatus returns markets in a given lifecycle status, newest first.
func (s *MarketStore) ListByStatus(ctx context.Context, status domain.MarketStatus, limit, offset int) ([]domain.Market, error) {
	query := `SELECT ` + marketCols + ` FROM markets WHERE status = $1 ORDER BY created_at DESC`
	args := []any{string(status)}
	argIdx := 2

	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, limit)
		argIdx++
	}
	if offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list markets by status %s: %w", status, err)
	}
	defer rows.Close()

	var markets []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan market: %w", err)
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list markets rows: %w", err)
	}
	return markets, nil
}

// Count returns the total number of market projection rows.
func (s *MarketStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM markets").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("postgres: count markets: %w", err)
	}
	return count, nil
}
