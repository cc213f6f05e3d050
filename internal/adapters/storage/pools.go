package storage

import (
	"context"
	"fmt"

	"github.com/alejandrodnm/lendpool/internal/domain"
	"github.com/shopspring/decimal"
)

const poolColumns = `id, authority_id, base_reserve, yield_reserve, start_amount, cumulative_repaid,
	fee, reward, bonus_fee_l1, bonus_fee_l2, extra_reward_l1, extra_reward_l2,
	min_ratio_lend, max_ratio_lend, min_ratio_borrow, max_ratio_borrow,
	loan_pool_low_limit, main_pool_low_limit, tier_low, tier_high, created_at, updated_at`

// savePool hace upsert del pool. Los parámetros son inmutables: en conflicto solo
// se reescriben reservas y contadores.
func savePool(ctx context.Context, q queryer, p *domain.Pool) error {
	prm := p.Params
	_, err := q.ExecContext(ctx, `
		INSERT INTO pools (`+poolColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			base_reserve      = excluded.base_reserve,
			yield_reserve     = excluded.yield_reserve,
			cumulative_repaid = excluded.cumulative_repaid,
			updated_at        = excluded.updated_at`,
		p.ID, p.AuthorityID, p.Base.Amount(), p.Yield.Amount(), p.StartAmount, p.CumulativeRepaid,
		prm.Fee, prm.Reward, prm.BonusFeeL1, prm.BonusFeeL2, prm.ExtraRewardL1, prm.ExtraRewardL2,
		prm.MinRatioLend, prm.MaxRatioLend, prm.MinRatioBorrow, prm.MaxRatioBorrow,
		prm.LoanPoolLowLimit, prm.MainPoolLowLimit, prm.TierLow, prm.TierHigh,
		formatTime(p.CreatedAt), formatTime(p.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert pool %s: %w", p.ID, err)
	}
	return nil
}

// LoadPool rehidrata un pool, reservas incluidas.
func (s *SQLiteStorage) LoadPool(ctx context.Context, id string) (domain.Pool, error) {
	var (
		p                domain.Pool
		base, yield      decimal.Decimal
		created, updated string
	)
	prm := &p.Params
	err := s.db.QueryRowContext(ctx, `SELECT `+poolColumns+` FROM pools WHERE id = ?`, id).Scan(
		&p.ID, &p.AuthorityID, &base, &yield, &p.StartAmount, &p.CumulativeRepaid,
		&prm.Fee, &prm.Reward, &prm.BonusFeeL1, &prm.BonusFeeL2, &prm.ExtraRewardL1, &prm.ExtraRewardL2,
		&prm.MinRatioLend, &prm.MaxRatioLend, &prm.MinRatioBorrow, &prm.MaxRatioBorrow,
		&prm.LoanPoolLowLimit, &prm.MainPoolLowLimit, &prm.TierLow, &prm.TierHigh,
		&created, &updated,
	)
	if err != nil {
		return domain.Pool{}, fmt.Errorf("storage.LoadPool: %s: %w", id, notFound(err, domain.ErrPoolNotFound))
	}

	p.Base = domain.NewReserve(domain.AssetBase, base, "")
	p.Yield = domain.NewReserve(domain.AssetYield, yield, p.AuthorityID)
	p.CreatedAt = parseTime(created)
	p.UpdatedAt = parseTime(updated)
	return p, nil
}

// LatestPoolID devuelve el pool creado más recientemente.
func (s *SQLiteStorage) LatestPoolID(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM pools ORDER BY rowid DESC LIMIT 1`).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("storage.LatestPoolID: %w", notFound(err, domain.ErrPoolNotFound))
	}
	return id, nil
}
