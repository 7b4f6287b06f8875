package eligibility

import (
	"context"
	"fmt"
	"math/big"

	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/propshare-labs/distributor/pkg/merkle"
	"go.uber.org/zap"
)

// ErrZeroTotalSupply marks a configuration error: a distribution must not be
// created against a token with no supply at the snapshot point.
var ErrZeroTotalSupply = fmt.Errorf("total supply at snapshot is zero")

// BalanceProvider is the token contract view the snapshotter consumes. It is
// treated as read-only trusted input.
type BalanceProvider interface {
	BalanceOf(ctx context.Context, token, holder gethcommon.Address, blockNumber uint64) (*big.Int, error)
	TotalSupply(ctx context.Context, token gethcommon.Address, blockNumber uint64) (*big.Int, error)
}

type HolderBalance struct {
	Holder  gethcommon.Address
	Balance *big.Int
}

// Snapshot is the set of balances and the supply observed at one point in
// time. Immutable once taken.
type Snapshot struct {
	TotalSupply *big.Int
	Balances    []HolderBalance
}

type Snapshotter struct {
	provider BalanceProvider
	logger   *zap.Logger
}

func NewSnapshotter(provider BalanceProvider, l *zap.Logger) *Snapshotter {
	return &Snapshotter{
		provider: provider,
		logger:   l,
	}
}

// TakeSnapshot reads each candidate holder's balance and the total supply at
// a pinned block. Zero-balance holders are dropped.
func (s *Snapshotter) TakeSnapshot(
	ctx context.Context,
	token gethcommon.Address,
	holders []gethcommon.Address,
	blockNumber uint64,
) (*Snapshot, error) {
	totalSupply, err := s.provider.TotalSupply(ctx, token, blockNumber)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read total supply")
	}

	balances := make([]HolderBalance, 0, len(holders))
	for _, holder := range holders {
		balance, err := s.provider.BalanceOf(ctx, token, holder, blockNumber)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read balance of %s", holder.Hex())
		}
		if balance.Sign() == 0 {
			continue
		}
		balances = append(balances, HolderBalance{Holder: holder, Balance: balance})
	}

	s.logger.Sugar().Infow("Took balance snapshot",
		zap.String("token", token.Hex()),
		zap.Uint64("blockNumber", blockNumber),
		zap.Int("holders", len(balances)),
		zap.String("totalSupply", totalSupply.String()),
	)

	return &Snapshot{
		TotalSupply: totalSupply,
		Balances:    balances,
	}, nil
}

// ComputeEntries turns a snapshot into the eligibility set for a
// distribution of the given total. Each holder receives
// floor(total * balance / supply); integer truncation means the sum of
// entries may fall short of the total by rounding dust, never exceed it.
func ComputeEntries(snapshot *Snapshot, distributionTotal *big.Int) ([]merkle.Entry, error) {
	if snapshot == nil || snapshot.TotalSupply == nil || snapshot.TotalSupply.Sign() == 0 {
		return nil, ErrZeroTotalSupply
	}
	if distributionTotal == nil || distributionTotal.Sign() <= 0 {
		return nil, fmt.Errorf("distribution total must be a positive integer")
	}

	entries := make([]merkle.Entry, 0, len(snapshot.Balances))
	seen := make(map[gethcommon.Address]bool, len(snapshot.Balances))
	for _, hb := range snapshot.Balances {
		if hb.Balance == nil || hb.Balance.Sign() <= 0 {
			continue
		}
		if seen[hb.Holder] {
			return nil, fmt.Errorf("duplicate holder %s in snapshot", hb.Holder.Hex())
		}
		seen[hb.Holder] = true

		amount := new(big.Int).Mul(distributionTotal, hb.Balance)
		amount.Div(amount, snapshot.TotalSupply)

		entries = append(entries, merkle.Entry{
			Holder: hb.Holder,
			Amount: amount,
		})
	}
	return entries, nil
}
