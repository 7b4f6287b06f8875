package eligibility

import (
	"fmt"
	"math/big"
	"os"

	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"
	"github.com/propshare-labs/distributor/pkg/utils"
)

type csvHolderRow struct {
	Holder  string `csv:"holder"`
	Balance string `csv:"balance"`
}

// LoadSnapshotFromCsv reads a holder balance export with `holder,balance`
// columns. The total supply is the sum of the balances, which matches a
// fully-distributed fractionalized asset.
func LoadSnapshotFromCsv(path string) (*Snapshot, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open snapshot file '%s'", path)
	}
	defer file.Close()

	rows := make([]*csvHolderRow, 0)
	if err := gocsv.UnmarshalFile(file, &rows); err != nil {
		return nil, errors.Wrapf(err, "failed to parse snapshot file '%s'", path)
	}

	totalSupply := big.NewInt(0)
	balances := make([]HolderBalance, 0, len(rows))
	for i, row := range rows {
		if !utils.IsValidHexAddress(row.Holder) {
			return nil, fmt.Errorf("row %d: invalid holder address '%s'", i+1, row.Holder)
		}
		balance, ok := new(big.Int).SetString(row.Balance, 10)
		if !ok || balance.Sign() < 0 {
			return nil, fmt.Errorf("row %d: invalid balance '%s'", i+1, row.Balance)
		}
		totalSupply.Add(totalSupply, balance)
		if balance.Sign() == 0 {
			continue
		}
		balances = append(balances, HolderBalance{
			Holder:  gethcommon.HexToAddress(row.Holder),
			Balance: balance,
		})
	}

	return &Snapshot{
		TotalSupply: totalSupply,
		Balances:    balances,
	}, nil
}
