package eligibility

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/propshare-labs/distributor/internal/logger"
	"github.com/stretchr/testify/assert"
)

var (
	holder1 = gethcommon.HexToAddress("0x1111111111111111111111111111111111111111")
	holder2 = gethcommon.HexToAddress("0x2222222222222222222222222222222222222222")
	holder3 = gethcommon.HexToAddress("0x3333333333333333333333333333333333333333")
)

type fakeBalanceProvider struct {
	supply   *big.Int
	balances map[gethcommon.Address]*big.Int
}

func (f *fakeBalanceProvider) BalanceOf(ctx context.Context, token, holder gethcommon.Address, blockNumber uint64) (*big.Int, error) {
	balance, ok := f.balances[holder]
	if !ok {
		return big.NewInt(0), nil
	}
	return balance, nil
}

func (f *fakeBalanceProvider) TotalSupply(ctx context.Context, token gethcommon.Address, blockNumber uint64) (*big.Int, error) {
	return f.supply, nil
}

func Test_Snapshotter(t *testing.T) {
	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: true})

	t.Run("Should snapshot nonzero balances only", func(t *testing.T) {
		provider := &fakeBalanceProvider{
			supply: big.NewInt(1000),
			balances: map[gethcommon.Address]*big.Int{
				holder1: big.NewInt(500),
				holder2: big.NewInt(0),
				holder3: big.NewInt(500),
			},
		}
		snapshotter := NewSnapshotter(provider, l)

		snapshot, err := snapshotter.TakeSnapshot(context.Background(), gethcommon.Address{}, []gethcommon.Address{holder1, holder2, holder3}, 100)
		assert.Nil(t, err)
		assert.Equal(t, big.NewInt(1000), snapshot.TotalSupply)
		assert.Equal(t, 2, len(snapshot.Balances))
	})
}

func Test_ComputeEntries(t *testing.T) {
	t.Run("Should split proportionally with no dust when shares divide evenly", func(t *testing.T) {
		snapshot := &Snapshot{
			TotalSupply: big.NewInt(1000),
			Balances: []HolderBalance{
				{Holder: holder1, Balance: big.NewInt(500)},
				{Holder: holder2, Balance: big.NewInt(300)},
				{Holder: holder3, Balance: big.NewInt(200)},
			},
		}

		entries, err := ComputeEntries(snapshot, big.NewInt(1000))
		assert.Nil(t, err)
		assert.Equal(t, 3, len(entries))
		assert.Equal(t, big.NewInt(500), entries[0].Amount)
		assert.Equal(t, big.NewInt(300), entries[1].Amount)
		assert.Equal(t, big.NewInt(200), entries[2].Amount)
	})

	t.Run("Should floor each share and never exceed the total", func(t *testing.T) {
		snapshot := &Snapshot{
			TotalSupply: big.NewInt(3),
			Balances: []HolderBalance{
				{Holder: holder1, Balance: big.NewInt(1)},
				{Holder: holder2, Balance: big.NewInt(1)},
				{Holder: holder3, Balance: big.NewInt(1)},
			},
		}

		entries, err := ComputeEntries(snapshot, big.NewInt(100))
		assert.Nil(t, err)

		sum := big.NewInt(0)
		for _, entry := range entries {
			// floor(100 * 1 / 3) = 33
			assert.Equal(t, big.NewInt(33), entry.Amount)
			sum.Add(sum, entry.Amount)
		}
		assert.True(t, sum.Cmp(big.NewInt(100)) < 0)
	})

	t.Run("Should reject a zero total supply", func(t *testing.T) {
		snapshot := &Snapshot{
			TotalSupply: big.NewInt(0),
			Balances:    []HolderBalance{{Holder: holder1, Balance: big.NewInt(1)}},
		}

		_, err := ComputeEntries(snapshot, big.NewInt(100))
		assert.Equal(t, ErrZeroTotalSupply, err)
	})

	t.Run("Should reject duplicate holders", func(t *testing.T) {
		snapshot := &Snapshot{
			TotalSupply: big.NewInt(10),
			Balances: []HolderBalance{
				{Holder: holder1, Balance: big.NewInt(5)},
				{Holder: holder1, Balance: big.NewInt(5)},
			},
		}

		_, err := ComputeEntries(snapshot, big.NewInt(100))
		assert.NotNil(t, err)
	})
}

func Test_LoadSnapshotFromCsv(t *testing.T) {
	t.Run("Should load a holder balance export", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "holders.csv")
		contents := fmt.Sprintf("holder,balance\n%s,500\n%s,300\n%s,200\n", holder1.Hex(), holder2.Hex(), holder3.Hex())
		assert.Nil(t, os.WriteFile(path, []byte(contents), 0644))

		snapshot, err := LoadSnapshotFromCsv(path)
		assert.Nil(t, err)
		assert.Equal(t, big.NewInt(1000), snapshot.TotalSupply)
		assert.Equal(t, 3, len(snapshot.Balances))
	})

	t.Run("Should reject malformed rows", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "holders.csv")
		contents := "holder,balance\nnot-an-address,500\n"
		assert.Nil(t, os.WriteFile(path, []byte(contents), 0644))

		_, err := LoadSnapshotFromCsv(path)
		assert.NotNil(t, err)

		contents = fmt.Sprintf("holder,balance\n%s,-5\n", holder1.Hex())
		assert.Nil(t, os.WriteFile(path, []byte(contents), 0644))

		_, err = LoadSnapshotFromCsv(path)
		assert.NotNil(t, err)
	})
}
