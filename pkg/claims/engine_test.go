package claims

import (
	"math/big"
	"os"
	"testing"
	"time"

	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/propshare-labs/distributor/internal/config"
	"github.com/propshare-labs/distributor/internal/logger"
	"github.com/propshare-labs/distributor/internal/tests"
	"github.com/propshare-labs/distributor/pkg/distribution"
	"github.com/propshare-labs/distributor/pkg/eventBus"
	"github.com/propshare-labs/distributor/pkg/fees"
	"github.com/propshare-labs/distributor/pkg/merkle"
	"github.com/propshare-labs/distributor/pkg/postgres"
	"github.com/propshare-labs/distributor/pkg/transfer"
	"github.com/propshare-labs/distributor/pkg/utils"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	holder1 = "0x1111111111111111111111111111111111111111"
	holder2 = "0x2222222222222222222222222222222222222222"
	holder3 = "0x3333333333333333333333333333333333333333"

	creator             = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	platformReceiver    = "0xcccccccccccccccccccccccccccccccccccccccc"
	maintenanceReceiver = "0xdddddddddddddddddddddddddddddddddddddddd"
)

func setup() (
	string,
	*gorm.DB,
	*zap.Logger,
	*config.Config,
	error,
) {
	cfg := config.NewConfig()
	cfg.Debug = os.Getenv(config.Debug) == "true"
	cfg.DatabaseConfig = *tests.GetDbConfigFromEnv()
	cfg.FeeConfig = config.FeeConfig{
		PlatformRateBips:       250,
		MaintenanceRateBips:    100,
		PlatformFeeReceiver:    platformReceiver,
		MaintenanceFeeReceiver: maintenanceReceiver,
	}

	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})

	dbname, _, grm, err := postgres.GetTestPostgresDatabase(cfg.DatabaseConfig, l)
	if err != nil {
		return dbname, nil, nil, nil, err
	}

	return dbname, grm, l, cfg, nil
}

type testFixture struct {
	registry     *distribution.Registry
	escrowLedger *transfer.EscrowLedger
	engine       *Engine
	tree         *merkle.Tree
	entries      []merkle.Entry
	dist         *distribution.Distribution
}

// newActiveDistribution commits a 500/300/200 split of 1000 base units,
// funds the escrow with the full total and opens the claim window.
func newActiveDistribution(
	t *testing.T,
	grm *gorm.DB,
	l *zap.Logger,
	cfg *config.Config,
	eb *eventBus.EventBus,
) *testFixture {
	entries := []merkle.Entry{
		{Holder: gethcommon.HexToAddress(holder1), Amount: big.NewInt(500)},
		{Holder: gethcommon.HexToAddress(holder2), Amount: big.NewInt(300)},
		{Holder: gethcommon.HexToAddress(holder3), Amount: big.NewInt(200)},
	}
	tree, err := merkle.NewTree(entries)
	assert.Nil(t, err)

	registry := distribution.NewRegistry(grm, l, cfg)
	dist, err := registry.CreateDistribution(&distribution.CreateDistributionParams{
		Creator:          creator,
		AssetId:          "property-42",
		TokenAddress:     "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
		DistributionKind: "rental_income",
		WindowEnd:        time.Now().Add(time.Hour * 24 * 30),
		Description:      "July rental income",
		TotalAmount:      "1000",
		MerkleRoot:       utils.ConvertBytesToString(tree.Root()),
		Entries:          entries,
	})
	assert.Nil(t, err)

	escrowLedger := transfer.NewEscrowLedger(grm, l)
	assert.Nil(t, escrowLedger.Fund(dist.Id, creator, big.NewInt(1000)))

	dist, err = registry.ActivateDistribution(dist.Id)
	assert.Nil(t, err)

	calculator, err := fees.NewCalculator(cfg.FeeConfig.PlatformRateBips, cfg.FeeConfig.MaintenanceRateBips)
	assert.Nil(t, err)

	engine := NewClaimsEngine(grm, l, cfg, calculator, escrowLedger, eb, nil)

	return &testFixture{
		registry:     registry,
		escrowLedger: escrowLedger,
		engine:       engine,
		tree:         tree,
		entries:      entries,
		dist:         dist,
	}
}

func claimFor(t *testing.T, f *testFixture, holder string, amount int64) *ClaimParams {
	proof, err := f.tree.Proof(gethcommon.HexToAddress(holder))
	assert.Nil(t, err)
	return &ClaimParams{
		DistributionId: f.dist.Id,
		Claimant:       holder,
		Amount:         big.NewInt(amount),
		Proof:          proof,
	}
}

func Test_ClaimsEngine(t *testing.T) {
	dbName, grm, l, cfg, err := setup()

	if err != nil {
		t.Fatal(err)
	}

	eb := eventBus.NewEventBus(l)

	t.Run("Should pay out every committed holder exactly once and conserve the total", func(t *testing.T) {
		f := newActiveDistribution(t, grm, l, cfg, eb)

		receipt, err := f.engine.ProcessClaim(claimFor(t, f, holder1, 500))
		assert.Nil(t, err)
		assert.Equal(t, "500", receipt.ClaimedAmount)
		assert.Equal(t, "12", receipt.PlatformFee)
		assert.Equal(t, "5", receipt.MaintenanceFee)
		assert.Equal(t, "483", receipt.NetAmount)

		receipt, err = f.engine.ProcessClaim(claimFor(t, f, holder2, 300))
		assert.Nil(t, err)
		assert.Equal(t, "290", receipt.NetAmount)

		receipt, err = f.engine.ProcessClaim(claimFor(t, f, holder3, 200))
		assert.Nil(t, err)
		assert.Equal(t, "193", receipt.NetAmount)

		totals, err := f.registry.GetClaimedTotals(f.dist.Id)
		assert.Nil(t, err)
		assert.Equal(t, int64(3), totals.ClaimCount)
		assert.Equal(t, "1000", totals.ClaimedAmount)

		// every base unit that entered the escrow has left it
		balance, err := f.escrowLedger.Balance(f.dist.Id)
		assert.Nil(t, err)
		assert.Equal(t, "0", balance.String())
	})
	t.Run("Should reject a second claim by the same holder", func(t *testing.T) {
		f := newActiveDistribution(t, grm, l, cfg, eb)

		_, err := f.engine.ProcessClaim(claimFor(t, f, holder1, 500))
		assert.Nil(t, err)

		_, err = f.engine.ProcessClaim(claimFor(t, f, holder1, 500))
		assert.ErrorIs(t, err, ErrAlreadyClaimed)

		totals, err := f.registry.GetClaimedTotals(f.dist.Id)
		assert.Nil(t, err)
		assert.Equal(t, int64(1), totals.ClaimCount)
	})
	t.Run("Should reject claims after the window has closed", func(t *testing.T) {
		f := newActiveDistribution(t, grm, l, cfg, eb)
		f.engine.now = func() time.Time {
			return f.dist.WindowEnd.Add(time.Hour)
		}

		_, err := f.engine.ProcessClaim(claimFor(t, f, holder1, 500))
		assert.ErrorIs(t, err, ErrClaimWindowClosed)
	})
	t.Run("Should reject a proof presented by a different holder", func(t *testing.T) {
		f := newActiveDistribution(t, grm, l, cfg, eb)

		params := claimFor(t, f, holder1, 500)
		params.Claimant = holder3

		_, err := f.engine.ProcessClaim(params)
		assert.ErrorIs(t, err, ErrInvalidProof)
	})
	t.Run("Should reject a claim for an amount other than the committed one", func(t *testing.T) {
		f := newActiveDistribution(t, grm, l, cfg, eb)

		params := claimFor(t, f, holder1, 600)
		_, err := f.engine.ProcessClaim(params)
		assert.ErrorIs(t, err, ErrInvalidProof)
	})
	t.Run("Should reject claims before activation and after closing", func(t *testing.T) {
		f := newActiveDistribution(t, grm, l, cfg, eb)

		_, err := f.registry.CloseDistribution(f.dist.Id)
		assert.Nil(t, err)

		_, err = f.engine.ProcessClaim(claimFor(t, f, holder1, 500))
		assert.ErrorIs(t, err, ErrDistributionNotActive)
	})
	t.Run("Should reject claims against unknown distributions", func(t *testing.T) {
		f := newActiveDistribution(t, grm, l, cfg, eb)

		params := claimFor(t, f, holder1, 500)
		params.DistributionId = "00000000-0000-0000-0000-000000000000"

		_, err := f.engine.ProcessClaim(params)
		assert.ErrorIs(t, err, ErrDistributionNotFound)
	})
	t.Run("Should reject non-positive claim amounts", func(t *testing.T) {
		f := newActiveDistribution(t, grm, l, cfg, eb)

		params := claimFor(t, f, holder1, 500)
		params.Amount = big.NewInt(0)
		_, err := f.engine.ProcessClaim(params)
		assert.ErrorIs(t, err, ErrInvalidAmount)

		params.Amount = nil
		_, err = f.engine.ProcessClaim(params)
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})
	t.Run("Should accept an empty proof for a single-holder distribution", func(t *testing.T) {
		entries := []merkle.Entry{
			{Holder: gethcommon.HexToAddress(holder1), Amount: big.NewInt(1000)},
		}
		tree, err := merkle.NewTree(entries)
		assert.Nil(t, err)

		registry := distribution.NewRegistry(grm, l, cfg)
		dist, err := registry.CreateDistribution(&distribution.CreateDistributionParams{
			Creator:          creator,
			AssetId:          "property-7",
			TokenAddress:     "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
			DistributionKind: "rental_income",
			WindowEnd:        time.Now().Add(time.Hour),
			TotalAmount:      "1000",
			MerkleRoot:       utils.ConvertBytesToString(tree.Root()),
			Entries:          entries,
		})
		assert.Nil(t, err)

		escrowLedger := transfer.NewEscrowLedger(grm, l)
		assert.Nil(t, escrowLedger.Fund(dist.Id, creator, big.NewInt(1000)))

		_, err = registry.ActivateDistribution(dist.Id)
		assert.Nil(t, err)

		calculator, err := fees.NewCalculator(cfg.FeeConfig.PlatformRateBips, cfg.FeeConfig.MaintenanceRateBips)
		assert.Nil(t, err)
		engine := NewClaimsEngine(grm, l, cfg, calculator, escrowLedger, eb, nil)

		receipt, err := engine.ProcessClaim(&ClaimParams{
			DistributionId: dist.Id,
			Claimant:       holder1,
			Amount:         big.NewInt(1000),
			Proof:          [][]byte{},
		})
		assert.Nil(t, err)
		assert.Equal(t, "1000", receipt.ClaimedAmount)
	})
	t.Run("Should fail the claim when the escrow is underfunded", func(t *testing.T) {
		f := newActiveDistribution(t, grm, l, cfg, eb)

		// drain the escrow below what holder1's payout needs
		assert.Nil(t, f.escrowLedger.Transfer(grm, f.dist.Id, creator, big.NewInt(900), "test drain"))

		_, err := f.engine.ProcessClaim(claimFor(t, f, holder1, 500))
		assert.ErrorIs(t, err, transfer.ErrInsufficientEscrow)

		// the aborted claim left no record behind
		claimed, err := f.registry.IsClaimed(f.dist.Id, holder1)
		assert.Nil(t, err)
		assert.False(t, claimed)
	})
	t.Cleanup(func() {
		postgres.TeardownTestDatabase(dbName, cfg, grm, l)
	})
}
