package claims

import (
	"errors"
	"math/big"
	"strings"
	"time"

	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/propshare-labs/distributor/internal/config"
	"github.com/propshare-labs/distributor/internal/metrics"
	"github.com/propshare-labs/distributor/internal/metrics/metricsTypes"
	"github.com/propshare-labs/distributor/pkg/distribution"
	"github.com/propshare-labs/distributor/pkg/eventBus"
	"github.com/propshare-labs/distributor/pkg/eventBus/eventBusTypes"
	"github.com/propshare-labs/distributor/pkg/fees"
	"github.com/propshare-labs/distributor/pkg/merkle"
	"github.com/propshare-labs/distributor/pkg/numbers"
	"github.com/propshare-labs/distributor/pkg/postgres"
	"github.com/propshare-labs/distributor/pkg/postgres/helpers"
	"github.com/propshare-labs/distributor/pkg/transfer"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// One sentinel per claim gate so callers can surface a distinct reason
// without weakening the proof check itself.
var (
	ErrDistributionNotFound  = distribution.ErrDistributionNotFound
	ErrDistributionNotActive = errors.New("distribution is not accepting claims")
	ErrClaimWindowClosed     = errors.New("claim window has closed")
	ErrAlreadyClaimed        = errors.New("holder has already claimed this distribution")
	ErrInvalidAmount         = errors.New("claimed amount is not a valid positive integer")
	ErrInvalidProof          = errors.New("proof does not match the committed root")
)

type ClaimParams struct {
	DistributionId string
	Claimant       string
	Amount         *big.Int
	Proof          [][]byte

	// Optional caller-supplied distribution total. Audit data only: it is
	// compared against the stored record and logged on mismatch, never used
	// for fee or payout math.
	TotalAmount *big.Int
}

type ClaimReceipt struct {
	DistributionId string
	Claimant       string
	ClaimedAmount  string
	PlatformFee    string
	MaintenanceFee string
	NetAmount      string
}

// Engine verifies claims against the committed root and pays out at most
// once per (distribution, holder). The claim record is written before any
// funds move; the unique constraint on claim_records backstops concurrent
// attempts.
type Engine struct {
	db           *gorm.DB
	logger       *zap.Logger
	globalConfig *config.Config
	calculator   *fees.Calculator
	transferor   transfer.Transferor
	eventBus     *eventBus.EventBus
	metricsSink  *metrics.MetricsSink

	// Overridable for window-enforcement tests.
	now func() time.Time
}

func NewClaimsEngine(
	grm *gorm.DB,
	l *zap.Logger,
	cfg *config.Config,
	calculator *fees.Calculator,
	transferor transfer.Transferor,
	eb *eventBus.EventBus,
	sink *metrics.MetricsSink,
) *Engine {
	return &Engine{
		db:           grm,
		logger:       l,
		globalConfig: cfg,
		calculator:   calculator,
		transferor:   transferor,
		eventBus:     eb,
		metricsSink:  sink,
		now:          time.Now,
	}
}

// ProcessClaim runs the hard gates in order; any failure aborts with zero
// state change. Cheap lifecycle checks come before the proof fold.
func (e *Engine) ProcessClaim(params *ClaimParams) (*ClaimReceipt, error) {
	start := e.now()
	receipt, err := helpers.WrapTxAndCommit(func(tx *gorm.DB) (*ClaimReceipt, error) {
		return e.processClaim(tx, params)
	}, e.db, nil)
	if err != nil {
		e.emitRejection(err)
		return nil, err
	}

	e.emitSuccess(receipt, e.now().Sub(start))
	return receipt, nil
}

func (e *Engine) processClaim(tx *gorm.DB, params *ClaimParams) (*ClaimReceipt, error) {
	if params.Amount == nil || params.Amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	claimant := strings.ToLower(params.Claimant)

	var dist distribution.Distribution
	res := tx.Raw(`SELECT * FROM distributions WHERE id = ? FOR UPDATE`, params.DistributionId).Scan(&dist)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrDistributionNotFound
	}

	if dist.Status != distribution.DistributionStatus_Active {
		return nil, ErrDistributionNotActive
	}
	// windowEnd is a soft deadline checked at claim time; no background
	// timer transitions the record.
	if e.now().After(dist.WindowEnd) {
		return nil, ErrClaimWindowClosed
	}

	var claimCount int64
	res = tx.Model(&distribution.ClaimRecord{}).
		Where("distribution_id = ? AND holder = ?", dist.Id, claimant).
		Count(&claimCount)
	if res.Error != nil {
		return nil, res.Error
	}
	if claimCount > 0 {
		return nil, ErrAlreadyClaimed
	}

	if params.TotalAmount != nil {
		storedTotal, err := numbers.NumericStringToBig(dist.TotalAmount)
		if err == nil && storedTotal.Cmp(params.TotalAmount) != 0 {
			e.logger.Sugar().Warnw("Caller-supplied distribution total does not match the stored record",
				zap.String("distributionId", dist.Id),
				zap.String("claimant", claimant),
				zap.String("supplied", params.TotalAmount.String()),
				zap.String("stored", dist.TotalAmount),
			)
		}
	}

	root, err := merkle.ParseRoot(dist.MerkleRoot)
	if err != nil {
		return nil, err
	}
	leaf := merkle.LeafHash(gethcommon.HexToAddress(claimant), params.Amount)
	if !merkle.Verify(root, leaf, params.Proof) {
		return nil, ErrInvalidProof
	}

	breakdown, err := e.calculator.Calculate(params.Amount)
	if err != nil {
		return nil, err
	}

	// Mark claimed before moving any funds.
	record := &distribution.ClaimRecord{
		DistributionId: dist.Id,
		Holder:         claimant,
		ClaimedAmount:  breakdown.Gross.String(),
		PlatformFee:    breakdown.PlatformFee.String(),
		MaintenanceFee: breakdown.MaintenanceFee.String(),
		NetAmount:      breakdown.Net.String(),
	}
	if res := tx.Model(&distribution.ClaimRecord{}).Create(record); res.Error != nil {
		if postgres.IsDuplicateKeyError(res.Error) {
			return nil, ErrAlreadyClaimed
		}
		return nil, res.Error
	}

	feeConfig := e.globalConfig.FeeConfig
	if err := e.transferor.Transfer(tx, dist.Id, claimant, breakdown.Net, "claim payout"); err != nil {
		return nil, err
	}
	if err := e.transferor.Transfer(tx, dist.Id, feeConfig.PlatformFeeReceiver, breakdown.PlatformFee, "platform fee"); err != nil {
		return nil, err
	}
	if err := e.transferor.Transfer(tx, dist.Id, feeConfig.MaintenanceFeeReceiver, breakdown.MaintenanceFee, "maintenance fee"); err != nil {
		return nil, err
	}

	return &ClaimReceipt{
		DistributionId: dist.Id,
		Claimant:       claimant,
		ClaimedAmount:  record.ClaimedAmount,
		PlatformFee:    record.PlatformFee,
		MaintenanceFee: record.MaintenanceFee,
		NetAmount:      record.NetAmount,
	}, nil
}

func (e *Engine) emitSuccess(receipt *ClaimReceipt, duration time.Duration) {
	e.logger.Sugar().Infow("Processed claim",
		zap.String("distributionId", receipt.DistributionId),
		zap.String("claimant", receipt.Claimant),
		zap.String("netAmount", receipt.NetAmount),
	)
	if e.eventBus != nil {
		e.eventBus.Publish(&eventBusTypes.Event{
			Name: eventBusTypes.Event_ClaimProcessed,
			Data: &eventBusTypes.ClaimProcessedData{
				DistributionId: receipt.DistributionId,
				Claimant:       receipt.Claimant,
				ClaimedAmount:  receipt.ClaimedAmount,
				PlatformFee:    receipt.PlatformFee,
				MaintenanceFee: receipt.MaintenanceFee,
				NetAmount:      receipt.NetAmount,
			},
		})
	}
	if e.metricsSink != nil {
		_ = e.metricsSink.Incr(metricsTypes.Metric_Incr_ClaimProcessed, nil, 1)
		_ = e.metricsSink.Timing(metricsTypes.Metric_Timing_ClaimDuration, duration, nil)
	}
}

func (e *Engine) emitRejection(err error) {
	if e.metricsSink == nil {
		return
	}
	reason := "internal"
	switch {
	case errors.Is(err, ErrDistributionNotFound):
		reason = "not_found"
	case errors.Is(err, ErrDistributionNotActive):
		reason = "not_active"
	case errors.Is(err, ErrClaimWindowClosed):
		reason = "window_closed"
	case errors.Is(err, ErrAlreadyClaimed):
		reason = "already_claimed"
	case errors.Is(err, ErrInvalidAmount):
		reason = "invalid_amount"
	case errors.Is(err, ErrInvalidProof):
		reason = "invalid_proof"
	}
	_ = e.metricsSink.Incr(metricsTypes.Metric_Incr_ClaimRejected, []metricsTypes.MetricsLabel{
		{Name: "reason", Value: reason},
	}, 1)
}
