package distribution

import (
	"errors"
	"fmt"
	"strings"
	"time"

	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"github.com/propshare-labs/distributor/internal/config"
	"github.com/propshare-labs/distributor/pkg/merkle"
	"github.com/propshare-labs/distributor/pkg/numbers"
	"github.com/propshare-labs/distributor/pkg/postgres/helpers"
	"github.com/propshare-labs/distributor/pkg/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrDistributionNotFound = errors.New("distribution not found")
	ErrInvalidTransition    = errors.New("invalid distribution status transition")
)

// Registry owns the distributions table and its status lifecycle
// (created -> active -> closed|cancelled). It accepts the creator-supplied
// root and total without recomputation; that trust boundary is deliberate.
type Registry struct {
	db           *gorm.DB
	logger       *zap.Logger
	globalConfig *config.Config
}

func NewRegistry(grm *gorm.DB, l *zap.Logger, cfg *config.Config) *Registry {
	return &Registry{
		db:           grm,
		logger:       l,
		globalConfig: cfg,
	}
}

type CreateDistributionParams struct {
	Creator          string
	AssetId          string
	TokenAddress     string
	DistributionKind string
	WindowEnd        time.Time
	Description      string
	TotalAmount      string
	MerkleRoot       string

	// Optional: the committed eligibility set, persisted for proof serving.
	Entries []merkle.Entry
}

func (p *CreateDistributionParams) validate() error {
	if !utils.IsValidHexAddress(p.Creator) {
		return fmt.Errorf("invalid creator address '%s'", p.Creator)
	}
	if !utils.IsValidHexAddress(p.TokenAddress) {
		return fmt.Errorf("invalid token address '%s'", p.TokenAddress)
	}
	if p.AssetId == "" {
		return fmt.Errorf("asset id is required")
	}
	if p.DistributionKind == "" {
		return fmt.Errorf("distribution kind is required")
	}
	if p.WindowEnd.IsZero() {
		return fmt.Errorf("window end is required")
	}
	total, err := numbers.NumericStringToBig(p.TotalAmount)
	if err != nil || total.Sign() <= 0 {
		return fmt.Errorf("total amount '%s' must be a positive integer", p.TotalAmount)
	}
	if !merkle.IsValidRootString(p.MerkleRoot) {
		return fmt.Errorf("invalid merkle root '%s'", p.MerkleRoot)
	}
	return nil
}

// CreateDistribution writes a new distribution in the Created state along
// with its eligibility set. Malformed input is rejected synchronously and
// nothing is written.
func (r *Registry) CreateDistribution(params *CreateDistributionParams) (*Distribution, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}

	dist := &Distribution{
		Id:               uuid.New().String(),
		Creator:          strings.ToLower(params.Creator),
		AssetId:          params.AssetId,
		TokenAddress:     strings.ToLower(params.TokenAddress),
		DistributionKind: params.DistributionKind,
		WindowEnd:        params.WindowEnd.UTC(),
		Status:           DistributionStatus_Created,
		Description:      params.Description,
		TotalAmount:      params.TotalAmount,
		MerkleRoot:       strings.ToLower(params.MerkleRoot),
	}

	_, err := helpers.WrapTxAndCommit(func(tx *gorm.DB) (interface{}, error) {
		if res := tx.Model(&Distribution{}).Create(dist); res.Error != nil {
			return nil, pkgerrors.Wrap(res.Error, "failed to insert distribution")
		}

		if len(params.Entries) > 0 {
			rows := make([]*EligibilityEntry, 0, len(params.Entries))
			for _, entry := range params.Entries {
				rows = append(rows, &EligibilityEntry{
					DistributionId: dist.Id,
					Holder:         strings.ToLower(entry.Holder.Hex()),
					Amount:         entry.Amount.String(),
				})
			}
			if res := tx.Model(&EligibilityEntry{}).Create(&rows); res.Error != nil {
				return nil, pkgerrors.Wrap(res.Error, "failed to insert eligibility entries")
			}
		}
		return nil, nil
	}, r.db, nil)
	if err != nil {
		return nil, err
	}

	r.logger.Sugar().Infow("Created distribution",
		zap.String("distributionId", dist.Id),
		zap.String("assetId", dist.AssetId),
		zap.String("totalAmount", dist.TotalAmount),
		zap.String("merkleRoot", dist.MerkleRoot),
	)
	return dist, nil
}

var allowedTransitions = map[DistributionStatus][]DistributionStatus{
	DistributionStatus_Created:   {DistributionStatus_Active, DistributionStatus_Cancelled},
	DistributionStatus_Active:    {DistributionStatus_Closed, DistributionStatus_Cancelled},
	DistributionStatus_Closed:    {},
	DistributionStatus_Cancelled: {},
}

func canTransition(from, to DistributionStatus) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

func (r *Registry) transition(distributionId string, to DistributionStatus) (*Distribution, error) {
	return helpers.WrapTxAndCommit(func(tx *gorm.DB) (*Distribution, error) {
		dist, err := getDistributionForUpdate(tx, distributionId)
		if err != nil {
			return nil, err
		}
		if !canTransition(dist.Status, to) {
			return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, dist.Status, to)
		}

		res := tx.Model(&Distribution{}).
			Where("id = ?", distributionId).
			Updates(map[string]interface{}{"status": to, "updated_at": time.Now().UTC()})
		if res.Error != nil {
			return nil, res.Error
		}
		dist.Status = to
		return dist, nil
	}, r.db, nil)
}

// ActivateDistribution opens a created distribution for claims.
func (r *Registry) ActivateDistribution(distributionId string) (*Distribution, error) {
	return r.transition(distributionId, DistributionStatus_Active)
}

// CloseDistribution stops further claims, either by operator action or once
// the claim window has passed.
func (r *Registry) CloseDistribution(distributionId string) (*Distribution, error) {
	return r.transition(distributionId, DistributionStatus_Closed)
}

// CancelDistribution is the administrative override for a bad root. Escrowed
// funds become returnable to the creator.
func (r *Registry) CancelDistribution(distributionId string) (*Distribution, error) {
	return r.transition(distributionId, DistributionStatus_Cancelled)
}

func getDistributionForUpdate(tx *gorm.DB, distributionId string) (*Distribution, error) {
	var dist Distribution
	res := tx.Raw(`SELECT * FROM distributions WHERE id = ? FOR UPDATE`, distributionId).Scan(&dist)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrDistributionNotFound
	}
	return &dist, nil
}

func (r *Registry) GetDistribution(distributionId string) (*Distribution, error) {
	var dist Distribution
	res := r.db.Model(&Distribution{}).Where("id = ?", distributionId).First(&dist)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return nil, ErrDistributionNotFound
		}
		return nil, res.Error
	}
	return &dist, nil
}

// CountDistributionsByStatus backs the active-distributions gauge.
func (r *Registry) CountDistributionsByStatus(status DistributionStatus) (int64, error) {
	var count int64
	res := r.db.Model(&Distribution{}).Where("status = ?", status).Count(&count)
	if res.Error != nil {
		return 0, res.Error
	}
	return count, nil
}

// IsClaimed reports the per-holder claimed flag, so claimability can be
// checked without attempting a claim.
func (r *Registry) IsClaimed(distributionId string, holder string) (bool, error) {
	var count int64
	res := r.db.Model(&ClaimRecord{}).
		Where("distribution_id = ? AND holder = ?", distributionId, strings.ToLower(holder)).
		Count(&count)
	if res.Error != nil {
		return false, res.Error
	}
	return count > 0, nil
}

func (r *Registry) GetClaimRecord(distributionId string, holder string) (*ClaimRecord, error) {
	var record ClaimRecord
	res := r.db.Model(&ClaimRecord{}).
		Where("distribution_id = ? AND holder = ?", distributionId, strings.ToLower(holder)).
		First(&record)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, res.Error
	}
	return &record, nil
}

// ListEligibilityEntries returns the committed set for a distribution in the
// canonical form the tree builder consumes.
func (r *Registry) ListEligibilityEntries(distributionId string) ([]merkle.Entry, error) {
	var rows []*EligibilityEntry
	res := r.db.Model(&EligibilityEntry{}).
		Where("distribution_id = ?", distributionId).
		Order("holder asc").
		Find(&rows)
	if res.Error != nil {
		return nil, res.Error
	}

	entries := make([]merkle.Entry, 0, len(rows))
	for _, row := range rows {
		amount, err := numbers.NumericStringToBig(row.Amount)
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "corrupt eligibility amount for holder %s", row.Holder)
		}
		entries = append(entries, merkle.Entry{
			Holder: gethcommon.HexToAddress(row.Holder),
			Amount: amount,
		})
	}
	return entries, nil
}

type ClaimedTotals struct {
	ClaimCount     int64
	ClaimedAmount  string
	PlatformFee    string
	MaintenanceFee string
	NetAmount      string
}

// GetClaimedTotals aggregates what has already been paid out of a
// distribution. Used for the conservation audit: claimed <= total_amount.
func (r *Registry) GetClaimedTotals(distributionId string) (*ClaimedTotals, error) {
	query := `
		SELECT
			count(*) AS claim_count,
			coalesce(sum(claimed_amount), 0) AS claimed_amount,
			coalesce(sum(platform_fee), 0) AS platform_fee,
			coalesce(sum(maintenance_fee), 0) AS maintenance_fee,
			coalesce(sum(net_amount), 0) AS net_amount
		FROM claim_records
		WHERE distribution_id = ?
	`
	var totals ClaimedTotals
	res := r.db.Raw(query, distributionId).Scan(&totals)
	if res.Error != nil {
		return nil, res.Error
	}
	return &totals, nil
}
