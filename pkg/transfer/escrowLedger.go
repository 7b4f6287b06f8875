package transfer

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/propshare-labs/distributor/pkg/numbers"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInsufficientEscrow = errors.New("insufficient escrowed funds")

const (
	Direction_Credit = "credit"
	Direction_Debit  = "debit"
)

// Transferor releases settlement funds out of a distribution's escrow. The
// claims engine only knows this interface; the ledger below is the
// bookkeeping implementation.
type Transferor interface {
	Transfer(tx *gorm.DB, distributionId string, to string, amount *big.Int, reference string) error
}

type LedgerEntry struct {
	Id             uint64 `gorm:"primaryKey;autoIncrement"`
	DistributionId string
	Direction      string
	Account        string
	Amount         string
	Reference      string
	CreatedAt      time.Time
}

func (LedgerEntry) TableName() string {
	return "escrow_ledger"
}

// EscrowLedger tracks the settlement-asset balance escrowed per
// distribution as credits (funding) and debits (payouts and fees), so that
// sum(payouts + fees) <= funded is auditable after the fact.
type EscrowLedger struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewEscrowLedger(grm *gorm.DB, l *zap.Logger) *EscrowLedger {
	return &EscrowLedger{
		db:     grm,
		logger: l,
	}
}

// Fund credits a distribution's escrow, typically in the same flow that
// creates the distribution.
func (e *EscrowLedger) Fund(distributionId string, from string, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("funding amount must be positive")
	}
	entry := &LedgerEntry{
		DistributionId: distributionId,
		Direction:      Direction_Credit,
		Account:        strings.ToLower(from),
		Amount:         amount.String(),
		Reference:      "escrow funding",
	}
	res := e.db.Model(&LedgerEntry{}).Create(entry)
	return res.Error
}

// Transfer debits the distribution's escrow in favor of the given account.
// Runs on the caller's transaction so a failed claim rolls the debit back.
func (e *EscrowLedger) Transfer(tx *gorm.DB, distributionId string, to string, amount *big.Int, reference string) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("transfer amount must be non-negative")
	}
	if amount.Sign() == 0 {
		return nil
	}

	balance, err := e.balanceWithDb(tx, distributionId)
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return ErrInsufficientEscrow
	}

	entry := &LedgerEntry{
		DistributionId: distributionId,
		Direction:      Direction_Debit,
		Account:        strings.ToLower(to),
		Amount:         amount.String(),
		Reference:      reference,
	}
	res := tx.Model(&LedgerEntry{}).Create(entry)
	return res.Error
}

// Balance returns funded minus paid for a distribution.
func (e *EscrowLedger) Balance(distributionId string) (*big.Int, error) {
	return e.balanceWithDb(e.db, distributionId)
}

func (e *EscrowLedger) balanceWithDb(db *gorm.DB, distributionId string) (*big.Int, error) {
	query := `
		SELECT coalesce(sum(CASE WHEN direction = 'credit' THEN amount ELSE -amount END), 0) AS balance
		FROM escrow_ledger
		WHERE distribution_id = ?
	`
	var balance string
	res := db.Raw(query, distributionId).Scan(&balance)
	if res.Error != nil {
		return nil, res.Error
	}
	return numbers.NumericStringToBig(balance)
}
