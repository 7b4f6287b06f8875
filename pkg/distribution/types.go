package distribution

import (
	"time"
)

type DistributionStatus string

const (
	DistributionStatus_Created   DistributionStatus = "created"
	DistributionStatus_Active    DistributionStatus = "active"
	DistributionStatus_Closed    DistributionStatus = "closed"
	DistributionStatus_Cancelled DistributionStatus = "cancelled"
)

// Distribution is one round of proportional payout: metadata, the committed
// Merkle root and total amount. Immutable after creation except for status.
type Distribution struct {
	Id               string
	Creator          string
	AssetId          string
	TokenAddress     string
	DistributionKind string
	WindowEnd        time.Time
	Status           DistributionStatus
	Description      string
	TotalAmount      string
	MerkleRoot       string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (Distribution) TableName() string {
	return "distributions"
}

// ClaimRecord marks one successful claim for (distribution, holder). It is
// written exactly once; its presence is what makes later attempts fail.
type ClaimRecord struct {
	DistributionId string
	Holder         string
	ClaimedAmount  string
	PlatformFee    string
	MaintenanceFee string
	NetAmount      string
	ClaimedAt      time.Time
}

func (ClaimRecord) TableName() string {
	return "claim_records"
}

// EligibilityEntry is one holder's committed share, persisted off-ledger at
// creation so proofs can be re-derived on demand.
type EligibilityEntry struct {
	DistributionId string
	Holder         string
	Amount         string
	CreatedAt      time.Time
}

func (EligibilityEntry) TableName() string {
	return "eligibility_entries"
}
