package fees

import (
	"fmt"
	"math/big"
)

// BipsDenominator is the basis-point denominator: 10_000 bips = 100%.
const BipsDenominator = 10_000

// Calculator computes platform and maintenance fees in basis points using
// floor division, so rounding favors the claimant by at most a few base
// units. Rates are fixed at construction; a rate change only affects
// calculators built after it.
type Calculator struct {
	platformRateBips    uint64
	maintenanceRateBips uint64
}

func NewCalculator(platformRateBips, maintenanceRateBips uint64) (*Calculator, error) {
	if platformRateBips+maintenanceRateBips > BipsDenominator {
		return nil, fmt.Errorf("combined fee rate %d bips exceeds %d", platformRateBips+maintenanceRateBips, BipsDenominator)
	}
	return &Calculator{
		platformRateBips:    platformRateBips,
		maintenanceRateBips: maintenanceRateBips,
	}, nil
}

// Breakdown is the result of applying fee rates to a gross claim amount.
// Gross == PlatformFee + MaintenanceFee + Net always holds.
type Breakdown struct {
	Gross          *big.Int
	PlatformFee    *big.Int
	MaintenanceFee *big.Int
	Net            *big.Int
}

func (c *Calculator) Calculate(gross *big.Int) (*Breakdown, error) {
	if gross == nil || gross.Sign() < 0 {
		return nil, fmt.Errorf("gross amount must be a non-negative integer")
	}

	platformFee := feeFor(gross, c.platformRateBips)
	maintenanceFee := feeFor(gross, c.maintenanceRateBips)

	net := new(big.Int).Sub(gross, platformFee)
	net.Sub(net, maintenanceFee)

	return &Breakdown{
		Gross:          new(big.Int).Set(gross),
		PlatformFee:    platformFee,
		MaintenanceFee: maintenanceFee,
		Net:            net,
	}, nil
}

func feeFor(amount *big.Int, rateBips uint64) *big.Int {
	fee := new(big.Int).Mul(amount, new(big.Int).SetUint64(rateBips))
	return fee.Div(fee, big.NewInt(BipsDenominator))
}
