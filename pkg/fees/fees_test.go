package fees

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_FeeCalculator(t *testing.T) {
	t.Run("Should compute fees with floor division", func(t *testing.T) {
		calc, err := NewCalculator(250, 100)
		assert.Nil(t, err)

		breakdown, err := calc.Calculate(big.NewInt(10_000))
		assert.Nil(t, err)
		assert.Equal(t, big.NewInt(250), breakdown.PlatformFee)
		assert.Equal(t, big.NewInt(100), breakdown.MaintenanceFee)
		assert.Equal(t, big.NewInt(9_650), breakdown.Net)
	})

	t.Run("Should round fees down in favor of the claimant", func(t *testing.T) {
		calc, err := NewCalculator(250, 100)
		assert.Nil(t, err)

		// 2.5% of 39 = 0.975 -> 0, 1% of 39 = 0.39 -> 0
		breakdown, err := calc.Calculate(big.NewInt(39))
		assert.Nil(t, err)
		// compare via String: a computed zero and big.NewInt(0) differ in
		// internal representation, so DeepEqual-based asserts mismatch
		assert.Equal(t, "0", breakdown.PlatformFee.String())
		assert.Equal(t, "0", breakdown.MaintenanceFee.String())
		assert.Equal(t, "39", breakdown.Net.String())
	})

	t.Run("Should always conserve the gross amount", func(t *testing.T) {
		calc, err := NewCalculator(333, 77)
		assert.Nil(t, err)

		for _, gross := range []int64{0, 1, 7, 99, 10_000, 123_456_789} {
			breakdown, err := calc.Calculate(big.NewInt(gross))
			assert.Nil(t, err)

			sum := new(big.Int).Add(breakdown.PlatformFee, breakdown.MaintenanceFee)
			sum.Add(sum, breakdown.Net)
			assert.Zero(t, sum.Cmp(big.NewInt(gross)))
		}
	})

	t.Run("Should reject combined rates over 100%", func(t *testing.T) {
		_, err := NewCalculator(9_000, 1_001)
		assert.NotNil(t, err)
	})

	t.Run("Should allow a 100% combined rate", func(t *testing.T) {
		calc, err := NewCalculator(9_000, 1_000)
		assert.Nil(t, err)

		breakdown, err := calc.Calculate(big.NewInt(100))
		assert.Nil(t, err)
		assert.Equal(t, "0", breakdown.Net.String())
		assert.Equal(t, "90", breakdown.PlatformFee.String())
		assert.Equal(t, "10", breakdown.MaintenanceFee.String())
	})

	t.Run("Should reject nil and negative amounts", func(t *testing.T) {
		calc, err := NewCalculator(100, 0)
		assert.Nil(t, err)

		_, err = calc.Calculate(nil)
		assert.NotNil(t, err)

		_, err = calc.Calculate(big.NewInt(-1))
		assert.NotNil(t, err)
	})
}
