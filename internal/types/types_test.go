package types

import (
	"encoding/json"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRiskProfileText(t *testing.T) {
	p, err := ParseRiskProfile(" high ")
	require.NoError(t, err)
	assert.Equal(t, RiskHigh, p)
	_, err = ParseRiskProfile("EXTREME")
	require.ErrorIs(t, err, ErrInvalidArgument)

	bz, err := json.Marshal(struct {
		Profile RiskProfile `json:"profile"`
	}{RiskLow})
	require.NoError(t, err)
	assert.JSONEq(t, `{"profile":"LOW"}`, string(bz))

	var decoded struct {
		Profile RiskProfile `json:"profile"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"profile":"medium"}`), &decoded))
	assert.Equal(t, RiskMedium, decoded.Profile)

	_, err = RiskProfile(9).MarshalText()
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Equal(t, "RiskProfile(9)", RiskProfile(9).String())
}

func TestWeightValidation(t *testing.T) {
	assert.NoError(t, WeightPair{BpsA: 10000}.Validate())
	assert.ErrorIs(t, WeightPair{BpsA: 6000, BpsB: 5000}.Validate(), ErrInvalidArgument)

	table := WeightTable{{BpsA: 8000, BpsB: 2000}, {BpsA: 5000, BpsB: 5000}, {BpsA: 2000, BpsB: 8000}}
	require.NoError(t, table.Validate())
	table[RiskHigh] = WeightPair{BpsA: 1, BpsB: 1}
	err := table.Validate()
	require.ErrorIs(t, err, ErrInvalidArgument)
	assert.Contains(t, err.Error(), "HIGH")
}

func TestVaultParametersValidate(t *testing.T) {
	valid := VaultParameters{
		PerformanceFeeBps: 2000,
		CompoundFeeBps:    500,
		MinCompoundAmount: sdkmath.ZeroInt(),
		RiskProfile:       RiskLow,
		Weights:           WeightTable{{BpsA: 10000}, {BpsA: 5000, BpsB: 5000}, {BpsB: 10000}},
	}
	require.NoError(t, valid.Validate())

	tests := map[string]func(p *VaultParameters){
		"performance fee": func(p *VaultParameters) { p.PerformanceFeeBps = 2001 },
		"compound fee":    func(p *VaultParameters) { p.CompoundFeeBps = 501 },
		"nil minimum":     func(p *VaultParameters) { p.MinCompoundAmount = sdkmath.Int{} },
		"profile":         func(p *VaultParameters) { p.RiskProfile = 3 },
		"weights":         func(p *VaultParameters) { p.Weights[0] = WeightPair{} },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			p := valid
			mutate(&p)
			assert.ErrorIs(t, p.Validate(), ErrInvalidArgument)
		})
	}
}

func TestAccessControl(t *testing.T) {
	ac := AccessControl{Owner: "owner"}
	assert.NoError(t, ac.RequireOwner("owner"))
	assert.ErrorIs(t, ac.RequireOwner("mallory"), ErrUnauthorized)
	assert.ErrorIs(t, ac.RequireOwner(""), ErrUnauthorized)

	assert.NoError(t, ac.RequireOneOf("ledger", "ledger"))
	assert.ErrorIs(t, ac.RequireOneOf("mallory", "ledger", ""), ErrUnauthorized)
	assert.ErrorIs(t, AccessControl{}.RequireOneOf("", ""), ErrUnauthorized)
}
