/*

Risk profiles and the weight pairs that govern how deposits are split between
the two venues. Weights are expressed in basis points and every pair must sum
to BpsDenominator.

*/

package types

import (
	"fmt"
	"strings"
)

// BpsDenominator is 100% expressed in basis points.
const BpsDenominator = 10000

type RiskProfile uint8

const (
	RiskLow RiskProfile = iota
	RiskMedium
	RiskHigh
)

// NumRiskProfiles is the size of the weight table.
const NumRiskProfiles = 3

func (p RiskProfile) Valid() bool {
	return p < NumRiskProfiles
}

func (p RiskProfile) String() string {
	switch p {
	case RiskLow:
		return "LOW"
	case RiskMedium:
		return "MEDIUM"
	case RiskHigh:
		return "HIGH"
	default:
		return fmt.Sprintf("RiskProfile(%d)", uint8(p))
	}
}

// MarshalText lets profiles travel as "LOW"/"MEDIUM"/"HIGH" in JSON.
func (p RiskProfile) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("%w: unknown risk profile %d", ErrInvalidArgument, uint8(p))
	}
	return []byte(p.String()), nil
}

func (p *RiskProfile) UnmarshalText(text []byte) error {
	parsed, err := ParseRiskProfile(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ParseRiskProfile accepts the profile name in any case.
func ParseRiskProfile(s string) (RiskProfile, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LOW":
		return RiskLow, nil
	case "MEDIUM":
		return RiskMedium, nil
	case "HIGH":
		return RiskHigh, nil
	default:
		return 0, fmt.Errorf("%w: unknown risk profile %q", ErrInvalidArgument, s)
	}
}

// WeightPair is the (venue A, venue B) split in basis points.
type WeightPair struct {
	BpsA uint64 `json:"bps_a"`
	BpsB uint64 `json:"bps_b"`
}

// Validate enforces BpsA + BpsB == BpsDenominator.
func (w WeightPair) Validate() error {
	if w.BpsA > BpsDenominator || w.BpsB > BpsDenominator || w.BpsA+w.BpsB != BpsDenominator {
		return fmt.Errorf("%w: weights %d/%d do not sum to %d", ErrInvalidArgument, w.BpsA, w.BpsB, BpsDenominator)
	}
	return nil
}

// WeightTable indexes a weight pair by risk profile.
type WeightTable [NumRiskProfiles]WeightPair

func (t WeightTable) Validate() error {
	for i, pair := range t {
		if err := pair.Validate(); err != nil {
			return fmt.Errorf("profile %s: %w", RiskProfile(i), err)
		}
	}
	return nil
}
