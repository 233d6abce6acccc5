// Package fee computes the settlement fee split for a gross invoice amount.
//
// The arithmetic is a faithful off-chain mirror of the deployed InvoiceManager
// contract: integer basis-point math, floor division, and a flat exemption
// below the fee threshold. Previews computed here must never diverge from the
// fee the contract takes on execution.
package fee

import (
	"errors"
	"fmt"
	"math/big"
)

// BasisPointDenominator is the contract's fee denominator: 10000 bps = 100%.
const BasisPointDenominator = 10000

// ErrInvalidAmount is returned when the gross amount is zero or negative.
var ErrInvalidAmount = errors.New("fee: invalid amount")

// ErrInvalidPolicy is returned for basis points outside [0, 10000].
var ErrInvalidPolicy = errors.New("fee: invalid policy")

// Policy holds the fee parameters read from (or configured to match) the
// on-chain contract.
type Policy struct {
	// BasisPoints is the fee rate in hundredths of a percent (150 = 1.5%).
	BasisPoints int64

	// Threshold is the gross amount, in token base units, below which no
	// fee is taken. Nil means no exemption.
	Threshold *big.Int
}

// Validate checks the policy parameters.
func (p Policy) Validate() error {
	if p.BasisPoints < 0 || p.BasisPoints > BasisPointDenominator {
		return fmt.Errorf("%w: basis points %d outside [0, %d]", ErrInvalidPolicy, p.BasisPoints, BasisPointDenominator)
	}
	if p.Threshold != nil && p.Threshold.Sign() < 0 {
		return fmt.Errorf("%w: negative threshold", ErrInvalidPolicy)
	}
	return nil
}

// Compute splits gross into (fee, net) in token base units.
//
// Amounts below the threshold are fee-exempt. Otherwise
// fee = floor(gross * bps / 10000); the rounding always favors the payee,
// matching the contract, so fee + net == gross holds exactly.
func (p Policy) Compute(gross *big.Int) (feeAmount, netAmount *big.Int, err error) {
	if err := p.Validate(); err != nil {
		return nil, nil, err
	}
	if gross == nil || gross.Sign() <= 0 {
		return nil, nil, ErrInvalidAmount
	}

	if p.Threshold != nil && gross.Cmp(p.Threshold) < 0 {
		return new(big.Int), new(big.Int).Set(gross), nil
	}

	feeAmount = new(big.Int).Mul(gross, big.NewInt(p.BasisPoints))
	feeAmount.Quo(feeAmount, big.NewInt(BasisPointDenominator))
	netAmount = new(big.Int).Sub(gross, feeAmount)

	return feeAmount, netAmount, nil
}

// Split is a computed fee breakdown.
type Split struct {
	Gross *big.Int `json:"gross"`
	Fee   *big.Int `json:"fee"`
	Net   *big.Int `json:"net"`
}

// ComputeSplit is Compute returning the Split form used by previews.
func (p Policy) ComputeSplit(gross *big.Int) (Split, error) {
	feeAmount, netAmount, err := p.Compute(gross)
	if err != nil {
		return Split{}, err
	}
	return Split{Gross: new(big.Int).Set(gross), Fee: feeAmount, Net: netAmount}, nil
}
