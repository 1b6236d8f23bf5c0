// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package crowdsale

import (
	"fmt"
	"math/bits"

	"github.com/appvault-labs/appvault/go/appvault"
	"github.com/holiman/uint256"
)

// Window is the time span [Start, End) of a tier.
type Window struct {
	Start uint64
	End   uint64
}

// tierWindows computes the windows of all tiers of a sale starting at the
// given time. Each tier starts when its predecessor ends.
func tierWindows(start uint64, tiers []Tier) []Window {
	res := make([]Window, len(tiers))
	current := start
	for i, tier := range tiers {
		res[i] = Window{Start: current, End: current + tier.Duration}
		current = res[i].End
	}
	return res
}

// ResolveTier returns the index of the tier whose window contains now. The
// result depends on the tier table and the time only; it is recomputed on
// every purchase instead of being advanced by a scheduler.
func ResolveTier(start uint64, tiers []Tier, now uint64) (uint64, Window, error) {
	if now < start {
		return 0, Window{}, fmt.Errorf("%w: sale starts at %d, now is %d", appvault.ErrInvalidState, start, now)
	}
	for i, window := range tierWindows(start, tiers) {
		if now < window.End {
			return uint64(i), window, nil
		}
	}
	return 0, Window{}, fmt.Errorf("%w: sale ended", appvault.ErrInvalidState)
}

// checkSaleEnd fails if the end of the last tier of a sale starting at the
// given time does not fit into a uint64.
func checkSaleEnd(start uint64, tiers []Tier) error {
	end := start
	for _, tier := range tiers {
		var carry uint64
		if end, carry = bits.Add64(end, tier.Duration, 0); carry != 0 {
			return fmt.Errorf("%w: sale starting at %d ends beyond the representable time", appvault.ErrInvalidArgument, start)
		}
	}
	return nil
}

// End returns the end time of a sale.
func End(start uint64, tiers []Tier) uint64 {
	windows := tierWindows(start, tiers)
	if len(windows) == 0 {
		return start
	}
	return windows[len(windows)-1].End
}

func pow10(exponent uint64) (*uint256.Int, error) {
	// 10^77 is the largest power of ten below 2^256.
	if exponent > 77 {
		return nil, fmt.Errorf("%w: exponent %d too large", appvault.ErrInvalidArgument, exponent)
	}
	return new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(exponent)), nil
}

// TokensFor returns the number of token base units value wei buy at the
// given price per whole token.
func TokensFor(value, price appvault.Value, decimals uint8) (appvault.Value, error) {
	if price.IsZero() {
		return appvault.Value{}, fmt.Errorf("%w: zero price", appvault.ErrInvalidState)
	}
	unit, err := pow10(uint64(decimals))
	if err != nil {
		return appvault.Value{}, err
	}
	res, overflow := new(uint256.Int).MulDivOverflow(value.ToUint256(), unit, price.ToUint256())
	if overflow {
		return appvault.Value{}, fmt.Errorf("%w: purchase overflow", appvault.ErrInvalidArgument)
	}
	return appvault.ValueFromUint256(res), nil
}

// CostOf returns the wei needed to buy the given number of token base units.
func CostOf(tokens, price appvault.Value, decimals uint8) (appvault.Value, error) {
	unit, err := pow10(uint64(decimals))
	if err != nil {
		return appvault.Value{}, err
	}
	res, overflow := new(uint256.Int).MulDivOverflow(tokens.ToUint256(), price.ToUint256(), unit)
	if overflow {
		return appvault.Value{}, fmt.Errorf("%w: cost overflow", appvault.ErrInvalidArgument)
	}
	return appvault.ValueFromUint256(res), nil
}

// Grant computes the tokens a reserved destination receives:
// flat + floor(sold * percent / 10^(2+precision)).
func Grant(reservation Reservation, sold appvault.Value) (appvault.Value, error) {
	scale, err := pow10(2 + uint64(reservation.Precision))
	if err != nil {
		return appvault.Value{}, err
	}
	share, overflow := new(uint256.Int).MulDivOverflow(sold.ToUint256(), reservation.Percent.ToUint256(), scale)
	if overflow {
		return appvault.Value{}, fmt.Errorf("%w: reserved share overflow", appvault.ErrInvalidArgument)
	}
	res, overflow := appvault.AddChecked(reservation.Flat, appvault.ValueFromUint256(share))
	if overflow {
		return appvault.Value{}, fmt.Errorf("%w: reserved grant overflow", appvault.ErrInvalidArgument)
	}
	return res, nil
}

func minValue(a, b appvault.Value) appvault.Value {
	if a.Cmp(b) < 0 {
		return a
	}
	return b
}

func maxValue(a, b appvault.Value) appvault.Value {
	if a.Cmp(b) > 0 {
		return a
	}
	return b
}

func nowOf(call appvault.Call) uint64 {
	if call.Timestamp < 0 {
		return 0
	}
	return uint64(call.Timestamp)
}
