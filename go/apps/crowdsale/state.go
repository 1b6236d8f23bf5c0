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
	"github.com/appvault-labs/appvault/go/appvault"
)

// Storage layout of a crowdsale instance. The token ledger shares the key
// space under its own keys.
var (
	adminKey        = appvault.NewKey("sale.admin")
	walletKey       = appvault.NewKey("sale.wallet")
	startKey        = appvault.NewKey("sale.start")
	initializedKey  = appvault.NewKey("sale.initialized")
	finalizedKey    = appvault.NewKey("sale.finalized")
	currentTierKey  = appvault.NewKey("sale.currentTier")
	tokensSoldKey   = appvault.NewKey("sale.tokensSold")
	weiRaisedKey    = appvault.NewKey("sale.weiRaised")
	uniqueBuyersKey = appvault.NewKey("sale.uniqueBuyers")

	tiers    = appvault.NewList(appvault.NewKey("sale.tiers"), tierWidth)
	reserved = appvault.NewList(appvault.NewKey("sale.reserved"), 1)
)

// Fields of a tier list element.
const (
	tierName = iota
	tierPrice
	tierDuration
	tierCap
	tierMinimum
	tierSold
	tierFlags
	tierWidth
)

const (
	flagWhitelisted = 1 << iota
	flagModifiable
)

func buyerKey(buyer appvault.Address) appvault.Key {
	return appvault.NewKey("sale.buyer", buyer[:])
}

func purchasedKey(tier uint64, buyer appvault.Address) appvault.Key {
	return appvault.NewKey("sale.purchased", appvault.Uint64Bytes(tier), buyer[:])
}

// whitelistKey is the base of a whitelist entry: +0 minimum, +1 remaining
// maximum, +2 listed flag.
func whitelistKey(tier uint64, buyer appvault.Address) appvault.Key {
	return appvault.NewKey("sale.whitelist", appvault.Uint64Bytes(tier), buyer[:])
}

func whitelistList(tier uint64) appvault.List {
	return appvault.NewList(appvault.NewKey("sale.whitelistList", appvault.Uint64Bytes(tier)), 1)
}

// reservedInfoKey is the base of a reserved destination record: +0 flat
// amount, +1 percent, +2 precision, +3 list position plus one.
func reservedInfoKey(destination appvault.Address) appvault.Key {
	return appvault.NewKey("sale.reservedInfo", destination[:])
}

// Tier is a time and cap bounded pricing phase of a sale. Amounts of tokens
// are in token base units.
type Tier struct {
	Name        appvault.Name
	Price       appvault.Value // wei per token
	Duration    uint64         // seconds
	Cap         appvault.Value
	Minimum     appvault.Value // tokens a buyer must purchase on first purchase in the tier
	Sold        appvault.Value
	Whitelisted bool
	Modifiable  bool
}

// Remaining returns the number of tokens still for sale in the tier.
func (t *Tier) Remaining() appvault.Value {
	return appvault.Sub(t.Cap, t.Sold)
}

func readTier(view appvault.View, i uint64) Tier {
	flags := view.Get(tiers.Slot(i, tierFlags)).Uint64()
	return Tier{
		Name:        appvault.NameFromWord(view.Get(tiers.Slot(i, tierName))),
		Price:       view.Get(tiers.Slot(i, tierPrice)).ToValue(),
		Duration:    view.Get(tiers.Slot(i, tierDuration)).Uint64(),
		Cap:         view.Get(tiers.Slot(i, tierCap)).ToValue(),
		Minimum:     view.Get(tiers.Slot(i, tierMinimum)).ToValue(),
		Sold:        view.Get(tiers.Slot(i, tierSold)).ToValue(),
		Whitelisted: flags&flagWhitelisted != 0,
		Modifiable:  flags&flagModifiable != 0,
	}
}

func readTiers(view appvault.View) []Tier {
	n := tiers.Len(view)
	res := make([]Tier, 0, n)
	for i := uint64(0); i < n; i++ {
		res = append(res, readTier(view, i))
	}
	return res
}

func writeTier(buffer *appvault.Buffer, i uint64, tier Tier) {
	var flags uint64
	if tier.Whitelisted {
		flags |= flagWhitelisted
	}
	if tier.Modifiable {
		flags |= flagModifiable
	}
	buffer.Set(tiers.Slot(i, tierName), tier.Name.Word())
	buffer.Set(tiers.Slot(i, tierPrice), appvault.WordFromValue(tier.Price))
	buffer.Set(tiers.Slot(i, tierDuration), appvault.WordFromUint64(tier.Duration))
	buffer.Set(tiers.Slot(i, tierCap), appvault.WordFromValue(tier.Cap))
	buffer.Set(tiers.Slot(i, tierMinimum), appvault.WordFromValue(tier.Minimum))
	buffer.Set(tiers.Slot(i, tierSold), appvault.WordFromValue(tier.Sold))
	buffer.Set(tiers.Slot(i, tierFlags), appvault.WordFromUint64(flags))
}

// state is the sale-wide part of a crowdsale instance.
type state struct {
	Admin       appvault.Address
	Wallet      appvault.Address
	Start       uint64
	Initialized bool
	Finalized   bool
}

func readState(view appvault.View) state {
	return state{
		Admin:       view.Get(adminKey).Address(),
		Wallet:      view.Get(walletKey).Address(),
		Start:       view.Get(startKey).Uint64(),
		Initialized: view.Get(initializedKey).Bool(),
		Finalized:   view.Get(finalizedKey).Bool(),
	}
}

// WhitelistEntry limits the purchases of a buyer in a whitelisted tier.
type WhitelistEntry struct {
	Minimum      appvault.Value // tokens required on the first purchase
	MaxRemaining appvault.Value // tokens the buyer may still purchase
	Listed       bool
}

func readWhitelist(view appvault.View, tier uint64, buyer appvault.Address) WhitelistEntry {
	base := whitelistKey(tier, buyer)
	return WhitelistEntry{
		Minimum:      view.Get(base).ToValue(),
		MaxRemaining: view.Get(base.Offset(1)).ToValue(),
		Listed:       view.Get(base.Offset(2)).Bool(),
	}
}

func writeWhitelist(buffer *appvault.Buffer, tier uint64, buyer appvault.Address, entry WhitelistEntry) {
	base := whitelistKey(tier, buyer)
	if !buffer.Get(base.Offset(2)).Bool() {
		whitelistList(tier).Append(buffer, appvault.WordFromAddress(buyer))
	}
	buffer.Set(base, appvault.WordFromValue(entry.Minimum))
	buffer.Set(base.Offset(1), appvault.WordFromValue(entry.MaxRemaining))
	buffer.Set(base.Offset(2), appvault.WordFromBool(entry.Listed))
}

// Reservation is a post-sale token grant of a reserved destination.
type Reservation struct {
	Destination appvault.Address
	Flat        appvault.Value // tokens granted regardless of the sale result
	Percent     appvault.Value // share of the sold tokens, scaled by 10^(2+Precision)
	Precision   uint8
}

func readReservation(view appvault.View, destination appvault.Address) (Reservation, uint64, bool) {
	base := reservedInfoKey(destination)
	position := view.Get(base.Offset(3)).Uint64()
	if position == 0 {
		return Reservation{}, 0, false
	}
	return Reservation{
		Destination: destination,
		Flat:        view.Get(base).ToValue(),
		Percent:     view.Get(base.Offset(1)).ToValue(),
		Precision:   uint8(view.Get(base.Offset(2)).Uint64()),
	}, position - 1, true
}

func readReservations(view appvault.View) []Reservation {
	n := reserved.Len(view)
	res := make([]Reservation, 0, n)
	for i := uint64(0); i < n; i++ {
		reservation, _, _ := readReservation(view, reserved.Get(view, i).Address())
		res = append(res, reservation)
	}
	return res
}

// putReservation adds or updates a reserved destination.
func putReservation(buffer *appvault.Buffer, reservation Reservation) error {
	base := reservedInfoKey(reservation.Destination)
	if buffer.Get(base.Offset(3)).IsZero() {
		n := reserved.Len(buffer)
		if n >= MaxReservedDestinations {
			return errTooManyReservations
		}
		reserved.Append(buffer, appvault.WordFromAddress(reservation.Destination))
		buffer.Set(base.Offset(3), appvault.WordFromUint64(n+1))
	}
	buffer.Set(base, appvault.WordFromValue(reservation.Flat))
	buffer.Set(base.Offset(1), appvault.WordFromValue(reservation.Percent))
	buffer.Set(base.Offset(2), appvault.WordFromUint64(uint64(reservation.Precision)))
	return nil
}

// removeReservation deletes the reserved destination at the given position
// by moving the last destination into its place.
func removeReservation(buffer *appvault.Buffer, position uint64) {
	n := reserved.Len(buffer)
	removed := reserved.Get(buffer, position).Address()
	if last := n - 1; position != last {
		moved := reserved.Get(buffer, last)
		buffer.Set(reserved.Slot(position, 0), moved)
		buffer.Set(reservedInfoKey(moved.Address()).Offset(3), appvault.WordFromUint64(position+1))
	}
	buffer.Set(reserved.Slot(n-1, 0), appvault.Word{})
	reserved.SetLen(buffer, n-1)

	base := reservedInfoKey(removed)
	for i := uint64(0); i < 4; i++ {
		buffer.Set(base.Offset(i), appvault.Word{})
	}
}
