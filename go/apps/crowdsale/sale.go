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

	"github.com/appvault-labs/appvault/go/apps/token"
	"github.com/appvault-labs/appvault/go/appvault"
)

var BuyMethod = appvault.NewFunction("buy", nil, nil)

var sale = appvault.NewRouter(
	appvault.Function{Method: BuyMethod, Handle: buy},
)

// buy purchases tokens in the current tier with the wei attached to the
// call. Purchases exceeding the tier's remaining cap or the buyer's
// whitelist allowance are reduced to what is left; the wei not spent is
// refunded by the dispatcher. The spent wei is forwarded to the sale wallet.
func buy(call appvault.Call, _ appvault.Args, buffer *appvault.Buffer) error {
	s := readState(buffer)
	if !s.Initialized || s.Finalized {
		return fmt.Errorf("%w: sale is not running", appvault.ErrInvalidState)
	}
	if call.Value.IsZero() {
		return fmt.Errorf("%w: no wei attached", appvault.ErrInvalidArgument)
	}
	buyer := call.Sender

	index, _, err := ResolveTier(s.Start, readTiers(buffer), nowOf(call))
	if err != nil {
		return err
	}
	if buffer.Get(currentTierKey).Uint64() != index {
		buffer.Set(currentTierKey, appvault.WordFromUint64(index))
	}
	tier := readTier(buffer, index)
	remaining := tier.Remaining()
	if remaining.IsZero() {
		return fmt.Errorf("%w: tier %d", appvault.ErrTierSoldOut, index)
	}

	decimals := token.GetMetadata(buffer).Decimals
	tokens, err := TokensFor(call.Value, tier.Price, decimals)
	if err != nil {
		return err
	}

	first := !buffer.Get(purchasedKey(index, buyer)).Bool()
	minimum := tier.Minimum
	var entry WhitelistEntry
	if tier.Whitelisted {
		entry = readWhitelist(buffer, index, buyer)
		if !entry.Listed {
			return fmt.Errorf("%w: %v in tier %d", appvault.ErrNotWhitelisted, buyer, index)
		}
		if entry.MaxRemaining.IsZero() {
			return fmt.Errorf("%w: %v exhausted its allowance in tier %d", appvault.ErrNotWhitelisted, buyer, index)
		}
		minimum = maxValue(minimum, entry.Minimum)
	}
	if first && tokens.Cmp(minimum) < 0 {
		return fmt.Errorf("%w: %v tokens, minimum is %v", appvault.ErrBelowMinimumContribution, tokens, minimum)
	}

	tokens = minValue(tokens, remaining)
	if tier.Whitelisted {
		tokens = minValue(tokens, entry.MaxRemaining)
	}
	if tokens.IsZero() {
		return fmt.Errorf("%w: attached wei buys no tokens", appvault.ErrInvalidArgument)
	}
	spend, err := CostOf(tokens, tier.Price, decimals)
	if err != nil {
		return err
	}

	tier.Sold = appvault.Add(tier.Sold, tokens)
	buffer.Set(tiers.Slot(index, tierSold), appvault.WordFromValue(tier.Sold))
	if tier.Whitelisted {
		entry.MaxRemaining = appvault.Sub(entry.MaxRemaining, tokens)
		entry.Minimum = appvault.Value{}
		writeWhitelist(buffer, index, buyer, entry)
	}
	if first {
		buffer.Set(purchasedKey(index, buyer), appvault.WordFromBool(true))
	}
	if !buffer.Get(buyerKey(buyer)).Bool() {
		buffer.Set(buyerKey(buyer), appvault.WordFromBool(true))
		buffer.Set(uniqueBuyersKey, appvault.WordFromUint64(buffer.Get(uniqueBuyersKey).Uint64()+1))
	}
	if err := increment(buffer, tokensSoldKey, tokens); err != nil {
		return err
	}
	if err := increment(buffer, weiRaisedKey, spend); err != nil {
		return err
	}
	if err := token.Mint(buffer, buyer, tokens); err != nil {
		return err
	}

	buffer.Emit([]appvault.Hash{
		PurchaseTopic,
		appvault.HashFromAddress(buyer),
		appvault.HashFromUint64(index),
	}, tokens[:])
	if !spend.IsZero() {
		buffer.Pay(s.Wallet, spend)
	}
	return nil
}

func increment(buffer *appvault.Buffer, key appvault.Key, delta appvault.Value) error {
	sum, overflow := appvault.AddChecked(buffer.Get(key).ToValue(), delta)
	if overflow {
		return fmt.Errorf("%w: counter overflow", appvault.ErrInvalidArgument)
	}
	buffer.Set(key, appvault.WordFromValue(sum))
	return nil
}
