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

var (
	CreateCrowdsaleTiersMethod  = appvault.NewFunction("createCrowdsaleTiers", []string{"bytes32[]", "uint256[]", "uint256[]", "uint256[]", "uint256[]", "bool[]", "bool[]"}, nil)
	WhitelistMultiForTierMethod = appvault.NewFunction("whitelistMultiForTier", []string{"uint256", "address[]", "uint256[]", "uint256[]"}, nil)
	UpdateTierDurationMethod    = appvault.NewFunction("updateTierDuration", []string{"uint256", "uint256"}, nil)
	UpdateTierMinimumMethod     = appvault.NewFunction("updateTierMinimum", []string{"uint256", "uint256"}, nil)
	InitCrowdsaleTokenMethod    = appvault.NewFunction("initCrowdsaleToken", []string{"bytes32", "bytes32", "uint8"}, nil)
	InitializeCrowdsaleMethod   = appvault.NewFunction("initializeCrowdsale", nil, nil)
	FinalizeCrowdsaleMethod     = appvault.NewFunction("finalizeCrowdsale", nil, nil)
)

var saleManager = appvault.NewRouter(
	appvault.Function{Method: CreateCrowdsaleTiersMethod, Handle: createCrowdsaleTiers},
	appvault.Function{Method: WhitelistMultiForTierMethod, Handle: whitelistMultiForTier},
	appvault.Function{Method: UpdateTierDurationMethod, Handle: updateTierDuration},
	appvault.Function{Method: UpdateTierMinimumMethod, Handle: updateTierMinimum},
	appvault.Function{Method: InitCrowdsaleTokenMethod, Handle: initCrowdsaleToken},
	appvault.Function{Method: InitializeCrowdsaleMethod, Handle: initializeCrowdsale},
	appvault.Function{Method: FinalizeCrowdsaleMethod, Handle: finalizeCrowdsale},
)

func validateTier(tier Tier) error {
	if tier.Name.IsEmpty() {
		return fmt.Errorf("%w: empty tier name", appvault.ErrInvalidArgument)
	}
	if tier.Price.IsZero() || tier.Cap.IsZero() || tier.Duration == 0 {
		return fmt.Errorf("%w: tier %v needs positive price, cap and duration", appvault.ErrInvalidArgument, tier.Name)
	}
	if tier.Duration > maxDuration {
		return fmt.Errorf("%w: tier duration %d too long", appvault.ErrInvalidArgument, tier.Duration)
	}
	return nil
}

// beforeInitialization fails once the sale was initialized.
func beforeInitialization(view appvault.View) error {
	if view.Get(initializedKey).Bool() {
		return fmt.Errorf("%w: sale already initialized", appvault.ErrInvalidState)
	}
	return nil
}

func createCrowdsaleTiers(call appvault.Call, args appvault.Args, buffer *appvault.Buffer) error {
	if err := onlyAdmin(call, buffer); err != nil {
		return err
	}
	if err := beforeInitialization(buffer); err != nil {
		return err
	}
	names := args.Names(0)
	durations, err := args.Uint64s(1)
	if err != nil {
		return err
	}
	prices, caps, minimums := args.Values(2), args.Values(3), args.Values(4)
	modifiable, whitelisted := args.Bools(5), args.Bools(6)
	n := len(names)
	if n == 0 || len(durations) != n || len(prices) != n || len(caps) != n ||
		len(minimums) != n || len(modifiable) != n || len(whitelisted) != n {
		return fmt.Errorf("%w: tier attribute lists differ in length", appvault.ErrArgumentLengthMismatch)
	}

	added := make([]Tier, 0, n)
	for i := 0; i < n; i++ {
		tier := Tier{
			Name:        names[i],
			Price:       prices[i],
			Duration:    durations[i],
			Cap:         caps[i],
			Minimum:     minimums[i],
			Whitelisted: whitelisted[i],
			Modifiable:  modifiable[i],
		}
		if err := validateTier(tier); err != nil {
			return err
		}
		added = append(added, tier)
	}
	start := buffer.Get(startKey).Uint64()
	if err := checkSaleEnd(start, append(readTiers(buffer), added...)); err != nil {
		return err
	}

	next := tiers.Len(buffer)
	for _, tier := range added {
		writeTier(buffer, next, tier)
		next++
	}
	tiers.SetLen(buffer, next)

	id := buffer.ExecID()
	count := appvault.WordFromUint64(next)
	buffer.Emit([]appvault.Hash{CrowdsaleTiersAddedTopic, appvault.Hash(id)}, count[:])
	return nil
}

func whitelistMultiForTier(call appvault.Call, args appvault.Args, buffer *appvault.Buffer) error {
	if err := onlyAdmin(call, buffer); err != nil {
		return err
	}
	if buffer.Get(finalizedKey).Bool() {
		return fmt.Errorf("%w: sale finalized", appvault.ErrInvalidState)
	}
	index, err := args.Uint64(0)
	if err != nil {
		return err
	}
	if index >= tiers.Len(buffer) {
		return fmt.Errorf("%w: no tier %d", appvault.ErrInvalidArgument, index)
	}
	buyers, minimums, maximums := args.Addresses(1), args.Values(2), args.Values(3)
	if len(buyers) == 0 || len(minimums) != len(buyers) || len(maximums) != len(buyers) {
		return fmt.Errorf("%w: whitelist lists differ in length", appvault.ErrArgumentLengthMismatch)
	}
	for i, buyer := range buyers {
		if buyer == (appvault.Address{}) {
			return fmt.Errorf("%w: zero address in whitelist", appvault.ErrInvalidArgument)
		}
		writeWhitelist(buffer, index, buyer, WhitelistEntry{
			Minimum:      minimums[i],
			MaxRemaining: maximums[i],
			Listed:       true,
		})
	}
	return nil
}

// modifiableTier returns the tier at the given index if its minimum and
// duration may still be changed: the sale is not finalized, the tier is the
// first one or flagged modifiable, and it has not started yet.
func modifiableTier(call appvault.Call, args appvault.Args, view appvault.View) (uint64, error) {
	if view.Get(finalizedKey).Bool() {
		return 0, fmt.Errorf("%w: sale finalized", appvault.ErrInvalidState)
	}
	index, err := args.Uint64(0)
	if err != nil {
		return 0, err
	}
	all := readTiers(view)
	if index >= uint64(len(all)) {
		return 0, fmt.Errorf("%w: no tier %d", appvault.ErrInvalidArgument, index)
	}
	if index != 0 && !all[index].Modifiable {
		return 0, fmt.Errorf("%w: tier %d is not modifiable", appvault.ErrInvalidState, index)
	}
	windows := tierWindows(view.Get(startKey).Uint64(), all)
	if nowOf(call) >= windows[index].Start {
		return 0, fmt.Errorf("%w: tier %d already started", appvault.ErrInvalidState, index)
	}
	return index, nil
}

func updateTierDuration(call appvault.Call, args appvault.Args, buffer *appvault.Buffer) error {
	if err := onlyAdmin(call, buffer); err != nil {
		return err
	}
	index, err := modifiableTier(call, args, buffer)
	if err != nil {
		return err
	}
	duration, err := args.Uint64(1)
	if err != nil {
		return err
	}
	if duration == 0 || duration > maxDuration {
		return fmt.Errorf("%w: invalid duration %d", appvault.ErrInvalidArgument, duration)
	}
	all := readTiers(buffer)
	all[index].Duration = duration
	if err := checkSaleEnd(buffer.Get(startKey).Uint64(), all); err != nil {
		return err
	}
	buffer.Set(tiers.Slot(index, tierDuration), appvault.WordFromUint64(duration))

	id := buffer.ExecID()
	word := appvault.WordFromUint64(duration)
	buffer.Emit([]appvault.Hash{TierDurationUpdateTopic, appvault.Hash(id), appvault.HashFromUint64(index)}, word[:])
	return nil
}

func updateTierMinimum(call appvault.Call, args appvault.Args, buffer *appvault.Buffer) error {
	if err := onlyAdmin(call, buffer); err != nil {
		return err
	}
	index, err := modifiableTier(call, args, buffer)
	if err != nil {
		return err
	}
	minimum := args.Value(1)
	buffer.Set(tiers.Slot(index, tierMinimum), appvault.WordFromValue(minimum))

	id := buffer.ExecID()
	buffer.Emit([]appvault.Hash{TierMinUpdateTopic, appvault.Hash(id), appvault.HashFromUint64(index)}, minimum[:])
	return nil
}

func initCrowdsaleToken(call appvault.Call, args appvault.Args, buffer *appvault.Buffer) error {
	if err := onlyAdmin(call, buffer); err != nil {
		return err
	}
	if err := beforeInitialization(buffer); err != nil {
		return err
	}
	return token.Configure(buffer, token.Metadata{
		Name:     args.Name(0),
		Symbol:   args.Name(1),
		Decimals: args.Uint8(2),
	})
}

func initializeCrowdsale(call appvault.Call, _ appvault.Args, buffer *appvault.Buffer) error {
	if err := onlyAdmin(call, buffer); err != nil {
		return err
	}
	if err := beforeInitialization(buffer); err != nil {
		return err
	}
	if !token.IsConfigured(buffer) {
		return fmt.Errorf("%w: token not configured", appvault.ErrInvalidState)
	}
	start := buffer.Get(startKey)
	if start.Uint64() <= nowOf(call) {
		return fmt.Errorf("%w: start time %d has passed", appvault.ErrInvalidState, start.Uint64())
	}
	buffer.Set(initializedKey, appvault.WordFromBool(true))

	id := buffer.ExecID()
	buffer.Emit([]appvault.Hash{
		CrowdsaleConfiguredTopic,
		appvault.Hash(id),
		appvault.Hash(token.GetMetadata(buffer).Name),
	}, start[:])
	return nil
}

func finalizeCrowdsale(call appvault.Call, _ appvault.Args, buffer *appvault.Buffer) error {
	if err := onlyAdmin(call, buffer); err != nil {
		return err
	}
	return finalize(buffer)
}

func finalize(buffer *appvault.Buffer) error {
	s := readState(buffer)
	if !s.Initialized {
		return fmt.Errorf("%w: sale not initialized", appvault.ErrInvalidState)
	}
	if s.Finalized {
		return fmt.Errorf("%w: sale already finalized", appvault.ErrInvalidState)
	}
	buffer.Set(finalizedKey, appvault.WordFromBool(true))
	id := buffer.ExecID()
	buffer.Emit([]appvault.Hash{CrowdsaleFinalizedTopic, appvault.Hash(id)}, nil)
	return nil
}
