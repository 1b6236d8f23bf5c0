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
	"math/big"

	"github.com/appvault-labs/appvault/go/apps/token"
	"github.com/appvault-labs/appvault/go/appvault"
)

// InitMethod describes the init calldata of a sale instance.
var InitMethod = appvault.NewFunction("init", []string{
	"address", // wallet receiving the raised wei
	"uint256", // start time
	"bytes32", // name of the initial tier
	"uint256", // price of the initial tier
	"uint256", // duration of the initial tier
	"uint256", // cap of the initial tier
	"uint256", // minimum purchase in the initial tier
	"bool",    // initial tier is whitelisted
	"bool",    // initial tier duration is modifiable
	"address", // admin
}, nil)

// Params are the parameters of a new sale instance.
type Params struct {
	Wallet             appvault.Address
	Start              uint64
	TierName           appvault.Name
	Price              appvault.Value
	Duration           uint64
	Cap                appvault.Value
	Minimum            appvault.Value
	Whitelisted        bool
	DurationModifiable bool
	Admin              appvault.Address
}

// Encode produces the init calldata for the parameters.
func (p Params) Encode() (appvault.Data, error) {
	return appvault.Encode(InitMethod,
		p.Wallet.Common(),
		new(big.Int).SetUint64(p.Start),
		[32]byte(p.TierName),
		p.Price.ToBig(),
		new(big.Int).SetUint64(p.Duration),
		p.Cap.ToBig(),
		p.Minimum.ToBig(),
		p.Whitelisted,
		p.DurationModifiable,
		p.Admin.Common(),
	)
}

// Index initializes sale instances and answers queries on them.
type Index struct{}

func (Index) Init(call appvault.Call) (appvault.Effect, error) {
	args, err := appvault.Decode(InitMethod, call.Input)
	if err != nil {
		return appvault.Effect{}, err
	}
	wallet, admin := args.Address(0), args.Address(9)
	if wallet == (appvault.Address{}) || admin == (appvault.Address{}) {
		return appvault.Effect{}, fmt.Errorf("%w: zero wallet or admin", appvault.ErrInvalidArgument)
	}
	start, err := args.Uint64(1)
	if err != nil {
		return appvault.Effect{}, err
	}
	if start <= nowOf(call) {
		return appvault.Effect{}, fmt.Errorf("%w: start time %d is not in the future", appvault.ErrInvalidArgument, start)
	}
	duration, err := args.Uint64(4)
	if err != nil {
		return appvault.Effect{}, err
	}
	tier := Tier{
		Name:        args.Name(2),
		Price:       args.Value(3),
		Duration:    duration,
		Cap:         args.Value(5),
		Minimum:     args.Value(6),
		Whitelisted: args.Bool(7),
		Modifiable:  args.Bool(8),
	}
	if err := validateTier(tier); err != nil {
		return appvault.Effect{}, err
	}
	if err := checkSaleEnd(start, []Tier{tier}); err != nil {
		return appvault.Effect{}, err
	}

	buffer := appvault.NewBuffer(call.Storage)
	buffer.Set(adminKey, appvault.WordFromAddress(admin))
	buffer.Set(walletKey, appvault.WordFromAddress(wallet))
	buffer.Set(startKey, appvault.WordFromUint64(start))
	writeTier(buffer, 0, tier)
	tiers.SetLen(buffer, 1)

	effect := buffer.Effect()
	effect.Admin = admin
	return effect, nil
}

func (Index) Query(call appvault.Call) (appvault.Data, error) {
	return queries.Query(call)
}

var (
	GetAdminQuery                   = appvault.NewFunction("getAdmin", nil, []string{"address"})
	GetCrowdsaleInfoQuery           = appvault.NewFunction("getCrowdsaleInfo", nil, []string{"uint256", "address", "bool", "bool"})
	GetStartAndEndTimesQuery        = appvault.NewFunction("getCrowdsaleStartAndEndTimes", nil, []string{"uint256", "uint256"})
	GetCurrentTierInfoQuery         = appvault.NewFunction("getCurrentTierInfo", nil, []string{"bytes32", "uint256", "uint256", "uint256", "uint256", "uint256", "bool", "bool"})
	GetCrowdsaleTierQuery           = appvault.NewFunction("getCrowdsaleTier", []string{"uint256"}, []string{"bytes32", "uint256", "uint256", "uint256", "uint256", "uint256", "bool", "bool"})
	GetCrowdsaleTierListQuery       = appvault.NewFunction("getCrowdsaleTierList", nil, []string{"bytes32[]"})
	GetTierStartAndEndDatesQuery    = appvault.NewFunction("getTierStartAndEndDates", []string{"uint256"}, []string{"uint256", "uint256"})
	GetTokensSoldQuery              = appvault.NewFunction("getTokensSold", nil, []string{"uint256"})
	GetUniqueBuyersQuery            = appvault.NewFunction("getCrowdsaleUniqueBuyers", nil, []string{"uint256"})
	GetWhitelistStatusQuery         = appvault.NewFunction("getWhitelistStatus", []string{"uint256", "address"}, []string{"uint256", "uint256"})
	GetTierWhitelistQuery           = appvault.NewFunction("getTierWhitelist", []string{"uint256"}, []string{"uint256", "address[]"})
	GetReservedDestinationsQuery    = appvault.NewFunction("getReservedTokenDestinationList", nil, []string{"uint256", "address[]"})
	GetReservedDestinationInfoQuery = appvault.NewFunction("getReservedDestinationInfo", []string{"address"}, []string{"uint256", "uint256", "uint256", "uint256"})
)

func u64(v uint64) *big.Int {
	return new(big.Int).SetUint64(v)
}

func tierIndex(view appvault.View, args appvault.Args) (uint64, error) {
	index, err := args.Uint64(0)
	if err != nil {
		return 0, err
	}
	if index >= tiers.Len(view) {
		return 0, fmt.Errorf("%w: no tier %d", appvault.ErrNotFound, index)
	}
	return index, nil
}

var queries = appvault.NewQueryRouter(append(token.Queries(),
	appvault.Query{Method: GetAdminQuery, Handle: func(call appvault.Call, _ appvault.Args) ([]any, error) {
		return []any{readState(call.Storage).Admin.Common()}, nil
	}},
	appvault.Query{Method: GetCrowdsaleInfoQuery, Handle: func(call appvault.Call, _ appvault.Args) ([]any, error) {
		s := readState(call.Storage)
		raised := call.Storage.Get(weiRaisedKey).ToValue()
		return []any{raised.ToBig(), s.Wallet.Common(), s.Initialized, s.Finalized}, nil
	}},
	appvault.Query{Method: GetStartAndEndTimesQuery, Handle: func(call appvault.Call, _ appvault.Args) ([]any, error) {
		start := readState(call.Storage).Start
		return []any{u64(start), u64(End(start, readTiers(call.Storage)))}, nil
	}},
	appvault.Query{Method: GetCurrentTierInfoQuery, Handle: func(call appvault.Call, _ appvault.Args) ([]any, error) {
		start := readState(call.Storage).Start
		all := readTiers(call.Storage)
		var index uint64
		var window Window
		if now := nowOf(call); now < start {
			window = tierWindows(start, all)[0]
		} else {
			var err error
			if index, window, err = ResolveTier(start, all, now); err != nil {
				return nil, err
			}
		}
		tier := all[index]
		return []any{
			[32]byte(tier.Name), u64(index), u64(window.End), tier.Remaining().ToBig(),
			tier.Price.ToBig(), tier.Minimum.ToBig(), tier.Modifiable, tier.Whitelisted,
		}, nil
	}},
	appvault.Query{Method: GetCrowdsaleTierQuery, Handle: func(call appvault.Call, args appvault.Args) ([]any, error) {
		index, err := tierIndex(call.Storage, args)
		if err != nil {
			return nil, err
		}
		tier := readTier(call.Storage, index)
		return []any{
			[32]byte(tier.Name), tier.Cap.ToBig(), tier.Sold.ToBig(), tier.Price.ToBig(),
			u64(tier.Duration), tier.Minimum.ToBig(), tier.Modifiable, tier.Whitelisted,
		}, nil
	}},
	appvault.Query{Method: GetCrowdsaleTierListQuery, Handle: func(call appvault.Call, _ appvault.Args) ([]any, error) {
		var names []appvault.Name
		for _, tier := range readTiers(call.Storage) {
			names = append(names, tier.Name)
		}
		return []any{appvault.NameBytes(names)}, nil
	}},
	appvault.Query{Method: GetTierStartAndEndDatesQuery, Handle: func(call appvault.Call, args appvault.Args) ([]any, error) {
		index, err := tierIndex(call.Storage, args)
		if err != nil {
			return nil, err
		}
		window := tierWindows(readState(call.Storage).Start, readTiers(call.Storage))[index]
		return []any{u64(window.Start), u64(window.End)}, nil
	}},
	appvault.Query{Method: GetTokensSoldQuery, Handle: func(call appvault.Call, _ appvault.Args) ([]any, error) {
		return []any{call.Storage.Get(tokensSoldKey).ToValue().ToBig()}, nil
	}},
	appvault.Query{Method: GetUniqueBuyersQuery, Handle: func(call appvault.Call, _ appvault.Args) ([]any, error) {
		return []any{u64(call.Storage.Get(uniqueBuyersKey).Uint64())}, nil
	}},
	appvault.Query{Method: GetWhitelistStatusQuery, Handle: func(call appvault.Call, args appvault.Args) ([]any, error) {
		index, err := tierIndex(call.Storage, args)
		if err != nil {
			return nil, err
		}
		entry := readWhitelist(call.Storage, index, args.Address(1))
		return []any{entry.Minimum.ToBig(), entry.MaxRemaining.ToBig()}, nil
	}},
	appvault.Query{Method: GetTierWhitelistQuery, Handle: func(call appvault.Call, args appvault.Args) ([]any, error) {
		index, err := tierIndex(call.Storage, args)
		if err != nil {
			return nil, err
		}
		list := whitelistList(index)
		n := list.Len(call.Storage)
		buyers := make([]appvault.Address, 0, n)
		for i := uint64(0); i < n; i++ {
			buyers = append(buyers, list.Get(call.Storage, i).Address())
		}
		return []any{u64(n), appvault.CommonAddresses(buyers)}, nil
	}},
	appvault.Query{Method: GetReservedDestinationsQuery, Handle: func(call appvault.Call, _ appvault.Args) ([]any, error) {
		var destinations []appvault.Address
		for _, reservation := range readReservations(call.Storage) {
			destinations = append(destinations, reservation.Destination)
		}
		return []any{u64(uint64(len(destinations))), appvault.CommonAddresses(destinations)}, nil
	}},
	appvault.Query{Method: GetReservedDestinationInfoQuery, Handle: func(call appvault.Call, args appvault.Args) ([]any, error) {
		reservation, position, found := readReservation(call.Storage, args.Address(0))
		if !found {
			return nil, fmt.Errorf("%w: %v is not a reserved destination", appvault.ErrNotFound, args.Address(0))
		}
		return []any{u64(position), reservation.Flat.ToBig(), reservation.Percent.ToBig(), u64(uint64(reservation.Precision))}, nil
	}},
)...)
