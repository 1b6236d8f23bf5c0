// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package crowdsale implements a tiered, capped token sale hosted by the
// store. A sale instance moves through the phases
//
//	uninitialized -> tiers configured -> initialized -> running -> finalized
//
// Tiers are only appended before the sale is initialized; purchases are
// only accepted while the sale runs, in the tier whose time window contains
// the current time. The sale embeds a token ledger which stays locked for
// non transfer agents until the sale is finalized and the token unlocked.
//
// The logic is split into four targets sharing the instance storage: the
// sale (purchases), the sale manager (tier and sale administration), the
// token manager (transfer agents, reserved tokens, finalization) and the
// token itself.
package crowdsale

import (
	"errors"
	"fmt"

	"github.com/appvault-labs/appvault/go/apps/token"
	"github.com/appvault-labs/appvault/go/appvault"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Name is the application name under which providers register the sale.
var Name = appvault.MustName("TieredCrowdsale")

// The addresses of the sale's modules.
// They are wrapped in functions to be immutable.

func SaleAddress() appvault.Address {
	return appvault.Address(common.HexToAddress("0xc5a1000000000000000000000000000000000001"))
}

func SaleManagerAddress() appvault.Address {
	return appvault.Address(common.HexToAddress("0xc5a1000000000000000000000000000000000002"))
}

func TokenManagerAddress() appvault.Address {
	return appvault.Address(common.HexToAddress("0xc5a1000000000000000000000000000000000003"))
}

func IndexAddress() appvault.Address {
	return appvault.Address(common.HexToAddress("0xc5a1000000000000000000000000000000000004"))
}

var (
	PurchaseTopic             = appvault.EventTopic("Purchase(address,uint256,uint256)")
	CrowdsaleTiersAddedTopic  = appvault.EventTopic("CrowdsaleTiersAdded(bytes32,uint256)")
	CrowdsaleConfiguredTopic  = appvault.EventTopic("CrowdsaleConfigured(bytes32,bytes32,uint256)")
	CrowdsaleFinalizedTopic   = appvault.EventTopic("CrowdsaleFinalized(bytes32)")
	TierMinUpdateTopic        = appvault.EventTopic("TierMinUpdate(bytes32,uint256,uint256)")
	TierDurationUpdateTopic   = appvault.EventTopic("TierDurationUpdate(bytes32,uint256,uint256)")
	ReservedDistributionTopic = appvault.EventTopic("ReservedTokensDistributed(bytes32,uint256)")
)

const (
	// MaxReservedDestinations bounds the reserved destination list.
	MaxReservedDestinations = 20
	// MaxPrecision bounds the precision of reserved percentages.
	MaxPrecision = 18
	// maxDuration bounds tier durations so tier windows never overflow.
	maxDuration = 1 << 40
)

var errTooManyReservations = fmt.Errorf("%w: more than %d reserved destinations", appvault.ErrInvalidArgument, MaxReservedDestinations)

// onlyAdmin fails unless the sender is the sale admin.
func onlyAdmin(call appvault.Call, view appvault.View) error {
	if admin := view.Get(adminKey).Address(); call.Sender != admin {
		return fmt.Errorf("%w: %v is not the sale admin", appvault.ErrPermissionDenied, call.Sender)
	}
	return nil
}

// Entry is one row of the sale's selector table.
type Entry struct {
	Method   abi.Method
	Selector appvault.Selector
	Target   appvault.Address
}

// Table returns the selector table of the sale in a stable order.
func Table() []Entry {
	var res []Entry
	add := func(router *appvault.Router, target appvault.Address) {
		for _, method := range router.Methods() {
			res = append(res, Entry{
				Method:   method,
				Selector: appvault.SelectorOfMethod(method),
				Target:   target,
			})
		}
	}
	add(sale, SaleAddress())
	add(token.Target(), token.TargetAddress())
	add(saleManager, SaleManagerAddress())
	add(tokenManager, TokenManagerAddress())
	return res
}

// Selectors returns the selector table as parallel arrays, as expected by
// the registry.
func Selectors() ([]appvault.Selector, []appvault.Address) {
	table := Table()
	selectors := make([]appvault.Selector, len(table))
	targets := make([]appvault.Address, len(table))
	for i, entry := range table {
		selectors[i] = entry.Selector
		targets[i] = entry.Target
	}
	return selectors, targets
}

func init() {
	appvault.MustRegisterTarget(SaleAddress(), sale)
	appvault.MustRegisterTarget(SaleManagerAddress(), saleManager)
	appvault.MustRegisterTarget(TokenManagerAddress(), tokenManager)
	appvault.MustRegisterIndex(IndexAddress(), Index{})
}

// IsSaleError reports whether err is one of the business rule violations of
// a purchase.
func IsSaleError(err error) bool {
	return errors.Is(err, appvault.ErrBelowMinimumContribution) ||
		errors.Is(err, appvault.ErrTierSoldOut) ||
		errors.Is(err, appvault.ErrNotWhitelisted)
}
