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
	SetTransferAgentStatusMethod       = appvault.NewFunction("setTransferAgentStatus", []string{"address", "bool"}, nil)
	UpdateMultipleReservedTokensMethod = appvault.NewFunction("updateMultipleReservedTokens", []string{"address[]", "uint256[]", "uint256[]", "uint8[]"}, nil)
	RemoveReservedTokensMethod         = appvault.NewFunction("removeReservedTokens", []string{"address"}, nil)
	DistributeReservedTokensMethod     = appvault.NewFunction("distributeReservedTokens", []string{"uint256"}, nil)
	FinalizeCrowdsaleAndTokenMethod    = appvault.NewFunction("finalizeCrowdsaleAndToken", nil, nil)
	FinalizeAndDistributeTokenMethod   = appvault.NewFunction("finalizeAndDistributeToken", nil, nil)
)

var tokenManager = appvault.NewRouter(
	appvault.Function{Method: SetTransferAgentStatusMethod, Handle: setTransferAgentStatus},
	appvault.Function{Method: UpdateMultipleReservedTokensMethod, Handle: updateMultipleReservedTokens},
	appvault.Function{Method: RemoveReservedTokensMethod, Handle: removeReservedTokens},
	appvault.Function{Method: DistributeReservedTokensMethod, Handle: distributeReservedTokens},
	appvault.Function{Method: FinalizeCrowdsaleAndTokenMethod, Handle: finalizeCrowdsaleAndToken},
	appvault.Function{Method: FinalizeAndDistributeTokenMethod, Handle: finalizeAndDistributeToken},
)

func setTransferAgentStatus(call appvault.Call, args appvault.Args, buffer *appvault.Buffer) error {
	if err := onlyAdmin(call, buffer); err != nil {
		return err
	}
	return token.SetTransferAgent(buffer, args.Address(0), args.Bool(1))
}

func updateMultipleReservedTokens(call appvault.Call, args appvault.Args, buffer *appvault.Buffer) error {
	if err := onlyAdmin(call, buffer); err != nil {
		return err
	}
	if err := beforeInitialization(buffer); err != nil {
		return err
	}
	destinations, flats, percents := args.Addresses(0), args.Values(1), args.Values(2)
	precisions := args.Uint8s(3)
	n := len(destinations)
	if n == 0 || len(flats) != n || len(percents) != n || len(precisions) != n {
		return fmt.Errorf("%w: reservation lists differ in length", appvault.ErrArgumentLengthMismatch)
	}
	for i, destination := range destinations {
		if destination == (appvault.Address{}) {
			return fmt.Errorf("%w: zero reserved destination", appvault.ErrInvalidArgument)
		}
		if precisions[i] > MaxPrecision {
			return fmt.Errorf("%w: precision %d exceeds %d", appvault.ErrInvalidArgument, precisions[i], MaxPrecision)
		}
		err := putReservation(buffer, Reservation{
			Destination: destination,
			Flat:        flats[i],
			Percent:     percents[i],
			Precision:   precisions[i],
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func removeReservedTokens(call appvault.Call, args appvault.Args, buffer *appvault.Buffer) error {
	if err := onlyAdmin(call, buffer); err != nil {
		return err
	}
	if err := beforeInitialization(buffer); err != nil {
		return err
	}
	destination := args.Address(0)
	_, position, found := readReservation(buffer, destination)
	if !found {
		return fmt.Errorf("%w: %v is not a reserved destination", appvault.ErrNotFound, destination)
	}
	removeReservation(buffer, position)
	return nil
}

func distributeReservedTokens(call appvault.Call, args appvault.Args, buffer *appvault.Buffer) error {
	if !buffer.Get(finalizedKey).Bool() {
		return fmt.Errorf("%w: sale not finalized", appvault.ErrInvalidState)
	}
	count, err := args.Uint64(0)
	if err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("%w: zero destinations to distribute", appvault.ErrInvalidArgument)
	}
	return distribute(buffer, count)
}

// distribute grants the tokens of up to count reserved destinations and
// removes them from the list.
func distribute(buffer *appvault.Buffer, count uint64) error {
	n := reserved.Len(buffer)
	if n == 0 {
		return appvault.ErrNothingToDistribute
	}
	count = min(count, n)
	sold := buffer.Get(tokensSoldKey).ToValue()
	for i := uint64(0); i < count; i++ {
		destination := reserved.Get(buffer, 0).Address()
		reservation, _, _ := readReservation(buffer, destination)
		grant, err := Grant(reservation, sold)
		if err != nil {
			return err
		}
		if err := token.Mint(buffer, destination, grant); err != nil {
			return err
		}
		removeReservation(buffer, 0)
	}
	id := buffer.ExecID()
	word := appvault.WordFromUint64(count)
	buffer.Emit([]appvault.Hash{ReservedDistributionTopic, appvault.Hash(id)}, word[:])
	return nil
}

// finalizeCrowdsaleAndToken finalizes the sale, grants all reserved tokens
// and unlocks the token.
func finalizeCrowdsaleAndToken(call appvault.Call, _ appvault.Args, buffer *appvault.Buffer) error {
	if err := onlyAdmin(call, buffer); err != nil {
		return err
	}
	if err := finalize(buffer); err != nil {
		return err
	}
	if n := reserved.Len(buffer); n > 0 {
		if err := distribute(buffer, n); err != nil {
			return err
		}
	}
	token.Unlock(buffer)
	return nil
}

// finalizeAndDistributeToken grants the remaining reserved tokens of a
// finalized sale and unlocks the token. Anyone may trigger it.
func finalizeAndDistributeToken(_ appvault.Call, _ appvault.Args, buffer *appvault.Buffer) error {
	if !buffer.Get(finalizedKey).Bool() {
		return fmt.Errorf("%w: sale not finalized", appvault.ErrInvalidState)
	}
	if token.IsUnlocked(buffer) {
		return fmt.Errorf("%w: token already unlocked", appvault.ErrInvalidState)
	}
	if n := reserved.Len(buffer); n > 0 {
		if err := distribute(buffer, n); err != nil {
			return err
		}
	}
	token.Unlock(buffer)
	return nil
}
