// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package token

import (
	"github.com/appvault-labs/appvault/go/appvault"
	"github.com/ethereum/go-ethereum/common"
)

// TargetAddress is the address of the token target.
// It is wrapped in a function to be immutable.
func TargetAddress() appvault.Address {
	return appvault.Address(common.HexToAddress("0x70ce000000000000000000000000000000000001"))
}

var (
	TransferMethod         = appvault.NewFunction("transfer", []string{"address", "uint256"}, nil)
	TransferFromMethod     = appvault.NewFunction("transferFrom", []string{"address", "address", "uint256"}, nil)
	ApproveMethod          = appvault.NewFunction("approve", []string{"address", "uint256"}, nil)
	IncreaseApprovalMethod = appvault.NewFunction("increaseApproval", []string{"address", "uint256"}, nil)
	DecreaseApprovalMethod = appvault.NewFunction("decreaseApproval", []string{"address", "uint256"}, nil)
)

var target = appvault.NewRouter(
	appvault.Function{Method: TransferMethod, Handle: func(call appvault.Call, args appvault.Args, buffer *appvault.Buffer) error {
		return Transfer(buffer, call.Sender, args.Address(0), args.Value(1))
	}},
	appvault.Function{Method: TransferFromMethod, Handle: func(call appvault.Call, args appvault.Args, buffer *appvault.Buffer) error {
		return TransferFrom(buffer, call.Sender, args.Address(0), args.Address(1), args.Value(2))
	}},
	appvault.Function{Method: ApproveMethod, Handle: func(call appvault.Call, args appvault.Args, buffer *appvault.Buffer) error {
		return Approve(buffer, call.Sender, args.Address(0), args.Value(1))
	}},
	appvault.Function{Method: IncreaseApprovalMethod, Handle: func(call appvault.Call, args appvault.Args, buffer *appvault.Buffer) error {
		return IncreaseApproval(buffer, call.Sender, args.Address(0), args.Value(1))
	}},
	appvault.Function{Method: DecreaseApprovalMethod, Handle: func(call appvault.Call, args appvault.Args, buffer *appvault.Buffer) error {
		return DecreaseApproval(buffer, call.Sender, args.Address(0), args.Value(1))
	}},
)

// Target returns the token target serving transfers and approvals.
func Target() *appvault.Router {
	return target
}

func init() {
	appvault.MustRegisterTarget(TargetAddress(), target)
}

var (
	NameQuery          = appvault.NewFunction("name", nil, []string{"bytes32"})
	SymbolQuery        = appvault.NewFunction("symbol", nil, []string{"bytes32"})
	DecimalsQuery      = appvault.NewFunction("decimals", nil, []string{"uint8"})
	TotalSupplyQuery   = appvault.NewFunction("totalSupply", nil, []string{"uint256"})
	BalanceOfQuery     = appvault.NewFunction("balanceOf", []string{"address"}, []string{"uint256"})
	AllowanceQuery     = appvault.NewFunction("allowance", []string{"address", "address"}, []string{"uint256"})
	TransferAgentQuery = appvault.NewFunction("getTransferAgentStatus", []string{"address"}, []string{"bool"})
	IsUnlockedQuery    = appvault.NewFunction("isUnlocked", nil, []string{"bool"})
)

// Queries lists the read-only functions of a token, to be served by the
// index of applications embedding one.
func Queries() []appvault.Query {
	return []appvault.Query{
		{Method: NameQuery, Handle: func(call appvault.Call, _ appvault.Args) ([]any, error) {
			return []any{[32]byte(GetMetadata(call.Storage).Name)}, nil
		}},
		{Method: SymbolQuery, Handle: func(call appvault.Call, _ appvault.Args) ([]any, error) {
			return []any{[32]byte(GetMetadata(call.Storage).Symbol)}, nil
		}},
		{Method: DecimalsQuery, Handle: func(call appvault.Call, _ appvault.Args) ([]any, error) {
			return []any{GetMetadata(call.Storage).Decimals}, nil
		}},
		{Method: TotalSupplyQuery, Handle: func(call appvault.Call, _ appvault.Args) ([]any, error) {
			return []any{TotalSupply(call.Storage).ToBig()}, nil
		}},
		{Method: BalanceOfQuery, Handle: func(call appvault.Call, args appvault.Args) ([]any, error) {
			return []any{BalanceOf(call.Storage, args.Address(0)).ToBig()}, nil
		}},
		{Method: AllowanceQuery, Handle: func(call appvault.Call, args appvault.Args) ([]any, error) {
			return []any{Allowance(call.Storage, args.Address(0), args.Address(1)).ToBig()}, nil
		}},
		{Method: TransferAgentQuery, Handle: func(call appvault.Call, args appvault.Args) ([]any, error) {
			return []any{IsTransferAgent(call.Storage, args.Address(0))}, nil
		}},
		{Method: IsUnlockedQuery, Handle: func(call appvault.Call, _ appvault.Args) ([]any, error) {
			return []any{IsUnlocked(call.Storage)}, nil
		}},
	}
}
