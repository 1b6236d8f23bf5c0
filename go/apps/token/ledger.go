// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package token implements an ERC20-style token ledger living in the storage
// of an execution instance. The ledger functions are pure with respect to
// the store: they read through a buffer and record their writes and events in
// it. Applications embedding a token, such as the crowdsale, share the
// instance's key space with the ledger.
package token

import (
	"fmt"

	"github.com/appvault-labs/appvault/go/appvault"
)

var (
	TransferTopic                  = appvault.EventTopic("Transfer(address,address,uint256)")
	ApprovalTopic                  = appvault.EventTopic("Approval(address,address,uint256)")
	TransferAgentStatusUpdateTopic = appvault.EventTopic("TransferAgentStatusUpdate(bytes32,address,bool)")
	TokenConfiguredTopic           = appvault.EventTopic("TokenConfigured(bytes32,bytes32,bytes32,uint256)")
)

// MaxDecimals is the largest number of decimals a token may have.
const MaxDecimals = 18

var (
	totalSupplyKey = appvault.NewKey("token.totalSupply")
	nameKey        = appvault.NewKey("token.name")
	symbolKey      = appvault.NewKey("token.symbol")
	decimalsKey    = appvault.NewKey("token.decimals")
	unlockedKey    = appvault.NewKey("token.unlocked")
)

func balanceKey(owner appvault.Address) appvault.Key {
	return appvault.NewKey("token.balance", owner[:])
}

func allowanceKey(owner, spender appvault.Address) appvault.Key {
	return appvault.NewKey("token.allowance", owner[:], spender[:])
}

func transferAgentKey(agent appvault.Address) appvault.Key {
	return appvault.NewKey("token.transferAgent", agent[:])
}

func BalanceOf(view appvault.View, owner appvault.Address) appvault.Value {
	return view.Get(balanceKey(owner)).ToValue()
}

func Allowance(view appvault.View, owner, spender appvault.Address) appvault.Value {
	return view.Get(allowanceKey(owner, spender)).ToValue()
}

func TotalSupply(view appvault.View) appvault.Value {
	return view.Get(totalSupplyKey).ToValue()
}

func IsTransferAgent(view appvault.View, agent appvault.Address) bool {
	return view.Get(transferAgentKey(agent)).Bool()
}

// IsUnlocked reports whether tokens may be moved freely.
func IsUnlocked(view appvault.View) bool {
	return view.Get(unlockedKey).Bool()
}

// Metadata describes a configured token.
type Metadata struct {
	Name     appvault.Name
	Symbol   appvault.Name
	Decimals uint8
}

func GetMetadata(view appvault.View) Metadata {
	return Metadata{
		Name:     appvault.NameFromWord(view.Get(nameKey)),
		Symbol:   appvault.NameFromWord(view.Get(symbolKey)),
		Decimals: uint8(view.Get(decimalsKey).Uint64()),
	}
}

// IsConfigured reports whether the token metadata was set.
func IsConfigured(view appvault.View) bool {
	return !view.Get(nameKey).IsZero()
}

// Configure sets the token metadata. Names and symbols must not be empty and
// decimals must not exceed MaxDecimals.
func Configure(buffer *appvault.Buffer, meta Metadata) error {
	if meta.Name.IsEmpty() || meta.Symbol.IsEmpty() {
		return fmt.Errorf("%w: empty token name or symbol", appvault.ErrInvalidArgument)
	}
	if meta.Decimals > MaxDecimals {
		return fmt.Errorf("%w: %d decimals exceed maximum of %d", appvault.ErrInvalidArgument, meta.Decimals, MaxDecimals)
	}
	buffer.Set(nameKey, meta.Name.Word())
	buffer.Set(symbolKey, meta.Symbol.Word())
	decimals := appvault.WordFromUint64(uint64(meta.Decimals))
	buffer.Set(decimalsKey, decimals)
	id := buffer.ExecID()
	buffer.Emit([]appvault.Hash{
		TokenConfiguredTopic,
		appvault.Hash(id),
		appvault.Hash(meta.Name),
		appvault.Hash(meta.Symbol),
	}, decimals[:])
	return nil
}

// Transfer moves tokens owned by the sender.
func Transfer(buffer *appvault.Buffer, sender, to appvault.Address, amount appvault.Value) error {
	if err := checkLock(buffer, sender); err != nil {
		return err
	}
	return move(buffer, sender, to, amount)
}

// TransferFrom moves tokens of an owner on behalf of a spender, consuming
// the spender's allowance.
func TransferFrom(buffer *appvault.Buffer, spender, owner, to appvault.Address, amount appvault.Value) error {
	if err := checkLock(buffer, owner); err != nil {
		return err
	}
	allowance, underflow := appvault.SubChecked(Allowance(buffer, owner, spender), amount)
	if underflow {
		return fmt.Errorf("%w: %v may not spend %v of %v", appvault.ErrInsufficientAllowance, spender, amount, owner)
	}
	if err := move(buffer, owner, to, amount); err != nil {
		return err
	}
	buffer.Set(allowanceKey(owner, spender), appvault.WordFromValue(allowance))
	return nil
}

func checkLock(view appvault.View, from appvault.Address) error {
	if !IsUnlocked(view) && !IsTransferAgent(view, from) {
		return fmt.Errorf("%w: token is locked and %v is not a transfer agent", appvault.ErrInvalidState, from)
	}
	return nil
}

func move(buffer *appvault.Buffer, from, to appvault.Address, amount appvault.Value) error {
	if to == (appvault.Address{}) || to == from {
		return fmt.Errorf("%w: %v", appvault.ErrInvalidRecipient, to)
	}
	fromBalance, underflow := appvault.SubChecked(BalanceOf(buffer, from), amount)
	if underflow {
		return fmt.Errorf("%w: %v holds less than %v", appvault.ErrInsufficientBalance, from, amount)
	}
	// The sum of all balances is the total supply, so this cannot overflow.
	toBalance := appvault.Add(BalanceOf(buffer, to), amount)
	buffer.Set(balanceKey(from), appvault.WordFromValue(fromBalance))
	buffer.Set(balanceKey(to), appvault.WordFromValue(toBalance))
	buffer.Emit([]appvault.Hash{
		TransferTopic,
		appvault.HashFromAddress(from),
		appvault.HashFromAddress(to),
	}, amount[:])
	return nil
}

// Approve sets the allowance of a spender.
func Approve(buffer *appvault.Buffer, owner, spender appvault.Address, amount appvault.Value) error {
	if spender == (appvault.Address{}) {
		return fmt.Errorf("%w: zero spender", appvault.ErrInvalidRecipient)
	}
	setAllowance(buffer, owner, spender, amount)
	return nil
}

// IncreaseApproval raises the allowance of a spender.
func IncreaseApproval(buffer *appvault.Buffer, owner, spender appvault.Address, amount appvault.Value) error {
	if spender == (appvault.Address{}) {
		return fmt.Errorf("%w: zero spender", appvault.ErrInvalidRecipient)
	}
	allowance, overflow := appvault.AddChecked(Allowance(buffer, owner, spender), amount)
	if overflow {
		return fmt.Errorf("%w: allowance overflow", appvault.ErrInvalidArgument)
	}
	setAllowance(buffer, owner, spender, allowance)
	return nil
}

// DecreaseApproval lowers the allowance of a spender, stopping at zero.
func DecreaseApproval(buffer *appvault.Buffer, owner, spender appvault.Address, amount appvault.Value) error {
	if spender == (appvault.Address{}) {
		return fmt.Errorf("%w: zero spender", appvault.ErrInvalidRecipient)
	}
	allowance, underflow := appvault.SubChecked(Allowance(buffer, owner, spender), amount)
	if underflow {
		allowance = appvault.Value{}
	}
	setAllowance(buffer, owner, spender, allowance)
	return nil
}

func setAllowance(buffer *appvault.Buffer, owner, spender appvault.Address, amount appvault.Value) {
	buffer.Set(allowanceKey(owner, spender), appvault.WordFromValue(amount))
	buffer.Emit([]appvault.Hash{
		ApprovalTopic,
		appvault.HashFromAddress(owner),
		appvault.HashFromAddress(spender),
	}, amount[:])
}

// Mint creates new tokens for the given owner. No event is emitted; callers
// log the reason for minting themselves.
func Mint(buffer *appvault.Buffer, to appvault.Address, amount appvault.Value) error {
	supply, overflow := appvault.AddChecked(TotalSupply(buffer), amount)
	if overflow {
		return fmt.Errorf("%w: total supply overflow", appvault.ErrInvalidArgument)
	}
	buffer.Set(totalSupplyKey, appvault.WordFromValue(supply))
	buffer.Set(balanceKey(to), appvault.WordFromValue(appvault.Add(BalanceOf(buffer, to), amount)))
	return nil
}

// SetTransferAgent grants or revokes the right to move tokens while locked.
func SetTransferAgent(buffer *appvault.Buffer, agent appvault.Address, status bool) error {
	if agent == (appvault.Address{}) {
		return fmt.Errorf("%w: zero transfer agent", appvault.ErrInvalidArgument)
	}
	word := appvault.WordFromBool(status)
	buffer.Set(transferAgentKey(agent), word)
	id := buffer.ExecID()
	buffer.Emit([]appvault.Hash{
		TransferAgentStatusUpdateTopic,
		appvault.Hash(id),
		appvault.HashFromAddress(agent),
	}, word[:])
	return nil
}

// Unlock allows every holder to move tokens.
func Unlock(buffer *appvault.Buffer) {
	buffer.Set(unlockedKey, appvault.WordFromBool(true))
}
