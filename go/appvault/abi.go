// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package appvault

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/crypto"
)

// NewFunction builds the ABI description of a function from the names of its
// input and output types, e.g. NewFunction("buy", nil, nil) or
// NewFunction("balanceOf", []string{"address"}, []string{"uint256"}).
// It panics on unknown type names and is intended for package level tables.
func NewFunction(name string, inputs []string, outputs []string) abi.Method {
	return abi.NewMethod(name, name, abi.Function, "nonpayable", false, false,
		mustArguments(inputs), mustArguments(outputs))
}

func mustArguments(types []string) abi.Arguments {
	res := make(abi.Arguments, 0, len(types))
	for i, name := range types {
		t, err := abi.NewType(name, "", nil)
		if err != nil {
			panic(fmt.Errorf("invalid abi type %q: %w", name, err))
		}
		res = append(res, abi.Argument{Name: fmt.Sprintf("arg%d", i), Type: t})
	}
	return res
}

// SelectorOfMethod returns the 4-byte selector of the given function.
func SelectorOfMethod(method abi.Method) Selector {
	var res Selector
	copy(res[:], method.ID)
	return res
}

// Encode produces calldata invoking the given function with the given
// arguments.
func Encode(method abi.Method, args ...any) (Data, error) {
	packed, err := method.Inputs.Pack(args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidArgument, method.Name, err)
	}
	return append(append(Data{}, method.ID...), packed...), nil
}

// MustEncode is like Encode but panics on error.
func MustEncode(method abi.Method, args ...any) Data {
	res, err := Encode(method, args...)
	if err != nil {
		panic(err)
	}
	return res
}

// Decode checks that the calldata invokes the given function and unpacks its
// arguments.
func Decode(method abi.Method, input Data) (Args, error) {
	selector, ok := SelectorOf(input)
	if !ok || selector != SelectorOfMethod(method) {
		return nil, fmt.Errorf("%w: calldata does not invoke %s", ErrUnknownSelector, method.Name)
	}
	res, err := method.Inputs.Unpack(input[len(selector):])
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidArgument, method.Name, err)
	}
	return res, nil
}

// EncodeOutput packs the results of a query function.
func EncodeOutput(method abi.Method, results ...any) (Data, error) {
	res, err := method.Outputs.Pack(results...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s output: %v", ErrInvalidArgument, method.Name, err)
	}
	return res, nil
}

// DecodeOutput unpacks the result of a query function.
func DecodeOutput(method abi.Method, output Data) ([]any, error) {
	return method.Outputs.Unpack(output)
}

// EventTopic returns the topic identifying an event with the given canonical
// signature, e.g. "Transfer(address,address,uint256)".
func EventTopic(signature string) Hash {
	return Hash(crypto.Keccak256Hash([]byte(signature)))
}
