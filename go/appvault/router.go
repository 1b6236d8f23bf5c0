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
)

// Function binds an ABI function to the handler computing its effect.
type Function struct {
	Method abi.Method
	Handle func(call Call, args Args, buffer *Buffer) error
}

// Router is a Target dispatching calls to functions by selector.
type Router struct {
	functions map[Selector]Function
	order     []Selector
}

var _ Target = (*Router)(nil)

// NewRouter creates a router for the given functions. It panics if two
// functions share a selector.
func NewRouter(functions ...Function) *Router {
	res := &Router{functions: map[Selector]Function{}}
	for _, function := range functions {
		selector := SelectorOfMethod(function.Method)
		if _, found := res.functions[selector]; found {
			panic(fmt.Sprintf("duplicate selector %v for %s", selector, function.Method.Name))
		}
		res.functions[selector] = function
		res.order = append(res.order, selector)
	}
	return res
}

func (r *Router) Execute(call Call) (Effect, error) {
	selector, _ := SelectorOf(call.Input)
	function, found := r.functions[selector]
	if !found {
		return Effect{}, fmt.Errorf("%w: %v", ErrUnknownSelector, selector)
	}
	args, err := Decode(function.Method, call.Input)
	if err != nil {
		return Effect{}, err
	}
	buffer := NewBuffer(call.Storage)
	if err := function.Handle(call, args, buffer); err != nil {
		return Effect{}, fmt.Errorf("%s: %w", function.Method.Name, err)
	}
	return buffer.Effect(), nil
}

// Methods lists the functions served by the router in registration order.
func (r *Router) Methods() []abi.Method {
	res := make([]abi.Method, 0, len(r.order))
	for _, selector := range r.order {
		res = append(res, r.functions[selector].Method)
	}
	return res
}

// Selectors lists the selectors served by the router in registration order.
func (r *Router) Selectors() []Selector {
	return append([]Selector(nil), r.order...)
}

// Query binds an ABI function to a read-only handler. The handler results
// are packed according to the function's outputs.
type Query struct {
	Method abi.Method
	Handle func(call Call, args Args) ([]any, error)
}

// QueryRouter dispatches read-only queries by selector.
type QueryRouter struct {
	queries map[Selector]Query
}

// NewQueryRouter creates a router for the given queries. It panics if two
// queries share a selector.
func NewQueryRouter(queries ...Query) *QueryRouter {
	res := &QueryRouter{queries: map[Selector]Query{}}
	for _, query := range queries {
		selector := SelectorOfMethod(query.Method)
		if _, found := res.queries[selector]; found {
			panic(fmt.Sprintf("duplicate selector %v for %s", selector, query.Method.Name))
		}
		res.queries[selector] = query
	}
	return res
}

func (r *QueryRouter) Query(call Call) (Data, error) {
	selector, _ := SelectorOf(call.Input)
	query, found := r.queries[selector]
	if !found {
		return nil, fmt.Errorf("%w: %v", ErrUnknownSelector, selector)
	}
	args, err := Decode(query.Method, call.Input)
	if err != nil {
		return nil, err
	}
	results, err := query.Handle(call, args)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", query.Method.Name, err)
	}
	return EncodeOutput(query.Method, results...)
}
