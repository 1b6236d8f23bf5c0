// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package appstore contains end-to-end scenarios running applications
// through the script executor, the dispatcher and a key-value store.
package appstore

import (
	"testing"

	"github.com/appvault-labs/appvault/go/apps/crowdsale"
	"github.com/appvault-labs/appvault/go/appvault"
	"github.com/appvault-labs/appvault/go/dispatch"
	"github.com/appvault-labs/appvault/go/kvstore"
	"github.com/appvault-labs/appvault/go/registry"
	"github.com/appvault-labs/appvault/go/scriptexec"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"go.uber.org/zap/zaptest"
)

var (
	ExecAdmin = appvault.Address{0xea}
	Provider  = appvault.Address{0x9f}
)

// Env is a store with a dispatcher and a script executor on top of it. The
// clock is controlled by the test.
type Env struct {
	Store      *kvstore.Store
	Dispatcher *dispatch.Dispatcher
	Executor   *scriptexec.Executor
	Now        int64
	number     int64
}

func NewEnv(t testing.TB, options ...dispatch.Option) *Env {
	t.Helper()
	logger := zaptest.NewLogger(t)
	store := kvstore.NewInMemory()
	dispatcher := dispatch.New(store, append([]dispatch.Option{dispatch.WithLogger(logger)}, options...)...)
	config := scriptexec.DefaultConfig()
	config.ExecAdmin = ExecAdmin
	executor, err := scriptexec.New(dispatcher, config, scriptexec.WithLogger(logger))
	if err != nil {
		t.Fatalf("failed to create script executor: %v", err)
	}
	return &Env{
		Store:      store,
		Dispatcher: dispatcher,
		Executor:   executor,
		Now:        1_000_000,
	}
}

// Block returns the parameters of a new block at the current time.
func (e *Env) Block() appvault.BlockParameters {
	e.number++
	return appvault.BlockParameters{BlockNumber: e.number, Timestamp: e.Now}
}

// Fund credits the given amount of wei to an account.
func (e *Env) Fund(t testing.TB, account appvault.Address, amount uint64) {
	t.Helper()
	e.Store.SetBalance(account, appvault.Add(e.Store.GetBalance(account), appvault.NewValue(amount)))
	if err := e.Store.Commit(); err != nil {
		t.Fatalf("failed to fund %v: %v", account, err)
	}
}

// RegisterCrowdsale creates the default registry of the executor and
// registers the crowdsale application on it.
func (e *Env) RegisterCrowdsale(t testing.TB) (appvault.ExecID, appvault.Receipt) {
	t.Helper()
	registryID, _, err := e.Executor.CreateRegistryInstance(e.Block(), ExecAdmin, registry.IndexAddress(), Provider)
	if err != nil {
		t.Fatalf("failed to create registry: %v", err)
	}
	selectors, targets := crowdsale.Selectors()
	receipt := e.Exec(t, Provider, registryID, appvault.MustEncode(registry.RegisterApp,
		[32]byte(crowdsale.Name),
		crowdsale.IndexAddress().Common(),
		appvault.SelectorBytes(selectors),
		appvault.CommonAddresses(targets),
	), appvault.Value{})
	return registryID, receipt
}

// NewSale creates a crowdsale instance deployed by the given account.
func (e *Env) NewSale(t testing.TB, deployer appvault.Address, params crowdsale.Params) appvault.ExecID {
	t.Helper()
	input, err := params.Encode()
	if err != nil {
		t.Fatalf("failed to encode sale parameters: %v", err)
	}
	id, _, err := e.Executor.CreateAppInstance(e.Block(), deployer, crowdsale.Name, input)
	if err != nil {
		t.Fatalf("failed to create sale: %v", err)
	}
	return id
}

// OpenSale configures the sale's token, initializes the sale and moves the
// clock past the sale's start.
func (e *Env) OpenSale(t testing.TB, id appvault.ExecID, admin appvault.Address, decimals uint8) {
	t.Helper()
	e.Exec(t, admin, id, appvault.MustEncode(crowdsale.InitCrowdsaleTokenMethod,
		[32]byte(appvault.MustName("Token")), [32]byte(appvault.MustName("TOK")), decimals), appvault.Value{})
	e.Exec(t, admin, id, appvault.MustEncode(crowdsale.InitializeCrowdsaleMethod), appvault.Value{})
	start := e.Query(t, id, crowdsale.GetStartAndEndTimesQuery)[0]
	e.Now = asInt(start) + 1
}

// Exec submits a call through the script executor and fails the test if it
// does not succeed.
func (e *Env) Exec(t testing.TB, sender appvault.Address, id appvault.ExecID, input appvault.Data, value appvault.Value) appvault.Receipt {
	t.Helper()
	receipt, err := e.Executor.Exec(e.Block(), sender, id, input, value)
	if err != nil {
		t.Fatalf("exec failed: %v", err)
	}
	if !receipt.Success {
		t.Fatalf("exec reported failure")
	}
	return receipt
}

// Query runs an index function and decodes its output.
func (e *Env) Query(t testing.TB, id appvault.ExecID, method abi.Method, args ...any) []any {
	t.Helper()
	out, err := e.Executor.Query(e.Block(), id, appvault.MustEncode(method, args...))
	if err != nil {
		t.Fatalf("query %s failed: %v", method.Name, err)
	}
	res, err := appvault.DecodeOutput(method, out)
	if err != nil {
		t.Fatalf("failed to decode %s output: %v", method.Name, err)
	}
	return res
}
