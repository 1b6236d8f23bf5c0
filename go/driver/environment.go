// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package main

import (
	"errors"
	"fmt"
	"io"
	"math/big"
	"sort"
	"strings"

	"github.com/appvault-labs/appvault/go/apps/crowdsale"
	"github.com/appvault-labs/appvault/go/appvault"
	"github.com/appvault-labs/appvault/go/dispatch"
	cliUtils "github.com/appvault-labs/appvault/go/driver/cli"
	"github.com/appvault-labs/appvault/go/kvstore"
	"github.com/appvault-labs/appvault/go/registry"
	"github.com/appvault-labs/appvault/go/scriptexec"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

// The accounts used by the driver if the configuration does not name them.
var (
	defaultExecAdmin = appvault.Address(common.HexToAddress("0xea00000000000000000000000000000000000001"))
	saleProvider     = appvault.Address(common.HexToAddress("0x9f00000000000000000000000000000000000001"))
)

// environment is a store with a dispatcher and a script executor, driven by
// a simulated clock.
type environment struct {
	store    *kvstore.Store
	executor *scriptexec.Executor
	metrics  *prometheus.Registry
	logger   *zap.Logger
	registry appvault.ExecID
	now      int64
	number   int64
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return config.Build()
}

func openStore(path string) (*kvstore.Store, error) {
	if path == "" {
		return kvstore.NewInMemory(), nil
	}
	backend, err := kvstore.OpenLevelDb(path)
	if err != nil {
		return nil, err
	}
	return kvstore.New(backend), nil
}

func loadConfig(path string) (scriptexec.Config, error) {
	config := scriptexec.DefaultConfig()
	if path != "" {
		var err error
		if config, err = scriptexec.LoadConfig(path); err != nil {
			return scriptexec.Config{}, err
		}
	}
	if config.ExecAdmin == (appvault.Address{}) {
		config.ExecAdmin = defaultExecAdmin
	}
	return config, nil
}

func newEnvironment(context *cli.Context, dbPath string) (*environment, error) {
	logger, err := newLogger(cliUtils.VerboseFlag.Fetch(context))
	if err != nil {
		return nil, err
	}
	config, err := loadConfig(cliUtils.ConfigFlag.Fetch(context))
	if err != nil {
		return nil, err
	}
	return openEnvironment(logger, config, dbPath)
}

func openEnvironment(logger *zap.Logger, config scriptexec.Config, dbPath string) (*environment, error) {
	store, err := openStore(dbPath)
	if err != nil {
		return nil, err
	}
	metrics := prometheus.NewRegistry()
	dispatcher := dispatch.New(store, dispatch.WithLogger(logger), dispatch.WithMetrics(metrics))
	executor, err := scriptexec.New(dispatcher, config, scriptexec.WithLogger(logger))
	if err != nil {
		return nil, errors.Join(err, store.Close())
	}
	return &environment{
		store:    store,
		executor: executor,
		metrics:  metrics,
		logger:   logger,
		now:      1_700_000_000,
	}, nil
}

func (e *environment) close() error {
	// Sync reports an error for loggers writing to a terminal.
	_ = e.logger.Sync()
	return e.store.Close()
}

func (e *environment) block() appvault.BlockParameters {
	e.number++
	return appvault.BlockParameters{BlockNumber: e.number, Timestamp: e.now}
}

func (e *environment) admin() appvault.Address {
	return e.executor.Config().ExecAdmin
}

func (e *environment) fund(account appvault.Address, amount appvault.Value) error {
	e.store.SetBalance(account, appvault.Add(e.store.GetBalance(account), amount))
	return e.store.Commit()
}

func (e *environment) exec(sender appvault.Address, id appvault.ExecID, input appvault.Data, value appvault.Value) (appvault.Receipt, error) {
	return e.executor.Exec(e.block(), sender, id, input, value)
}

func (e *environment) query(id appvault.ExecID, method abi.Method, args ...any) ([]any, error) {
	input, err := appvault.Encode(method, args...)
	if err != nil {
		return nil, err
	}
	out, err := e.executor.Query(e.block(), id, input)
	if err != nil {
		return nil, err
	}
	return appvault.DecodeOutput(method, out)
}

// registerCrowdsale creates a registry and registers the crowdsale on it,
// unless this was done before.
func (e *environment) registerCrowdsale() (appvault.Receipt, error) {
	if e.registry != (appvault.ExecID{}) {
		return appvault.Receipt{}, nil
	}
	id, _, err := e.executor.CreateRegistryInstance(e.block(), e.admin(), registry.IndexAddress(), saleProvider)
	if err != nil {
		return appvault.Receipt{}, fmt.Errorf("failed to create registry: %w", err)
	}
	selectors, targets := crowdsale.Selectors()
	input, err := appvault.Encode(registry.RegisterApp,
		[32]byte(crowdsale.Name),
		crowdsale.IndexAddress().Common(),
		appvault.SelectorBytes(selectors),
		appvault.CommonAddresses(targets),
	)
	if err != nil {
		return appvault.Receipt{}, err
	}
	receipt, err := e.exec(saleProvider, id, input, appvault.Value{})
	if err != nil {
		return receipt, fmt.Errorf("failed to register crowdsale: %w", err)
	}
	e.registry = id
	return receipt, nil
}

// saleSetup describes a sale to be deployed and opened.
type saleSetup struct {
	Params       crowdsale.Params
	Tiers        []crowdsale.Tier // appended to the initial tier
	Reservations []crowdsale.Reservation
	Decimals     uint8
}

// step is a named exec of a setup or scenario, reported to the user.
type step struct {
	Name    string
	Receipt appvault.Receipt
}

// deploySale creates, configures and opens a sale. The clock is moved just
// past the start of the sale.
func (e *environment) deploySale(deployer appvault.Address, setup saleSetup) (appvault.ExecID, []step, error) {
	var steps []step
	receipt, err := e.registerCrowdsale()
	if err != nil {
		return appvault.ExecID{}, nil, err
	}
	steps = append(steps, step{"registerApp", receipt})

	params, err := setup.Params.Encode()
	if err != nil {
		return appvault.ExecID{}, nil, err
	}
	id, receipt, err := e.executor.CreateAppInstance(e.block(), deployer, crowdsale.Name, params)
	if err != nil {
		return appvault.ExecID{}, nil, fmt.Errorf("failed to create sale: %w", err)
	}
	steps = append(steps, step{"createAppInstance", receipt})

	admin := setup.Params.Admin
	calls := []struct {
		name  string
		input func() (appvault.Data, error)
	}{
		{"createCrowdsaleTiers", func() (appvault.Data, error) {
			if len(setup.Tiers) == 0 {
				return nil, nil
			}
			return encodeTiers(setup.Tiers)
		}},
		{"updateMultipleReservedTokens", func() (appvault.Data, error) {
			if len(setup.Reservations) == 0 {
				return nil, nil
			}
			return encodeReservations(setup.Reservations)
		}},
		{"initCrowdsaleToken", func() (appvault.Data, error) {
			return appvault.Encode(crowdsale.InitCrowdsaleTokenMethod,
				[32]byte(appvault.MustName("Token")), [32]byte(appvault.MustName("TOK")), setup.Decimals)
		}},
		{"initializeCrowdsale", func() (appvault.Data, error) {
			return appvault.Encode(crowdsale.InitializeCrowdsaleMethod)
		}},
	}
	for _, call := range calls {
		input, err := call.input()
		if err != nil {
			return appvault.ExecID{}, nil, err
		}
		if input == nil {
			continue
		}
		receipt, err := e.exec(admin, id, input, appvault.Value{})
		if err != nil {
			return appvault.ExecID{}, nil, fmt.Errorf("%s failed: %w", call.name, err)
		}
		steps = append(steps, step{call.name, receipt})
	}
	e.now = int64(setup.Params.Start) + 1
	return id, steps, nil
}

func encodeTiers(tiers []crowdsale.Tier) (appvault.Data, error) {
	var (
		names                            [][32]byte
		durations, prices, caps, minimum []*big.Int
		modifiable, whitelisted          []bool
	)
	for _, tier := range tiers {
		names = append(names, [32]byte(tier.Name))
		durations = append(durations, new(big.Int).SetUint64(tier.Duration))
		prices = append(prices, tier.Price.ToBig())
		caps = append(caps, tier.Cap.ToBig())
		minimum = append(minimum, tier.Minimum.ToBig())
		modifiable = append(modifiable, tier.Modifiable)
		whitelisted = append(whitelisted, tier.Whitelisted)
	}
	return appvault.Encode(crowdsale.CreateCrowdsaleTiersMethod,
		names, durations, prices, caps, minimum, modifiable, whitelisted)
}

func encodeReservations(reservations []crowdsale.Reservation) (appvault.Data, error) {
	var (
		destinations   []appvault.Address
		flats, percent []*big.Int
		precisions     []uint8
	)
	for _, reservation := range reservations {
		destinations = append(destinations, reservation.Destination)
		flats = append(flats, reservation.Flat.ToBig())
		percent = append(percent, reservation.Percent.ToBig())
		precisions = append(precisions, reservation.Precision)
	}
	return appvault.Encode(crowdsale.UpdateMultipleReservedTokensMethod,
		appvault.CommonAddresses(destinations), flats, percent, precisions)
}

// printMetrics writes the dispatcher counters collected so far.
func (e *environment) printMetrics(out io.Writer) error {
	families, err := e.metrics.Gather()
	if err != nil {
		return err
	}
	var lines []string
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			var labels []string
			for _, label := range metric.GetLabel() {
				labels = append(labels, label.GetName()+"="+label.GetValue())
			}
			name := family.GetName()
			if len(labels) > 0 {
				name += "{" + strings.Join(labels, ",") + "}"
			}
			lines = append(lines, fmt.Sprintf("%-60s %v", name, metric.GetCounter().GetValue()))
		}
	}
	sort.Strings(lines)
	for _, line := range lines {
		if _, err := fmt.Fprintln(out, line); err != nil {
			return err
		}
	}
	return nil
}

func printSteps(out io.Writer, steps []step) {
	for _, step := range steps {
		fmt.Fprintf(out, "%-28s success=%-5t events=%d payments=%d writes=%d logs=%d\n",
			step.Name, step.Receipt.Success, step.Receipt.NumEvents,
			step.Receipt.NumPayments, step.Receipt.NumWrites, len(step.Receipt.Logs))
	}
}
