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
	"fmt"
	"io"
	"math/big"

	"github.com/appvault-labs/appvault/go/apps/crowdsale"
	"github.com/appvault-labs/appvault/go/apps/token"
	"github.com/appvault-labs/appvault/go/appvault"
	cliUtils "github.com/appvault-labs/appvault/go/driver/cli"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/urfave/cli/v2"
)

var ScenarioCmd = cliUtils.AddCommonFlags(cli.Command{
	Action: doScenario,
	Name:   "scenario",
	Usage:  "Runs a two tier sale from deployment to token unlock and prints every receipt",
	Flags: []cli.Flag{
		cliUtils.DbFlag,
	},
})

var (
	saleAdmin  = appvault.Address(common.HexToAddress("0xad00000000000000000000000000000000000001"))
	saleWallet = appvault.Address(common.HexToAddress("0x3a00000000000000000000000000000000000001"))
	team       = appvault.Address(common.HexToAddress("0x7e00000000000000000000000000000000000001"))
	alice      = appvault.Address(common.HexToAddress("0xa100000000000000000000000000000000000001"))
	bob        = appvault.Address(common.HexToAddress("0xb000000000000000000000000000000000000001"))
)

const tierDuration = 3600

// scenarioSetup is a sale of two tiers: a presale at 10 wei per token and a
// public sale at 20 wei per token. The team is granted 100 tokens and 10% of
// the tokens sold.
func scenarioSetup(now int64) saleSetup {
	return saleSetup{
		Params: crowdsale.Params{
			Wallet:             saleWallet,
			Start:              uint64(now) + tierDuration,
			TierName:           appvault.MustName("presale"),
			Price:              appvault.NewValue(10),
			Duration:           tierDuration,
			Cap:                appvault.NewValue(10_000),
			Minimum:            appvault.NewValue(1),
			DurationModifiable: true,
			Admin:              saleAdmin,
		},
		Tiers: []crowdsale.Tier{{
			Name:     appvault.MustName("public"),
			Price:    appvault.NewValue(20),
			Duration: tierDuration,
			Cap:      appvault.NewValue(10_000),
		}},
		Reservations: []crowdsale.Reservation{{
			Destination: team,
			Flat:        appvault.NewValue(100),
			Percent:     appvault.NewValue(10),
		}},
	}
}

func doScenario(context *cli.Context) error {
	env, err := newEnvironment(context, cliUtils.DbFlag.Fetch(context))
	if err != nil {
		return err
	}
	defer env.close()

	steps, id, err := runScenario(env)
	printSteps(context.App.Writer, steps)
	if err != nil {
		return err
	}
	if err := printSale(context.App.Writer, env, id); err != nil {
		return err
	}
	fmt.Fprintln(context.App.Writer)
	return env.printMetrics(context.App.Writer)
}

// runScenario deploys the scenario sale, buys tokens in both tiers,
// finalizes the sale and moves tokens between buyers.
func runScenario(env *environment) ([]step, appvault.ExecID, error) {
	setup := scenarioSetup(env.now)
	id, steps, err := env.deploySale(saleAdmin, setup)
	if err != nil {
		return steps, id, err
	}
	for _, buyer := range []appvault.Address{alice, bob} {
		if err := env.fund(buyer, appvault.NewValue(1_000_000)); err != nil {
			return steps, id, err
		}
	}

	start := int64(setup.Params.Start)
	calls := []struct {
		name   string
		now    int64
		sender appvault.Address
		method abi.Method
		value  uint64
		args   []any
	}{
		{"buy alice presale", start + 1, alice, crowdsale.BuyMethod, 1_000, nil},
		{"buy bob presale", start + 2, bob, crowdsale.BuyMethod, 500, nil},
		{"buy alice public", start + tierDuration + 1, alice, crowdsale.BuyMethod, 400, nil},
		{"finalizeCrowdsaleAndToken", start + 2*tierDuration + 1, saleAdmin, crowdsale.FinalizeCrowdsaleAndTokenMethod, 0, nil},
		{"transfer alice to bob", start + 2*tierDuration + 2, alice, token.TransferMethod, 0, []any{bob.Common(), big.NewInt(10)}},
	}
	for _, call := range calls {
		env.now = call.now
		input, err := appvault.Encode(call.method, call.args...)
		if err != nil {
			return steps, id, err
		}
		receipt, err := env.exec(call.sender, id, input, appvault.NewValue(call.value))
		if err != nil {
			return steps, id, fmt.Errorf("%s failed: %w", call.name, err)
		}
		steps = append(steps, step{call.name, receipt})
	}
	return steps, id, nil
}

// printSale writes the state of a sale as reported by its queries.
func printSale(out io.Writer, env *environment, id appvault.ExecID) error {
	sold, err := env.query(id, crowdsale.GetTokensSoldQuery)
	if err != nil {
		return err
	}
	buyers, err := env.query(id, crowdsale.GetUniqueBuyersQuery)
	if err != nil {
		return err
	}
	supply, err := env.query(id, token.TotalSupplyQuery)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\nsale %v\n", id)
	fmt.Fprintf(out, "  tokens sold:   %v\n", sold[0])
	fmt.Fprintf(out, "  unique buyers: %v\n", buyers[0])
	fmt.Fprintf(out, "  total supply:  %v\n", supply[0])
	for _, account := range []struct {
		name    string
		address appvault.Address
	}{{"alice", alice}, {"bob", bob}, {"team", team}} {
		balance, err := env.query(id, token.BalanceOfQuery, account.address.Common())
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "  %-6s %v tokens\n", account.name, balance[0])
	}
	fmt.Fprintf(out, "  wallet %v wei\n", env.store.GetBalance(saleWallet))
	return nil
}
