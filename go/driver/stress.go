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
	"time"

	"github.com/appvault-labs/appvault/go/apps/crowdsale"
	"github.com/appvault-labs/appvault/go/apps/token"
	"github.com/appvault-labs/appvault/go/appvault"
	cliUtils "github.com/appvault-labs/appvault/go/driver/cli"
	"github.com/dsnet/golib/unitconv"
	"github.com/urfave/cli/v2"
	"golang.org/x/exp/maps"
	"pgregory.net/rand"
)

var StressCmd = cliUtils.AddCommonFlags(cli.Command{
	Action: doStress,
	Name:   "stress",
	Usage:  "Submits random purchases to a three tier sale and checks the token accounting",
	Flags: []cli.Flag{
		cliUtils.DbFlag,
		cliUtils.SeedFlag,
		cliUtils.PurchasersFlag,
		cliUtils.PurchasesFlag,
	},
})

// Outcomes of a purchase.
const (
	outcomePurchased      = "purchased"
	outcomeBelowMinimum   = "below minimum"
	outcomeSoldOut        = "tier sold out"
	outcomeNotWhitelisted = "not whitelisted"
)

type stressConfig struct {
	seed       uint64
	purchasers int
	purchases  int
	progress   func(done int, rate float64)
}

type stressResult struct {
	outcomes map[string]int
	duration time.Duration
}

func doStress(context *cli.Context) error {
	purchasers, err := cliUtils.PurchasersFlag.Fetch(context)
	if err != nil {
		return err
	}
	purchases, err := cliUtils.PurchasesFlag.Fetch(context)
	if err != nil {
		return err
	}
	seed := cliUtils.SeedFlag.Fetch(context)

	env, err := newEnvironment(context, cliUtils.DbFlag.Fetch(context))
	if err != nil {
		return err
	}
	defer env.close()

	out := context.App.Writer
	fmt.Fprintf(out, "Submitting %d purchases of %d purchasers with seed %d ...\n", purchases, purchasers, seed)
	res, err := runStress(env, stressConfig{
		seed:       seed,
		purchasers: purchasers,
		purchases:  purchases,
		progress: func(done int, rate float64) {
			fmt.Fprintf(out, "Processing ~%s purchases per second, total %d\n",
				unitconv.FormatPrefix(rate, unitconv.SI, 0), done)
		},
	})
	if err != nil {
		return err
	}
	printOutcomes(out, res)
	fmt.Fprintln(out)
	return env.printMetrics(out)
}

func printOutcomes(out io.Writer, res stressResult) {
	outcomes := maps.Keys(res.outcomes)
	sort.Strings(outcomes)
	total := 0
	for _, outcome := range outcomes {
		fmt.Fprintf(out, "%-16s %d\n", outcome, res.outcomes[outcome])
		total += res.outcomes[outcome]
	}
	rate := float64(total) / res.duration.Seconds()
	fmt.Fprintf(out, "%d purchases in %v, ~%s per second\n",
		total, res.duration.Round(time.Millisecond), unitconv.FormatPrefix(rate, unitconv.SI, 0))
}

// stressSetup is a sale of three tiers of the given duration. The second
// tier is whitelisted.
func stressSetup(now int64, duration uint64) saleSetup {
	return saleSetup{
		Params: crowdsale.Params{
			Wallet:   saleWallet,
			Start:    uint64(now) + 1,
			TierName: appvault.MustName("seed"),
			Price:    appvault.NewValue(5),
			Duration: duration,
			Cap:      appvault.NewValue(50_000),
			Minimum:  appvault.NewValue(10),
			Admin:    saleAdmin,
		},
		Tiers: []crowdsale.Tier{
			{
				Name:        appvault.MustName("whitelist"),
				Price:       appvault.NewValue(8),
				Duration:    duration,
				Cap:         appvault.NewValue(100_000),
				Whitelisted: true,
			},
			{
				Name:     appvault.MustName("public"),
				Price:    appvault.NewValue(12),
				Duration: duration,
				Cap:      appvault.NewValue(200_000),
			},
		},
	}
}

// runStress deploys the stress sale and submits random purchases while the
// clock moves through all tiers. Purchases rejected by the rules of the sale
// are counted; any other failure aborts the run. Afterwards the token and
// wei accounting of the sale is checked.
func runStress(env *environment, config stressConfig) (stressResult, error) {
	rnd := rand.New(config.seed)
	duration := uint64(config.purchases+2) / 3
	setup := stressSetup(env.now, max(duration, 1))
	id, _, err := env.deploySale(saleAdmin, setup)
	if err != nil {
		return stressResult{}, err
	}

	buyers := make([]appvault.Address, config.purchasers)
	for i := range buyers {
		buyers[i] = appvault.Address{0xbb}
		buyers[i][12] = byte(i >> 24)
		buyers[i][13] = byte(i >> 16)
		buyers[i][14] = byte(i >> 8)
		buyers[i][15] = byte(i)
		if err := env.fund(buyers[i], appvault.NewValue(1_000_000_000)); err != nil {
			return stressResult{}, err
		}
	}
	if err := whitelistEveryOther(env, id, buyers); err != nil {
		return stressResult{}, err
	}

	walletBefore := env.store.GetBalance(saleWallet)
	res := stressResult{outcomes: map[string]int{}}
	start := time.Now()
	every := max(config.purchases/10, 1)
	for i := 0; i < config.purchases; i++ {
		env.now = int64(setup.Params.Start) + int64(i)*int64(3*setup.Params.Duration)/int64(config.purchases)
		buyer := buyers[rnd.Intn(len(buyers))]
		value := appvault.NewValue(12 + rnd.Uint64n(5_000))
		_, err := env.exec(buyer, id, appvault.MustEncode(crowdsale.BuyMethod), value)
		outcome, err := classify(err)
		if err != nil {
			return res, fmt.Errorf("purchase %d of %v failed: %w", i, buyer, err)
		}
		res.outcomes[outcome]++
		if config.progress != nil && (i+1)%every == 0 {
			config.progress(i+1, float64(i+1)/time.Since(start).Seconds())
		}
	}
	res.duration = time.Since(start)
	return res, checkAccounting(env, id, buyers, walletBefore)
}

func whitelistEveryOther(env *environment, id appvault.ExecID, buyers []appvault.Address) error {
	var (
		listed             []appvault.Address
		minimums, maximums []*big.Int
	)
	for i := 0; i < len(buyers); i += 2 {
		listed = append(listed, buyers[i])
		minimums = append(minimums, big.NewInt(0))
		maximums = append(maximums, big.NewInt(5_000))
	}
	input, err := appvault.Encode(crowdsale.WhitelistMultiForTierMethod,
		big.NewInt(1), appvault.CommonAddresses(listed), minimums, maximums)
	if err != nil {
		return err
	}
	_, err = env.exec(saleAdmin, id, input, appvault.Value{})
	return err
}

func classify(err error) (string, error) {
	switch {
	case err == nil:
		return outcomePurchased, nil
	case errors.Is(err, appvault.ErrBelowMinimumContribution):
		return outcomeBelowMinimum, nil
	case errors.Is(err, appvault.ErrTierSoldOut):
		return outcomeSoldOut, nil
	case errors.Is(err, appvault.ErrNotWhitelisted):
		return outcomeNotWhitelisted, nil
	}
	return "", err
}

// checkAccounting verifies that the tokens held by the buyers add up to the
// total supply and the tokens sold, and that the wallet received the wei
// raised.
func checkAccounting(env *environment, id appvault.ExecID, buyers []appvault.Address, walletBefore appvault.Value) error {
	sum := new(big.Int)
	for _, buyer := range buyers {
		balance, err := env.query(id, token.BalanceOfQuery, buyer.Common())
		if err != nil {
			return err
		}
		sum.Add(sum, balance[0].(*big.Int))
	}
	supply, err := env.query(id, token.TotalSupplyQuery)
	if err != nil {
		return err
	}
	sold, err := env.query(id, crowdsale.GetTokensSoldQuery)
	if err != nil {
		return err
	}
	if sum.Cmp(supply[0].(*big.Int)) != 0 || sum.Cmp(sold[0].(*big.Int)) != 0 {
		return fmt.Errorf("token accounting mismatch: balances %v, supply %v, sold %v", sum, supply[0], sold[0])
	}
	info, err := env.query(id, crowdsale.GetCrowdsaleInfoQuery)
	if err != nil {
		return err
	}
	raised := info[0].(*big.Int)
	received := appvault.Sub(env.store.GetBalance(saleWallet), walletBefore).ToBig()
	if received.Cmp(raised) != 0 {
		return fmt.Errorf("wei accounting mismatch: wallet received %v, raised %v", received, raised)
	}
	return nil
}
