// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package appstore

import (
	"errors"
	"math/big"
	"testing"

	"github.com/appvault-labs/appvault/go/apps/crowdsale"
	"github.com/appvault-labs/appvault/go/apps/token"
	"github.com/appvault-labs/appvault/go/appvault"
	"github.com/appvault-labs/appvault/go/dispatch"
	"github.com/appvault-labs/appvault/go/registry"
	"github.com/ethereum/go-ethereum/common"
)

var (
	deployer  = appvault.Address{0xde}
	wallet    = appvault.Address{0x3a}
	saleAdmin = appvault.Address{0xad}
	purchaser = appvault.Address{0xb1}
	other     = appvault.Address{0xb2}
)

// defaultSale is the sale of the end-to-end scenario: a single open tier
// selling at 1 wei per token, starting an hour from now.
func defaultSale(env *Env) crowdsale.Params {
	return crowdsale.Params{
		Wallet:             wallet,
		Start:              uint64(env.Now + 3600),
		TierName:           appvault.MustName("Tier0"),
		Price:              appvault.NewValue(1),
		Duration:           3600,
		Cap:                appvault.NewValue(1_000_000),
		Minimum:            appvault.NewValue(10),
		DurationModifiable: true,
		Admin:              saleAdmin,
	}
}

var buy = appvault.MustEncode(crowdsale.BuyMethod)

func TestScenario_RegistryHoldsCrowdsaleTable(t *testing.T) {
	env := NewEnv(t)
	registryID, receipt := env.RegisterCrowdsale(t)
	if want, got := 2, receipt.NumEvents; want != got {
		t.Errorf("unexpected number of events, wanted %d, got %d", want, got)
	}

	res := env.Query(t, registryID, registry.GetVersionImplementation,
		Provider.Common(), [32]byte(crowdsale.Name), [32]byte(crowdsale.Name))
	if want, got := crowdsale.IndexAddress().Common(), res[0].(common.Address); want != got {
		t.Errorf("unexpected index, wanted %v, got %v", want, got)
	}
	if want, got := 19, len(res[1].([][4]byte)); want != got {
		t.Errorf("unexpected number of selectors, wanted %d, got %d", want, got)
	}
	if want, got := 19, len(res[2].([]common.Address)); want != got {
		t.Errorf("unexpected number of targets, wanted %d, got %d", want, got)
	}

	selectors, targets := crowdsale.Selectors()
	(&Scenario{
		Sender: Provider,
		ExecID: registryID,
		Input: appvault.MustEncode(registry.RegisterApp,
			[32]byte(crowdsale.Name),
			crowdsale.IndexAddress().Common(),
			appvault.SelectorBytes(selectors),
			appvault.CommonAddresses(targets),
		),
		Receipt: appvault.Receipt{Logs: Logs(dispatch.ApplicationExceptionTopic)},
		Error:   appvault.ErrDuplicateApplication,
	}).Run(t, env)
}

func TestScenario_EndToEndPurchase(t *testing.T) {
	env := NewEnv(t)
	env.RegisterCrowdsale(t)
	id := env.NewSale(t, deployer, defaultSale(env))
	env.OpenSale(t, id, saleAdmin, 0)
	env.Fund(t, purchaser, 1_000)

	scenario := Scenario{
		Sender:   purchaser,
		ExecID:   id,
		Input:    buy,
		Value:    appvault.NewValue(100),
		Accounts: []appvault.Address{wallet},
		Update:   Credit(purchaser, wallet, 100),
		Changes:  8,
		Receipt: appvault.Receipt{
			Success:     true,
			NumEvents:   1,
			NumPayments: 1,
			NumWrites:   8,
			Logs: Logs(
				crowdsale.PurchaseTopic,
				dispatch.DeliveredPaymentTopic,
				dispatch.ApplicationExecutionTopic,
			),
		},
	}
	scenario.Run(t, env)

	if want, got := int64(100), asInt(env.Query(t, id, token.BalanceOfQuery, purchaser.Common())[0]); want != got {
		t.Errorf("unexpected token balance, wanted %d, got %d", want, got)
	}
	if want, got := int64(100), asInt(env.Query(t, id, token.TotalSupplyQuery)[0]); want != got {
		t.Errorf("unexpected total supply, wanted %d, got %d", want, got)
	}
}

func TestScenario_PurchaseFailures(t *testing.T) {
	tests := map[string]struct {
		options []dispatch.Option
		prepare func(*testing.T, *Env, appvault.ExecID)
		sender  appvault.Address
		value   uint64
		want    error
	}{
		"below minimum": {
			sender: purchaser,
			value:  9,
			want:   appvault.ErrBelowMinimumContribution,
		},
		"insufficient balance": {
			sender: purchaser,
			value:  5_000,
			want:   appvault.ErrInsufficientBalance,
		},
		"wallet rejects payment": {
			options: []dispatch.Option{dispatch.WithPaymentPolicy(dispatch.RejectSet{wallet: {}})},
			sender:  purchaser,
			value:   100,
			want:    appvault.ErrPaymentRejected,
		},
		"sale ended": {
			prepare: func(t *testing.T, env *Env, _ appvault.ExecID) { env.Now += 3600 },
			sender:  purchaser,
			value:   100,
			want:    appvault.ErrInvalidState,
		},
		"sale finalized": {
			prepare: func(t *testing.T, env *Env, id appvault.ExecID) {
				env.Exec(t, saleAdmin, id, appvault.MustEncode(crowdsale.FinalizeCrowdsaleMethod), appvault.Value{})
			},
			sender: purchaser,
			value:  100,
			want:   appvault.ErrInvalidState,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			env := NewEnv(t, test.options...)
			env.RegisterCrowdsale(t)
			id := env.NewSale(t, deployer, defaultSale(env))
			env.OpenSale(t, id, saleAdmin, 0)
			env.Fund(t, purchaser, 1_000)
			if test.prepare != nil {
				test.prepare(t, env, id)
			}

			scenario := Scenario{
				Sender:   test.sender,
				ExecID:   id,
				Input:    buy,
				Value:    appvault.NewValue(test.value),
				Accounts: []appvault.Address{wallet},
				Receipt:  appvault.Receipt{Logs: Logs(dispatch.ApplicationExceptionTopic)},
				Error:    test.want,
			}
			scenario.Run(t, env)
		})
	}
}

func TestScenario_WhitelistedPurchaseIsCappedAndRefunded(t *testing.T) {
	env := NewEnv(t)
	env.RegisterCrowdsale(t)
	params := defaultSale(env)
	params.Price = appvault.NewValue(10)
	params.Minimum = appvault.Value{}
	params.Whitelisted = true
	id := env.NewSale(t, deployer, params)
	env.Exec(t, saleAdmin, id, appvault.MustEncode(crowdsale.WhitelistMultiForTierMethod,
		big.NewInt(0), []common.Address{purchaser.Common()}, []*big.Int{big.NewInt(0)}, []*big.Int{big.NewInt(900)}), appvault.Value{})
	env.OpenSale(t, id, saleAdmin, 0)
	env.Fund(t, purchaser, 20_000)

	scenario := Scenario{
		Sender:   purchaser,
		ExecID:   id,
		Input:    buy,
		Value:    appvault.NewValue(10_000),
		Accounts: []appvault.Address{wallet},
		Update:   Credit(purchaser, wallet, 9_000),
		Changes:  9,
		Receipt: appvault.Receipt{
			Success:     true,
			NumEvents:   1,
			NumPayments: 1,
			NumWrites:   11,
			Logs: Logs(
				crowdsale.PurchaseTopic,
				dispatch.DeliveredPaymentTopic,
				dispatch.ApplicationExecutionTopic,
			),
		},
	}
	scenario.Run(t, env)

	if want, got := int64(900), asInt(env.Query(t, id, token.BalanceOfQuery, purchaser.Common())[0]); want != got {
		t.Errorf("unexpected token balance, wanted %d, got %d", want, got)
	}
	status := env.Query(t, id, crowdsale.GetWhitelistStatusQuery, big.NewInt(0), purchaser.Common())
	if want, got := int64(0), asInt(status[1]); want != got {
		t.Errorf("unexpected remaining whitelist allowance, wanted %d, got %d", want, got)
	}

	(&Scenario{
		Sender:   purchaser,
		ExecID:   id,
		Input:    buy,
		Value:    appvault.NewValue(10),
		Accounts: []appvault.Address{wallet},
		Receipt:  appvault.Receipt{Logs: Logs(dispatch.ApplicationExceptionTopic)},
		Error:    appvault.ErrNotWhitelisted,
	}).Run(t, env)
}

func TestScenario_FinalizationDistributesReservedTokensAndUnlocks(t *testing.T) {
	env := NewEnv(t)
	env.RegisterCrowdsale(t)
	id := env.NewSale(t, deployer, defaultSale(env))
	env.Exec(t, saleAdmin, id, appvault.MustEncode(crowdsale.UpdateMultipleReservedTokensMethod,
		[]common.Address{other.Common(), deployer.Common()},
		[]*big.Int{big.NewInt(50), big.NewInt(0)},
		[]*big.Int{big.NewInt(10), big.NewInt(255)},
		[]uint8{0, 1},
	), appvault.Value{})
	env.OpenSale(t, id, saleAdmin, 0)
	env.Fund(t, purchaser, 1_000)
	env.Exec(t, purchaser, id, buy, appvault.NewValue(400))

	transfer := appvault.MustEncode(token.TransferMethod, other.Common(), big.NewInt(1))
	(&Scenario{
		Sender:  purchaser,
		ExecID:  id,
		Input:   transfer,
		Receipt: appvault.Receipt{Logs: Logs(dispatch.ApplicationExceptionTopic)},
		Error:   appvault.ErrInvalidState,
	}).Run(t, env)

	env.Exec(t, saleAdmin, id, appvault.MustEncode(crowdsale.FinalizeCrowdsaleAndTokenMethod), appvault.Value{})

	// other: 50 + 400 * 10 / 100, deployer: 400 * 255 / 1000
	balances := map[appvault.Address]int64{purchaser: 400, other: 90, deployer: 102}
	sum := int64(0)
	for owner, want := range balances {
		if got := asInt(env.Query(t, id, token.BalanceOfQuery, owner.Common())[0]); want != got {
			t.Errorf("unexpected token balance of %v, wanted %d, got %d", owner, want, got)
		}
		sum += want
	}
	if want, got := sum, asInt(env.Query(t, id, token.TotalSupplyQuery)[0]); want != got {
		t.Errorf("unexpected total supply, wanted %d, got %d", want, got)
	}
	if got := env.Query(t, id, crowdsale.GetReservedDestinationsQuery)[1].([]common.Address); len(got) != 0 {
		t.Errorf("reserved destinations left after finalization: %v", got)
	}
	if !env.Query(t, id, token.IsUnlockedQuery)[0].(bool) {
		t.Errorf("token not unlocked after finalization")
	}

	(&Scenario{
		Sender:  purchaser,
		ExecID:  id,
		Input:   transfer,
		Changes: 2,
		Receipt: appvault.Receipt{
			Success:   true,
			NumEvents: 1,
			NumWrites: 2,
			Logs:      Logs(token.TransferTopic, dispatch.ApplicationExecutionTopic),
		},
	}).Run(t, env)
}

func TestScenario_OnlySaleAdminAdministers(t *testing.T) {
	env := NewEnv(t)
	env.RegisterCrowdsale(t)
	id := env.NewSale(t, deployer, defaultSale(env))

	(&Scenario{
		Sender:  deployer,
		ExecID:  id,
		Input:   appvault.MustEncode(crowdsale.InitializeCrowdsaleMethod),
		Receipt: appvault.Receipt{Logs: Logs(dispatch.ApplicationExceptionTopic)},
		Error:   appvault.ErrPermissionDenied,
	}).Run(t, env)

	before, err := Capture(env.Store)
	if err != nil {
		t.Fatalf("failed to capture state: %v", err)
	}
	_, err = env.Dispatcher.Exec(env.Block(), appvault.Transaction{
		Caller: deployer,
		Sender: saleAdmin,
		ExecID: id,
		Input:  appvault.MustEncode(crowdsale.FinalizeCrowdsaleMethod),
	})
	if !errors.Is(err, appvault.ErrPermissionDenied) {
		t.Errorf("unexpected error for foreign caller, wanted %v, got %v", appvault.ErrPermissionDenied, err)
	}
	after, err := Capture(env.Store)
	if err != nil {
		t.Fatalf("failed to capture state: %v", err)
	}
	if !before.Equal(after) {
		t.Errorf("rejected call modified the state: %v", after.Diff(before))
	}
}

func TestScenario_PreviewLeavesStateUntouched(t *testing.T) {
	env := NewEnv(t)
	env.RegisterCrowdsale(t)
	id := env.NewSale(t, deployer, defaultSale(env))
	env.OpenSale(t, id, saleAdmin, 0)
	env.Fund(t, purchaser, 1_000)

	before, err := Capture(env.Store, purchaser, wallet)
	if err != nil {
		t.Fatalf("failed to capture state: %v", err)
	}
	preview, err := env.Executor.Preview(env.Block(), purchaser, id, buy, appvault.NewValue(100))
	if err != nil {
		t.Fatalf("preview failed: %v", err)
	}
	after, err := Capture(env.Store, purchaser, wallet)
	if err != nil {
		t.Fatalf("failed to capture state: %v", err)
	}
	if !before.Equal(after) {
		t.Fatalf("preview modified the state: %v", after.Diff(before))
	}

	receipt := env.Exec(t, purchaser, id, buy, appvault.NewValue(100))
	if preview.NumEvents != receipt.NumEvents || preview.NumPayments != receipt.NumPayments ||
		preview.NumWrites != receipt.NumWrites || len(preview.Logs) != len(receipt.Logs) {
		t.Errorf("preview %+v differs from exec %+v", preview, receipt)
	}
}
