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
	"bytes"
	"math/big"
	"path/filepath"
	"strings"
	"testing"

	"github.com/appvault-labs/appvault/go/apps/crowdsale"
	"github.com/appvault-labs/appvault/go/apps/token"
	"github.com/appvault-labs/appvault/go/appvault"
	"github.com/appvault-labs/appvault/go/kvstore"
	"github.com/appvault-labs/appvault/go/scriptexec"
	"go.uber.org/zap/zaptest"
)

func openTestEnvironment(t *testing.T, dbPath string) *environment {
	t.Helper()
	config, err := loadConfig("")
	if err != nil {
		t.Fatalf("failed to load default config: %v", err)
	}
	env, err := openEnvironment(zaptest.NewLogger(t), config, dbPath)
	if err != nil {
		t.Fatalf("failed to open environment: %v", err)
	}
	return env
}

func newTestEnvironment(t *testing.T) *environment {
	t.Helper()
	env := openTestEnvironment(t, "")
	t.Cleanup(func() {
		if err := env.close(); err != nil {
			t.Errorf("failed to close environment: %v", err)
		}
	})
	return env
}

func TestScenario_RunsFromDeploymentToUnlock(t *testing.T) {
	env := newTestEnvironment(t)
	steps, id, err := runScenario(env)
	if err != nil {
		t.Fatalf("scenario failed: %v", err)
	}
	if want, got := 11, len(steps); want != got {
		t.Errorf("unexpected number of steps, wanted %d, got %d", want, got)
	}
	for _, step := range steps {
		if !step.Receipt.Success {
			t.Errorf("step %s did not succeed", step.Name)
		}
	}

	balances := map[string]struct {
		account appvault.Address
		want    uint64
	}{
		"alice": {alice, 110},
		"bob":   {bob, 60},
		"team":  {team, 117},
	}
	for name, test := range balances {
		t.Run(name, func(t *testing.T) {
			res, err := env.query(id, token.BalanceOfQuery, test.account.Common())
			if err != nil {
				t.Fatalf("balance query failed: %v", err)
			}
			if want, got := test.want, res[0].(*big.Int).Uint64(); want != got {
				t.Errorf("unexpected balance, wanted %d, got %d", want, got)
			}
		})
	}

	if want, got := appvault.NewValue(1_900), env.store.GetBalance(saleWallet); want != got {
		t.Errorf("unexpected wallet balance, wanted %v, got %v", want, got)
	}

	var out bytes.Buffer
	if err := printSale(&out, env, id); err != nil {
		t.Fatalf("failed to print sale: %v", err)
	}
	for _, line := range []string{"tokens sold:   170", "unique buyers: 2", "total supply:  287"} {
		if !strings.Contains(out.String(), line) {
			t.Errorf("sale summary misses %q:\n%s", line, out.String())
		}
	}
}

func TestScenario_MetricsCountCommittedExecs(t *testing.T) {
	env := newTestEnvironment(t)
	if _, _, err := runScenario(env); err != nil {
		t.Fatalf("scenario failed: %v", err)
	}
	var out bytes.Buffer
	if err := env.printMetrics(&out); err != nil {
		t.Fatalf("failed to print metrics: %v", err)
	}
	for _, name := range []string{
		"appvault_dispatch_exec_total{outcome=committed}",
		"appvault_dispatch_payments_total",
		"appvault_dispatch_instances_created_total",
	} {
		if !strings.Contains(out.String(), name) {
			t.Errorf("metrics miss %s:\n%s", name, out.String())
		}
	}
}

func TestStress_AccountingHoldsForDifferentSeeds(t *testing.T) {
	for _, seed := range []uint64{0, 1, 42} {
		env := newTestEnvironment(t)
		res, err := runStress(env, stressConfig{seed: seed, purchasers: 20, purchases: 300})
		if err != nil {
			t.Fatalf("stress run with seed %d failed: %v", seed, err)
		}
		total := 0
		for _, count := range res.outcomes {
			total += count
		}
		if want, got := 300, total; want != got {
			t.Errorf("unexpected number of outcomes for seed %d, wanted %d, got %d", seed, want, got)
		}
		if res.outcomes[outcomePurchased] == 0 {
			t.Errorf("no purchase succeeded for seed %d", seed)
		}
	}
}

func TestStress_ReportsProgress(t *testing.T) {
	env := newTestEnvironment(t)
	var reports []int
	_, err := runStress(env, stressConfig{
		seed:       7,
		purchasers: 5,
		purchases:  50,
		progress:   func(done int, _ float64) { reports = append(reports, done) },
	})
	if err != nil {
		t.Fatalf("stress run failed: %v", err)
	}
	if want, got := 10, len(reports); want != got {
		t.Fatalf("unexpected number of progress reports, wanted %d, got %d", want, got)
	}
	if want, got := 50, reports[len(reports)-1]; want != got {
		t.Errorf("unexpected final progress, wanted %d, got %d", want, got)
	}
}

func TestClassify_SeparatesSaleErrorsFromFailures(t *testing.T) {
	tests := map[string]struct {
		err     error
		outcome string
		fails   bool
	}{
		"success":         {nil, outcomePurchased, false},
		"below minimum":   {appvault.ErrBelowMinimumContribution, outcomeBelowMinimum, false},
		"sold out":        {appvault.ErrTierSoldOut, outcomeSoldOut, false},
		"not whitelisted": {appvault.ErrNotWhitelisted, outcomeNotWhitelisted, false},
		"invalid state":   {appvault.ErrInvalidState, "", true},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			outcome, err := classify(test.err)
			if want, got := test.fails, err != nil; want != got {
				t.Fatalf("unexpected error result, wanted failure %t, got %v", want, err)
			}
			if want, got := test.outcome, outcome; want != got {
				t.Errorf("unexpected outcome, wanted %q, got %q", want, got)
			}
			if crowdsale.IsSaleError(test.err) == test.fails && test.err != nil {
				t.Errorf("classification disagrees with IsSaleError")
			}
		})
	}
}

func TestInspect_ListsPersistedInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db")
	env := openTestEnvironment(t, path)
	if _, _, err := runScenario(env); err != nil {
		t.Fatalf("scenario failed: %v", err)
	}
	if err := env.close(); err != nil {
		t.Fatalf("failed to close environment: %v", err)
	}

	backend, err := kvstore.OpenLevelDb(path)
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	store := kvstore.New(backend)
	defer store.Close()

	var out bytes.Buffer
	if err := inspect(&out, store); err != nil {
		t.Fatalf("inspect failed: %v", err)
	}
	for _, line := range []string{"2 instances", "application registry", "application TieredCrowdsale"} {
		if !strings.Contains(out.String(), line) {
			t.Errorf("inspect output misses %q:\n%s", line, out.String())
		}
	}
}

func TestLoadConfig_DefaultsExecAdmin(t *testing.T) {
	config, err := loadConfig("")
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if want, got := defaultExecAdmin, config.ExecAdmin; want != got {
		t.Errorf("unexpected exec admin, wanted %v, got %v", want, got)
	}

	path := filepath.Join(t.TempDir(), "executor.toml")
	custom := scriptexec.DefaultConfig()
	custom.ExecAdmin = appvault.Address{0x42}
	if err := scriptexec.SaveConfig(path, custom); err != nil {
		t.Fatalf("failed to save config: %v", err)
	}
	config, err = loadConfig(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if want, got := custom.ExecAdmin, config.ExecAdmin; want != got {
		t.Errorf("unexpected exec admin, wanted %v, got %v", want, got)
	}
}
