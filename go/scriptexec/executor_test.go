// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package scriptexec

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/appvault-labs/appvault/go/apps/crowdsale"
	"github.com/appvault-labs/appvault/go/appvault"
	"github.com/appvault-labs/appvault/go/dispatch"
	"github.com/appvault-labs/appvault/go/kvstore"
	"github.com/appvault-labs/appvault/go/registry"
)

var (
	execAdmin = appvault.Address{0xea}
	provider  = appvault.Address{0x9f}
	deployer  = appvault.Address{0xde}
	wallet    = appvault.Address{0x3a}
	saleAdmin = appvault.Address{0xad}
)

func newExecutor(t *testing.T) *Executor {
	t.Helper()
	config := DefaultConfig()
	config.ExecAdmin = execAdmin
	executor, err := New(dispatch.New(kvstore.NewInMemory()), config)
	if err != nil {
		t.Fatalf("failed to create executor: %v", err)
	}
	return executor
}

// withCrowdsale creates a default registry on which the provider registered
// the crowdsale application.
func withCrowdsale(t *testing.T, executor *Executor) appvault.ExecID {
	t.Helper()
	block := appvault.BlockParameters{BlockNumber: 1, Timestamp: 10}
	registryID, _, err := executor.CreateRegistryInstance(block, execAdmin, registry.IndexAddress(), provider)
	if err != nil {
		t.Fatalf("failed to create registry: %v", err)
	}
	selectors, targets := crowdsale.Selectors()
	input := appvault.MustEncode(registry.RegisterApp,
		[32]byte(crowdsale.Name),
		crowdsale.IndexAddress().Common(),
		appvault.SelectorBytes(selectors),
		appvault.CommonAddresses(targets),
	)
	if _, err := executor.Exec(block, provider, registryID, input, appvault.Value{}); err != nil {
		t.Fatalf("failed to register crowdsale: %v", err)
	}
	return registryID
}

func saleInit(t *testing.T) appvault.Data {
	t.Helper()
	input, err := crowdsale.Params{
		Wallet:   wallet,
		Start:    1000,
		TierName: appvault.MustName("Tier0"),
		Price:    appvault.NewValue(1),
		Duration: 3600,
		Cap:      appvault.NewValue(1_000_000),
		Admin:    saleAdmin,
	}.Encode()
	if err != nil {
		t.Fatalf("failed to encode init calldata: %v", err)
	}
	return input
}

func TestExecutor_NewRequiresAdminAndAddress(t *testing.T) {
	tests := map[string]Config{
		"no admin":   {Address: DefaultAddress()},
		"no address": {ExecAdmin: execAdmin},
	}
	for name, config := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := New(dispatch.New(kvstore.NewInMemory()), config); !errors.Is(err, appvault.ErrInvalidArgument) {
				t.Errorf("unexpected error, wanted %v, got %v", appvault.ErrInvalidArgument, err)
			}
		})
	}
}

func TestExecutor_AdministrationIsRestricted(t *testing.T) {
	tests := map[string]func(*Executor, appvault.Address) error{
		"set admin": func(e *Executor, sender appvault.Address) error {
			return e.SetAdmin(sender, deployer)
		},
		"set provider": func(e *Executor, sender appvault.Address) error {
			return e.SetProvider(sender, deployer)
		},
		"set registry": func(e *Executor, sender appvault.Address) error {
			return e.SetRegistry(sender, appvault.ExecID{1})
		},
		"create registry": func(e *Executor, sender appvault.Address) error {
			_, _, err := e.CreateRegistryInstance(appvault.BlockParameters{}, sender, registry.IndexAddress(), provider)
			return err
		},
	}
	for name, op := range tests {
		t.Run(name, func(t *testing.T) {
			executor := newExecutor(t)
			before := executor.Config()
			if err := op(executor, deployer); !errors.Is(err, appvault.ErrPermissionDenied) {
				t.Fatalf("unexpected error, wanted %v, got %v", appvault.ErrPermissionDenied, err)
			}
			if want, got := before, executor.Config(); want != got {
				t.Errorf("configuration changed, wanted %v, got %v", want, got)
			}
		})
	}
}

func TestExecutor_AdminSettersUpdateConfig(t *testing.T) {
	executor := newExecutor(t)
	registryID := withCrowdsale(t, executor)

	if err := executor.SetRegistry(execAdmin, appvault.ExecID{7}); !errors.Is(err, appvault.ErrNotFound) {
		t.Errorf("unexpected error for unknown registry, wanted %v, got %v", appvault.ErrNotFound, err)
	}
	if err := executor.SetRegistry(execAdmin, registryID); err != nil {
		t.Errorf("failed to set registry: %v", err)
	}
	if err := executor.SetProvider(execAdmin, deployer); err != nil {
		t.Errorf("failed to set provider: %v", err)
	}
	if err := executor.SetAdmin(execAdmin, appvault.Address{}); !errors.Is(err, appvault.ErrInvalidArgument) {
		t.Errorf("unexpected error for zero admin, wanted %v, got %v", appvault.ErrInvalidArgument, err)
	}
	if err := executor.SetAdmin(execAdmin, deployer); err != nil {
		t.Errorf("failed to set admin: %v", err)
	}

	want := Config{
		ExecAdmin:       deployer,
		DefaultProvider: deployer,
		DefaultRegistry: registryID,
		Address:         DefaultAddress(),
	}
	if got := executor.Config(); want != got {
		t.Errorf("unexpected configuration, wanted %v, got %v", want, got)
	}
}

func TestExecutor_CreateAppInstanceRequiresRegistry(t *testing.T) {
	executor := newExecutor(t)
	_, _, err := executor.CreateAppInstance(appvault.BlockParameters{}, deployer, crowdsale.Name, saleInit(t))
	if !errors.Is(err, appvault.ErrInvalidState) {
		t.Errorf("unexpected error, wanted %v, got %v", appvault.ErrInvalidState, err)
	}
}

func TestExecutor_CreatesAndDrivesInstances(t *testing.T) {
	executor := newExecutor(t)
	withCrowdsale(t, executor)
	block := appvault.BlockParameters{BlockNumber: 2, Timestamp: 20}

	var ids []appvault.ExecID
	for i := 0; i < 2; i++ {
		id, receipt, err := executor.CreateAppInstance(block, deployer, crowdsale.Name, saleInit(t))
		if err != nil {
			t.Fatalf("failed to create instance: %v", err)
		}
		if !receipt.Success {
			t.Fatalf("instance creation reported failure")
		}
		ids = append(ids, id)
	}
	deployed := executor.Deployed(deployer)
	if len(deployed) != 2 || deployed[0] != ids[0] || deployed[1] != ids[1] || ids[0] == ids[1] {
		t.Fatalf("unexpected deployed instances: %v", deployed)
	}
	if got := executor.Deployed(provider); len(got) != 0 {
		t.Errorf("unexpected instances of other deployer: %v", got)
	}

	instance, found := executor.dispatcher.Instance(ids[0])
	if !found {
		t.Fatalf("instance not found")
	}
	if want, got := executor.Config().Address, instance.Executor; want != got {
		t.Errorf("unexpected instance executor, wanted %v, got %v", want, got)
	}
	if want, got := saleAdmin, instance.Admin; want != got {
		t.Errorf("unexpected instance admin, wanted %v, got %v", want, got)
	}

	configure := appvault.MustEncode(crowdsale.InitCrowdsaleTokenMethod,
		[32]byte(appvault.MustName("Token")), [32]byte(appvault.MustName("TOK")), uint8(0))
	preview, err := executor.Preview(block, saleAdmin, ids[0], configure, appvault.Value{})
	if err != nil {
		t.Fatalf("preview failed: %v", err)
	}
	receipt, err := executor.Exec(block, saleAdmin, ids[0], configure, appvault.Value{})
	if err != nil {
		t.Fatalf("exec failed: %v", err)
	}
	if preview.NumWrites != receipt.NumWrites || preview.NumEvents != receipt.NumEvents {
		t.Errorf("preview %+v differs from receipt %+v", preview, receipt)
	}

	if _, err := executor.Exec(block, deployer, ids[0], configure, appvault.Value{}); !errors.Is(err, appvault.ErrPermissionDenied) {
		t.Errorf("unexpected error for non admin, wanted %v, got %v", appvault.ErrPermissionDenied, err)
	}

	out, err := executor.Query(block, ids[0], appvault.MustEncode(crowdsale.GetAdminQuery))
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	res, err := appvault.DecodeOutput(crowdsale.GetAdminQuery, out)
	if err != nil {
		t.Fatalf("failed to decode query output: %v", err)
	}
	if want, got := saleAdmin.Common(), res[0]; want != got {
		t.Errorf("unexpected admin, wanted %v, got %v", want, got)
	}
}

func TestConfig_LoadMissingFileReturnsDefaults(t *testing.T) {
	config, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if want, got := DefaultConfig(), config; want != got {
		t.Errorf("unexpected config, wanted %v, got %v", want, got)
	}
}

func TestConfig_SaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "executor.toml")
	want := Config{
		ExecAdmin:       execAdmin,
		DefaultProvider: provider,
		DefaultRegistry: appvault.ExecID{1, 2, 3},
		Address:         appvault.Address{0x5c},
	}
	if err := SaveConfig(path, want); err != nil {
		t.Fatalf("failed to save config: %v", err)
	}
	got, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if want != got {
		t.Errorf("unexpected config, wanted %v, got %v", want, got)
	}
}

func TestConfig_LoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "executor.toml")
	content := "exec_admin = \"0xea00000000000000000000000000000000000000\"\ngas_price = 5\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Errorf("unknown key not rejected")
	}
}
