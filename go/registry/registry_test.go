// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package registry

import (
	"errors"
	"testing"

	"github.com/appvault-labs/appvault/go/appvault"
	"github.com/ethereum/go-ethereum/common"
)

var (
	testProvider = appvault.Address{0xbb}
	testIndex    = appvault.Address{0x11}
	testApp      = appvault.MustName("crowdsale")
)

func register(t *testing.T, view *appvault.MapView, input appvault.Data) (appvault.Effect, error) {
	t.Helper()
	effect, err := Target().Execute(appvault.Call{
		ExecID:  view.ID,
		Sender:  testProvider,
		Input:   input,
		Storage: view,
	})
	if err == nil {
		view.Apply(effect)
	}
	return effect, err
}

func registerAppInput(app appvault.Name, index appvault.Address, selectors [][4]byte, targets []common.Address) appvault.Data {
	return appvault.MustEncode(RegisterApp, [32]byte(app), index.Common(), selectors, targets)
}

func TestRegistry_RegisterAppCreatesFirstVersion(t *testing.T) {
	view := appvault.NewMapView(appvault.ExecID{1})
	effect, err := register(t, view, registerAppInput(testApp, testIndex,
		[][4]byte{{1, 2, 3, 4}, {5, 6, 7, 8}},
		[]common.Address{{0xa}, {0xb}},
	))
	if err != nil {
		t.Fatalf("failed to register: %v", err)
	}
	if want, got := 2, len(effect.Logs); want != got {
		t.Errorf("unexpected number of logs, wanted %d, got %d", want, got)
	}

	version, err := LatestVersion(view, testProvider, testApp)
	if err != nil {
		t.Fatalf("failed to get latest version: %v", err)
	}
	if want, got := testApp, version; want != got {
		t.Errorf("unexpected version, wanted %v, got %v", want, got)
	}
	impl, err := VersionImplementation(view, testProvider, testApp, version)
	if err != nil {
		t.Fatalf("failed to get implementation: %v", err)
	}
	if want, got := testIndex, impl.Index; want != got {
		t.Errorf("unexpected index, wanted %v, got %v", want, got)
	}
	if len(impl.Selectors) != 2 || impl.Selectors[1] != (appvault.Selector{5, 6, 7, 8}) || impl.Targets[1] != (appvault.Address{0xb}) {
		t.Errorf("unexpected selector table: %v / %v", impl.Selectors, impl.Targets)
	}
	if apps := Applications(view, testProvider); len(apps) != 1 || apps[0] != testApp {
		t.Errorf("unexpected applications: %v", apps)
	}
}

func TestRegistry_DuplicateRegistrationFailsWithoutStateChange(t *testing.T) {
	view := appvault.NewMapView(appvault.ExecID{1})
	input := registerAppInput(testApp, testIndex, [][4]byte{{1}}, []common.Address{{0xa}})
	if _, err := register(t, view, input); err != nil {
		t.Fatalf("failed to register: %v", err)
	}
	before := len(view.Slots)

	other := registerAppInput(testApp, appvault.Address{0x22}, [][4]byte{{2}}, []common.Address{{0xb}})
	if _, err := register(t, view, other); !errors.Is(err, appvault.ErrDuplicateApplication) {
		t.Fatalf("unexpected error, wanted %v, got %v", appvault.ErrDuplicateApplication, err)
	}
	if want, got := before, len(view.Slots); want != got {
		t.Errorf("storage changed, wanted %d slots, got %d", want, got)
	}
	impl, err := LatestImplementation(view, testProvider, testApp)
	if err != nil {
		t.Fatalf("failed to get implementation: %v", err)
	}
	if want, got := testIndex, impl.Index; want != got {
		t.Errorf("first registration was modified, wanted %v, got %v", want, got)
	}
}

func TestRegistry_ApplicationsAreScopedByProvider(t *testing.T) {
	view := appvault.NewMapView(appvault.ExecID{1})
	if _, err := register(t, view, registerAppInput(testApp, testIndex, [][4]byte{{1}}, []common.Address{{0xa}})); err != nil {
		t.Fatalf("failed to register: %v", err)
	}
	if _, err := LatestVersion(view, appvault.Address{0xcc}, testApp); !errors.Is(err, appvault.ErrNotFound) {
		t.Errorf("unexpected error, wanted %v, got %v", appvault.ErrNotFound, err)
	}
}

func TestRegistry_InvalidSelectorTablesAreRejected(t *testing.T) {
	tests := map[string]struct {
		selectors [][4]byte
		targets   []common.Address
		want      error
	}{
		"empty":              {nil, nil, appvault.ErrArgumentLengthMismatch},
		"more selectors":     {[][4]byte{{1}, {2}}, []common.Address{{0xa}}, appvault.ErrArgumentLengthMismatch},
		"more targets":       {[][4]byte{{1}}, []common.Address{{0xa}, {0xb}}, appvault.ErrArgumentLengthMismatch},
		"duplicate selector": {[][4]byte{{1}, {1}}, []common.Address{{0xa}, {0xb}}, appvault.ErrInvalidArgument},
		"zero target":        {[][4]byte{{1}}, []common.Address{{}}, appvault.ErrInvalidArgument},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			view := appvault.NewMapView(appvault.ExecID{1})
			_, err := register(t, view, registerAppInput(testApp, testIndex, test.selectors, test.targets))
			if !errors.Is(err, test.want) {
				t.Errorf("unexpected error, wanted %v, got %v", test.want, err)
			}
		})
	}
}

func TestRegistry_RegisterAppVersionAdvancesLatestVersion(t *testing.T) {
	view := appvault.NewMapView(appvault.ExecID{1})
	if _, err := register(t, view, registerAppInput(testApp, testIndex, [][4]byte{{1}}, []common.Address{{0xa}})); err != nil {
		t.Fatalf("failed to register: %v", err)
	}
	v2 := appvault.MustName("v2")
	input := appvault.MustEncode(RegisterAppVersion, [32]byte(testApp), [32]byte(v2), common.Address{0x33}, [][4]byte{{9}}, []common.Address{{0xc}})
	if _, err := register(t, view, input); err != nil {
		t.Fatalf("failed to register version: %v", err)
	}
	if _, err := register(t, view, input); !errors.Is(err, appvault.ErrDuplicateApplication) {
		t.Errorf("unexpected error, wanted %v, got %v", appvault.ErrDuplicateApplication, err)
	}

	latest, err := LatestVersion(view, testProvider, testApp)
	if err != nil {
		t.Fatalf("failed to get latest version: %v", err)
	}
	if want, got := v2, latest; want != got {
		t.Errorf("unexpected version, wanted %v, got %v", want, got)
	}
	versions, err := Versions(view, testProvider, testApp)
	if err != nil {
		t.Fatalf("failed to list versions: %v", err)
	}
	if len(versions) != 2 || versions[0] != testApp || versions[1] != v2 {
		t.Errorf("unexpected versions: %v", versions)
	}
}

func TestRegistry_RegisterVersionOfUnknownAppFails(t *testing.T) {
	view := appvault.NewMapView(appvault.ExecID{1})
	input := appvault.MustEncode(RegisterAppVersion, [32]byte(testApp), [32]byte(appvault.MustName("v2")), common.Address{0x33}, [][4]byte{{9}}, []common.Address{{0xc}})
	if _, err := register(t, view, input); !errors.Is(err, appvault.ErrNotFound) {
		t.Errorf("unexpected error, wanted %v, got %v", appvault.ErrNotFound, err)
	}
}

func TestIndex_QueriesEncodeLookups(t *testing.T) {
	view := appvault.NewMapView(appvault.ExecID{1})
	if _, err := register(t, view, registerAppInput(testApp, testIndex, [][4]byte{{1, 2, 3, 4}}, []common.Address{{0xa}})); err != nil {
		t.Fatalf("failed to register: %v", err)
	}
	output, err := Index{}.Query(appvault.Call{
		Input:   appvault.MustEncode(GetVersionImplementation, testProvider.Common(), [32]byte(testApp), [32]byte(testApp)),
		Storage: view,
	})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	results, err := appvault.DecodeOutput(GetVersionImplementation, output)
	if err != nil {
		t.Fatalf("failed to decode output: %v", err)
	}
	if want, got := testIndex.Common(), results[0].(common.Address); want != got {
		t.Errorf("unexpected index, wanted %v, got %v", want, got)
	}
	if want, got := [4]byte{1, 2, 3, 4}, results[1].([][4]byte)[0]; want != got {
		t.Errorf("unexpected selector, wanted %v, got %v", want, got)
	}

	_, err = Index{}.Query(appvault.Call{
		Input:   appvault.MustEncode(GetLatestVersion, testProvider.Common(), [32]byte(appvault.MustName("missing"))),
		Storage: view,
	})
	if !errors.Is(err, appvault.ErrNotFound) {
		t.Errorf("unexpected error, wanted %v, got %v", appvault.ErrNotFound, err)
	}
}
