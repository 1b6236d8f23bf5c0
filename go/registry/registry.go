// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package registry implements the application registry hosted by the store.
// A registry is an execution instance of its own: providers register
// applications and versions through its provider target, and the instance
// manager resolves versions through the lookups of this package.
package registry

import (
	"fmt"

	"github.com/appvault-labs/appvault/go/appvault"
	"github.com/ethereum/go-ethereum/common"
)

// TargetAddress is the address of the registry's provider target.
// It is wrapped in a function to be immutable.
func TargetAddress() appvault.Address {
	return appvault.Address(common.HexToAddress("0xa99e000000000000000000000000000000000001"))
}

// IndexAddress is the address of the registry's index.
// It is wrapped in a function to be immutable.
func IndexAddress() appvault.Address {
	return appvault.Address(common.HexToAddress("0xa99e000000000000000000000000000000000002"))
}

// Name is the application and version name of registry instances.
var Name = appvault.MustName("registry")

var (
	RegisterApp        = appvault.NewFunction("registerApp", []string{"bytes32", "address", "bytes4[]", "address[]"}, nil)
	RegisterAppVersion = appvault.NewFunction("registerAppVersion", []string{"bytes32", "bytes32", "address", "bytes4[]", "address[]"}, nil)

	GetLatestVersion         = appvault.NewFunction("getLatestVersion", []string{"address", "bytes32"}, []string{"bytes32"})
	GetVersionImplementation = appvault.NewFunction("getVersionImplementation", []string{"address", "bytes32", "bytes32"}, []string{"address", "bytes4[]", "address[]"})
	GetVersions              = appvault.NewFunction("getVersions", []string{"address", "bytes32"}, []string{"bytes32[]"})
	GetApplications          = appvault.NewFunction("getApplications", []string{"address"}, []string{"bytes32[]"})
)

var (
	ApplicationRegisteredTopic = appvault.EventTopic("ApplicationRegistered(address,bytes32)")
	VersionRegisteredTopic     = appvault.EventTopic("VersionRegistered(address,bytes32,bytes32)")
)

// maxSelectors bounds the selector table of a single version.
const maxSelectors = 256

var provider = appvault.NewRouter(
	appvault.Function{Method: RegisterApp, Handle: registerApp},
	appvault.Function{Method: RegisterAppVersion, Handle: registerAppVersion},
)

// Target returns the provider target of registries.
func Target() appvault.Target {
	return provider
}

// Selectors returns the selector table of registry instances, all bound to
// TargetAddress.
func Selectors() ([]appvault.Selector, []appvault.Address) {
	selectors := provider.Selectors()
	targets := make([]appvault.Address, len(selectors))
	for i := range targets {
		targets[i] = TargetAddress()
	}
	return selectors, targets
}

func init() {
	appvault.MustRegisterTarget(TargetAddress(), provider)
	appvault.MustRegisterIndex(IndexAddress(), Index{})
}

func registerApp(call appvault.Call, args appvault.Args, buffer *appvault.Buffer) error {
	owner := call.Sender
	app := args.Name(0)
	if app.IsEmpty() {
		return fmt.Errorf("%w: empty application name", appvault.ErrInvalidArgument)
	}
	if IsApplication(buffer, owner, app) {
		return fmt.Errorf("%w: %v", appvault.ErrDuplicateApplication, app)
	}
	buffer.Set(appKey(owner, app), appvault.WordFromBool(true))
	appsList(owner).Append(buffer, app.Word())
	buffer.Emit([]appvault.Hash{
		ApplicationRegisteredTopic,
		appvault.HashFromAddress(owner),
		appvault.Hash(app),
	}, nil)
	return addVersion(buffer, owner, app, app, args.Address(1), args.Selectors(2), args.Addresses(3))
}

func registerAppVersion(call appvault.Call, args appvault.Args, buffer *appvault.Buffer) error {
	owner := call.Sender
	app := args.Name(0)
	if !IsApplication(buffer, owner, app) {
		return fmt.Errorf("%w: application %v", appvault.ErrNotFound, app)
	}
	return addVersion(buffer, owner, app, args.Name(1), args.Address(2), args.Selectors(3), args.Addresses(4))
}

func addVersion(
	buffer *appvault.Buffer,
	owner appvault.Address,
	app, version appvault.Name,
	index appvault.Address,
	selectors []appvault.Selector,
	targets []appvault.Address,
) error {
	if version.IsEmpty() {
		return fmt.Errorf("%w: empty version name", appvault.ErrInvalidArgument)
	}
	if index == (appvault.Address{}) {
		return fmt.Errorf("%w: zero index address", appvault.ErrInvalidArgument)
	}
	if err := checkSelectorTable(selectors, targets); err != nil {
		return err
	}
	base := versionKey(owner, app, version)
	if !buffer.Get(base).IsZero() {
		return fmt.Errorf("%w: version %v of %v", appvault.ErrDuplicateApplication, version, app)
	}

	buffer.Set(base, appvault.WordFromAddress(index))
	buffer.Set(base.Offset(1), appvault.WordFromUint64(uint64(len(selectors))))
	for i := range selectors {
		buffer.Set(base.Offset(2+2*uint64(i)), selectorWord(selectors[i]))
		buffer.Set(base.Offset(3+2*uint64(i)), appvault.WordFromAddress(targets[i]))
	}
	versionsList(owner, app).Append(buffer, version.Word())
	buffer.Emit([]appvault.Hash{
		VersionRegisteredTopic,
		appvault.HashFromAddress(owner),
		appvault.Hash(app),
		appvault.Hash(version),
	}, nil)
	return nil
}

func checkSelectorTable(selectors []appvault.Selector, targets []appvault.Address) error {
	if len(selectors) == 0 || len(selectors) != len(targets) {
		return fmt.Errorf("%w: %d selectors, %d targets", appvault.ErrArgumentLengthMismatch, len(selectors), len(targets))
	}
	if len(selectors) > maxSelectors {
		return fmt.Errorf("%w: more than %d selectors", appvault.ErrInvalidArgument, maxSelectors)
	}
	seen := make(map[appvault.Selector]struct{}, len(selectors))
	for i, selector := range selectors {
		if _, found := seen[selector]; found {
			return fmt.Errorf("%w: duplicate selector %v", appvault.ErrInvalidArgument, selector)
		}
		seen[selector] = struct{}{}
		if targets[i] == (appvault.Address{}) {
			return fmt.Errorf("%w: zero target for selector %v", appvault.ErrInvalidArgument, selector)
		}
	}
	return nil
}
