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
	"github.com/appvault-labs/appvault/go/appvault"
)

// Index is the index of registry instances. Registries start empty; the
// account creating a registry becomes its admin.
type Index struct{}

var queries = appvault.NewQueryRouter(
	appvault.Query{Method: GetLatestVersion, Handle: func(call appvault.Call, args appvault.Args) ([]any, error) {
		version, err := LatestVersion(call.Storage, args.Address(0), args.Name(1))
		if err != nil {
			return nil, err
		}
		return []any{[32]byte(version)}, nil
	}},
	appvault.Query{Method: GetVersionImplementation, Handle: func(call appvault.Call, args appvault.Args) ([]any, error) {
		version, err := VersionImplementation(call.Storage, args.Address(0), args.Name(1), args.Name(2))
		if err != nil {
			return nil, err
		}
		return []any{
			version.Index.Common(),
			appvault.SelectorBytes(version.Selectors),
			appvault.CommonAddresses(version.Targets),
		}, nil
	}},
	appvault.Query{Method: GetVersions, Handle: func(call appvault.Call, args appvault.Args) ([]any, error) {
		versions, err := Versions(call.Storage, args.Address(0), args.Name(1))
		if err != nil {
			return nil, err
		}
		return []any{appvault.NameBytes(versions)}, nil
	}},
	appvault.Query{Method: GetApplications, Handle: func(call appvault.Call, args appvault.Args) ([]any, error) {
		return []any{appvault.NameBytes(Applications(call.Storage, args.Address(0)))}, nil
	}},
)

func (Index) Init(call appvault.Call) (appvault.Effect, error) {
	return appvault.Effect{Admin: call.Sender}, nil
}

func (Index) Query(call appvault.Call) (appvault.Data, error) {
	return queries.Query(call)
}
