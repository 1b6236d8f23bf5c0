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
	"fmt"

	"github.com/appvault-labs/appvault/go/appvault"
)

// Version is the implementation of an application version: its index and
// its selector table.
type Version struct {
	Name      appvault.Name
	Index     appvault.Address
	Selectors []appvault.Selector
	Targets   []appvault.Address
}

// IsApplication reports whether the provider registered the application.
func IsApplication(view appvault.View, provider appvault.Address, app appvault.Name) bool {
	return view.Get(appKey(provider, app)).Bool()
}

// Applications lists the applications registered by the provider in
// registration order.
func Applications(view appvault.View, provider appvault.Address) []appvault.Name {
	list := appsList(provider)
	n := list.Len(view)
	res := make([]appvault.Name, 0, n)
	for i := uint64(0); i < n; i++ {
		res = append(res, appvault.NameFromWord(list.Get(view, i)))
	}
	return res
}

// Versions lists the versions of an application, oldest first.
func Versions(view appvault.View, provider appvault.Address, app appvault.Name) ([]appvault.Name, error) {
	if !IsApplication(view, provider, app) {
		return nil, fmt.Errorf("%w: application %v of provider %v", appvault.ErrNotFound, app, provider)
	}
	list := versionsList(provider, app)
	n := list.Len(view)
	res := make([]appvault.Name, 0, n)
	for i := uint64(0); i < n; i++ {
		res = append(res, appvault.NameFromWord(list.Get(view, i)))
	}
	return res, nil
}

// LatestVersion returns the most recently registered version of an
// application.
func LatestVersion(view appvault.View, provider appvault.Address, app appvault.Name) (appvault.Name, error) {
	if !IsApplication(view, provider, app) {
		return appvault.Name{}, fmt.Errorf("%w: application %v of provider %v", appvault.ErrNotFound, app, provider)
	}
	list := versionsList(provider, app)
	n := list.Len(view)
	if n == 0 {
		return appvault.Name{}, fmt.Errorf("%w: application %v has no versions", appvault.ErrNotFound, app)
	}
	return appvault.NameFromWord(list.Get(view, n-1)), nil
}

// VersionImplementation returns the index and selector table of a version.
func VersionImplementation(view appvault.View, provider appvault.Address, app, version appvault.Name) (Version, error) {
	base := versionKey(provider, app, version)
	index := view.Get(base).Address()
	if index == (appvault.Address{}) {
		return Version{}, fmt.Errorf("%w: version %v of application %v", appvault.ErrNotFound, version, app)
	}
	n := view.Get(base.Offset(1)).Uint64()
	res := Version{
		Name:      version,
		Index:     index,
		Selectors: make([]appvault.Selector, 0, n),
		Targets:   make([]appvault.Address, 0, n),
	}
	for i := uint64(0); i < n; i++ {
		res.Selectors = append(res.Selectors, wordSelector(view.Get(base.Offset(2+2*i))))
		res.Targets = append(res.Targets, view.Get(base.Offset(3+2*i)).Address())
	}
	return res, nil
}

// LatestImplementation resolves the latest version of an application and its
// implementation.
func LatestImplementation(view appvault.View, provider appvault.Address, app appvault.Name) (Version, error) {
	version, err := LatestVersion(view, provider, app)
	if err != nil {
		return Version{}, err
	}
	return VersionImplementation(view, provider, app, version)
}
