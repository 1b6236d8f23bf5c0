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

// Layout of the registry instance storage. All entries are scoped by the
// provider owning them.
//
//	app(provider, app)                      1 if the application exists
//	apps(provider)                          list of application names
//	versions(provider, app)                 list of version names, oldest first
//	version(provider, app, version) + 0     index address
//	                                + 1     number of selectors n
//	                                + 2+2i  selector i (left aligned)
//	                                + 3+2i  target i

func appKey(provider appvault.Address, app appvault.Name) appvault.Key {
	return appvault.NewKey("registry.app", provider[:], app[:])
}

func appsList(provider appvault.Address) appvault.List {
	return appvault.NewList(appvault.NewKey("registry.apps", provider[:]), 1)
}

func versionsList(provider appvault.Address, app appvault.Name) appvault.List {
	return appvault.NewList(appvault.NewKey("registry.versions", provider[:], app[:]), 1)
}

func versionKey(provider appvault.Address, app, version appvault.Name) appvault.Key {
	return appvault.NewKey("registry.version", provider[:], app[:], version[:])
}

func selectorWord(selector appvault.Selector) appvault.Word {
	var res appvault.Word
	copy(res[:], selector[:])
	return res
}

func wordSelector(word appvault.Word) appvault.Selector {
	var res appvault.Selector
	copy(res[:], word[:])
	return res
}
