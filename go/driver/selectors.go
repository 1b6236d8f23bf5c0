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

	"github.com/appvault-labs/appvault/go/apps/crowdsale"
	"github.com/appvault-labs/appvault/go/registry"
	"github.com/urfave/cli/v2"
)

var SelectorsCmd = cli.Command{
	Action: doSelectors,
	Name:   "selectors",
	Usage:  "Prints the selector tables of the registry and the crowdsale",
}

func doSelectors(context *cli.Context) error {
	out := context.App.Writer
	fmt.Fprintf(out, "%s (index %v)\n", crowdsale.Name, crowdsale.IndexAddress())
	for _, entry := range crowdsale.Table() {
		fmt.Fprintf(out, "  %v  %-30s %v\n", entry.Selector, entry.Method.Sig, entry.Target)
	}
	selectors, targets := registry.Selectors()
	fmt.Fprintf(out, "%s (index %v)\n", registry.Name, registry.IndexAddress())
	for i, selector := range selectors {
		fmt.Fprintf(out, "  %v  %v\n", selector, targets[i])
	}
	return nil
}
