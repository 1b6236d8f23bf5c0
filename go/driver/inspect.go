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

	"github.com/appvault-labs/appvault/go/appvault"
	cliUtils "github.com/appvault-labs/appvault/go/driver/cli"
	"github.com/appvault-labs/appvault/go/kvstore"
	"github.com/urfave/cli/v2"
)

var InspectCmd = cli.Command{
	Action: doInspect,
	Name:   "inspect",
	Usage:  "Lists the execution instances of a LevelDB store",
	Flags: []cli.Flag{
		cliUtils.DbFlag,
	},
}

func doInspect(context *cli.Context) error {
	path := cliUtils.DbFlag.Fetch(context)
	if path == "" {
		return fmt.Errorf("missing --%s", cliUtils.DbFlag.Name)
	}
	backend, err := kvstore.OpenLevelDb(path)
	if err != nil {
		return err
	}
	store := kvstore.New(backend)
	return errors.Join(inspect(context.App.Writer, store), store.Close())
}

func inspect(out io.Writer, store *kvstore.Store) error {
	ids, err := store.Instances()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%d instances\n", len(ids))
	for _, id := range ids {
		instance, found := store.GetInstance(id)
		if !found {
			return fmt.Errorf("%w: record of instance %v", appvault.ErrNotFound, id)
		}
		slots, err := store.Storage(id)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%v\n", id)
		fmt.Fprintf(out, "  application %v version %v by %v\n", instance.Application, instance.Version, instance.Provider)
		fmt.Fprintf(out, "  index %v, %d selectors, admin %v, executor %v\n",
			instance.Index, len(instance.Selectors), instance.Admin, instance.Executor)
		fmt.Fprintf(out, "  created at block %d, %d storage slots\n", instance.CreatedAt, len(slots))
	}
	return nil
}
