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

	cliUtils "github.com/appvault-labs/appvault/go/driver/cli"
	"github.com/appvault-labs/appvault/go/scriptexec"
	"github.com/urfave/cli/v2"
)

var ConfigCmd = cli.Command{
	Action:    doConfig,
	Name:      "config",
	Usage:     "Writes the effective script executor configuration to a TOML file",
	ArgsUsage: "<file>",
	Flags: []cli.Flag{
		cliUtils.ConfigFlag,
	},
}

func doConfig(context *cli.Context) error {
	if context.Args().Len() != 1 {
		return fmt.Errorf("expected the output file as the only argument")
	}
	config, err := loadConfig(cliUtils.ConfigFlag.Fetch(context))
	if err != nil {
		return err
	}
	return scriptexec.SaveConfig(context.Args().First(), config)
}
