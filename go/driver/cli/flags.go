// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package cliUtils

import (
	"fmt"
	"os"
	"runtime/pprof"

	"github.com/urfave/cli/v2"
)

type verboseFlagType struct {
	cli.BoolFlag
}

var VerboseFlag = &verboseFlagType{
	cli.BoolFlag{
		Name:    "verbose",
		Aliases: []string{"v"},
		Usage:   "log every exec with a development logger",
	},
}

func (f *verboseFlagType) Fetch(context *cli.Context) bool {
	return context.Bool(f.Name)
}

type configFlagType struct {
	cli.StringFlag
}

var ConfigFlag = &configFlagType{
	cli.StringFlag{
		Name:      "config",
		Aliases:   []string{"c"},
		Usage:     "TOML file holding the script executor configuration",
		TakesFile: true,
	},
}

func (f *configFlagType) Fetch(context *cli.Context) string {
	return context.String(f.Name)
}

type dbFlagType struct {
	cli.StringFlag
}

var DbFlag = &dbFlagType{
	cli.StringFlag{
		Name:      "db",
		Usage:     "LevelDB directory of the store, an in-memory store is used if empty",
		TakesFile: true,
	},
}

func (f *dbFlagType) Fetch(context *cli.Context) string {
	return context.String(f.Name)
}

type seedFlagType struct {
	cli.Uint64Flag
}

var SeedFlag = &seedFlagType{
	cli.Uint64Flag{
		Name:    "seed",
		Aliases: []string{"s"},
		Usage:   "seed for the random number generator",
	},
}

func (f *seedFlagType) Fetch(context *cli.Context) uint64 {
	return context.Uint64(f.Name)
}

type purchasersFlagType struct {
	cli.IntFlag
}

var PurchasersFlag = &purchasersFlagType{
	cli.IntFlag{
		Name:  "purchasers",
		Usage: "number of distinct purchasers",
		Value: 100,
	},
}

func (f *purchasersFlagType) Fetch(context *cli.Context) (int, error) {
	res := context.Int(f.Name)
	if res <= 0 {
		return 0, fmt.Errorf("number of purchasers must be positive, got %d", res)
	}
	return res, nil
}

type purchasesFlagType struct {
	cli.IntFlag
}

var PurchasesFlag = &purchasesFlagType{
	cli.IntFlag{
		Name:    "purchases",
		Aliases: []string{"n"},
		Usage:   "number of purchases to submit",
		Value:   10_000,
	},
}

func (f *purchasesFlagType) Fetch(context *cli.Context) (int, error) {
	res := context.Int(f.Name)
	if res <= 0 {
		return 0, fmt.Errorf("number of purchases must be positive, got %d", res)
	}
	return res, nil
}

var commonFlags = []cli.Flag{
	VerboseFlag,
	ConfigFlag,
	cpuProfileFlag,
}

var cpuProfileFlag = &cli.StringFlag{
	Name:  "cpuprofile",
	Usage: "store CPU profile in the provided filename",
}

func AddCommonFlags(command cli.Command) cli.Command {
	command.Flags = append(command.Flags, commonFlags...)

	action := command.Action
	command.Action = func(ctx *cli.Context) (err error) {

		if cpuprofileFilename := ctx.String(cpuProfileFlag.Name); cpuprofileFilename != "" {
			f, err := os.Create(cpuprofileFilename)
			if err != nil {
				return fmt.Errorf("could not create CPU profile: %w", err)
			}
			if err := pprof.StartCPUProfile(f); err != nil {
				return fmt.Errorf("could not start CPU profile: %w", err)
			}
			defer pprof.StopCPUProfile()
		}

		return action(ctx)
	}
	return command
}
