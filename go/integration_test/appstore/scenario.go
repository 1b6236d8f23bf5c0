// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package appstore

import (
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/appvault-labs/appvault/go/appvault"
)

// Scenario is a single exec call on an environment. The state of the
// environment is captured before and after the call; the balances after the
// call must match the captured balances modified by Update, and the number
// of changed storage slots must match Changes. Failing calls must leave the
// state untouched.
type Scenario struct {
	Sender   appvault.Address
	ExecID   appvault.ExecID
	Input    appvault.Data
	Value    appvault.Value
	Accounts []appvault.Address // accounts whose balances are compared
	Update   func(Balances)
	Changes  int
	Receipt  appvault.Receipt // logs are compared by their first topic
	Error    error
}

func (s *Scenario) Run(t *testing.T, env *Env) appvault.Receipt {
	t.Helper()
	accounts := append([]appvault.Address{s.Sender}, s.Accounts...)
	before, err := Capture(env.Store, accounts...)
	if err != nil {
		t.Fatalf("failed to capture state: %v", err)
	}

	receipt, err := env.Executor.Exec(env.Block(), s.Sender, s.ExecID, s.Input, s.Value)
	if s.Error == nil && err != nil {
		t.Fatalf("failed to run transaction: %v", err)
	}
	if s.Error != nil && !errors.Is(err, s.Error) {
		t.Fatalf("unexpected error, wanted %v, got %v", s.Error, err)
	}

	after, err := Capture(env.Store, accounts...)
	if err != nil {
		t.Fatalf("failed to capture state: %v", err)
	}
	want := before.Clone()
	if s.Error == nil {
		if s.Update != nil {
			s.Update(want.Balances)
		}
		want.Instances = after.Instances
		if got := before.Changes(after); s.Changes != got {
			t.Errorf("unexpected number of changed storage slots, wanted %d, got %d", s.Changes, got)
		}
	}
	if !want.Equal(after) {
		diff := strings.Join(after.Diff(want), "\n\t")
		t.Fatalf("unexpected state after the operation: \n\t%v", diff)
	}

	if want, got := s.Receipt.Success, receipt.Success; want != got {
		t.Errorf("unexpected success, wanted %v, got %v", want, got)
	}
	if want, got := s.Receipt.NumEvents, receipt.NumEvents; want != got {
		t.Errorf("unexpected number of events, wanted %d, got %d", want, got)
	}
	if want, got := s.Receipt.NumPayments, receipt.NumPayments; want != got {
		t.Errorf("unexpected number of payments, wanted %d, got %d", want, got)
	}
	if want, got := s.Receipt.NumWrites, receipt.NumWrites; want != got {
		t.Errorf("unexpected number of writes, wanted %d, got %d", want, got)
	}
	if len(receipt.Logs) != len(s.Receipt.Logs) {
		t.Fatalf("unexpected receipt logs: %v", receipt.Logs)
	}
	for i, want := range s.Receipt.Logs {
		if want, got := want.Topics[0], receipt.Logs[i].Topics[0]; want != got {
			t.Errorf("unexpected topic of log %d, wanted %v, got %v", i, want, got)
		}
	}
	return receipt
}

// Logs builds expected logs from their topics.
func Logs(topics ...appvault.Hash) []appvault.Log {
	res := make([]appvault.Log, len(topics))
	for i, topic := range topics {
		res[i] = appvault.Log{Topics: []appvault.Hash{topic}}
	}
	return res
}

// Credit returns an update moving amount wei from one account to another.
func Credit(from, to appvault.Address, amount uint64) func(Balances) {
	return func(balances Balances) {
		value := appvault.NewValue(amount)
		balances[from] = appvault.Sub(balances[from], value)
		balances[to] = appvault.Add(balances[to], value)
	}
}

func asInt(value any) int64 {
	return value.(*big.Int).Int64()
}
