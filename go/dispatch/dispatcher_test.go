// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package dispatch

import (
	"errors"
	"testing"

	"github.com/appvault-labs/appvault/go/appvault"
	"github.com/appvault-labs/appvault/go/kvstore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/mock/gomock"
)

var (
	executor     = appvault.Address{0xe0}
	sender       = appvault.Address{0x5e}
	wallet       = appvault.Address{0xaa}
	targetAddr   = appvault.Address{0x7a}
	indexAddr    = appvault.Address{0x1d}
	testSelector = appvault.Selector{1, 2, 3, 4}
	testExecID   = appvault.ExecID{0x42}
)

type fixture struct {
	store      *kvstore.Store
	target     *appvault.MockTarget
	index      *appvault.MockIndex
	dispatcher *Dispatcher
}

func newFixture(t *testing.T, options ...Option) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	res := &fixture{
		store:  kvstore.NewInMemory(),
		target: appvault.NewMockTarget(ctrl),
		index:  appvault.NewMockIndex(ctrl),
	}
	modules := appvault.ModuleTable{
		Targets: map[appvault.Address]appvault.Target{targetAddr: res.target},
		Indexes: map[appvault.Address]appvault.Index{indexAddr: res.index},
	}
	res.dispatcher = New(res.store, append([]Option{WithModules(modules)}, options...)...)

	res.store.SetInstance(testExecID, appvault.Instance{
		Application: appvault.MustName("app"),
		Version:     appvault.MustName("app"),
		Index:       indexAddr,
		Selectors:   []appvault.Selector{testSelector},
		Targets:     []appvault.Address{targetAddr},
		Executor:    executor,
	})
	res.store.SetBalance(sender, appvault.NewValue(1000))
	if err := res.store.Commit(); err != nil {
		t.Fatalf("failed to set up store: %v", err)
	}
	return res
}

func call(value uint64) appvault.Transaction {
	return appvault.Transaction{
		Caller: executor,
		Sender: sender,
		ExecID: testExecID,
		Input:  appvault.Data{1, 2, 3, 4, 0xff},
		Value:  appvault.NewValue(value),
	}
}

func TestDispatcher_ExecAppliesEffect(t *testing.T) {
	f := newFixture(t)
	key := appvault.NewKey("x")

	f.target.EXPECT().Execute(gomock.Any()).DoAndReturn(func(call appvault.Call) (appvault.Effect, error) {
		if want, got := sender, call.Sender; want != got {
			t.Errorf("unexpected sender, wanted %v, got %v", want, got)
		}
		if want, got := appvault.NewValue(100), call.Value; want != got {
			t.Errorf("unexpected value, wanted %v, got %v", want, got)
		}
		if want, got := int64(77), call.Timestamp; want != got {
			t.Errorf("unexpected time, wanted %d, got %d", want, got)
		}
		return appvault.Effect{
			Writes:   []appvault.Write{{Key: key, Value: appvault.WordFromUint64(5)}},
			Logs:     []appvault.Log{{Topics: []appvault.Hash{{1}}}},
			Payments: []appvault.Payment{{Destination: wallet, Amount: appvault.NewValue(60)}},
		}, nil
	})

	receipt, err := f.dispatcher.Exec(appvault.BlockParameters{Timestamp: 77}, call(100))
	if err != nil {
		t.Fatalf("exec failed: %v", err)
	}
	if !receipt.Success || receipt.NumEvents != 1 || receipt.NumPayments != 1 || receipt.NumWrites != 1 {
		t.Errorf("unexpected receipt: %+v", receipt)
	}
	if want, got := 3, len(receipt.Logs); want != got {
		t.Fatalf("unexpected number of logs, wanted %d, got %d", want, got)
	}
	wantTopics := []appvault.Hash{{1}, DeliveredPaymentTopic, ApplicationExecutionTopic}
	for i, want := range wantTopics {
		if got := receipt.Logs[i].Topics[0]; want != got {
			t.Errorf("unexpected topic of log %d, wanted %v, got %v", i, want, got)
		}
		if got := receipt.Logs[i].ExecID; got != testExecID {
			t.Errorf("unexpected exec id of log %d: %v", i, got)
		}
	}

	if want, got := appvault.WordFromUint64(5), f.store.GetStorage(testExecID, key); want != got {
		t.Errorf("unexpected storage, wanted %v, got %v", want, got)
	}
	if want, got := appvault.NewValue(60), f.store.GetBalance(wallet); want != got {
		t.Errorf("unexpected wallet balance, wanted %v, got %v", want, got)
	}
	if want, got := appvault.NewValue(940), f.store.GetBalance(sender); want != got {
		t.Errorf("unexpected sender balance, wanted %v, got %v", want, got)
	}
}

func TestDispatcher_FailuresLeaveStoreUnchanged(t *testing.T) {
	tests := map[string]struct {
		modify func(*appvault.Transaction)
		effect appvault.Effect
		err    error
		want   error
	}{
		"unknown instance": {
			modify: func(tx *appvault.Transaction) { tx.ExecID = appvault.ExecID{1} },
			want:   appvault.ErrNotFound,
		},
		"caller is not executor": {
			modify: func(tx *appvault.Transaction) { tx.Caller = sender },
			want:   appvault.ErrPermissionDenied,
		},
		"unknown selector": {
			modify: func(tx *appvault.Transaction) { tx.Input = appvault.Data{9, 9, 9, 9} },
			want:   appvault.ErrUnknownSelector,
		},
		"calldata too short": {
			modify: func(tx *appvault.Transaction) { tx.Input = appvault.Data{1, 2} },
			want:   appvault.ErrUnknownSelector,
		},
		"insufficient balance": {
			modify: func(tx *appvault.Transaction) { tx.Value = appvault.NewValue(1001) },
			want:   appvault.ErrInsufficientBalance,
		},
		"target error": {
			err:  appvault.ErrInvalidState,
			want: appvault.ErrInvalidState,
		},
		"payments exceed value": {
			effect: appvault.Effect{
				Writes:   []appvault.Write{{Key: appvault.NewKey("x"), Value: appvault.WordFromUint64(1)}},
				Payments: []appvault.Payment{{Destination: wallet, Amount: appvault.NewValue(11)}},
			},
			want: appvault.ErrInvalidState,
		},
		"payment to zero address": {
			effect: appvault.Effect{
				Payments: []appvault.Payment{{Amount: appvault.NewValue(1)}},
			},
			want: appvault.ErrInvalidArgument,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			f.target.EXPECT().Execute(gomock.Any()).Return(test.effect, test.err).MaxTimes(1)

			tx := call(10)
			if test.modify != nil {
				test.modify(&tx)
			}
			receipt, err := f.dispatcher.Exec(appvault.BlockParameters{}, tx)
			if !errors.Is(err, test.want) {
				t.Fatalf("unexpected error, wanted %v, got %v", test.want, err)
			}
			if receipt.Success {
				t.Errorf("failed exec reported success")
			}
			if len(receipt.Logs) != 1 || receipt.Logs[0].Topics[0] != ApplicationExceptionTopic {
				t.Errorf("expected a single exception log, got %v", receipt.Logs)
			}
			if got := f.store.GetStorage(testExecID, appvault.NewKey("x")); !got.IsZero() {
				t.Errorf("storage was modified: %v", got)
			}
			if want, got := appvault.NewValue(1000), f.store.GetBalance(sender); want != got {
				t.Errorf("unexpected sender balance, wanted %v, got %v", want, got)
			}
		})
	}
}

func TestDispatcher_RejectedPaymentRollsBackWrites(t *testing.T) {
	ctrl := gomock.NewController(t)
	policy := NewMockPaymentPolicy(ctrl)
	f := newFixture(t, WithPaymentPolicy(policy))
	key := appvault.NewKey("x")

	f.target.EXPECT().Execute(gomock.Any()).Return(appvault.Effect{
		Writes:   []appvault.Write{{Key: key, Value: appvault.WordFromUint64(5)}},
		Payments: []appvault.Payment{{Destination: wallet, Amount: appvault.NewValue(10)}},
	}, nil)
	policy.EXPECT().Accept(wallet, appvault.NewValue(10)).Return(errors.New("refused"))

	_, err := f.dispatcher.Exec(appvault.BlockParameters{}, call(10))
	if !errors.Is(err, appvault.ErrPaymentRejected) {
		t.Fatalf("unexpected error, wanted %v, got %v", appvault.ErrPaymentRejected, err)
	}
	if got := f.store.GetStorage(testExecID, key); !got.IsZero() {
		t.Errorf("write of failed exec is visible: %v", got)
	}
	if got := f.store.GetBalance(wallet); !got.IsZero() {
		t.Errorf("payment of failed exec is visible: %v", got)
	}
	if want, got := appvault.NewValue(1000), f.store.GetBalance(sender); want != got {
		t.Errorf("unexpected sender balance, wanted %v, got %v", want, got)
	}
}

func TestDispatcher_TargetsOfTheInstanceMayCallExec(t *testing.T) {
	f := newFixture(t)
	f.target.EXPECT().Execute(gomock.Any()).Return(appvault.Effect{}, nil)

	tx := call(0)
	tx.Caller = targetAddr
	if _, err := f.dispatcher.Exec(appvault.BlockParameters{}, tx); err != nil {
		t.Errorf("exec failed: %v", err)
	}
}

func TestDispatcher_PreviewDoesNotModifyStore(t *testing.T) {
	f := newFixture(t)
	key := appvault.NewKey("x")
	f.target.EXPECT().Execute(gomock.Any()).Return(appvault.Effect{
		Writes:   []appvault.Write{{Key: key, Value: appvault.WordFromUint64(5)}},
		Payments: []appvault.Payment{{Destination: wallet, Amount: appvault.NewValue(10)}},
	}, nil)

	receipt, err := f.dispatcher.Preview(appvault.BlockParameters{}, call(10))
	if err != nil {
		t.Fatalf("preview failed: %v", err)
	}
	if receipt.NumWrites != 1 || receipt.NumPayments != 1 {
		t.Errorf("unexpected receipt: %+v", receipt)
	}
	if got := f.store.GetStorage(testExecID, key); !got.IsZero() {
		t.Errorf("preview modified storage: %v", got)
	}
	if got := f.store.GetBalance(wallet); !got.IsZero() {
		t.Errorf("preview made payment: %v", got)
	}
	if err := f.store.Commit(); err != nil {
		t.Fatalf("failed to commit: %v", err)
	}
	if got := f.store.GetStorage(testExecID, key); !got.IsZero() {
		t.Errorf("preview effect was committed later: %v", got)
	}
}

func TestDispatcher_QueryUsesInstanceIndex(t *testing.T) {
	f := newFixture(t)
	f.index.EXPECT().Query(gomock.Any()).DoAndReturn(func(call appvault.Call) (appvault.Data, error) {
		if want, got := testExecID, call.ExecID; want != got {
			t.Errorf("unexpected exec id, wanted %v, got %v", want, got)
		}
		return appvault.Data{7}, nil
	})
	output, err := f.dispatcher.Query(appvault.BlockParameters{}, testExecID, appvault.Data{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(output) != 1 || output[0] != 7 {
		t.Errorf("unexpected output: %v", output)
	}
	if _, err := f.dispatcher.Query(appvault.BlockParameters{}, appvault.ExecID{1}, nil); !errors.Is(err, appvault.ErrNotFound) {
		t.Errorf("unexpected error, wanted %v, got %v", appvault.ErrNotFound, err)
	}
}

func TestDispatcher_MetricsCountOutcomes(t *testing.T) {
	registry := prometheus.NewRegistry()
	f := newFixture(t, WithMetrics(registry))
	gomock.InOrder(
		f.target.EXPECT().Execute(gomock.Any()).Return(appvault.Effect{
			Writes: []appvault.Write{{Key: appvault.NewKey("x"), Value: appvault.WordFromUint64(1)}},
		}, nil),
		f.target.EXPECT().Execute(gomock.Any()).Return(appvault.Effect{}, appvault.ErrInvalidState),
	)
	f.dispatcher.Exec(appvault.BlockParameters{}, call(0))
	f.dispatcher.Exec(appvault.BlockParameters{}, call(0))

	if want, got := 1.0, testutil.ToFloat64(f.dispatcher.metrics.execs.WithLabelValues(outcomeCommitted)); want != got {
		t.Errorf("unexpected committed count, wanted %v, got %v", want, got)
	}
	if want, got := 1.0, testutil.ToFloat64(f.dispatcher.metrics.execs.WithLabelValues(outcomeFailed)); want != got {
		t.Errorf("unexpected failed count, wanted %v, got %v", want, got)
	}
	if want, got := 1.0, testutil.ToFloat64(f.dispatcher.metrics.writes); want != got {
		t.Errorf("unexpected write count, wanted %v, got %v", want, got)
	}
}

func TestDispatcher_FailedCommitRestoresSnapshot(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := appvault.NewMockKeyValueStore(ctrl)
	target := appvault.NewMockTarget(ctrl)
	dispatcher := New(store, WithModules(appvault.ModuleTable{
		Targets: map[appvault.Address]appvault.Target{targetAddr: target},
	}))

	key := appvault.NewKey("x")
	word := appvault.WordFromUint64(5)
	injected := errors.New("disk full")

	store.EXPECT().GetInstance(testExecID).Return(appvault.Instance{
		Selectors: []appvault.Selector{testSelector},
		Targets:   []appvault.Address{targetAddr},
		Executor:  executor,
	}, true)
	store.EXPECT().GetBalance(sender).Return(appvault.NewValue(1000)).AnyTimes()
	store.EXPECT().SetBalance(sender, gomock.Any()).Times(2)
	target.EXPECT().Execute(gomock.Any()).Return(appvault.Effect{
		Writes: []appvault.Write{{Key: key, Value: word}},
	}, nil)
	gomock.InOrder(
		store.EXPECT().CreateSnapshot().Return(appvault.Snapshot(3)),
		store.EXPECT().SetStorage(testExecID, key, word),
		store.EXPECT().Commit().Return(injected),
		store.EXPECT().RestoreSnapshot(appvault.Snapshot(3)),
	)

	receipt, err := dispatcher.Exec(appvault.BlockParameters{}, call(0))
	if !errors.Is(err, injected) {
		t.Errorf("unexpected error, wanted %v, got %v", injected, err)
	}
	if receipt.Success {
		t.Errorf("failed commit reported success")
	}
	if want, got := 1, len(receipt.Logs); want != got {
		t.Fatalf("unexpected number of logs, wanted %d, got %d", want, got)
	}
	if want, got := ApplicationExceptionTopic, receipt.Logs[0].Topics[0]; want != got {
		t.Errorf("unexpected topic, wanted %v, got %v", want, got)
	}
}
