// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package dispatch implements the execution engine of the store: the
// dispatcher running delegated calls against execution instances and the
// instance manager creating them.
//
// Targets never mutate the store. They compute an effect from a read view of
// the instance storage, which the dispatcher validates and applies as one
// atomic unit: either all writes, logs and payments of a call become visible,
// or none does.
package dispatch

import (
	"errors"
	"fmt"

	"github.com/appvault-labs/appvault/go/appvault"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Dispatcher executes calls against the instances of a store. It is not safe
// for concurrent use; calls are expected to be serialized by the caller.
type Dispatcher struct {
	store    appvault.KeyValueStore
	modules  appvault.Modules
	payments PaymentPolicy
	logger   *zap.Logger
	metrics  *metrics
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger used by the dispatcher. The default discards
// all output.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithModules sets the resolver of target and index addresses. By default
// all modules registered in the appvault package at creation time are used.
func WithModules(modules appvault.Modules) Option {
	return func(d *Dispatcher) {
		d.modules = modules
	}
}

// WithPaymentPolicy sets the policy deciding whether payments are accepted.
func WithPaymentPolicy(policy PaymentPolicy) Option {
	return func(d *Dispatcher) {
		d.payments = policy
	}
}

// WithMetrics registers the dispatcher's metrics with the given registerer.
func WithMetrics(registerer prometheus.Registerer) Option {
	return func(d *Dispatcher) {
		d.metrics.register(registerer)
	}
}

// New creates a dispatcher operating on the given store.
func New(store appvault.KeyValueStore, options ...Option) *Dispatcher {
	res := &Dispatcher{
		store:    store,
		modules:  appvault.RegisteredModules(),
		payments: AcceptAll{},
		logger:   zap.NewNop(),
		metrics:  newMetrics(),
	}
	for _, option := range options {
		option(res)
	}
	return res
}

// Instance returns the record of the given instance.
func (d *Dispatcher) Instance(id appvault.ExecID) (appvault.Instance, bool) {
	return d.store.GetInstance(id)
}

// Exec runs the given transaction and commits its effect. On failure, the
// store is left unchanged and the returned receipt carries a single
// ApplicationException log.
func (d *Dispatcher) Exec(block appvault.BlockParameters, tx appvault.Transaction) (appvault.Receipt, error) {
	return d.exec(block, tx, true)
}

// Preview runs the given transaction exactly like Exec but never commits.
// The receipt describes the effect Exec would have in the current state.
func (d *Dispatcher) Preview(block appvault.BlockParameters, tx appvault.Transaction) (appvault.Receipt, error) {
	return d.exec(block, tx, false)
}

func (d *Dispatcher) exec(block appvault.BlockParameters, tx appvault.Transaction, commit bool) (appvault.Receipt, error) {
	selector, _ := appvault.SelectorOf(tx.Input)
	snapshot := d.store.CreateSnapshot()
	receipt, err := d.run(block, tx)
	if err != nil {
		d.store.RestoreSnapshot(snapshot)
		return d.fail(tx, selector, err)
	}

	if !commit {
		d.store.RestoreSnapshot(snapshot)
		d.metrics.recordExec(outcomePreviewed, receiptCounts{})
		return receipt, nil
	}
	if err := d.store.Commit(); err != nil {
		d.store.RestoreSnapshot(snapshot)
		return d.fail(tx, selector, fmt.Errorf("failed to commit: %w", err))
	}

	d.metrics.recordExec(outcomeCommitted, receiptCounts{
		writes:   receipt.NumWrites,
		events:   receipt.NumEvents,
		payments: receipt.NumPayments,
	})
	d.logger.Debug("exec committed",
		zap.Stringer("exec", tx.ExecID),
		zap.Stringer("selector", selector),
		zap.Int("events", receipt.NumEvents),
		zap.Int("payments", receipt.NumPayments),
		zap.Int("writes", receipt.NumWrites),
	)
	return receipt, nil
}

func (d *Dispatcher) fail(tx appvault.Transaction, selector appvault.Selector, err error) (appvault.Receipt, error) {
	d.metrics.recordExec(outcomeFailed, receiptCounts{})
	d.logger.Info("exec aborted",
		zap.Stringer("exec", tx.ExecID),
		zap.Stringer("sender", tx.Sender),
		zap.Stringer("selector", selector),
		zap.Error(err),
	)
	return appvault.Receipt{
		Logs: []appvault.Log{applicationException(tx.Sender, tx.ExecID, err.Error())},
	}, err
}

func (d *Dispatcher) run(block appvault.BlockParameters, tx appvault.Transaction) (appvault.Receipt, error) {
	instance, found := d.store.GetInstance(tx.ExecID)
	if !found {
		return appvault.Receipt{}, fmt.Errorf("%w: instance %v", appvault.ErrNotFound, tx.ExecID)
	}
	if tx.Caller != instance.Executor && !instance.IsTarget(tx.Caller) {
		return appvault.Receipt{}, fmt.Errorf("%w: %v may not exec on %v", appvault.ErrPermissionDenied, tx.Caller, tx.ExecID)
	}

	selector, ok := appvault.SelectorOf(tx.Input)
	if !ok {
		return appvault.Receipt{}, fmt.Errorf("%w: calldata too short", appvault.ErrUnknownSelector)
	}
	address, found := instance.Target(selector)
	if !found {
		return appvault.Receipt{}, fmt.Errorf("%w: %v", appvault.ErrUnknownSelector, selector)
	}
	target, found := d.modules.Target(address)
	if !found {
		return appvault.Receipt{}, fmt.Errorf("%w: no target at %v", appvault.ErrNotFound, address)
	}
	if d.store.GetBalance(tx.Sender).Cmp(tx.Value) < 0 {
		return appvault.Receipt{}, fmt.Errorf("%w: sender %v cannot cover %v wei", appvault.ErrInsufficientBalance, tx.Sender, tx.Value)
	}

	effect, err := target.Execute(appvault.Call{
		BlockParameters: block,
		ExecID:          tx.ExecID,
		Sender:          tx.Sender,
		Value:           tx.Value,
		Input:           tx.Input,
		Storage:         appvault.StoreView(d.store, tx.ExecID),
	})
	if err != nil {
		return appvault.Receipt{}, err
	}
	spent, err := checkPayments(effect.Payments, tx.Value)
	if err != nil {
		return appvault.Receipt{}, err
	}

	for _, write := range effect.Writes {
		d.store.SetStorage(tx.ExecID, write.Key, write.Value)
	}
	if err := d.pay(tx, effect.Payments, spent); err != nil {
		return appvault.Receipt{}, err
	}

	logs := make([]appvault.Log, 0, len(effect.Logs)+len(effect.Payments)+1)
	for _, log := range effect.Logs {
		log.ExecID = tx.ExecID
		logs = append(logs, log)
	}
	for _, payment := range effect.Payments {
		logs = append(logs, deliveredPayment(tx.ExecID, payment))
	}
	logs = append(logs, applicationExecution(tx.ExecID, address))

	return appvault.Receipt{
		Success:     true,
		NumEvents:   len(effect.Logs),
		NumPayments: len(effect.Payments),
		NumWrites:   len(effect.Writes),
		Logs:        logs,
		Payments:    effect.Payments,
	}, nil
}

// checkPayments verifies that the payments of an effect are funded by the
// value attached to the call and returns their sum.
func checkPayments(payments []appvault.Payment, value appvault.Value) (appvault.Value, error) {
	total := new(uint256.Int)
	for _, payment := range payments {
		if payment.Destination == (appvault.Address{}) {
			return appvault.Value{}, fmt.Errorf("%w: payment to zero address", appvault.ErrInvalidArgument)
		}
		if _, overflow := total.AddOverflow(total, payment.Amount.ToUint256()); overflow {
			return appvault.Value{}, fmt.Errorf("%w: payments overflow", appvault.ErrInvalidState)
		}
	}
	res := appvault.ValueFromUint256(total)
	if res.Cmp(value) > 0 {
		return appvault.Value{}, fmt.Errorf("%w: payments of %v exceed attached value %v", appvault.ErrInvalidState, res, value)
	}
	return res, nil
}

// pay moves the attached value from the sender to the payment destinations
// and refunds what is left.
func (d *Dispatcher) pay(tx appvault.Transaction, payments []appvault.Payment, spent appvault.Value) error {
	d.store.SetBalance(tx.Sender, appvault.Sub(d.store.GetBalance(tx.Sender), tx.Value))
	for _, payment := range payments {
		if err := d.payments.Accept(payment.Destination, payment.Amount); err != nil {
			return errors.Join(fmt.Errorf("%w: %v", appvault.ErrPaymentRejected, payment.Destination), err)
		}
		d.store.SetBalance(payment.Destination, appvault.Add(d.store.GetBalance(payment.Destination), payment.Amount))
	}
	refund := appvault.Sub(tx.Value, spent)
	d.store.SetBalance(tx.Sender, appvault.Add(d.store.GetBalance(tx.Sender), refund))
	return nil
}

// Query runs a read-only query against the index of the given instance.
func (d *Dispatcher) Query(block appvault.BlockParameters, id appvault.ExecID, input appvault.Data) (appvault.Data, error) {
	instance, found := d.store.GetInstance(id)
	if !found {
		return nil, fmt.Errorf("%w: instance %v", appvault.ErrNotFound, id)
	}
	index, found := d.modules.Index(instance.Index)
	if !found {
		return nil, fmt.Errorf("%w: no index at %v", appvault.ErrNotFound, instance.Index)
	}
	return index.Query(appvault.Call{
		BlockParameters: block,
		ExecID:          id,
		Input:           input,
		Storage:         appvault.StoreView(d.store, id),
	})
}
