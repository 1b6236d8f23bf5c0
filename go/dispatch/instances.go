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
	"fmt"

	"github.com/appvault-labs/appvault/go/appvault"
	"github.com/appvault-labs/appvault/go/registry"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

// InstanceRequest describes an execution instance to be created from the
// latest version of a registered application.
type InstanceRequest struct {
	Creator     appvault.Address // pays the nonce used to derive the exec id
	Executor    appvault.Address // the account allowed to submit exec calls
	Application appvault.Name
	Provider    appvault.Address
	Registry    appvault.ExecID
	Init        appvault.Data // calldata passed to the version's index
}

// CreateRegistry creates a new registry instance. The registry's selector
// table binds all provider functions to the registry target; the caller
// becomes the registry's executor and admin. Any caller may create a
// registry.
func (d *Dispatcher) CreateRegistry(
	block appvault.BlockParameters,
	caller appvault.Address,
	index appvault.Address,
	provider appvault.Address,
) (appvault.ExecID, appvault.Receipt, error) {
	selectors, targets := registry.Selectors()
	return d.createInstance(block, caller, appvault.Instance{
		Application: registry.Name,
		Version:     registry.Name,
		Provider:    provider,
		Index:       index,
		Selectors:   selectors,
		Targets:     targets,
		Executor:    caller,
	}, nil)
}

// CreateInstance creates a new instance of the latest version of an
// application, resolved through the given registry. The version's index
// initializes the instance from the request's init calldata; if it fails, no
// instance is created.
func (d *Dispatcher) CreateInstance(block appvault.BlockParameters, request InstanceRequest) (appvault.ExecID, appvault.Receipt, error) {
	fail := func(err error) (appvault.ExecID, appvault.Receipt, error) {
		receipt, err := d.fail(appvault.Transaction{Sender: request.Creator, ExecID: request.Registry}, appvault.Selector{}, err)
		return appvault.ExecID{}, receipt, err
	}
	if request.Executor == (appvault.Address{}) {
		return fail(fmt.Errorf("%w: zero executor", appvault.ErrInvalidArgument))
	}
	registryInstance, found := d.store.GetInstance(request.Registry)
	if !found || registryInstance.Application != registry.Name {
		return fail(fmt.Errorf("%w: registry %v", appvault.ErrNotFound, request.Registry))
	}
	version, err := registry.LatestImplementation(
		appvault.StoreView(d.store, request.Registry),
		request.Provider,
		request.Application,
	)
	if err != nil {
		return fail(err)
	}
	return d.createInstance(block, request.Creator, appvault.Instance{
		Application: request.Application,
		Version:     version.Name,
		Provider:    request.Provider,
		Registry:    request.Registry,
		Index:       version.Index,
		Selectors:   version.Selectors,
		Targets:     version.Targets,
		Executor:    request.Executor,
	}, request.Init)
}

func (d *Dispatcher) createInstance(
	block appvault.BlockParameters,
	creator appvault.Address,
	record appvault.Instance,
	init appvault.Data,
) (appvault.ExecID, appvault.Receipt, error) {
	nonce := d.store.GetNonce(creator)
	id := DeriveExecID(creator, record.Application, nonce)
	fail := func(err error) (appvault.ExecID, appvault.Receipt, error) {
		receipt, err := d.fail(appvault.Transaction{Sender: creator, ExecID: id}, appvault.Selector{}, err)
		return appvault.ExecID{}, receipt, err
	}

	index, found := d.modules.Index(record.Index)
	if !found {
		return fail(fmt.Errorf("%w: no index at %v", appvault.ErrNotFound, record.Index))
	}
	if _, exists := d.store.GetInstance(id); exists {
		panic(fmt.Sprintf("exec id collision for %v", id))
	}

	effect, err := index.Init(appvault.Call{
		BlockParameters: block,
		ExecID:          id,
		Sender:          creator,
		Input:           init,
		Storage:         appvault.StoreView(d.store, id),
	})
	if err != nil {
		return fail(err)
	}
	if len(effect.Payments) > 0 {
		return fail(fmt.Errorf("%w: instance initialization may not make payments", appvault.ErrInvalidState))
	}

	record.Admin = effect.Admin
	if record.Admin == (appvault.Address{}) {
		record.Admin = creator
	}
	if block.Timestamp > 0 {
		record.CreatedAt = uint64(block.Timestamp)
	}

	snapshot := d.store.CreateSnapshot()
	d.store.SetNonce(creator, nonce+1)
	d.store.SetInstance(id, record)
	for _, write := range effect.Writes {
		d.store.SetStorage(id, write.Key, write.Value)
	}
	if err := d.store.Commit(); err != nil {
		d.store.RestoreSnapshot(snapshot)
		return fail(fmt.Errorf("failed to commit: %w", err))
	}

	logs := make([]appvault.Log, 0, len(effect.Logs)+1)
	for _, log := range effect.Logs {
		log.ExecID = id
		logs = append(logs, log)
	}
	logs = append(logs, applicationInitialized(id, record.Index, record.Provider, record.Registry))

	d.metrics.instances.Inc()
	d.logger.Info("instance created",
		zap.Stringer("exec", id),
		zap.Stringer("application", record.Application),
		zap.Stringer("version", record.Version),
		zap.Stringer("admin", record.Admin),
		zap.Int("writes", len(effect.Writes)),
	)
	return id, appvault.Receipt{
		Success:   true,
		NumEvents: len(effect.Logs),
		NumWrites: len(effect.Writes),
		Logs:      logs,
	}, nil
}

// DeriveExecID computes the id of the instance a creator obtains for an
// application at the given nonce.
func DeriveExecID(creator appvault.Address, application appvault.Name, nonce uint64) appvault.ExecID {
	return appvault.ExecID(crypto.Keccak256Hash(creator[:], application[:], appvault.Uint64Bytes(nonce)))
}
