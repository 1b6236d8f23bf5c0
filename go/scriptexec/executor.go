// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package scriptexec provides the script executor, the account through which
// end users deploy and drive application instances. It holds a default
// provider and registry, so deployers only name the application to
// instantiate, and it submits all exec calls of its instances on behalf of
// their senders.
package scriptexec

import (
	"fmt"

	"github.com/appvault-labs/appvault/go/appvault"
	"github.com/appvault-labs/appvault/go/dispatch"
	"go.uber.org/zap"
)

// Executor submits instance creations and exec calls to a dispatcher. It is
// not safe for concurrent use.
type Executor struct {
	dispatcher *dispatch.Dispatcher
	config     Config
	logger     *zap.Logger
	deployed   map[appvault.Address][]appvault.ExecID
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the logger of the executor.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Executor) {
		e.logger = logger
	}
}

// New creates an executor submitting calls to the given dispatcher.
func New(dispatcher *dispatch.Dispatcher, config Config, options ...Option) (*Executor, error) {
	if config.ExecAdmin == (appvault.Address{}) {
		return nil, fmt.Errorf("%w: no exec admin configured", appvault.ErrInvalidArgument)
	}
	if config.Address == (appvault.Address{}) {
		return nil, fmt.Errorf("%w: no executor address configured", appvault.ErrInvalidArgument)
	}
	res := &Executor{
		dispatcher: dispatcher,
		config:     config,
		logger:     zap.NewNop(),
		deployed:   map[appvault.Address][]appvault.ExecID{},
	}
	for _, option := range options {
		option(res)
	}
	return res, nil
}

// Config returns the current configuration of the executor.
func (e *Executor) Config() Config {
	return e.config
}

func (e *Executor) onlyAdmin(sender appvault.Address) error {
	if sender != e.config.ExecAdmin {
		return fmt.Errorf("%w: %v is not the exec admin", appvault.ErrPermissionDenied, sender)
	}
	return nil
}

// SetAdmin transfers the administration of the executor.
func (e *Executor) SetAdmin(sender, admin appvault.Address) error {
	if err := e.onlyAdmin(sender); err != nil {
		return err
	}
	if admin == (appvault.Address{}) {
		return fmt.Errorf("%w: zero exec admin", appvault.ErrInvalidArgument)
	}
	e.config.ExecAdmin = admin
	return nil
}

// SetProvider changes the provider of the applications instantiated through
// CreateAppInstance.
func (e *Executor) SetProvider(sender, provider appvault.Address) error {
	if err := e.onlyAdmin(sender); err != nil {
		return err
	}
	e.config.DefaultProvider = provider
	return nil
}

// SetRegistry changes the registry through which applications are resolved.
func (e *Executor) SetRegistry(sender appvault.Address, registry appvault.ExecID) error {
	if err := e.onlyAdmin(sender); err != nil {
		return err
	}
	if _, found := e.dispatcher.Instance(registry); !found {
		return fmt.Errorf("%w: registry %v", appvault.ErrNotFound, registry)
	}
	e.config.DefaultRegistry = registry
	return nil
}

// CreateRegistryInstance creates a registry executed through this executor
// and makes it, together with the given provider, the default used by
// CreateAppInstance.
func (e *Executor) CreateRegistryInstance(
	block appvault.BlockParameters,
	sender appvault.Address,
	index appvault.Address,
	provider appvault.Address,
) (appvault.ExecID, appvault.Receipt, error) {
	if err := e.onlyAdmin(sender); err != nil {
		return appvault.ExecID{}, appvault.Receipt{}, err
	}
	id, receipt, err := e.dispatcher.CreateRegistry(block, e.config.Address, index, provider)
	if err != nil {
		return id, receipt, err
	}
	e.config.DefaultRegistry = id
	e.config.DefaultProvider = provider
	e.logger.Info("registry created", zap.Stringer("execID", id), zap.Stringer("provider", provider))
	return id, receipt, nil
}

// CreateAppInstance creates an instance of the latest version of the named
// application of the default provider. Any deployer may create instances;
// all of them are executed through this executor.
func (e *Executor) CreateAppInstance(
	block appvault.BlockParameters,
	deployer appvault.Address,
	application appvault.Name,
	init appvault.Data,
) (appvault.ExecID, appvault.Receipt, error) {
	if e.config.DefaultRegistry == (appvault.ExecID{}) {
		return appvault.ExecID{}, appvault.Receipt{}, fmt.Errorf("%w: no default registry configured", appvault.ErrInvalidState)
	}
	id, receipt, err := e.dispatcher.CreateInstance(block, dispatch.InstanceRequest{
		Creator:     deployer,
		Executor:    e.config.Address,
		Application: application,
		Provider:    e.config.DefaultProvider,
		Registry:    e.config.DefaultRegistry,
		Init:        init,
	})
	if err != nil {
		return id, receipt, err
	}
	e.deployed[deployer] = append(e.deployed[deployer], id)
	e.logger.Info("application instance created",
		zap.Stringer("execID", id),
		zap.Stringer("application", application),
		zap.Stringer("deployer", deployer),
	)
	return id, receipt, nil
}

// Deployed lists the instances created by the given deployer in creation
// order.
func (e *Executor) Deployed(deployer appvault.Address) []appvault.ExecID {
	return append([]appvault.ExecID(nil), e.deployed[deployer]...)
}

// Exec submits a call of sender against the given instance, with value wei
// attached, and commits its effect.
func (e *Executor) Exec(
	block appvault.BlockParameters,
	sender appvault.Address,
	id appvault.ExecID,
	input appvault.Data,
	value appvault.Value,
) (appvault.Receipt, error) {
	return e.dispatcher.Exec(block, e.transaction(sender, id, input, value))
}

// Preview computes the receipt Exec would produce without committing it.
func (e *Executor) Preview(
	block appvault.BlockParameters,
	sender appvault.Address,
	id appvault.ExecID,
	input appvault.Data,
	value appvault.Value,
) (appvault.Receipt, error) {
	return e.dispatcher.Preview(block, e.transaction(sender, id, input, value))
}

// Query runs a read-only index function of the given instance.
func (e *Executor) Query(block appvault.BlockParameters, id appvault.ExecID, input appvault.Data) (appvault.Data, error) {
	return e.dispatcher.Query(block, id, input)
}

func (e *Executor) transaction(sender appvault.Address, id appvault.ExecID, input appvault.Data, value appvault.Value) appvault.Transaction {
	return appvault.Transaction{
		Caller: e.config.Address,
		Sender: sender,
		ExecID: id,
		Input:  input,
		Value:  value,
	}
}
