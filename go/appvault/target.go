// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package appvault

//go:generate mockgen -source target.go -destination target_mock.go -package appvault

// Target is a logic module bound to one or more selectors of an application
// version. A target never mutates state: it reads the instance's storage
// through the view in the call and returns the effect it wants applied. The
// dispatcher validates the effect and commits it atomically.
type Target interface {
	// Execute computes the effect of the given call. A non-nil error aborts
	// the call without any side effects.
	Execute(Call) (Effect, error)
}

// Index is the metadata/query module of an application version. It
// initializes freshly created instances and answers read-only queries.
type Index interface {
	// Init computes the initial storage of a new instance from the version's
	// init calldata. The view of the call is empty.
	Init(Call) (Effect, error)

	// Query runs a read-only function against the instance storage and
	// returns its ABI encoded result.
	Query(Call) (Data, error)
}

// BlockParameters contains information about the environment a call is
// executed in.
type BlockParameters struct {
	BlockNumber int64
	Timestamp   int64
}

// Call summarizes the input of a target or index invocation.
type Call struct {
	BlockParameters
	ExecID  ExecID
	Sender  Address // the account on whose behalf the call is made
	Value   Value   // wei attached to the call
	Input   Data    // calldata including the leading selector
	Storage View
}

// Effect is the deterministic outcome of a target invocation: the storage
// slots to write, the logs to emit and the payments to make.
type Effect struct {
	Writes   []Write
	Logs     []Log
	Payments []Payment

	// Admin is only considered for effects produced by Index.Init and names
	// the admin of the new instance.
	Admin Address
}

// Write is a single storage slot assignment.
type Write struct {
	Key   Key
	Value Word
}

// Log is the type summarizing a log message emitted as a side effect of an
// execution.
type Log struct {
	ExecID ExecID
	Topics []Hash
	Data   Data
}

// Payment forwards wei attached to a call to a destination.
type Payment struct {
	Destination Address
	Amount      Value
}

// Transaction summarizes an exec request submitted to the dispatcher.
type Transaction struct {
	Caller Address // the account submitting the exec, usually a script executor
	Sender Address // the account the call is made for
	ExecID ExecID
	Input  Data
	Value  Value
}

// Receipt summarizes the result of an exec.
type Receipt struct {
	Success     bool
	NumEvents   int // events emitted by the application
	NumPayments int
	NumWrites   int
	Logs        []Log // all logs, including those added by the dispatcher
	Payments    []Payment
}
