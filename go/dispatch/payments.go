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
)

//go:generate mockgen -source payments.go -destination payments_mock.go -package dispatch

// PaymentPolicy decides whether a destination accepts a payment. It models
// the wallet layer: a destination may refuse incoming funds, in which case
// the whole exec is rolled back.
type PaymentPolicy interface {
	Accept(destination appvault.Address, amount appvault.Value) error
}

// AcceptAll is the default payment policy: every non-zero destination
// accepts every payment.
type AcceptAll struct{}

func (AcceptAll) Accept(destination appvault.Address, _ appvault.Value) error {
	if destination == (appvault.Address{}) {
		return fmt.Errorf("zero destination")
	}
	return nil
}

// RejectSet refuses payments to the listed destinations and accepts all
// others.
type RejectSet map[appvault.Address]struct{}

func (s RejectSet) Accept(destination appvault.Address, amount appvault.Value) error {
	if _, found := s[destination]; found {
		return fmt.Errorf("destination %v refuses payments", destination)
	}
	return AcceptAll{}.Accept(destination, amount)
}
