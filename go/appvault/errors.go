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

import "errors"

// The error taxonomy shared by all components. Every failure aborts the whole
// call; errors are wrapped with context and matched using errors.Is.
var (
	ErrPermissionDenied       = errors.New("permission denied")
	ErrArgumentLengthMismatch = errors.New("argument length mismatch")
	ErrInvalidArgument        = errors.New("invalid argument")
	ErrInvalidState           = errors.New("invalid state")

	ErrBelowMinimumContribution = errors.New("below minimum contribution")
	ErrTierSoldOut              = errors.New("tier sold out")
	ErrNotWhitelisted           = errors.New("not whitelisted")
	ErrNothingToDistribute      = errors.New("nothing to distribute")

	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrInvalidRecipient      = errors.New("invalid recipient")

	ErrUnknownSelector      = errors.New("unknown selector")
	ErrDuplicateApplication = errors.New("duplicate application")
	ErrNotFound             = errors.New("not found")
	ErrPaymentRejected      = errors.New("payment rejected")
)
