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
	"github.com/appvault-labs/appvault/go/appvault"
)

// Topics of the logs added by the dispatcher and the instance manager.
var (
	ApplicationInitializedTopic = appvault.EventTopic("ApplicationInitialized(bytes32,address,address,bytes32)")
	ApplicationExecutionTopic   = appvault.EventTopic("ApplicationExecution(bytes32,address)")
	ApplicationExceptionTopic   = appvault.EventTopic("ApplicationException(address,bytes32,bytes)")
	DeliveredPaymentTopic       = appvault.EventTopic("DeliveredPayment(bytes32,address,uint256)")
)

func applicationInitialized(id appvault.ExecID, index, provider appvault.Address, registry appvault.ExecID) appvault.Log {
	return appvault.Log{
		ExecID: id,
		Topics: []appvault.Hash{
			ApplicationInitializedTopic,
			appvault.Hash(id),
			appvault.HashFromAddress(index),
			appvault.HashFromAddress(provider),
		},
		Data: registry[:],
	}
}

func applicationExecution(id appvault.ExecID, target appvault.Address) appvault.Log {
	return appvault.Log{
		ExecID: id,
		Topics: []appvault.Hash{
			ApplicationExecutionTopic,
			appvault.Hash(id),
			appvault.HashFromAddress(target),
		},
	}
}

func applicationException(sender appvault.Address, id appvault.ExecID, message string) appvault.Log {
	return appvault.Log{
		ExecID: id,
		Topics: []appvault.Hash{
			ApplicationExceptionTopic,
			appvault.HashFromAddress(sender),
			appvault.Hash(id),
		},
		Data: appvault.Data(message),
	}
}

func deliveredPayment(id appvault.ExecID, payment appvault.Payment) appvault.Log {
	return appvault.Log{
		ExecID: id,
		Topics: []appvault.Hash{
			DeliveredPaymentTopic,
			appvault.Hash(id),
			appvault.HashFromAddress(payment.Destination),
		},
		Data: payment.Amount[:],
	}
}
