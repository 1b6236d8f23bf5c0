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

// Buffer collects the effect of a target invocation. Reads are served from
// pending writes first and fall back to the underlying view, so multi-step
// computations observe their own updates.
type Buffer struct {
	view     View
	writes   map[Key]Word
	order    []Key
	logs     []Log
	payments []Payment
}

// NewBuffer creates an empty buffer on top of the given view.
func NewBuffer(view View) *Buffer {
	return &Buffer{
		view:   view,
		writes: map[Key]Word{},
	}
}

func (b *Buffer) ExecID() ExecID {
	return b.view.ExecID()
}

func (b *Buffer) Get(key Key) Word {
	if value, found := b.writes[key]; found {
		return value
	}
	return b.view.Get(key)
}

func (b *Buffer) Set(key Key, value Word) {
	if _, found := b.writes[key]; !found {
		b.order = append(b.order, key)
	}
	b.writes[key] = value
}

// Emit records a log for the instance the buffer belongs to.
func (b *Buffer) Emit(topics []Hash, data Data) {
	b.logs = append(b.logs, Log{
		ExecID: b.view.ExecID(),
		Topics: topics,
		Data:   data,
	})
}

func (b *Buffer) Pay(destination Address, amount Value) {
	b.payments = append(b.payments, Payment{Destination: destination, Amount: amount})
}

// Effect returns the collected effect. Every slot appears once, in the order
// it was first written, holding its last assigned value.
func (b *Buffer) Effect() Effect {
	writes := make([]Write, 0, len(b.order))
	for _, key := range b.order {
		writes = append(writes, Write{Key: key, Value: b.writes[key]})
	}
	return Effect{
		Writes:   writes,
		Logs:     append([]Log(nil), b.logs...),
		Payments: append([]Payment(nil), b.payments...),
	}
}
