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

// List is a dynamic array in instance storage. The length is kept at Base
// and field f of element i lives at Base.Offset(1 + i*Width + f).
type List struct {
	Base  Key
	Width uint64
}

// NewList creates a list of elements spanning width slots each.
func NewList(base Key, width uint64) List {
	return List{Base: base, Width: width}
}

func (l List) Len(view View) uint64 {
	return view.Get(l.Base).Uint64()
}

func (l List) SetLen(buffer *Buffer, length uint64) {
	buffer.Set(l.Base, WordFromUint64(length))
}

// Slot returns the location of the given field of element i.
func (l List) Slot(i, field uint64) Key {
	return l.Base.Offset(1 + i*l.Width + field)
}

// Get reads field 0 of element i.
func (l List) Get(view View, i uint64) Word {
	return view.Get(l.Slot(i, 0))
}

// Append adds a single-slot element at the end of the list.
func (l List) Append(buffer *Buffer, value Word) uint64 {
	n := l.Len(buffer)
	buffer.Set(l.Slot(n, 0), value)
	l.SetLen(buffer, n+1)
	return n
}
