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

// MapView is a View backed by a plain map. It is used to run logic modules
// outside of a store, e.g. in unit tests of applications.
type MapView struct {
	ID    ExecID
	Slots map[Key]Word
}

// NewMapView creates an empty view for the given instance.
func NewMapView(id ExecID) *MapView {
	return &MapView{ID: id, Slots: map[Key]Word{}}
}

func (v *MapView) ExecID() ExecID {
	return v.ID
}

func (v *MapView) Get(key Key) Word {
	return v.Slots[key]
}

// Apply performs the writes of the given effect.
func (v *MapView) Apply(effect Effect) {
	for _, write := range effect.Writes {
		if write.Value.IsZero() {
			delete(v.Slots, write.Key)
		} else {
			v.Slots[write.Key] = write.Value
		}
	}
}
