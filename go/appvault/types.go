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

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/big"
	"math/bits"
	"strings"

	"github.com/holiman/uint256"
)

// Address represents the 160-bit (20 bytes) address of an account, a logic
// module or an index.
type Address [20]byte

// Key represents the 256-bit (32 bytes) location of a storage slot within the
// key space of one execution instance.
type Key [32]byte

// Word represents an arbitrary 256-bit (32 byte) storage value.
type Word [32]byte

// Value represents an amount of chain currency (wei) or of tokens.
type Value [32]byte

// Hash represents a 256-bit (32 bytes) hash, used for log topics.
type Hash [32]byte

// ExecID identifies an execution instance. It is globally unique within a
// store and never reused.
type ExecID [32]byte

// Selector is the 4-byte tag at the start of calldata identifying the
// operation to run.
type Selector [4]byte

// Data represents the input or output of an invocation.
type Data []byte

func (a Address) String() string {
	return fmt.Sprintf("0x%x", a[:])
}

func (a Address) MarshalText() ([]byte, error) {
	return bytesToText(a[:])
}

func (a *Address) UnmarshalText(data []byte) error {
	return textToBytes(a[:], data)
}

func (k Key) String() string {
	return fmt.Sprintf("0x%x", k[:])
}

func (w Word) String() string {
	return fmt.Sprintf("0x%x", w[:])
}

func (h Hash) String() string {
	return fmt.Sprintf("0x%x", h[:])
}

func (id ExecID) String() string {
	return fmt.Sprintf("0x%x", id[:])
}

func (id ExecID) MarshalText() ([]byte, error) {
	return bytesToText(id[:])
}

func (id *ExecID) UnmarshalText(data []byte) error {
	return textToBytes(id[:], data)
}

func (s Selector) String() string {
	return fmt.Sprintf("0x%x", s[:])
}

// SelectorOf extracts the leading selector of the given calldata. The
// result is false if the input is shorter than a selector.
func SelectorOf(input []byte) (Selector, bool) {
	var res Selector
	if len(input) < len(res) {
		return res, false
	}
	copy(res[:], input)
	return res, true
}

func (v Value) ToBig() *big.Int {
	return new(big.Int).SetBytes(v[:])
}

func (v Value) ToUint256() *uint256.Int {
	return new(uint256.Int).SetBytes(v[:])
}

func (v Value) String() string {
	return v.ToUint256().String()
}

func (v Value) Cmp(o Value) int {
	return bytes.Compare(v[:], o[:])
}

func (v Value) IsZero() bool {
	return v == Value{}
}

func (v Value) MarshalText() ([]byte, error) {
	return bytesToText(v[:])
}

func (v *Value) UnmarshalText(data []byte) error {
	return textToBytes(v[:], data)
}

// NewValue creates a new Value instance from up to 4 uint64 arguments. The
// arguments are given in the order from most significant to least significant
// by padding leading zeros as needed. No argument results in a value of zero.
func NewValue(args ...uint64) (result Value) {
	if len(args) > 4 {
		panic("Too many arguments")
	}
	offset := 4 - len(args)
	for i := 0; i < len(args) && i < 4; i++ {
		start := (offset * 8) + i*8
		end := start + 8
		binary.BigEndian.PutUint64(result[start:end], args[i])
	}
	return
}

// ValueFromUint256 converts a *uint256.Int to a Value.
// If the input is nil, it returns 0.
func ValueFromUint256(value *uint256.Int) (result Value) {
	if value == nil {
		return result
	}
	return value.Bytes32()
}

// ValueFromBig converts a big integer into a Value. Negative inputs and inputs
// exceeding 256 bits are rejected.
func ValueFromBig(value *big.Int) (Value, error) {
	if value == nil {
		return Value{}, nil
	}
	res, overflow := uint256.FromBig(value)
	if overflow || value.Sign() < 0 {
		return Value{}, fmt.Errorf("%w: value %v out of range", ErrInvalidArgument, value)
	}
	return res.Bytes32(), nil
}

// Add returns a+b, wrapping around on overflow.
func Add(a, b Value) (z Value) {
	res, carry := bits.Add64(a.getInternalUint64(0), b.getInternalUint64(0), 0)
	binary.BigEndian.PutUint64(z[24:32], res)

	res, carry = bits.Add64(a.getInternalUint64(1), b.getInternalUint64(1), carry)
	binary.BigEndian.PutUint64(z[16:24], res)

	res, carry = bits.Add64(a.getInternalUint64(2), b.getInternalUint64(2), carry)
	binary.BigEndian.PutUint64(z[8:16], res)

	res, _ = bits.Add64(a.getInternalUint64(3), b.getInternalUint64(3), carry)
	binary.BigEndian.PutUint64(z[0:8], res)

	return z
}

// Sub returns a-b, wrapping around on underflow.
func Sub(a, b Value) (z Value) {
	res, carry := bits.Sub64(a.getInternalUint64(0), b.getInternalUint64(0), 0)
	binary.BigEndian.PutUint64(z[24:32], res)

	res, carry = bits.Sub64(a.getInternalUint64(1), b.getInternalUint64(1), carry)
	binary.BigEndian.PutUint64(z[16:24], res)

	res, carry = bits.Sub64(a.getInternalUint64(2), b.getInternalUint64(2), carry)
	binary.BigEndian.PutUint64(z[8:16], res)

	res, _ = bits.Sub64(a.getInternalUint64(3), b.getInternalUint64(3), carry)
	binary.BigEndian.PutUint64(z[0:8], res)

	return z
}

// AddChecked returns a+b and whether the addition overflowed.
func AddChecked(a, b Value) (Value, bool) {
	res, overflow := new(uint256.Int).AddOverflow(a.ToUint256(), b.ToUint256())
	return ValueFromUint256(res), overflow
}

// SubChecked returns a-b and whether the subtraction underflowed.
func SubChecked(a, b Value) (Value, bool) {
	res, underflow := new(uint256.Int).SubOverflow(a.ToUint256(), b.ToUint256())
	return ValueFromUint256(res), underflow
}

func (v Value) getInternalUint64(index int) uint64 {
	start := 24 - index*8
	end := start + 8
	return binary.BigEndian.Uint64(v[start:end])
}

// --- Word conversions ---

func (w Word) ToUint256() *uint256.Int {
	return new(uint256.Int).SetBytes32(w[:])
}

func (w Word) ToValue() Value {
	return Value(w)
}

// Uint64 returns the low 64 bits of the word.
func (w Word) Uint64() uint64 {
	return binary.BigEndian.Uint64(w[24:32])
}

func (w Word) Bool() bool {
	return w != Word{}
}

// Address interprets the low 20 bytes of the word as an address.
func (w Word) Address() Address {
	var res Address
	copy(res[:], w[12:])
	return res
}

func (w Word) IsZero() bool {
	return w == Word{}
}

func WordFromUint64(v uint64) (w Word) {
	binary.BigEndian.PutUint64(w[24:32], v)
	return w
}

func WordFromUint256(v *uint256.Int) Word {
	if v == nil {
		return Word{}
	}
	return v.Bytes32()
}

func WordFromValue(v Value) Word {
	return Word(v)
}

func WordFromBool(b bool) Word {
	if b {
		return WordFromUint64(1)
	}
	return Word{}
}

func WordFromAddress(a Address) (w Word) {
	copy(w[12:], a[:])
	return w
}

func bytesToText(data []byte) ([]byte, error) {
	return []byte(fmt.Sprintf("0x%x", data)), nil
}

func textToBytes(trg []byte, data []byte) error {
	s := string(data)
	if !strings.HasPrefix(s, "0x") {
		return fmt.Errorf("invalid format, does not start with 0x: %v", s)
	}
	data, err := hex.DecodeString(s[2:])
	if err != nil {
		return err
	}
	if want, got := len(trg), len(data); want != got {
		return fmt.Errorf("invalid format, wanted %d bytes, got %d", want, got)
	}
	copy(trg[:], data)
	return nil
}
