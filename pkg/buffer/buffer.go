// Package buffer implements the bounded mutable byte buffer the card core
// composes APDU responses into.
//
// Firmware rules apply: the backing array is allocated once with a fixed
// capacity and never grows. Every mutation is bounds-checked against that
// capacity; an append that would overflow is truncated to the free space.
// The two status-word operations mirror the split the executor relies on:
//
//   - AppendStatus trails a status word after handler-produced data.
//   - SetStatus discards the contents and leaves only the status word.
package buffer

// Buffer is a bounded mutable view (data, len, cap) over a fixed backing
// array. The zero value is unusable; construct with New or Wrap.
type Buffer struct {
	data []byte // full backing array, len(data) == capacity
	n    int    // live length, always <= len(data)
}

// New allocates a Buffer with the given fixed capacity.
func New(capacity int) *Buffer {
	if capacity < 0 {
		capacity = 0
	}
	return &Buffer{data: make([]byte, capacity)}
}

// Wrap builds a Buffer borrowing an existing backing slice. The slice's
// length becomes the capacity; the live region starts empty.
func Wrap(backing []byte) *Buffer {
	return &Buffer{data: backing}
}

// Len returns the live length.
func (b *Buffer) Len() int { return b.n }

// Cap returns the fixed capacity.
func (b *Buffer) Cap() int { return len(b.data) }

// Free returns the remaining space before the capacity is reached.
func (b *Buffer) Free() int { return len(b.data) - b.n }

// Bytes returns the live region. The slice aliases the backing array and is
// only valid until the next mutation.
func (b *Buffer) Bytes() []byte { return b.data[:b.n] }

// Clear resets the live length to zero. The backing bytes are not wiped.
func (b *Buffer) Clear() { b.n = 0 }

// SetLength forces the live length, clamped to [0, cap]. Growing exposes
// whatever bytes are currently in the backing array.
func (b *Buffer) SetLength(n int) {
	if n < 0 {
		n = 0
	}
	if n > len(b.data) {
		n = len(b.data)
	}
	b.n = n
}

// Append copies p after the live region and returns the number of bytes
// actually copied (less than len(p) when the capacity is reached).
func (b *Buffer) Append(p []byte) int {
	c := copy(b.data[b.n:], p)
	b.n += c
	return c
}

// AppendByte appends a single byte, if space remains.
func (b *Buffer) AppendByte(c byte) {
	if b.n < len(b.data) {
		b.data[b.n] = c
		b.n++
	}
}

// Set replaces the contents with p (truncated to the capacity).
func (b *Buffer) Set(p []byte) {
	b.Clear()
	b.Append(p)
}

// AppendStatus trails a big-endian status word after the current contents.
func (b *Buffer) AppendStatus(sw uint16) {
	b.AppendByte(byte(sw >> 8))
	b.AppendByte(byte(sw))
}

// SetStatus replaces the contents with just the status word.
func (b *Buffer) SetStatus(sw uint16) {
	b.Clear()
	b.AppendStatus(sw)
}

// Delete removes n bytes starting at off, shifting the tail down. A range
// reaching past the live region truncates at off.
func (b *Buffer) Delete(off, n int) {
	if off < 0 || n <= 0 || off >= b.n {
		return
	}
	if off+n >= b.n {
		b.n = off
		return
	}
	b.MoveTail(off+n, -n)
}

// MoveTail shifts the bytes from off onward by delta (negative shifts
// down, positive shifts up) and adjusts the live length. Shifts past either
// bound are clamped.
func (b *Buffer) MoveTail(off, delta int) {
	if delta == 0 || off < 0 || off > b.n {
		return
	}
	if b.n+delta < 0 {
		delta = -b.n
	}
	if b.n+delta > len(b.data) {
		delta = len(b.data) - b.n
	}
	if off+delta < 0 {
		off = -delta
	}
	copy(b.data[off+delta:], b.data[off:b.n])
	b.n += delta
}

// UintBE reads size bytes at off as a big-endian unsigned integer.
// Out-of-range reads return 0.
func (b *Buffer) UintBE(off, size int) uint32 {
	if off < 0 || size <= 0 || size > 4 || off+size > b.n {
		return 0
	}
	var v uint32
	for i := 0; i < size; i++ {
		v = v<<8 | uint32(b.data[off+i])
	}
	return v
}

// SetUintBE writes v as size big-endian bytes at off inside the live
// region. Out-of-range writes are ignored.
func (b *Buffer) SetUintBE(off, size int, v uint32) {
	if off < 0 || size <= 0 || size > 4 || off+size > b.n {
		return
	}
	for i := 0; i < size; i++ {
		b.data[off+i] = byte(v >> uint((size-i-1)*8))
	}
}
