package emu

import "encoding/binary"

// pageBits selects the sparse-page granularity (4KiB).
const pageBits = 12

const pageSize = 1 << pageBits

// Memory is a sparse, page-granular byte-addressable memory. Unwritten
// locations read as zero. All multi-byte accesses are little-endian.
type Memory struct {
	pages map[uint64]*[pageSize]byte
}

// NewMemory creates an empty memory.
func NewMemory() *Memory {
	return &Memory{pages: make(map[uint64]*[pageSize]byte)}
}

func (m *Memory) page(addr uint64, create bool) *[pageSize]byte {
	key := addr >> pageBits
	p := m.pages[key]
	if p == nil && create {
		p = new([pageSize]byte)
		m.pages[key] = p
	}
	return p
}

// Read8 reads one byte.
func (m *Memory) Read8(addr uint64) uint8 {
	p := m.page(addr, false)
	if p == nil {
		return 0
	}
	return p[addr&(pageSize-1)]
}

// Write8 writes one byte.
func (m *Memory) Write8(addr uint64, v uint8) {
	m.page(addr, true)[addr&(pageSize-1)] = v
}

// ReadBytes reads n bytes starting at addr.
func (m *Memory) ReadBytes(addr uint64, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = m.Read8(addr + uint64(i))
	}
	return out
}

// WriteBytes writes data starting at addr.
func (m *Memory) WriteBytes(addr uint64, data []byte) {
	for i, b := range data {
		m.Write8(addr+uint64(i), b)
	}
}

// Read16 reads a little-endian halfword.
func (m *Memory) Read16(addr uint64) uint16 {
	return binary.LittleEndian.Uint16(m.ReadBytes(addr, 2))
}

// Write16 writes a little-endian halfword.
func (m *Memory) Write16(addr uint64, v uint16) {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	m.WriteBytes(addr, buf[:])
}

// Read32 reads a little-endian word.
func (m *Memory) Read32(addr uint64) uint32 {
	return binary.LittleEndian.Uint32(m.ReadBytes(addr, 4))
}

// Write32 writes a little-endian word.
func (m *Memory) Write32(addr uint64, v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	m.WriteBytes(addr, buf[:])
}

// Read64 reads a little-endian doubleword.
func (m *Memory) Read64(addr uint64) uint64 {
	return binary.LittleEndian.Uint64(m.ReadBytes(addr, 8))
}

// Write64 writes a little-endian doubleword.
func (m *Memory) Write64(addr uint64, v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	m.WriteBytes(addr, buf[:])
}
