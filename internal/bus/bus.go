package bus

import "fmt"

// DefaultSize is the classic 4 KiB CHIP-8 address space.
const DefaultSize = 0x1000

// AccessError reports an access outside the memory array.
type AccessError struct {
	Addr int // first offending address
	Len  int // length of the attempted access
	Size int // memory size
}

func (e *AccessError) Error() string {
	if e.Len <= 1 {
		return fmt.Sprintf("memory access at %#04x outside [0, %#04x)", e.Addr, e.Size)
	}
	return fmt.Sprintf("memory access %#04x..%#04x outside [0, %#04x)", e.Addr, e.Addr+e.Len-1, e.Size)
}

// Bus is the flat byte-addressable memory of the machine.
type Bus struct {
	mem []byte
}

func New(size int) *Bus {
	if size <= 0 {
		size = DefaultSize
	}
	return &Bus{mem: make([]byte, size)}
}

// Size returns the number of addressable cells.
func (b *Bus) Size() int { return len(b.mem) }

// Check verifies that n cells starting at addr are addressable.
func (b *Bus) Check(addr, n int) error {
	if addr < 0 || n < 0 || addr+n > len(b.mem) {
		return &AccessError{Addr: addr, Len: n, Size: len(b.mem)}
	}
	return nil
}

func (b *Bus) Read(addr uint16) (byte, error) {
	if int(addr) >= len(b.mem) {
		return 0, &AccessError{Addr: int(addr), Len: 1, Size: len(b.mem)}
	}
	return b.mem[addr], nil
}

func (b *Bus) Write(addr uint16, value byte) error {
	if int(addr) >= len(b.mem) {
		return &AccessError{Addr: int(addr), Len: 1, Size: len(b.mem)}
	}
	b.mem[addr] = value
	return nil
}

// Read16 returns the big-endian word at addr (high byte first).
func (b *Bus) Read16(addr uint16) (uint16, error) {
	if err := b.Check(int(addr), 2); err != nil {
		return 0, err
	}
	return uint16(b.mem[addr])<<8 | uint16(b.mem[addr+1]), nil
}

// Slice returns the n cells starting at addr. The slice aliases memory.
func (b *Bus) Slice(addr uint16, n int) ([]byte, error) {
	if err := b.Check(int(addr), n); err != nil {
		return nil, err
	}
	return b.mem[int(addr) : int(addr)+n], nil
}

// Load copies data into memory starting at addr. Nothing is written if the
// data does not fit.
func (b *Bus) Load(addr uint16, data []byte) error {
	if err := b.Check(int(addr), len(data)); err != nil {
		return err
	}
	copy(b.mem[addr:], data)
	return nil
}

// Clear zeroes every cell in place.
func (b *Bus) Clear() {
	for i := range b.mem {
		b.mem[i] = 0
	}
}
