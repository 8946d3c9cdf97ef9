package bus

import (
	"errors"
	"testing"
)

func TestBus_ReadWrite(t *testing.T) {
	b := New(0)
	if b.Size() != DefaultSize {
		t.Fatalf("size got %#x, want %#x", b.Size(), DefaultSize)
	}

	if err := b.Write(0x0200, 0x42); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got, err := b.Read(0x0200); err != nil || got != 0x42 {
		t.Fatalf("read got %02x (%v), want 42", got, err)
	}

	// last cell is addressable
	if err := b.Write(0x0FFF, 0x99); err != nil {
		t.Fatalf("write last cell: %v", err)
	}
}

func TestBus_OutOfRange(t *testing.T) {
	b := New(0x100)

	_, err := b.Read(0x0100)
	var ae *AccessError
	if !errors.As(err, &ae) {
		t.Fatalf("read past end: got %v, want *AccessError", err)
	}
	if ae.Addr != 0x100 || ae.Size != 0x100 {
		t.Fatalf("access error got addr=%#x size=%#x", ae.Addr, ae.Size)
	}
	if err := b.Write(0x1000, 1); err == nil {
		t.Fatalf("write past end should fail")
	}
	if _, err := b.Read16(0x00FF); err == nil {
		t.Fatalf("word read straddling the end should fail")
	}
}

func TestBus_Read16BigEndian(t *testing.T) {
	b := New(0)
	if err := b.Load(0x0200, []byte{0x12, 0x34}); err != nil {
		t.Fatalf("load: %v", err)
	}
	w, err := b.Read16(0x0200)
	if err != nil || w != 0x1234 {
		t.Fatalf("Read16 got %04x (%v), want 1234", w, err)
	}
}

func TestBus_LoadIsAllOrNothing(t *testing.T) {
	b := New(0x10)
	if err := b.Load(0x0E, []byte{1, 2, 3}); err == nil {
		t.Fatalf("load past end should fail")
	}
	for addr := uint16(0); addr < 0x10; addr++ {
		if v, _ := b.Read(addr); v != 0 {
			t.Fatalf("partial write at %#x: %02x", addr, v)
		}
	}
}

func TestBus_SliceAndClear(t *testing.T) {
	b := New(0)
	_ = b.Load(0x300, []byte{0xAA, 0xBB, 0xCC})
	s, err := b.Slice(0x300, 3)
	if err != nil {
		t.Fatalf("slice: %v", err)
	}
	if s[0] != 0xAA || s[2] != 0xCC {
		t.Fatalf("slice contents got % x", s)
	}
	b.Clear()
	if v, _ := b.Read(0x301); v != 0 {
		t.Fatalf("clear left %02x at 0x301", v)
	}
	if b.Size() != DefaultSize {
		t.Fatalf("clear must not reallocate")
	}
}
