package mem

import (
	"testing"

	"rthread/defs"
)

func TestMapProtectUnmap(t *testing.T) {
	before := Mapped()
	m, err := Mmap(4 * PGSIZE)
	if err != 0 {
		t.Fatalf("mmap: %v", err)
	}
	if Mapped()-before != int64(4*PGSIZE) {
		t.Fatalf("want %d mapped bytes, got %d", 4*PGSIZE, Mapped()-before)
	}
	m.Buf[PGSIZE] = 1
	if err := Mprotect(m, 0, PGSIZE, PROT_NONE); err != 0 {
		t.Fatalf("mprotect: %v", err)
	}
	if err := Mprotect(m, 1, PGSIZE, PROT_NONE); err != -defs.EINVAL {
		t.Fatalf("unaligned mprotect: want EINVAL, got %v", err)
	}
	if err := Munmap(m); err != 0 {
		t.Fatalf("munmap: %v", err)
	}
	if Mapped() != before {
		t.Fatalf("want %d mapped bytes after unmap, got %d", before, Mapped())
	}
}

func TestMmapRejectsPartialPages(t *testing.T) {
	if _, err := Mmap(PGSIZE + 1); err != -defs.EINVAL {
		t.Fatalf("want EINVAL, got %v", err)
	}
	if _, err := Mmap(0); err != -defs.EINVAL {
		t.Fatalf("want EINVAL, got %v", err)
	}
}

func TestPgroundup(t *testing.T) {
	if n, ok := Pgroundup(1); !ok || n != PGSIZE {
		t.Fatalf("want (%d, true), got (%d, %v)", PGSIZE, n, ok)
	}
	if _, ok := Pgroundup(int(^uint(0) >> 1)); ok {
		t.Fatal("rounding of max int did not report overflow")
	}
}
