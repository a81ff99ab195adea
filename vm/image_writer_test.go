package vm

import (
	"bytes"
	"encoding/binary"
	"errors"
	"reflect"
	"testing"
)

func TestDumpHeaderLayout(t *testing.T) {
	s := openState(t)
	idx := appendUnits(t, s, defineDouble()...)

	data, err := DumpIrepBytes(s, idx, DumpFlagDebugInfo)
	if err != nil {
		t.Fatalf("DumpIrepBytes: %v", err)
	}
	if !bytes.Equal(data[0:4], []byte("RITE")) {
		t.Errorf("ident = %q", data[0:4])
	}
	if !bytes.Equal(data[4:8], []byte("0004")) {
		t.Errorf("version = %q", data[4:8])
	}
	if got := binary.BigEndian.Uint16(data[12:14]); got != DumpFlagDebugInfo {
		t.Errorf("flags = %#x", got)
	}
	if got := binary.BigEndian.Uint32(data[16:20]); int(got) != len(data) {
		t.Errorf("size field = %d, len = %d", got, len(data))
	}
	if !bytes.Equal(data[len(data)-8:len(data)-4], []byte("END\x00")) {
		t.Errorf("dump does not end with the END section: %q", data[len(data)-8:])
	}
}

func TestDumpRoundTripFidelity(t *testing.T) {
	for _, flags := range []uint16{0, DumpFlagDebugInfo, DumpFlagCompressed, DumpFlagDebugInfo | DumpFlagCompressed} {
		src := openState(t)
		idx := appendUnits(t, src, defineDouble()...)
		src.Codes.At(idx).Pool = []Literal{
			{Kind: LitString, Str: "héllo\x00"},
			{Kind: LitInt, Int: -1 << 40},
			{Kind: LitFloat, Float: 2.5},
		}

		var buf bytes.Buffer
		if err := DumpIrep(src, idx, flags, &buf); err != nil {
			t.Fatalf("flags %#x: DumpIrep: %v", flags, err)
		}

		dst := openState(t)
		appendUnits(t, dst, unit())
		got, err := ReadIrep(dst, &buf)
		if err != nil {
			t.Fatalf("flags %#x: ReadIrep: %v", flags, err)
		}
		if got != 1 {
			t.Errorf("flags %#x: root index = %d, want 1", flags, got)
		}
		if dst.Codes.Len() != 3 {
			t.Fatalf("flags %#x: table has %d units, want 3", flags, dst.Codes.Len())
		}

		for i := 0; i < 2; i++ {
			want, have := src.Codes.At(idx+i), dst.Codes.At(got+i)
			if !reflect.DeepEqual(want.Iseq, have.Iseq) ||
				!reflect.DeepEqual(want.Syms, have.Syms) ||
				want.NLocals != have.NLocals || want.NRegs != have.NRegs {
				t.Errorf("flags %#x: unit %d differs after round trip", flags, i)
			}
			if len(want.Pool) != len(have.Pool) {
				t.Errorf("flags %#x: unit %d pool size %d, want %d", flags, i, len(have.Pool), len(want.Pool))
			} else if len(want.Pool) > 0 && !reflect.DeepEqual(want.Pool, have.Pool) {
				t.Errorf("flags %#x: unit %d pool = %+v, want %+v", flags, i, have.Pool, want.Pool)
			}
			if flags&DumpFlagDebugInfo != 0 {
				if have.Filename != "double.rb" || !reflect.DeepEqual(want.Lines, have.Lines) {
					t.Errorf("flags %#x: unit %d debug info lost", flags, i)
				}
			} else if have.HasDebugInfo() {
				t.Errorf("flags %#x: unit %d has debug info without the flag", flags, i)
			}
		}

		v, err := runUnit(t, dst, got)
		if err != nil || v.Int() != 42 {
			t.Errorf("flags %#x: running loaded code = %v, %v", flags, v, err)
		}
	}
}

func TestDumpRespectsNarrowedView(t *testing.T) {
	s := openState(t)
	appendUnits(t, s, unit(), unit())
	first := appendUnits(t, s, defineDouble()...)

	restore := s.Codes.Narrow(first, 2)
	data, err := DumpIrepBytes(s, 0, 0)
	restore()
	if err != nil {
		t.Fatalf("DumpIrepBytes: %v", err)
	}

	dst := openState(t)
	idx, err := ReadIrepBytes(dst, data)
	if err != nil {
		t.Fatalf("ReadIrepBytes: %v", err)
	}
	if n := dst.Codes.Len(); n != 2 {
		t.Errorf("loaded %d units, want 2", n)
	}
	if dst.Codes.At(idx).Syms[0] != "double" {
		t.Error("root unit is not the narrowed window's first unit")
	}
}

func TestDumpInvalidRoot(t *testing.T) {
	s := openState(t)
	_, err := DumpIrepBytes(s, 5, 0)
	if StatusOf(err) != DumpInvalidArgument {
		t.Errorf("status = %v, want invalid argument", StatusOf(err))
	}
}

func TestDumpMissingChild(t *testing.T) {
	s := openState(t)
	idx := appendUnits(t, s, defineDouble()[0])
	_, err := DumpIrepBytes(s, idx, 0)
	if StatusOf(err) != DumpInvalidIrep {
		t.Errorf("status = %v, want invalid irep", StatusOf(err))
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestDumpWriteFault(t *testing.T) {
	s := openState(t)
	idx := appendUnits(t, s, unit())
	err := DumpIrep(s, idx, 0, failingWriter{})
	if StatusOf(err) != DumpWriteFault {
		t.Errorf("status = %v, want write fault", StatusOf(err))
	}
}
