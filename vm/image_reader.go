package vm

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/zeebo/blake3"
)

// ---------------------------------------------------------------------------
// Load errors
// ---------------------------------------------------------------------------

var (
	ErrInvalidMagic     = errors.New("invalid magic number: expected RITE")
	ErrVersionMismatch  = errors.New("binary format version mismatch")
	ErrCorruptHeader    = errors.New("corrupt header")
	ErrChecksumMismatch = errors.New("checksum mismatch")
	ErrTruncated        = errors.New("unexpected end of data")
	ErrInvalidIrep      = errors.New("invalid irep")
)

// ---------------------------------------------------------------------------
// Reading
// ---------------------------------------------------------------------------

// ReadIrep reads a dump from r and appends its units to the interpreter's
// code table. It returns the absolute index of the first appended unit.
//
// Nothing is appended unless the whole dump is valid. On failure the
// returned index is the negative DumpStatus. A version or checksum mismatch
// also records a ScriptError as the pending exception; that exception is in
// the returned error's chain.
func ReadIrep(s *State, r io.Reader) (int, error) {
	if s == nil || r == nil {
		return int(DumpInvalidArgument), dumpErr(DumpInvalidArgument, errors.New("nil state or reader"))
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return int(DumpReadFault), dumpErr(DumpReadFault, err)
	}
	return ReadIrepBytes(s, data)
}

// ReadIrepBytes is ReadIrep over an in-memory dump.
func ReadIrepBytes(s *State, data []byte) (int, error) {
	units, err := parseDump(s, data)
	if err != nil {
		return int(StatusOf(err)), err
	}
	idx, err := s.Codes.Append(units...)
	if err != nil {
		return int(DumpGeneralFailure), dumpErr(DumpGeneralFailure, err)
	}
	return idx, nil
}

// DumpHeader is the decoded fixed header of a dump.
type DumpHeader struct {
	Version  [4]byte
	Compiler [4]byte
	Flags    uint16
	Size     uint32
	Digest   [32]byte
}

// ParseHeader decodes and checks the fixed header.
func ParseHeader(data []byte) (*DumpHeader, error) {
	if len(data) < RiteHeaderSize {
		return nil, dumpErr(DumpInvalidFile, fmt.Errorf("%w: %d byte header", ErrTruncated, len(data)))
	}
	if !bytes.Equal(data[0:4], RiteIdent[:]) {
		return nil, dumpErr(DumpInvalidFile, fmt.Errorf("%w: got %q", ErrInvalidMagic, data[0:4]))
	}
	h := &DumpHeader{
		Flags: binary.BigEndian.Uint16(data[12:14]),
		Size:  binary.BigEndian.Uint32(data[16:20]),
	}
	copy(h.Version[:], data[4:8])
	copy(h.Compiler[:], data[8:12])
	copy(h.Digest[:], data[20:RiteHeaderSize])
	return h, nil
}

func parseDump(s *State, data []byte) ([]*Irep, error) {
	h, err := ParseHeader(data)
	if err != nil {
		return nil, err
	}
	if h.Version != RiteVersion {
		exc := s.NewException(s.ScriptErrorClass, fmt.Sprintf("binary format version %q, expected %q", h.Version, RiteVersion))
		s.RaiseException(exc)
		return nil, dumpErr(DumpInvalidFile, fmt.Errorf("%w: %w", ErrVersionMismatch, exc))
	}
	switch {
	case int64(h.Size) > int64(len(data)):
		return nil, dumpErr(DumpInvalidFile, fmt.Errorf("%w: header says %d bytes, have %d", ErrTruncated, h.Size, len(data)))
	case int64(h.Size) < int64(len(data)) || h.Size < RiteHeaderSize:
		return nil, dumpErr(DumpInvalidFile, fmt.Errorf("%w: size %d", ErrCorruptHeader, h.Size))
	}
	if blake3.Sum256(data[RiteHeaderSize:]) != h.Digest {
		exc := s.NewException(s.ScriptErrorClass, "binary checksum mismatch")
		s.RaiseException(exc)
		return nil, dumpErr(DumpInvalidFile, fmt.Errorf("%w: %w", ErrChecksumMismatch, exc))
	}

	var units []*Irep
	var dbg []debugRecord
	sawEnd := false
	rest := data[RiteHeaderSize:]
	for len(rest) > 0 && !sawEnd {
		if len(rest) < sectionHeadSize {
			return nil, dumpErr(DumpInvalidFile, fmt.Errorf("%w: section header", ErrTruncated))
		}
		var ident [4]byte
		copy(ident[:], rest[0:4])
		size := binary.BigEndian.Uint32(rest[4:8])
		if size < sectionHeadSize || int64(size) > int64(len(rest)) {
			return nil, dumpErr(DumpInvalidFile, fmt.Errorf("%w: section %q size %d", ErrCorruptHeader, ident[:], size))
		}
		body := rest[sectionHeadSize:size]
		rest = rest[size:]

		switch ident {
		case sectionIrep:
			if units != nil {
				return nil, dumpErr(DumpInvalidFile, fmt.Errorf("%w: duplicate IREP section", ErrCorruptHeader))
			}
			if h.Flags&DumpFlagCompressed != 0 {
				if body, err = decompressSection(body); err != nil {
					return nil, dumpErr(DumpInvalidIrep, fmt.Errorf("%w: %w", ErrInvalidIrep, err))
				}
			}
			if units, err = decodeIrepRecords(body); err != nil {
				return nil, dumpErr(DumpInvalidIrep, fmt.Errorf("%w: %w", ErrInvalidIrep, err))
			}
			if units == nil {
				units = []*Irep{}
			}
		case sectionDebug:
			if dbg, err = decodeDebugRecords(body); err != nil {
				return nil, dumpErr(DumpInvalidIrep, fmt.Errorf("%w: debug info: %w", ErrInvalidIrep, err))
			}
		case sectionEnd:
			sawEnd = true
		}
	}
	if !sawEnd {
		return nil, dumpErr(DumpInvalidFile, fmt.Errorf("%w: no END section", ErrTruncated))
	}
	if len(units) == 0 {
		return nil, dumpErr(DumpInvalidIrep, fmt.Errorf("%w: no units", ErrInvalidIrep))
	}
	if dbg != nil {
		if len(dbg) != len(units) {
			return nil, dumpErr(DumpInvalidIrep, fmt.Errorf("%w: debug info for %d of %d units", ErrInvalidIrep, len(dbg), len(units)))
		}
		for i, d := range dbg {
			units[i].Filename = d.Filename
			units[i].Lines = d.Lines
		}
	}
	for i := range units {
		if err := validateIrep(units, i); err != nil {
			return nil, dumpErr(DumpInvalidIrep, fmt.Errorf("%w: unit %d: %w", ErrInvalidIrep, i, err))
		}
	}
	return units, nil
}

// ---------------------------------------------------------------------------
// Validation
// ---------------------------------------------------------------------------

// validateIrep checks that unit i of batch can be executed without reading
// outside its registers, pool, symbols or instruction sequence.
func validateIrep(batch []*Irep, i int) error {
	ir := batch[i]
	if ir.NLocals < 1 || ir.NRegs < ir.NLocals || ir.NRegs > MaxArgA+1 {
		return fmt.Errorf("bad register counts nlocals=%d nregs=%d", ir.NLocals, ir.NRegs)
	}
	if len(ir.Iseq) == 0 {
		return errors.New("empty instruction sequence")
	}
	if ir.Lines != nil && len(ir.Lines) != len(ir.Iseq) {
		return fmt.Errorf("%d line entries for %d instructions", len(ir.Lines), len(ir.Iseq))
	}
	for j, l := range ir.Pool {
		if l.Kind > LitFloat {
			return fmt.Errorf("pool entry %d has kind %d", j, l.Kind)
		}
	}

	reg := func(r int) error {
		if r < 0 || r >= ir.NRegs {
			return fmt.Errorf("register %d out of range", r)
		}
		return nil
	}
	regs := func(from, n int) error {
		if n == 0 {
			return nil
		}
		if err := reg(from); err != nil {
			return err
		}
		return reg(from + n - 1)
	}
	sym := func(k int) error {
		if k >= len(ir.Syms) {
			return fmt.Errorf("symbol %d out of range", k)
		}
		return nil
	}
	pool := func(k int) error {
		if k >= len(ir.Pool) {
			return fmt.Errorf("pool entry %d out of range", k)
		}
		return nil
	}

	for pc, c := range ir.Iseq {
		op := c.Opcode()
		if !op.Valid() {
			return fmt.Errorf("pc %d: unknown opcode %d", pc, uint8(op))
		}
		var err error
		switch op {
		case OpNop, OpStop:
		case OpMove:
			err = errors.Join(reg(c.A()), reg(c.B()))
		case OpLoadL:
			err = errors.Join(reg(c.A()), pool(c.Bx()))
		case OpString:
			err = errors.Join(reg(c.A()), pool(c.Bx()))
			if err == nil && ir.Pool[c.Bx()].Kind != LitString {
				err = fmt.Errorf("pool entry %d is not a string", c.Bx())
			}
		case OpLoadI, OpLoadNil, OpLoadSelf, OpLoadT, OpLoadF, OpTClass:
			err = reg(c.A())
		case OpLoadSym, OpGetGlobal, OpSetGlobal, OpGetIV, OpSetIV, OpGetConst, OpSetConst:
			err = errors.Join(reg(c.A()), sym(c.Bx()))
		case OpJmp, OpJmpIf, OpJmpNot:
			if op != OpJmp {
				err = reg(c.A())
			}
			if t := pc + c.SBx(); err == nil && (t < 0 || t >= len(ir.Iseq)) {
				err = fmt.Errorf("jump target %d out of range", t)
			}
		case OpSend:
			err = errors.Join(regs(c.A(), c.C()+1), sym(c.B()))
		case OpEnter:
			if c.Ax() >= ir.NRegs {
				err = fmt.Errorf("%d arguments exceed %d registers", c.Ax(), ir.NRegs)
			}
		case OpReturn:
			err = reg(c.A())
			if err == nil && c.B() > RReturn {
				err = fmt.Errorf("unknown return kind %d", c.B())
			}
		case OpAdd, OpSub, OpMul, OpDiv, OpEQ, OpLT, OpLE, OpGT, OpGE, OpMethod:
			err = errors.Join(regs(c.A(), 2), sym(c.B()))
		case OpArray:
			err = errors.Join(reg(c.A()), regs(c.B(), c.C()))
		case OpLambda:
			err = reg(c.A())
			if t := i + c.Bz(); err == nil && (c.Bz() == 0 || t >= len(batch)) {
				err = fmt.Errorf("lambda target %d outside the loaded units", t)
			}
		}
		if err != nil {
			return fmt.Errorf("pc %d (%s): %w", pc, op, err)
		}
	}
	return nil
}
