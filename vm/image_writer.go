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
// Binary format constants
// ---------------------------------------------------------------------------

// A dump is a fixed header followed by tagged sections:
//
//	header:  ident "RITE" | version "0004" | compiler "GOMR" |
//	         flags u16 | reserved u16 | total size u32 | BLAKE3-256 of the rest
//	section: ident [4]byte | size u32 (including these 8 bytes) | body
//
// Sections are IREP (unit records), an optional DBG\0 (filenames and line
// tables) and a terminating END\0. All integers are big-endian. Readers skip
// sections they do not recognize.
var (
	RiteIdent    = [4]byte{'R', 'I', 'T', 'E'}
	RiteVersion  = [4]byte{'0', '0', '0', '4'}
	RiteCompiler = [4]byte{'G', 'O', 'M', 'R'}

	sectionIrep  = [4]byte{'I', 'R', 'E', 'P'}
	sectionDebug = [4]byte{'D', 'B', 'G', 0}
	sectionEnd   = [4]byte{'E', 'N', 'D', 0}
)

const (
	// RiteHeaderSize is ident(4) + version(4) + compiler(4) + flags(2) +
	// reserved(2) + size(4) + digest(32).
	RiteHeaderSize  = 52
	sectionHeadSize = 8
)

// Dump flags
const (
	DumpFlagDebugInfo  uint16 = 1 << 0 // include the DBG section
	DumpFlagCompressed uint16 = 1 << 1 // IREP body is zstd-compressed
)

// DumpStatus is the numeric outcome of a dump or load.
type DumpStatus int

const (
	DumpOK              DumpStatus = 0
	DumpGeneralFailure  DumpStatus = -1
	DumpWriteFault      DumpStatus = -2
	DumpReadFault       DumpStatus = -3
	DumpInvalidFile     DumpStatus = -4
	DumpInvalidIrep     DumpStatus = -5
	DumpInvalidArgument DumpStatus = -7
)

var statusNames = map[DumpStatus]string{
	DumpOK:              "ok",
	DumpGeneralFailure:  "general failure",
	DumpWriteFault:      "write fault",
	DumpReadFault:       "read fault",
	DumpInvalidFile:     "invalid file",
	DumpInvalidIrep:     "invalid irep",
	DumpInvalidArgument: "invalid argument",
}

func (st DumpStatus) String() string {
	if n, ok := statusNames[st]; ok {
		return n
	}
	return fmt.Sprintf("status %d", int(st))
}

// DumpError carries the status of a failed dump or load.
type DumpError struct {
	Status DumpStatus
	Err    error
}

func (e *DumpError) Error() string {
	if e.Err == nil {
		return "dump: " + e.Status.String()
	}
	return "dump: " + e.Status.String() + ": " + e.Err.Error()
}

func (e *DumpError) Unwrap() error { return e.Err }

func dumpErr(st DumpStatus, err error) error {
	return &DumpError{Status: st, Err: err}
}

// StatusOf extracts the status from an error returned by this package's
// dump and load functions. nil maps to DumpOK.
func StatusOf(err error) DumpStatus {
	if err == nil {
		return DumpOK
	}
	var de *DumpError
	if errors.As(err, &de) {
		return de.Status
	}
	return DumpGeneralFailure
}

// ---------------------------------------------------------------------------
// Writing
// ---------------------------------------------------------------------------

// DumpIrep serializes unit root of the visible code table, together with
// every unit it references, to w.
func DumpIrep(s *State, root int, flags uint16, w io.Writer) error {
	data, err := DumpIrepBytes(s, root, flags)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return dumpErr(DumpWriteFault, err)
	}
	return nil
}

// DumpIrepBytes is DumpIrep into memory.
func DumpIrepBytes(s *State, root int, flags uint16) ([]byte, error) {
	if s == nil {
		return nil, dumpErr(DumpInvalidArgument, errors.New("nil state"))
	}
	units, err := collectUnits(&s.Codes, root)
	if err != nil {
		return nil, err
	}

	body, err := encodeIrepRecords(units)
	if err != nil {
		return nil, dumpErr(DumpGeneralFailure, err)
	}
	if flags&DumpFlagCompressed != 0 {
		if body, err = compressSection(body); err != nil {
			return nil, dumpErr(DumpGeneralFailure, err)
		}
	}

	var buf bytes.Buffer
	buf.Write(make([]byte, RiteHeaderSize))
	writeSection(&buf, sectionIrep, body)

	if flags&DumpFlagDebugInfo != 0 {
		dbg, err := encodeDebugRecords(units)
		if err != nil {
			return nil, dumpErr(DumpGeneralFailure, err)
		}
		writeSection(&buf, sectionDebug, dbg)
	}
	writeSection(&buf, sectionEnd, nil)

	data := buf.Bytes()
	if len(data) > int(^uint32(0)) {
		return nil, dumpErr(DumpGeneralFailure, errors.New("dump exceeds 4GiB"))
	}
	copy(data[0:4], RiteIdent[:])
	copy(data[4:8], RiteVersion[:])
	copy(data[8:12], RiteCompiler[:])
	binary.BigEndian.PutUint16(data[12:14], flags)
	binary.BigEndian.PutUint16(data[14:16], 0)
	binary.BigEndian.PutUint32(data[16:20], uint32(len(data)))
	digest := blake3.Sum256(data[RiteHeaderSize:])
	copy(data[20:RiteHeaderSize], digest[:])
	return data, nil
}

func writeSection(buf *bytes.Buffer, ident [4]byte, body []byte) {
	var head [sectionHeadSize]byte
	copy(head[0:4], ident[:])
	binary.BigEndian.PutUint32(head[4:8], uint32(sectionHeadSize+len(body)))
	buf.Write(head[:])
	buf.Write(body)
}

// collectUnits returns the contiguous run of units starting at root that
// covers everything root transitively references through OpLambda.
func collectUnits(t *CodeTable, root int) ([]*Irep, error) {
	n := t.Len()
	if root < 0 || root >= n {
		return nil, dumpErr(DumpInvalidArgument, fmt.Errorf("no unit at index %d", root))
	}
	last := root
	for i := root; i <= last; i++ {
		ir := t.At(i)
		for _, rel := range ir.Children() {
			child := i + rel
			if rel <= 0 || child >= n {
				return nil, dumpErr(DumpInvalidIrep, fmt.Errorf("unit %d references missing unit %d", i, child))
			}
			last = max(last, child)
		}
	}
	units := make([]*Irep, 0, last-root+1)
	for i := root; i <= last; i++ {
		units = append(units, t.At(i))
	}
	return units, nil
}
