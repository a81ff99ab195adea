package vm

import (
	"fmt"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
)

// ---------------------------------------------------------------------------
// Section record encoding
// ---------------------------------------------------------------------------

// irepRecord is the on-disk shape of one unit in the IREP section.
type irepRecord struct {
	_       struct{} `cbor:",toarray"`
	NLocals uint16
	NRegs   uint16
	Iseq    []uint32
	Pool    []poolRecord
	Syms    []string
}

type poolRecord struct {
	_     struct{} `cbor:",toarray"`
	Kind  uint8
	Int   int64
	Float float64
	Str   string
}

// debugRecord is the on-disk shape of one unit in the DBG section.
type debugRecord struct {
	_        struct{} `cbor:",toarray"`
	Filename string
	Lines    []uint16
}

var (
	cborEncMode cbor.EncMode
	cborDecMode cbor.DecMode
)

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("vm: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em

	dm, err := cbor.DecOptions{
		MaxArrayElements: 1 << 24,
		MaxNestedLevels:  8,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("vm: failed to create CBOR dec mode: %v", err))
	}
	cborDecMode = dm
}

func encodeIrepRecords(ireps []*Irep) ([]byte, error) {
	recs := make([]irepRecord, len(ireps))
	for i, ir := range ireps {
		iseq := make([]uint32, len(ir.Iseq))
		for j, c := range ir.Iseq {
			iseq[j] = uint32(c)
		}
		pool := make([]poolRecord, len(ir.Pool))
		for j, l := range ir.Pool {
			pool[j] = poolRecord{Kind: uint8(l.Kind), Int: l.Int, Float: l.Float, Str: l.Str}
		}
		recs[i] = irepRecord{
			NLocals: uint16(ir.NLocals),
			NRegs:   uint16(ir.NRegs),
			Iseq:    iseq,
			Pool:    pool,
			Syms:    ir.Syms,
		}
	}
	return cborEncMode.Marshal(recs)
}

func decodeIrepRecords(data []byte) ([]*Irep, error) {
	var recs []irepRecord
	if err := cborDecMode.Unmarshal(data, &recs); err != nil {
		return nil, err
	}
	ireps := make([]*Irep, len(recs))
	for i, r := range recs {
		iseq := make([]Code, len(r.Iseq))
		for j, c := range r.Iseq {
			iseq[j] = Code(c)
		}
		pool := make([]Literal, len(r.Pool))
		for j, p := range r.Pool {
			pool[j] = Literal{Kind: LiteralKind(p.Kind), Int: p.Int, Float: p.Float, Str: p.Str}
		}
		ireps[i] = &Irep{
			NLocals: int(r.NLocals),
			NRegs:   int(r.NRegs),
			Iseq:    iseq,
			Pool:    pool,
			Syms:    r.Syms,
		}
	}
	return ireps, nil
}

func encodeDebugRecords(ireps []*Irep) ([]byte, error) {
	recs := make([]debugRecord, len(ireps))
	for i, ir := range ireps {
		recs[i] = debugRecord{Filename: ir.Filename, Lines: ir.Lines}
	}
	return cborEncMode.Marshal(recs)
}

func decodeDebugRecords(data []byte) ([]debugRecord, error) {
	var recs []debugRecord
	if err := cborDecMode.Unmarshal(data, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// ---------------------------------------------------------------------------
// Compression
// ---------------------------------------------------------------------------

// maxDecodedSection caps the decompressed size of a section.
const maxDecodedSection = 64 << 20

var (
	zstdOnce    sync.Once
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
	zstdErr     error
)

func zstdCodecs() (*zstd.Encoder, *zstd.Decoder, error) {
	zstdOnce.Do(func() {
		zstdEncoder, zstdErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if zstdErr != nil {
			return
		}
		zstdDecoder, zstdErr = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxDecodedSection))
	})
	return zstdEncoder, zstdDecoder, zstdErr
}

func compressSection(data []byte) ([]byte, error) {
	enc, _, err := zstdCodecs()
	if err != nil {
		return nil, err
	}
	return enc.EncodeAll(data, nil), nil
}

func decompressSection(data []byte) ([]byte, error) {
	_, dec, err := zstdCodecs()
	if err != nil {
		return nil, err
	}
	return dec.DecodeAll(data, nil)
}
