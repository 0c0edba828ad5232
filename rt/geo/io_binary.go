package geo

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

const (
	GDETMagicNumber = "GDET"
	GDETVersion     = 1
)

func LoadBinaryFile(path string) (*Detail, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	d, err := ReadBinary(bufio.NewReader(file))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

// ReadBinary decodes the chunked format: a "GDET" magic, an int32
// version, then chunks of {id [4]byte, size int32, children int32, data}.
// PNTS and PRIM must precede the ATTR chunks that depend on their counts.
func ReadBinary(r io.Reader) (*Detail, error) {
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, err
	}
	if string(magic[:]) != GDETMagicNumber {
		return nil, errors.New("not a valid GDET file")
	}

	var version int32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, err
	}
	if version != GDETVersion {
		return nil, fmt.Errorf("unsupported GDET version %d", version)
	}

	d := NewDetail()
	for {
		var chunkID [4]byte
		if _, err := io.ReadFull(r, chunkID[:]); err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}

		var chunkSize, childrenSize int32
		if err := binary.Read(r, binary.LittleEndian, &chunkSize); err != nil {
			return nil, err
		}
		if err := binary.Read(r, binary.LittleEndian, &childrenSize); err != nil {
			return nil, err
		}
		if chunkSize < 0 {
			return nil, fmt.Errorf("chunk %s has negative size", chunkID[:])
		}

		// Read through a limit so a forged size cannot force a large
		// allocation before the data is known to exist.
		chunkData, err := io.ReadAll(io.LimitReader(r, int64(chunkSize)))
		if err != nil {
			return nil, err
		}
		if len(chunkData) != int(chunkSize) {
			return nil, fmt.Errorf("chunk %s: %w", chunkID[:], io.ErrUnexpectedEOF)
		}

		switch string(chunkID[:]) {
		case "PNTS":
			if err := readPoints(d, chunkData); err != nil {
				return nil, err
			}
		case "PRIM":
			if err := readPrims(d, chunkData); err != nil {
				return nil, err
			}
		case "ATTR":
			if err := readAttribute(d, chunkData); err != nil {
				return nil, err
			}
		}
	}

	if p := d.Position(); p.Len() != d.numPoints {
		return nil, fmt.Errorf("%d points without position data", d.numPoints)
	}
	return d, nil
}

type chunkReader struct {
	data []byte
	err  error
}

func (c *chunkReader) need(n int) bool {
	if c.err != nil {
		return false
	}
	if len(c.data) < n {
		c.err = errors.New("chunk data overflow")
		return false
	}
	return true
}

func (c *chunkReader) u8() uint8 {
	if !c.need(1) {
		return 0
	}
	v := c.data[0]
	c.data = c.data[1:]
	return v
}

func (c *chunkReader) u32() uint32 {
	if !c.need(4) {
		return 0
	}
	v := binary.LittleEndian.Uint32(c.data[:4])
	c.data = c.data[4:]
	return v
}

func (c *chunkReader) u64() uint64 {
	if !c.need(8) {
		return 0
	}
	v := binary.LittleEndian.Uint64(c.data[:8])
	c.data = c.data[8:]
	return v
}

func (c *chunkReader) str() string {
	n := int(c.u32())
	if !c.need(n) {
		return ""
	}
	s := string(c.data[:n])
	c.data = c.data[n:]
	return s
}

func readPoints(d *Detail, data []byte) error {
	c := &chunkReader{data: data}
	n := int(c.u32())
	if c.err != nil {
		return c.err
	}
	if d.NumPoints() != 0 {
		return errors.New("duplicate PNTS chunk")
	}
	// Point attributes are sized by the ATTR chunks that carry their
	// data, so the count alone never allocates.
	d.numPoints = n
	return nil
}

func readPrims(d *Detail, data []byte) error {
	c := &chunkReader{data: data}
	n := int(c.u32())
	if n > len(c.data)/4 {
		return fmt.Errorf("%d primitives in %d bytes", n, len(c.data))
	}
	for i := 0; i < n && c.err == nil; i++ {
		count := int(c.u32())
		if count > len(c.data)/4 {
			return fmt.Errorf("primitive %d: %d points in %d bytes", i, count, len(c.data))
		}
		pts := make([]int, count)
		for j := range pts {
			pts[j] = int(c.u32())
		}
		if c.err != nil {
			break
		}
		if _, err := d.AddPolygon(pts...); err != nil {
			return err
		}
	}
	return c.err
}

func readAttribute(d *Detail, data []byte) error {
	c := &chunkReader{data: data}
	owner := Owner(c.u8())
	class := StorageClass(c.u8())
	size := int(c.u8())
	prec := Precision(c.u8())
	name := c.str()
	if c.err != nil {
		return c.err
	}
	if size < 1 {
		return fmt.Errorf("attribute %s: tuple size %d", name, size)
	}

	count := d.NumElements(owner)
	elemBytes := 4
	if class != StorageString {
		elemBytes = 8 * size
	}
	if count > len(c.data)/elemBytes {
		return fmt.Errorf("attribute %s: %d elements in %d bytes", name, count, len(c.data))
	}
	if owner == OwnerPoint {
		d.attribs[OwnerPoint].resize(count)
	}

	a, err := d.AddAttribute(owner, name, class, size, prec)
	if err != nil {
		return err
	}
	switch class {
	case StorageFloat:
		for i := 0; i < count*a.tupleSize; i++ {
			a.floats[i] = a.quantizeFloat(math.Float64frombits(c.u64()))
		}
	case StorageInt:
		for i := 0; i < count*a.tupleSize; i++ {
			a.ints[i] = a.quantizeInt(int64(c.u64()))
		}
	case StorageString:
		for i := 0; i < count; i++ {
			a.strings[i] = c.str()
		}
	default:
		return fmt.Errorf("attribute %s: unknown storage class %d", name, class)
	}
	return c.err
}

func SaveBinaryFile(path string, d *Detail) error {
	var buf bytes.Buffer
	if err := WriteBinary(&buf, d); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

func WriteBinary(w io.Writer, d *Detail) error {
	if _, err := io.WriteString(w, GDETMagicNumber); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, int32(GDETVersion)); err != nil {
		return err
	}

	var pnts bytes.Buffer
	putU32(&pnts, uint32(d.NumPoints()))
	if err := writeChunk(w, "PNTS", pnts.Bytes()); err != nil {
		return err
	}

	var prim bytes.Buffer
	putU32(&prim, uint32(d.NumPrimitives()))
	for i := 0; i < d.NumPrimitives(); i++ {
		pts := d.PrimitivePoints(i)
		putU32(&prim, uint32(len(pts)))
		for _, p := range pts {
			putU32(&prim, uint32(p))
		}
	}
	if err := writeChunk(w, "PRIM", prim.Bytes()); err != nil {
		return err
	}

	for owner := OwnerPoint; owner < ownerCount; owner++ {
		for _, a := range d.Attribs(owner) {
			var attr bytes.Buffer
			attr.WriteByte(byte(owner))
			attr.WriteByte(byte(a.class))
			attr.WriteByte(byte(a.tupleSize))
			attr.WriteByte(byte(a.precision))
			putStr(&attr, a.name)
			switch a.class {
			case StorageFloat:
				for _, v := range a.floats {
					putU64(&attr, math.Float64bits(v))
				}
			case StorageInt:
				for _, v := range a.ints {
					putU64(&attr, uint64(v))
				}
			case StorageString:
				for _, s := range a.strings {
					putStr(&attr, s)
				}
			}
			if err := writeChunk(w, "ATTR", attr.Bytes()); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeChunk(w io.Writer, id string, data []byte) error {
	if _, err := io.WriteString(w, id); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, int32(len(data))); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, int32(0)); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

func putU32(b *bytes.Buffer, v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	b.Write(tmp[:])
}

func putU64(b *bytes.Buffer, v uint64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	b.Write(tmp[:])
}

func putStr(b *bytes.Buffer, s string) {
	putU32(b, uint32(len(s)))
	b.WriteString(s)
}
