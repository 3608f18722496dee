// Package heapdump reads HPROF heap dumps and loads them into a read-only
// in-memory runtime, so the interop layer can browse a snapshot of a JVM.
package heapdump

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"
)

const formatPrefix = "JAVA PROFILE "

// Parse reads a complete HPROF stream.
func Parse(r io.Reader) (*Dump, error) {
	br := newReader(r)

	header, err := parseHeader(br)
	if err != nil {
		return nil, err
	}
	br.idSize = header.IDSize

	d := &Dump{
		Header:          *header,
		Strings:         make(map[ID]string),
		ClassNames:      make(map[ID]string),
		Classes:         make(map[ID]*ClassDump),
		Instances:       make(map[ID]*Instance),
		ObjectArrays:    make(map[ID]*ObjectArray),
		PrimitiveArrays: make(map[ID]*PrimitiveArray),
		Roots:           make(map[uint8]int),
	}

	for {
		tag, length, err := br.recordHeader()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		start := br.bytesRead
		switch tag {
		case tagUTF8:
			err = d.parseUTF8(br, length)
		case tagLoadClass:
			err = d.parseLoadClass(br)
		case tagHeapDump, tagHeapSegment:
			err = d.parseSegment(br, length)
		default:
			// STACK_FRAME, STACK_TRACE, START_THREAD, HEAP_SUMMARY and the rest
			// carry nothing the image needs.
			err = br.skip(int64(length))
		}
		if err != nil {
			return nil, fmt.Errorf("record 0x%02X at offset %d: %w", tag, start, err)
		}
		if consumed := br.bytesRead - start; consumed != int64(length) {
			return nil, fmt.Errorf("record 0x%02X at offset %d: consumed %d of %d bytes", tag, start, consumed, length)
		}
	}
	return d, nil
}

// ParseFile parses the dump at path.
func ParseFile(path string) (*Dump, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	start := time.Now()
	d, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	slog.Debug("heap dump parsed", "path", path, "classes", len(d.Classes),
		"instances", len(d.Instances), "elapsed", time.Since(start))
	return d, nil
}

/*
* Header:
*	[u1]*	"JAVA PROFILE 1.0.2" followed by a null byte
*	u4		size of identifiers
*	u4		high word of the timestamp (ms since epoch)
*	u4		low word of the timestamp
 */
func parseHeader(br *reader) (*Header, error) {
	format, err := br.readCString()
	if err != nil {
		return nil, fmt.Errorf("failed to read format: %w", err)
	}
	if len(format) < len(formatPrefix) || format[:len(formatPrefix)] != formatPrefix {
		return nil, fmt.Errorf("not an HPROF file: %q", format)
	}

	idSize, err := br.u4()
	if err != nil {
		return nil, fmt.Errorf("failed to read identifier size: %w", err)
	}
	if idSize != 4 && idSize != 8 {
		return nil, fmt.Errorf("invalid identifier size: %d", idSize)
	}

	hi, err := br.u4()
	if err != nil {
		return nil, fmt.Errorf("failed to read timestamp: %w", err)
	}
	lo, err := br.u4()
	if err != nil {
		return nil, fmt.Errorf("failed to read timestamp: %w", err)
	}

	return &Header{
		Format:    format,
		IDSize:    int(idSize),
		Timestamp: time.UnixMilli(int64(uint64(hi)<<32 | uint64(lo))),
	}, nil
}

/*
* UTF8:
*	ID		string ID
*	[u1]*	modified UTF-8 characters, record length minus ID size
 */
func (d *Dump) parseUTF8(br *reader, length uint32) error {
	id, err := br.id()
	if err != nil {
		return err
	}
	n := int(length) - br.idSize
	if n < 0 {
		return fmt.Errorf("string record shorter than its ID")
	}
	b, err := br.readN(n)
	if err != nil {
		return err
	}
	d.Strings[id] = string(b)
	return nil
}

/*
* LOAD_CLASS:
*	u4		class serial number
*	ID		class object ID
*	u4		stack trace serial number
*	ID		class name string ID
 */
func (d *Dump) parseLoadClass(br *reader) error {
	if _, err := br.u4(); err != nil {
		return err
	}
	obj, err := br.id()
	if err != nil {
		return err
	}
	if _, err := br.u4(); err != nil {
		return err
	}
	nameID, err := br.id()
	if err != nil {
		return err
	}
	// Names are dotted in the file; the runtime works with slashed names.
	d.ClassNames[obj] = slashed(d.Strings[nameID])
	return nil
}

// parseSegment walks sub-records until length bytes are consumed.
func (d *Dump) parseSegment(br *reader, length uint32) error {
	end := br.bytesRead + int64(length)

	for br.bytesRead < end {
		before := br.bytesRead
		sub, err := br.u1()
		if err != nil {
			return fmt.Errorf("failed to read sub-record type at offset %d: %w", before, err)
		}

		if err := d.parseSubRecord(br, sub); err != nil {
			return fmt.Errorf("sub-record 0x%02X at offset %d: %w", sub, before, err)
		}
		if br.bytesRead > end {
			return fmt.Errorf("sub-record 0x%02X exceeded segment boundary: at %d, segment ends at %d",
				sub, br.bytesRead, end)
		}
	}
	return nil
}

func (d *Dump) parseSubRecord(br *reader, sub uint8) error {
	id := int64(br.idSize)

	switch sub {
	case rootUnknown, rootStickyClass, rootMonitorUsed:
		d.Roots[sub]++
		return br.skip(id)
	case rootJNIGlobal:
		d.Roots[sub]++
		return br.skip(2 * id)
	case rootJNILocal, rootJavaFrame:
		d.Roots[sub]++
		return br.skip(id + 8)
	case rootNativeStack, rootThreadBlock:
		d.Roots[sub]++
		return br.skip(id + 4)
	case rootThreadObj:
		d.Roots[sub]++
		return d.parseThreadObj(br)
	case subClassDump:
		return d.parseClassDump(br)
	case subInstanceDump:
		return d.parseInstance(br)
	case subObjArrayDump:
		return d.parseObjectArray(br)
	case subPrimArrayDump:
		return d.parsePrimitiveArray(br)
	default:
		return fmt.Errorf("unknown sub-record type")
	}
}

/*
* ROOT_THREAD_OBJ:
*	ID		thread object ID
*	u4		thread serial number
*	u4		stack trace serial number
 */
func (d *Dump) parseThreadObj(br *reader) error {
	obj, err := br.id()
	if err != nil {
		return err
	}
	serial, err := br.u4()
	if err != nil {
		return err
	}
	if _, err := br.u4(); err != nil {
		return err
	}
	d.Threads = append(d.Threads, Thread{Object: obj, Serial: serial})
	return nil
}

/*
* CLASS_DUMP:
*	ID		class object ID
*	u4		stack trace serial number
*	ID		super class object ID
*	ID		class loader object ID
*	ID		signers object ID
*	ID		protection domain object ID
*	ID		reserved
*	ID		reserved
*	u4		instance size (in bytes)
*	u2		size of constant pool, then per entry:
*			u2 index, u1 type, value
*	u2		number of static fields, then per field:
*			ID name, u1 type, value
*	u2		number of instance fields, then per field:
*			ID name, u1 type
 */
func (d *Dump) parseClassDump(br *reader) error {
	cd := &ClassDump{}
	var err error

	if cd.ID, err = br.id(); err != nil {
		return err
	}
	if _, err = br.u4(); err != nil {
		return err
	}
	if cd.Super, err = br.id(); err != nil {
		return err
	}
	if cd.Loader, err = br.id(); err != nil {
		return err
	}
	// signers, protection domain, two reserved
	if err = br.skip(4 * int64(br.idSize)); err != nil {
		return err
	}
	if cd.InstanceSize, err = br.u4(); err != nil {
		return err
	}

	poolSize, err := br.u2()
	if err != nil {
		return err
	}
	for range poolSize {
		if _, err := br.u2(); err != nil {
			return err
		}
		if _, err := d.readValue(br); err != nil {
			return err
		}
	}

	staticCount, err := br.u2()
	if err != nil {
		return err
	}
	for range staticCount {
		nameID, err := br.id()
		if err != nil {
			return err
		}
		t, err := br.u1()
		if err != nil {
			return err
		}
		v, err := readTyped(br, FieldType(t))
		if err != nil {
			return err
		}
		cd.Statics = append(cd.Statics, Static{
			Field: Field{Name: d.Strings[nameID], Type: FieldType(t)},
			Value: v,
		})
	}

	fieldCount, err := br.u2()
	if err != nil {
		return err
	}
	for range fieldCount {
		nameID, err := br.id()
		if err != nil {
			return err
		}
		t, err := br.u1()
		if err != nil {
			return err
		}
		cd.Fields = append(cd.Fields, Field{Name: d.Strings[nameID], Type: FieldType(t)})
	}

	if _, dup := d.Classes[cd.ID]; !dup {
		d.classOrder = append(d.classOrder, cd.ID)
	}
	d.Classes[cd.ID] = cd
	return nil
}

// readValue reads a u1 type code followed by a value of that type.
func (d *Dump) readValue(br *reader) (uint64, error) {
	t, err := br.u1()
	if err != nil {
		return 0, err
	}
	return readTyped(br, FieldType(t))
}

func readTyped(br *reader, t FieldType) (uint64, error) {
	switch size := t.Size(br.idSize); size {
	case 1:
		v, err := br.u1()
		return uint64(v), err
	case 2:
		v, err := br.u2()
		return uint64(v), err
	case 4:
		v, err := br.u4()
		return uint64(v), err
	case 8:
		return br.u8()
	default:
		return 0, fmt.Errorf("invalid basic type 0x%02X", uint8(t))
	}
}

/*
* INSTANCE_DUMP:
*	ID		object ID
*	u4		stack trace serial number
*	ID		class object ID
*	u4		number of bytes that follow
*	[u1]*	instance field values
 */
func (d *Dump) parseInstance(br *reader) error {
	inst := &Instance{}
	var err error

	if inst.ID, err = br.id(); err != nil {
		return err
	}
	if _, err = br.u4(); err != nil {
		return err
	}
	if inst.Class, err = br.id(); err != nil {
		return err
	}
	n, err := br.u4()
	if err != nil {
		return err
	}
	if inst.Data, err = br.readN(int(n)); err != nil {
		return err
	}
	d.Instances[inst.ID] = inst
	return nil
}

/*
* OBJ_ARRAY_DUMP:
*	ID		array object ID
*	u4		stack trace serial number
*	u4		number of elements
*	ID		array class object ID
*	[ID]*	elements
 */
func (d *Dump) parseObjectArray(br *reader) error {
	arr := &ObjectArray{}
	var err error

	if arr.ID, err = br.id(); err != nil {
		return err
	}
	if _, err = br.u4(); err != nil {
		return err
	}
	n, err := br.u4()
	if err != nil {
		return err
	}
	if arr.Class, err = br.id(); err != nil {
		return err
	}
	arr.Elements = make([]ID, n)
	for i := range arr.Elements {
		if arr.Elements[i], err = br.id(); err != nil {
			return err
		}
	}
	d.ObjectArrays[arr.ID] = arr
	return nil
}

/*
* PRIM_ARRAY_DUMP:
*	ID		array object ID
*	u4		stack trace serial number
*	u4		number of elements
*	u1		element type
*	[u1]*	elements, big-endian
 */
func (d *Dump) parsePrimitiveArray(br *reader) error {
	arr := &PrimitiveArray{}
	var err error

	if arr.ID, err = br.id(); err != nil {
		return err
	}
	if _, err = br.u4(); err != nil {
		return err
	}
	n, err := br.u4()
	if err != nil {
		return err
	}
	t, err := br.u1()
	if err != nil {
		return err
	}
	arr.Type = FieldType(t)
	arr.Len = int(n)

	size := arr.Type.Size(br.idSize)
	if size == 0 || arr.Type == TypeObject {
		return fmt.Errorf("invalid primitive array type 0x%02X", t)
	}
	if arr.Data, err = br.readN(size * arr.Len); err != nil {
		return err
	}
	d.PrimitiveArrays[arr.ID] = arr
	return nil
}
