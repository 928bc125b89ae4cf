package dwg

import (
	"bytes"
	"sort"

	"github.com/dyuri/dwgconv/internal/binary"
	"github.com/dyuri/dwgconv/internal/compress"
	"github.com/dyuri/dwgconv/internal/model"
)

// objectRecord assembles an object: type, the R2000+ handle stream
// position, the body and the handle stream.
func objectRecord(v model.Version, typ int, body, handles *binary.Writer) []byte {
	rec := binary.NewWriter()
	rec.WriteBitShort(uint16(typ))
	if v >= model.AC1015 {
		tw := binary.NewWriter()
		tw.WriteBitShort(uint16(typ))
		rec.WriteRawLong(uint32(tw.BitLen() + 32 + body.BitLen()))
	}
	rec.Append(body)
	rec.Append(handles)
	return rec.Bytes()
}

// objectBody starts a non-entity body: handle, no extended data, no
// reactors, dictionary present.
func objectBody(v model.Version, h model.Handle) *binary.Writer {
	w := binary.NewWriter()
	w.WriteHandle(0, h)
	w.WriteBitShort(0)
	if v < model.AC1015 {
		w.WriteRawLong(0)
	}
	w.WriteBitLong(0)
	if v >= model.AC1018 {
		w.WriteBit(false)
	}
	return w
}

// entityBody starts an entity body in model space with BYLAYER color
// and line type.
func entityBody(v model.Version, h model.Handle, noLinks bool) *binary.Writer {
	return sizedEntityBody(v, h, noLinks, 0)
}

// sizedEntityBody is entityBody with the pre-2000 object size in bits.
func sizedEntityBody(v model.Version, h model.Handle, noLinks bool, size uint32) *binary.Writer {
	w := binary.NewWriter()
	w.WriteHandle(0, h)
	w.WriteBitShort(0)
	w.WriteBit(false)
	if v < model.AC1015 {
		w.WriteRawLong(size)
	}
	w.WriteBits2(2)
	w.WriteBitLong(0)
	if v < model.AC1015 {
		w.WriteBit(true) // BYLAYER line type
	}
	if v >= model.AC1018 {
		w.WriteBit(false)
	}
	if v < model.AC1018 {
		w.WriteBit(noLinks)
	}
	w.WriteBitShort(model.ColorByLayer)
	w.WriteBitDouble(1)
	if v >= model.AC1015 {
		w.WriteBits2(0)
		w.WriteBits2(0)
	}
	w.WriteBitShort(0)
	if v >= model.AC1015 {
		w.WriteRawChar(uint8(model.WidthByLayer))
	}
	return w
}

// entityHandles writes the common handles of an entity built by
// entityBody. prev and next are written unless noLinks.
func entityHandles(v model.Version, layer, prev, next model.Handle, noLinks bool) *binary.Writer {
	w := binary.NewWriter()
	w.WriteHandle(3, 0)
	if v < model.AC1015 {
		w.WriteHandle(5, layer)
	}
	if v < model.AC1018 && !noLinks {
		w.WriteHandle(4, prev)
		w.WriteHandle(4, next)
	}
	if v >= model.AC1015 {
		w.WriteHandle(5, layer)
	}
	return w
}

// tableHandles writes control, dictionary and xref handles.
func tableHandles(control model.Handle) *binary.Writer {
	w := binary.NewWriter()
	w.WriteHandle(4, control)
	w.WriteHandle(3, 0)
	w.WriteHandle(5, 0)
	return w
}

func controlRecord(v model.Version, typ int, h model.Handle, entries []model.Handle, extra int) []byte {
	body := objectBody(v, h)
	body.WriteBitLong(uint32(len(entries)))
	hs := binary.NewWriter()
	hs.WriteHandle(4, 0)
	hs.WriteHandle(3, 0)
	for _, e := range entries {
		hs.WriteHandle(2, e)
	}
	for i := 0; i < extra; i++ {
		hs.WriteHandle(3, 0)
	}
	return objectRecord(v, typ, body, hs)
}

// tableName writes the table entry prologue after objectBody.
func tableName(v model.Version, w *binary.Writer, name string) {
	if v > model.AC1018 {
		w.WriteTextUnicode(name)
	} else {
		w.WriteText(name)
	}
	w.WriteBit(false)
	w.WriteBitShort(0)
	w.WriteBit(false)
}

func layerRecord(v model.Version, h, control model.Handle, name string, color int) []byte {
	body := objectBody(v, h)
	tableName(v, body, name)
	if v < model.AC1015 {
		body.WriteBit(false)
		body.WriteBit(true)
		body.WriteBit(false)
		body.WriteBit(false)
	} else {
		body.WriteBitShort(2 | 16 | 5<<5)
	}
	body.WriteBitShort(uint16(color))
	if v >= model.AC1018 {
		body.WriteBitLong(0)
		body.WriteRawChar(0)
	}
	hs := tableHandles(control)
	if v >= model.AC1015 {
		hs.WriteHandle(5, 0)
	}
	hs.WriteHandle(5, 0)
	return objectRecord(v, typeLayer, body, hs)
}

func lineRecord(v model.Version, h, layer model.Handle, start, end model.Coord) []byte {
	body := entityBody(v, h, true)
	if v < model.AC1015 {
		body.WritePoint3BD(start)
		body.WritePoint3BD(end)
	} else {
		body.WriteBit(start.Z == 0 && end.Z == 0)
		body.WriteRawDouble(start.X)
		body.WriteDefaultDouble(end.X, start.X)
		body.WriteRawDouble(start.Y)
		body.WriteDefaultDouble(end.Y, start.Y)
		if start.Z != 0 || end.Z != 0 {
			body.WriteRawDouble(start.Z)
			body.WriteDefaultDouble(end.Z, start.Z)
		}
	}
	body.WriteThickness(v >= model.AC1015, 0)
	body.WriteExtrusion(v >= model.AC1015, model.ZAxis)
	return objectRecord(v, typeLine, body, entityHandles(v, layer, 0, 0, true))
}

// linkedLineRecord is a pre-2004 line with explicit chain links.
func linkedLineRecord(v model.Version, h, prev, next model.Handle, start, end model.Coord) []byte {
	body := entityBody(v, h, false)
	body.WritePoint3BD(start)
	body.WritePoint3BD(end)
	body.WriteThickness(false, 0)
	body.WriteExtrusion(false, model.ZAxis)
	return objectRecord(v, typeLine, body, entityHandles(v, 0, prev, next, false))
}

// attdefRecord builds a linked ATTDEF whose data the decoder does not
// parse. Its handle stream is only reachable through the object size.
func attdefRecord(v model.Version, h, prev, next model.Handle) []byte {
	build := func(size uint32) *binary.Writer {
		body := sizedEntityBody(v, h, false, size)
		body.WriteRawChar(0)
		body.WritePoint3BD(model.Coord{X: 2, Y: 3})
		body.WriteBitDouble(2.5)
		body.WriteText("LABEL")
		body.WriteText("TAG")
		body.WriteBitShort(0)
		body.WriteText("Label?")
		return body
	}
	tw := binary.NewWriter()
	tw.WriteBitShort(typeAttDef)
	size := uint32(tw.BitLen() + build(0).BitLen())
	return objectRecord(v, typeAttDef, build(size), entityHandles(v, 0, prev, next, false))
}

func circleRecord(v model.Version, h, layer model.Handle, center model.Coord, radius float64) []byte {
	body := entityBody(v, h, true)
	body.WritePoint3BD(center)
	body.WriteBitDouble(radius)
	body.WriteThickness(v >= model.AC1015, 0)
	body.WriteExtrusion(v >= model.AC1015, model.ZAxis)
	return objectRecord(v, typeCircle, body, entityHandles(v, layer, 0, 0, true))
}

// blockRecord builds a pre-2000 block header with a first/last entity
// range.
func blockRecord(v model.Version, h, control model.Handle, name string, block, first, last, endblk model.Handle) []byte {
	body := objectBody(v, h)
	tableName(v, body, name)
	body.WriteBit(false)
	body.WriteBit(false)
	body.WriteBit(false)
	body.WriteBit(false)
	body.WritePoint3BD(model.Coord{})
	body.WriteText("")
	hs := tableHandles(control)
	hs.WriteHandle(3, block)
	hs.WriteHandle(4, first)
	hs.WriteHandle(4, last)
	hs.WriteHandle(3, endblk)
	return objectRecord(v, typeBlockHeader, body, hs)
}

func blockEntityRecord(v model.Version, h model.Handle, name string) []byte {
	body := entityBody(v, h, true)
	body.WriteText(name)
	return objectRecord(v, typeBlock, body, entityHandles(v, 0, 0, 0, true))
}

func endBlockRecord(v model.Version, h model.Handle) []byte {
	body := entityBody(v, h, true)
	return objectRecord(v, typeEndBlk, body, entityHandles(v, 0, 0, 0, true))
}

type fixtureObject struct {
	handle model.Handle
	data   []byte
}

// dwgFixture builds a complete drawing from object records.
type dwgFixture struct {
	version  model.Version
	objects  []fixtureObject
	codePage int

	emptyMap bool // write a zero length object map

	// R2004 page overrides: the decompressed size written to data page
	// headers and the section map page limit (0x7400 when unset)
	pageSize    uint32
	maxPageSize *uint32
}

func newFixture(v model.Version) *dwgFixture {
	return &dwgFixture{version: v, codePage: 30}
}

func (f *dwgFixture) add(h model.Handle, data []byte) {
	f.objects = append(f.objects, fixtureObject{h, data})
}

// writeObjects appends every record to w and returns the offsets
// relative to base.
func (f *dwgFixture) writeObjects(w *binary.Writer, base int) map[model.Handle]int {
	offsets := make(map[model.Handle]int)
	for _, o := range f.objects {
		off := w.Len()
		offsets[o.handle] = off - base
		w.WriteModularShort(uint32(len(o.data)))
		w.WriteBytes(o.data)
		w.WriteRawShort(binary.CRC16(objectMapSeed, w.Bytes()[off:]))
	}
	return offsets
}

// objectMap encodes handle/offset pairs as a single chunk plus the
// closing empty chunk.
func objectMap(offsets map[model.Handle]int) []byte {
	handles := make([]model.Handle, 0, len(offsets))
	for h := range offsets {
		handles = append(handles, h)
	}
	sort.Slice(handles, func(i, j int) bool { return handles[i] < handles[j] })

	pairs := binary.NewWriter()
	var lastH model.Handle
	lastOff := 0
	for _, h := range handles {
		pairs.WriteUModularChar(uint32(h - lastH))
		pairs.WriteModularChar(int32(offsets[h] - lastOff))
		lastH, lastOff = h, offsets[h]
	}
	w := binary.NewWriter()
	w.WriteBigEndianShort(uint16(pairs.Len() + 2))
	w.WriteBytes(pairs.Bytes())
	w.WriteBigEndianShort(binary.CRC16(objectMapSeed, w.Bytes()))
	w.WriteBigEndianShort(2)
	return w.Bytes()
}

// bytes returns an R13-R2000 file: header with one section record,
// the objects and the object map.
func (f *dwgFixture) bytes() []byte {
	const headerLen = 0x19 + 9 + 2 + 16
	w := binary.NewWriter()
	w.WriteBytes(make([]byte, headerLen))

	offsets := f.writeObjects(w, 0)
	mapStart := w.Len()
	m := objectMap(offsets)
	if f.emptyMap {
		m = nil
	}
	w.WriteBytes(m)
	data := w.Bytes()

	hdr := binary.NewWriter()
	hdr.WriteBytes([]byte(f.version.String()))
	hdr.WriteBytes(make([]byte, 5))
	hdr.WriteRawChar(0) // maintenance
	hdr.WriteRawChar(1)
	hdr.WriteRawLong(0) // preview
	hdr.WriteRawShort(0)
	hdr.WriteRawShort(uint16(f.codePage))
	hdr.WriteRawLong(1)
	hdr.WriteRawChar(2)
	hdr.WriteRawLong(uint32(mapStart))
	hdr.WriteRawLong(uint32(len(m)))
	hdr.WriteRawShort(binary.CRC16(0, hdr.Bytes()))
	hdr.WriteBytes(headerEndSentinel)
	copy(data, hdr.Bytes())
	return data
}

// bytesR18 returns an R2004 file: two compressed data pages holding the
// object stream and the object map, a section map and a page map.
func (f *dwgFixture) bytesR18() []byte {
	objects := binary.NewWriter()
	objects.WriteRawLong(0x0DCA)
	offsets := f.writeObjects(objects, 0)
	handles := objectMap(offsets)

	file := binary.NewWriter()
	file.WriteBytes(make([]byte, r18PageBase))

	type pageRef struct {
		id   uint32
		size int
	}
	var pages []pageRef
	sections := []struct {
		name string
		data []byte
	}{
		{SectionObjects, objects.Bytes()},
		{SectionHandles, handles},
	}
	for i, s := range sections {
		off := file.Len()
		payload := compress.Store(s.data)
		hdr := binary.NewWriter()
		hdr.WriteRawLong(dataPageType)
		hdr.WriteRawLong(uint32(i + 1))
		hdr.WriteRawLong(uint32(len(payload)))
		if f.pageSize != 0 {
			hdr.WriteRawLong(f.pageSize)
		} else {
			hdr.WriteRawLong(uint32(len(s.data)))
		}
		hdr.WriteRawLongLong(0)
		hdr.WriteRawLongLong(0)
		raw := hdr.Bytes()
		compress.Decrypt(raw, uint32(off))
		file.WriteBytes(raw)
		file.WriteBytes(payload)
		pages = append(pages, pageRef{uint32(i + 1), file.Len() - off})
	}

	maxPage := uint32(0x7400)
	if f.maxPageSize != nil {
		maxPage = *f.maxPageSize
	}
	sm := binary.NewWriter()
	sm.WriteRawLong(uint32(len(sections)))
	sm.WriteRawLong(2)
	sm.WriteRawLong(0x7400)
	sm.WriteRawLong(0)
	sm.WriteRawLong(0)
	for i, s := range sections {
		sm.WriteRawLongLong(uint64(len(s.data)))
		sm.WriteRawLong(1)
		sm.WriteRawLong(maxPage)
		sm.WriteRawLong(1)
		sm.WriteRawLong(2)
		sm.WriteRawLong(uint32(i + 1))
		sm.WriteRawLong(0)
		name := make([]byte, 64)
		copy(name, s.name)
		sm.WriteBytes(name)
		sm.WriteRawLong(pages[i].id)
		sm.WriteRawLong(uint32(pages[i].size))
		sm.WriteRawLongLong(0)
	}
	const sectionMapID = 3
	off := file.Len()
	writeSystemPage(file, sectionMapType, sm.Bytes())
	pages = append(pages, pageRef{sectionMapID, file.Len() - off})

	pm := binary.NewWriter()
	for _, p := range pages {
		pm.WriteRawLong(p.id)
		pm.WriteRawLong(uint32(p.size))
	}
	pageMapAddr := file.Len() - r18PageBase
	writeSystemPage(file, pageMapType, pm.Bytes())

	data := file.Bytes()
	copy(data, f.version.String())
	data[0x13] = byte(f.codePage)

	block := make([]byte, r18HeaderSize)
	copy(block, r18Magic)
	putLE(block[0x54:], uint64(pageMapAddr), 8)
	putLE(block[0x5C:], sectionMapID, 4)
	for i, k := range compress.MagicSequence(len(block)) {
		block[i] ^= k
	}
	copy(data[r18HeaderOffset:], block)
	return data
}

func writeSystemPage(w *binary.Writer, typ uint32, raw []byte) {
	payload := compress.Store(raw)
	w.WriteRawLong(typ)
	w.WriteRawLong(uint32(len(raw)))
	w.WriteRawLong(uint32(len(payload)))
	w.WriteRawLong(2)
	w.WriteRawLong(0)
	w.WriteBytes(payload)
}

func putLE(b []byte, v uint64, n int) {
	for i := 0; i < n; i++ {
		b[i] = byte(v >> (8 * i))
	}
}

// decodeBytes runs a decoder over data and collects the result.
func decodeBytes(data []byte, opts ...Option) (*model.Drawing, *Result, error) {
	dr := model.NewDrawing()
	res, err := NewDecoder(bytes.NewReader(data), int64(len(data)), opts...).Decode(dr)
	return dr, res, err
}
