package dwg

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/dyuri/dwgconv/internal/binary"
	"github.com/dyuri/dwgconv/internal/model"
)

// Control object types, one per symbol table.
const (
	typeBlockControl    = 0x30
	typeLayerControl    = 0x32
	typeStyleControl    = 0x34
	typeLTypeControl    = 0x38
	typeViewControl     = 0x3C
	typeUCSControl      = 0x3E
	typeVportControl    = 0x40
	typeAppIDControl    = 0x42
	typeDimStyleControl = 0x44
	typeVPEntHdrControl = 0x46
)

var controlNames = map[int]string{
	typeBlockControl:    "BLOCK_CONTROL",
	typeLayerControl:    "LAYER_CONTROL",
	typeStyleControl:    "STYLE_CONTROL",
	typeLTypeControl:    "LTYPE_CONTROL",
	typeViewControl:     "VIEW_CONTROL",
	typeUCSControl:      "UCS_CONTROL",
	typeVportControl:    "VPORT_CONTROL",
	typeAppIDControl:    "APPID_CONTROL",
	typeDimStyleControl: "DIMSTYLE_CONTROL",
	typeVPEntHdrControl: "VP_ENT_HDR_CONTROL",
}

// ObjectEntry locates one object in the object stream.
type ObjectEntry struct {
	Handle model.Handle
	Type   int
	Offset int64
	Size   int
}

// Directory maps handles to object locations. Iteration follows
// insertion order; removed entries are skipped.
type Directory struct {
	entries map[model.Handle]*ObjectEntry
	order   []model.Handle
}

func NewDirectory() *Directory {
	return &Directory{entries: make(map[model.Handle]*ObjectEntry)}
}

// Add stores e. Re-adding a handle replaces the entry in place.
func (d *Directory) Add(e ObjectEntry) {
	if _, ok := d.entries[e.Handle]; !ok {
		d.order = append(d.order, e.Handle)
	}
	d.entries[e.Handle] = &e
}

func (d *Directory) Get(h model.Handle) (*ObjectEntry, bool) {
	e, ok := d.entries[h]
	return e, ok
}

// Remove drops an entry. Its slot in the order list is skipped from then
// on.
func (d *Directory) Remove(h model.Handle) {
	delete(d.entries, h)
}

func (d *Directory) Len() int { return len(d.entries) }

// Entries returns the live entries in insertion order.
func (d *Directory) Entries() []*ObjectEntry {
	out := make([]*ObjectEntry, 0, len(d.entries))
	seen := make(map[model.Handle]bool, len(d.entries))
	for _, h := range d.order {
		e, ok := d.entries[h]
		if !ok || seen[h] {
			continue
		}
		seen[h] = true
		out = append(out, e)
	}
	return out
}

const objectMapSeed = 0xC0C1

// readObjectMap decodes the handle/offset map. The section is a list of
// chunks; each starts with a big endian size that counts itself, holds
// (UMC handle delta, MC offset delta) pairs and is closed by a big
// endian CRC. A chunk of size 2 ends the list. Offsets are relative to
// base.
func readObjectMap(r *binary.Reader, base int64, limit int, dir *Directory, log logrus.FieldLogger) error {
	for r.Remaining() >= 2 {
		start := r.Position()
		size := int(r.BigEndianShort())
		if size == 2 {
			return nil
		}
		if size < 2 {
			return fmt.Errorf("object map chunk at %d has size %d", start, size)
		}
		chunk, err := r.Sub(start, size)
		if err != nil {
			return fmt.Errorf("object map chunk at %d: %w", start, err)
		}
		chunk.SetPosition(2)
		var handle model.Handle
		var offset int64
		for chunk.Remaining() > 0 {
			handle += model.Handle(chunk.UModularChar())
			offset += int64(chunk.ModularChar())
			if !chunk.Good() {
				return fmt.Errorf("object map chunk at %d: %w", start, chunk.Err())
			}
			if limit > 0 && dir.Len() >= limit {
				return fmt.Errorf("object map exceeds %d objects", limit)
			}
			dir.Add(ObjectEntry{Handle: handle, Offset: base + offset})
		}
		calc := chunk.CRC(objectMapSeed, 0, size)
		r.SetPosition(start + size)
		stored := r.BigEndianShort()
		if !r.Good() {
			return fmt.Errorf("object map CRC at %d: %w", start+size, r.Err())
		}
		if stored != calc {
			log.WithFields(logrus.Fields{
				"chunk":      start,
				"stored":     stored,
				"calculated": calc,
			}).Warn("object map CRC mismatch")
		}
	}
	return nil
}

// scanObjects walks an R2004 object stream record by record. The stream
// starts with an RL; every record is an MS size, the object data and a
// CRC.
func scanObjects(buf []byte, limit int, dir *Directory, log logrus.FieldLogger) error {
	r := binary.NewReader(buf)
	r.SetPosition(4)
	for r.Remaining() > 0 {
		pos := r.Position()
		size := int(r.ModularShort())
		if size == 0 {
			return nil
		}
		start := r.Position()
		rec, err := r.Sub(start, size)
		if err != nil {
			return fmt.Errorf("object record at %d: %w", pos, err)
		}
		typ := int(rec.BitShort())
		rec.RawLong()
		handle := rec.Handle()
		if !rec.Good() {
			return fmt.Errorf("object record at %d: %w", pos, rec.Err())
		}
		if limit > 0 && dir.Len() >= limit {
			return fmt.Errorf("object stream exceeds %d objects", limit)
		}
		dir.Add(ObjectEntry{Handle: handle.Ref, Type: typ, Offset: int64(pos), Size: size})
		if err := r.SetPosition(start + size + 2); err != nil {
			log.WithField("record", pos).Debug("object stream ends inside record CRC")
			return nil
		}
	}
	return nil
}

// tagObjects is the second directory pass: it reads the size and type
// of every object, records the control objects and drops entries that
// do not start with a valid object prologue.
func tagObjects(buf []byte, dir *Directory, log logrus.FieldLogger) map[int]model.Handle {
	controls := make(map[int]model.Handle)
	for _, e := range dir.Entries() {
		if e.Offset < 0 || e.Offset >= int64(len(buf)) {
			log.WithFields(logrus.Fields{"handle": e.Handle, "offset": e.Offset}).Warn("object offset outside stream, dropped")
			dir.Remove(e.Handle)
			continue
		}
		r := binary.NewReader(buf)
		r.SetPosition(int(e.Offset))
		size := int(r.ModularShort())
		start := r.Position()
		typ := int(r.BitShort())
		if !r.Good() || size == 0 || start+size > len(buf) {
			log.WithFields(logrus.Fields{"handle": e.Handle, "offset": e.Offset}).Warn("invalid object prologue, dropped")
			dir.Remove(e.Handle)
			continue
		}
		e.Size = size
		e.Type = typ
		if _, ok := controlNames[typ]; ok {
			if _, dup := controls[typ]; !dup {
				controls[typ] = e.Handle
			}
		}
	}
	return controls
}
