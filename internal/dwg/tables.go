package dwg

import (
	"fmt"
	"math"

	"github.com/dyuri/dwgconv/internal/binary"
	"github.com/dyuri/dwgconv/internal/model"
)

// Table entry object types.
const (
	typeBlockHeader = 0x31
	typeLayer       = 0x33
	typeStyle       = 0x35
	typeLType       = 0x39
	typeView        = 0x3D
	typeUCS         = 0x3F
	typeVport       = 0x41
	typeAppID       = 0x43
	typeDimStyle    = 0x45
)

// control is a decoded table control object.
type control struct {
	Type    int
	Handle  model.Handle
	Entries []model.Handle
	// block control: *MODEL_SPACE and *PAPER_SPACE records;
	// line type control: BYLAYER and BYBLOCK
	Extra []model.Handle
}

// enough reports whether n items of at least bits bits each can still
// be read.
func enough(r *binary.Reader, n, bits int) bool {
	return n >= 0 && n*bits <= r.Size()*8-r.BitPosition()
}

// parseObjectControl reads a table control object and its entry list.
func parseObjectControl(v model.Version, r *binary.Reader) (*control, error) {
	oh, err := parseObjectPrologue(v, r)
	if err != nil {
		return nil, err
	}
	c := &control{Type: oh.Type, Handle: oh.Handle}
	n := int(r.BitLong())
	extra := 0
	switch oh.Type {
	case typeBlockControl, typeLTypeControl:
		extra = 2
	case typeDimStyleControl:
		if v >= model.AC1015 {
			extra = int(r.RawChar())
		}
	}
	readObjectHandles(v, r, oh)
	if !r.Good() {
		return nil, fmt.Errorf("control %#x: %w", oh.Type, r.Err())
	}
	if !enough(r, n, 8) {
		return nil, fmt.Errorf("control %#x claims %d entries: %w", oh.Type, n, binary.ErrShortRead)
	}
	for i := 0; i < n; i++ {
		c.Entries = append(c.Entries, r.Handle().Resolve(oh.Handle))
	}
	if !r.Good() {
		return nil, fmt.Errorf("control %#x entries: %w", oh.Type, r.Err())
	}
	var more []model.Handle
	for i := 0; i < extra; i++ {
		more = append(more, r.Handle().Resolve(oh.Handle))
	}
	if r.Good() {
		c.Extra = more
	}
	return c, nil
}

// parseTablePrologue reads the object prologue and the name part shared
// by all table entries.
func parseTablePrologue(v model.Version, r *binary.Reader) (*objectHeader, model.TableEntry, error) {
	oh, err := parseObjectPrologue(v, r)
	if err != nil {
		return nil, model.TableEntry{}, err
	}
	te := model.TableEntry{
		Handle:      oh.Handle,
		NumReactors: oh.NumReactors,
		ExtData:     oh.ExtData,
	}
	te.Name = readText(v, r)
	if r.Bit() {
		te.Flags |= model.FlagReferenced
	}
	te.XRefIndex = int(r.BitShort()) - 1
	if r.Bit() {
		te.Flags |= model.FlagXRefDependent
	}
	if err := r.Err(); err != nil {
		return nil, te, fmt.Errorf("table entry prologue: %w", err)
	}
	return oh, te, nil
}

// readEntryHandles reads control, reactors, dictionary and xref handles.
func readEntryHandles(v model.Version, r *binary.Reader, oh *objectHeader, te *model.TableEntry) {
	te.Owner, te.XDict = readObjectHandles(v, r, oh)
	r.Handle() // xref block
}

func parseLineType(v model.Version, r *binary.Reader) (*model.LineType, error) {
	oh, te, err := parseTablePrologue(v, r)
	if err != nil {
		return nil, err
	}
	lt := &model.LineType{TableEntry: te}
	lt.Description = readText(v, r)
	lt.Length = r.BitDouble()
	lt.Alignment = int(r.RawChar())
	n := int(r.RawChar())
	hasText := false
	for i := 0; i < n && r.Good(); i++ {
		d := model.Dash{}
		d.Length = r.BitDouble()
		d.ShapeNumber = int(r.BitShort())
		d.OffsetX = r.RawDouble()
		d.OffsetY = r.RawDouble()
		d.Scale = r.BitDouble()
		d.Rotation = r.BitDouble()
		d.ShapeFlag = int(r.BitShort())
		if d.ShapeFlag&2 != 0 {
			hasText = true
		}
		lt.Dashes = append(lt.Dashes, d)
	}
	switch {
	case v < model.AC1021:
		r.Skip(256)
	case hasText:
		r.Skip(512)
	}
	readEntryHandles(v, r, oh, &lt.TableEntry)
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("line type %q: %w", lt.Name, err)
	}
	return lt, nil
}

func parseLayer(v model.Version, r *binary.Reader) (*model.Layer, error) {
	oh, te, err := parseTablePrologue(v, r)
	if err != nil {
		return nil, err
	}
	l := &model.Layer{TableEntry: te, Plot: true, LineWeight: model.WidthDefault}
	on := true
	if v < model.AC1015 {
		if r.Bit() {
			l.Flags |= model.FlagFrozen
		}
		on = r.Bit()
		if r.Bit() {
			l.Flags |= model.FlagFrozenNew
		}
		if r.Bit() {
			l.Flags |= model.FlagLocked
		}
	} else {
		f := r.BitShort()
		if f&1 != 0 {
			l.Flags |= model.FlagFrozen
		}
		on = f&2 != 0
		if f&4 != 0 {
			l.Flags |= model.FlagFrozenNew
		}
		if f&8 != 0 {
			l.Flags |= model.FlagLocked
		}
		l.Plot = f&16 != 0
		l.LineWeight = model.LineWidthFromDWG(int(f&0x3E0) >> 5)
	}
	color := readColor(v, r)
	if color < 0 {
		color = -color
	}
	if !on {
		color = -color
	}
	l.Color = color

	readEntryHandles(v, r, oh, &l.TableEntry)
	if v >= model.AC1015 {
		l.PlotStyle = r.Handle().Resolve(oh.Handle)
	}
	if v >= model.AC1021 {
		r.Handle() // material
	}
	l.LineTypeHandle = r.Handle().Resolve(oh.Handle)
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("layer %q: %w", l.Name, err)
	}
	return l, nil
}

func parseTextStyle(v model.Version, r *binary.Reader) (*model.TextStyle, error) {
	oh, te, err := parseTablePrologue(v, r)
	if err != nil {
		return nil, err
	}
	s := &model.TextStyle{TableEntry: te}
	if r.Bit() {
		s.Flags |= 4 // vertical
	}
	if r.Bit() {
		s.Flags |= 1 // shape file
	}
	s.Height = r.BitDouble()
	s.Width = r.BitDouble()
	s.Oblique = r.BitDouble() * 180 / math.Pi
	s.GenFlag = int(r.RawChar())
	s.LastHeight = r.BitDouble()
	s.Font = readText(v, r)
	s.BigFont = readText(v, r)
	readEntryHandles(v, r, oh, &s.TableEntry)
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("text style %q: %w", s.Name, err)
	}
	return s, nil
}

// parseDimStyle decodes the name and the leading scale settings. The
// remaining variables are not decoded, so the handle stream is only
// read where it can be located.
func parseDimStyle(v model.Version, r *binary.Reader) (*model.DimStyle, error) {
	oh, te, err := parseTablePrologue(v, r)
	if err != nil {
		return nil, err
	}
	ds := &model.DimStyle{TableEntry: te}
	switch {
	case v < model.AC1015:
		for i := 0; i < 11; i++ {
			r.Bit() // DIMTOL .. DIMSOXD
		}
		r.RawChar() // DIMALTD
		r.RawChar() // DIMZIN
		r.Bit()     // DIMSD1
		r.Bit()     // DIMSD2
		r.RawChar() // DIMTOLJ
		r.RawChar() // DIMJUST
		r.RawChar() // DIMFIT
		r.Bit()     // DIMUPT
		r.RawChar() // DIMTZIN
		r.RawChar() // DIMALTZ
		r.RawChar() // DIMALTTZ
		r.RawChar() // DIMTAD
		for i := 0; i < 6; i++ {
			r.BitShort() // DIMUNIT .. DIMALTTD
		}
		ds.Scale = r.BitDouble()
		ds.ArrowSize = r.BitDouble()
		for i := 0; i < 7; i++ {
			r.BitDouble() // DIMEXO .. DIMTM
		}
		ds.TextHeight = r.BitDouble()
		for i := 0; i < 6; i++ {
			r.BitDouble() // DIMCEN .. DIMTFAC
		}
		ds.Gap = r.BitDouble()
	case v <= model.AC1018:
		readText(v, r) // DIMPOST
		readText(v, r) // DIMAPOST
		ds.Scale = r.BitDouble()
		ds.ArrowSize = r.BitDouble()
		for i := 0; i < 7; i++ {
			r.BitDouble() // DIMEXO .. DIMTM
		}
		for i := 0; i < 6; i++ {
			r.Bit() // DIMTOL .. DIMSE2
		}
		r.BitShort() // DIMTAD
		r.BitShort() // DIMZIN
		r.BitShort() // DIMAZIN
		ds.TextHeight = r.BitDouble()
		for i := 0; i < 6; i++ {
			r.BitDouble() // DIMCEN .. DIMTFAC
		}
		ds.Gap = r.BitDouble()
		readEntryHandles(v, r, oh, &ds.TableEntry)
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("dimension style %q: %w", ds.Name, err)
	}
	return ds, nil
}

// parseVport decodes the view geometry of a viewport record.
func parseVport(v model.Version, r *binary.Reader) (*model.Vport, error) {
	oh, te, err := parseTablePrologue(v, r)
	if err != nil {
		return nil, err
	}
	vp := &model.Vport{TableEntry: te}
	vp.Height = r.BitDouble()
	width := r.BitDouble()
	if vp.Height != 0 {
		vp.Ratio = width / vp.Height
	}
	vp.Center = r.Point2RD()
	vp.Target = r.Point3BD()
	vp.ViewDir = r.Point3BD()
	r.BitDouble() // twist
	vp.LensLength = r.BitDouble()
	r.BitDouble() // front clip
	r.BitDouble() // back clip
	for i := 0; i < 4; i++ {
		r.Bit() // view mode
	}
	if v >= model.AC1015 {
		r.RawChar() // render mode
	}
	if v >= model.AC1021 {
		// lighting fields precede the corners from R2007 on
		vp.LowerLeft, vp.UpperRight = model.Coord{}, model.Coord{X: 1, Y: 1}
	} else {
		vp.LowerLeft = r.Point2RD()
		vp.UpperRight = r.Point2RD()
	}
	if v >= model.AC1015 {
		readEntryHandles(v, r, oh, &vp.TableEntry)
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("viewport %q: %w", vp.Name, err)
	}
	return vp, nil
}

func parseAppID(v model.Version, r *binary.Reader) (*model.AppID, error) {
	oh, te, err := parseTablePrologue(v, r)
	if err != nil {
		return nil, err
	}
	a := &model.AppID{TableEntry: te}
	r.RawChar()
	readEntryHandles(v, r, oh, &a.TableEntry)
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("application id %q: %w", a.Name, err)
	}
	return a, nil
}

// block record flag bits (DXF group 70)
const (
	blockAnonymous  = 1
	blockHasAttribs = 2
	blockXRef       = 4
	blockOverlaid   = 8
)

func parseBlockRecord(v model.Version, r *binary.Reader) (*model.BlockRecord, error) {
	oh, te, err := parseTablePrologue(v, r)
	if err != nil {
		return nil, err
	}
	b := &model.BlockRecord{TableEntry: te, Explodable: true}
	if r.Bit() {
		b.Flags |= blockAnonymous
	}
	if r.Bit() {
		b.Flags |= blockHasAttribs
	}
	xref := r.Bit()
	if xref {
		b.Flags |= blockXRef
	}
	overlaid := r.Bit()
	if overlaid {
		b.Flags |= blockOverlaid
	}
	if v >= model.AC1015 {
		r.Bit() // loaded xref
	}
	owned := 0
	if v >= model.AC1018 && !xref && !overlaid {
		owned = int(r.BitLong())
	}
	b.BasePoint = r.Point3BD()
	b.XRefPath = readText(v, r)
	inserts := 0
	if v >= model.AC1015 {
		for r.Good() && r.RawChar() != 0 {
			inserts++
		}
		b.Description = readText(v, r)
		n := int(r.BitLong())
		if n < 0 || n > r.Remaining() {
			return nil, fmt.Errorf("block %q preview of %d bytes: %w", b.Name, n, binary.ErrShortRead)
		}
		r.Skip(n)
	}
	if v >= model.AC1021 {
		b.Units = int(r.BitShort())
		b.Explodable = r.Bit()
		b.Scaling = int(r.RawChar())
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("block %q: %w", b.Name, err)
	}

	h := oh.Handle
	readEntryHandles(v, r, oh, &b.TableEntry)
	b.Block = r.Handle().Resolve(h)
	if v < model.AC1018 {
		if !xref && !overlaid {
			b.FirstEntity = r.Handle().Resolve(h)
			b.LastEntity = r.Handle().Resolve(h)
		}
	} else {
		if !enough(r, owned, 8) {
			return nil, fmt.Errorf("block %q claims %d entities: %w", b.Name, owned, binary.ErrShortRead)
		}
		for i := 0; i < owned; i++ {
			b.Entities = append(b.Entities, r.Handle().Resolve(h))
		}
	}
	b.EndBlock = r.Handle().Resolve(h)
	if v >= model.AC1015 {
		for i := 0; i < inserts && r.Good(); i++ {
			b.Inserts = append(b.Inserts, r.Handle().Resolve(h))
		}
		b.Layout = r.Handle().Resolve(h)
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("block %q handles: %w", b.Name, err)
	}
	return b, nil
}
