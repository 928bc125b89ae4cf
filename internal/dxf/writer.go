package dxf

import (
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/dyuri/dwgconv/internal/model"
)

// Options configure an Encoder.
type Options struct {
	// Version is the output release. R10 is written as R12 and R13 as
	// R14; the zero value selects R2000.
	Version model.Version
	Binary  bool
	// CodePage encodes strings before R2007. Empty uses the drawing's
	// $DWGCODEPAGE, then ANSI_1252.
	CodePage string
	// Seed derives $FINGERPRINTGUID and $VERSIONGUID; zero means random.
	Seed   uint64
	Logger logrus.FieldLogger
}

// Encoder writes a model.Drawing as DXF.
type Encoder struct {
	w    io.Writer
	opts Options
	log  logrus.FieldLogger
	out  *out
	plan *plan

	skipped int
}

// NewEncoder returns an encoder writing to w.
func NewEncoder(w io.Writer, opts Options) *Encoder {
	switch opts.Version {
	case model.VersionUnknown:
		opts.Version = model.AC1015
	case model.AC1006:
		opts.Version = model.AC1009
	case model.AC1012:
		opts.Version = model.AC1014
	}
	log := opts.Logger
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Encoder{w: w, opts: opts, log: log}
}

// Skipped returns how many entities the last Encode left out because the
// output version has no representation for them.
func (e *Encoder) Skipped() int { return e.skipped }

// Encode writes the whole drawing.
func (e *Encoder) Encode(d *model.Drawing) error {
	if d == nil {
		d = model.NewDrawing()
	}
	if e.opts.CodePage == "" && d.Header != nil {
		e.opts.CodePage, _ = d.Header.String("$DWGCODEPAGE")
	}
	if e.opts.CodePage == "" {
		e.opts.CodePage = "ANSI_1252"
	}
	var tw TagWriter
	if e.opts.Binary {
		tw = NewBinaryWriter(e.w, e.opts.Version, e.opts.CodePage)
	} else {
		tw = NewASCIIWriter(e.w, e.opts.Version, e.opts.CodePage)
	}
	e.out = &out{tw: tw}
	e.skipped = 0
	e.plan = newPlan(d, e.opts.Version)

	e.writeHeader(d.Header, e.plan.next)
	if e.opts.Version >= model.AC1015 {
		e.out.str(0, "SECTION")
		e.out.str(2, "CLASSES")
		e.out.str(0, "ENDSEC")
	}
	e.writeTables()
	e.writeBlocks()
	e.writeEntities(d.Entities)
	if e.handles() {
		e.writeObjects()
	}
	e.out.str(0, "EOF")
	if e.out.err != nil {
		return fmt.Errorf("write dxf: %w", e.out.err)
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("flush dxf: %w", err)
	}
	e.log.WithFields(logrus.Fields{
		"version": e.opts.Version,
		"binary":  e.opts.Binary,
		"skipped": e.skipped,
	}).Debug("dxf written")
	return nil
}

// handles reports whether the output version carries object handles and
// subclass markers.
func (e *Encoder) handles() bool { return e.opts.Version > model.AC1009 }

// out remembers the first write error so that emission code stays flat.
type out struct {
	tw  TagWriter
	err error
}

func (o *out) str(code int, s string) {
	if o.err == nil {
		o.err = o.tw.WriteString(code, s)
	}
}

func (o *out) text(code int, s string) {
	if o.err == nil {
		o.err = o.tw.WriteUTF8String(code, s)
	}
}

func (o *out) integer(code, v int) {
	if o.err != nil {
		return
	}
	switch binaryTypeOf(code) {
	case binInt32:
		o.err = o.tw.WriteInt32(code, v)
	case binInt64:
		o.err = o.tw.WriteInt64(code, int64(v))
	case binBool:
		o.err = o.tw.WriteBool(code, v != 0)
	default:
		o.err = o.tw.WriteInt16(code, v)
	}
}

func (o *out) float(code int, v float64) {
	if o.err == nil {
		o.err = o.tw.WriteDouble(code, v)
	}
}

func (o *out) point(code int, c model.Coord) {
	o.float(code, c.X)
	o.float(code+10, c.Y)
	o.float(code+20, c.Z)
}

func (o *out) point2(code int, c model.Coord) {
	o.float(code, c.X)
	o.float(code+10, c.Y)
}

func (o *out) handle(code int, h model.Handle) {
	o.str(code, hexHandle(h))
}

// blockRecord is a block as it is laid out in the output.
type blockRecord struct {
	def    *model.BlockDef
	name   string
	record model.Handle
	begin  model.Handle
	end    model.Handle
	paper  bool
}

// plan fixes every handle before anything is written, so that $HANDSEED
// in the header is known up front. The drawing is not modified.
type plan struct {
	version model.Version
	taken   map[model.Handle]bool
	handles map[any]model.Handle
	next    model.Handle

	controls map[string]model.Handle

	ltypes    []*model.LineType
	layers    []*model.Layer
	styles    []*model.TextStyle
	dimstyles []*model.DimStyle
	vports    []*model.Vport
	appids    []*model.AppID
	blocks    []*blockRecord

	modelSpace, paperSpace model.Handle
	seqEnds                map[*model.Polyline]model.Handle
	rootDict, groupDict    model.Handle
}

func newPlan(d *model.Drawing, v model.Version) *plan {
	p := &plan{
		version:  v,
		taken:    make(map[model.Handle]bool),
		handles:  make(map[any]model.Handle),
		controls: make(map[string]model.Handle),
		seqEnds:  make(map[*model.Polyline]model.Handle),
		next:     1,
	}
	p.collect(d)

	p.ltypes = withDefaultLineTypes(d.LineTypes, v)
	p.layers = d.Layers
	if findName(len(p.layers), func(i int) string { return p.layers[i].Name }, "0") < 0 {
		p.layers = append([]*model.Layer{{
			TableEntry: model.TableEntry{Name: "0"},
			Color:      7, LineType: "CONTINUOUS", LineWeight: model.WidthDefault, Plot: true,
		}}, p.layers...)
	}
	p.styles = d.TextStyles
	if findName(len(p.styles), func(i int) string { return p.styles[i].Name }, "STANDARD") < 0 {
		p.styles = append([]*model.TextStyle{{
			TableEntry: model.TableEntry{Name: "STANDARD"},
			Width:      1, LastHeight: 2.5, Font: "txt",
		}}, p.styles...)
	}
	p.dimstyles = d.DimStyles
	if findName(len(p.dimstyles), func(i int) string { return p.dimstyles[i].Name }, "STANDARD") < 0 {
		p.dimstyles = append([]*model.DimStyle{{
			TableEntry: model.TableEntry{Name: "STANDARD"},
			Scale:      1, ArrowSize: 2.5, TextHeight: 2.5, Gap: 0.625,
		}}, p.dimstyles...)
	}
	p.vports = d.Vports
	if len(p.vports) == 0 {
		p.vports = []*model.Vport{{
			TableEntry: model.TableEntry{Name: "*ACTIVE"},
			UpperRight: model.Coord{X: 1, Y: 1},
			ViewDir:    model.ZAxis,
			Height:     297, Ratio: 1.4142, LensLength: 50,
			Center: model.Coord{X: 210, Y: 148.5},
		}}
	}
	p.appids = d.AppIDs
	if findName(len(p.appids), func(i int) string { return p.appids[i].Name }, "ACAD") < 0 {
		p.appids = append([]*model.AppID{{TableEntry: model.TableEntry{Name: "ACAD"}}}, p.appids...)
	}

	for _, name := range []string{"VPORT", "LTYPE", "LAYER", "STYLE", "VIEW", "UCS", "APPID", "DIMSTYLE", "BLOCK_RECORD"} {
		p.controls[name] = p.fresh()
	}
	for _, lt := range p.ltypes {
		p.assign(lt, lt.Handle)
	}
	for _, l := range p.layers {
		p.assign(l, l.Handle)
	}
	for _, s := range p.styles {
		p.assign(s, s.Handle)
	}
	for _, s := range p.dimstyles {
		p.assign(s, s.Handle)
	}
	for _, vp := range p.vports {
		p.assign(vp, vp.Handle)
	}
	for _, a := range p.appids {
		p.assign(a, a.Handle)
	}
	p.planBlocks(d)
	p.planEntities(d.Entities)
	p.rootDict = p.fresh()
	p.groupDict = p.fresh()
	return p
}

// collect moves the handle counter past every handle the drawing uses,
// so that fresh handles never collide with kept ones.
func (p *plan) collect(d *model.Drawing) {
	mark := func(h model.Handle) {
		if h >= p.next {
			p.next = h + 1
		}
	}
	for _, lt := range d.LineTypes {
		mark(lt.Handle)
	}
	for _, l := range d.Layers {
		mark(l.Handle)
	}
	for _, s := range d.TextStyles {
		mark(s.Handle)
	}
	for _, s := range d.DimStyles {
		mark(s.Handle)
	}
	for _, vp := range d.Vports {
		mark(vp.Handle)
	}
	for _, a := range d.AppIDs {
		mark(a.Handle)
	}
	for _, b := range d.Blocks {
		mark(b.Block.Handle)
		mark(b.Block.Record)
	}
	for _, e := range d.AllEntities() {
		mark(e.Common().Handle)
		if pl, ok := e.(*model.Polyline); ok {
			for _, vx := range pl.Vertices {
				mark(vx.Handle)
			}
		}
	}
}

func (p *plan) fresh() model.Handle {
	for p.taken[p.next] {
		p.next++
	}
	h := p.next
	p.taken[h] = true
	p.next++
	return h
}

// assign gives obj the handle h unless h is zero or already used.
func (p *plan) assign(obj any, h model.Handle) model.Handle {
	if h == 0 || p.taken[h] {
		h = p.fresh()
	} else {
		p.taken[h] = true
	}
	p.handles[obj] = h
	return h
}

func (p *plan) handle(obj any) model.Handle { return p.handles[obj] }

func (p *plan) planBlocks(d *model.Drawing) {
	var ms, ps *blockRecord
	var rest []*blockRecord
	for _, def := range d.Blocks {
		b := &blockRecord{def: def, name: def.Block.Name}
		switch {
		case strings.EqualFold(b.name, "*Model_Space"):
			if ms == nil {
				ms = b
			}
			continue
		case strings.EqualFold(b.name, "*Paper_Space"):
			if ps == nil {
				b.paper = true
				ps = b
			}
			continue
		}
		rest = append(rest, b)
	}
	if p.version >= model.AC1015 {
		if ms == nil {
			ms = &blockRecord{def: &model.BlockDef{Block: &model.Block{EntityCommon: model.NewEntityCommon()}}}
		}
		if ps == nil {
			ps = &blockRecord{def: &model.BlockDef{Block: &model.Block{EntityCommon: model.NewEntityCommon()}}, paper: true}
		}
		ms.name, ps.name = "*Model_Space", "*Paper_Space"
		p.blocks = append(p.blocks, ms, ps)
	}
	p.blocks = append(p.blocks, rest...)
	for _, b := range p.blocks {
		b.record = p.assign(b, b.def.Block.Record)
		b.begin = p.assign(b.def.Block, b.def.Block.Handle)
		b.end = p.fresh()
		p.planEntities(b.def.Entities)
	}
	if p.version >= model.AC1015 {
		p.modelSpace, p.paperSpace = p.blocks[0].record, p.blocks[1].record
	}
}

func (p *plan) planEntities(list []model.Entity) {
	for _, e := range list {
		p.assign(e, e.Common().Handle)
		if pl, ok := e.(*model.Polyline); ok {
			for _, vx := range pl.Vertices {
				p.assign(vx, vx.Handle)
			}
			p.seqEnds[pl] = p.fresh()
		}
	}
}

func withDefaultLineTypes(list []*model.LineType, v model.Version) []*model.LineType {
	names := []string{"CONTINUOUS"}
	if v > model.AC1009 {
		names = []string{"ByBlock", "ByLayer", "Continuous"}
	}
	var add []*model.LineType
	for _, name := range names {
		if findName(len(list), func(i int) string { return list[i].Name }, name) >= 0 {
			continue
		}
		lt := &model.LineType{TableEntry: model.TableEntry{Name: name}, Alignment: 'A'}
		if strings.EqualFold(name, "CONTINUOUS") {
			lt.Description = "Solid line"
		}
		add = append(add, lt)
	}
	return append(add, list...)
}

func findName(n int, name func(int) string, want string) int {
	for i := 0; i < n; i++ {
		if strings.EqualFold(name(i), want) {
			return i
		}
	}
	return -1
}

// table writes the TABLE header, the entries and ENDTAB.
func (e *Encoder) table(name string, count int, entries func()) {
	o := e.out
	o.str(0, "TABLE")
	o.str(2, name)
	if e.handles() {
		o.handle(5, e.plan.controls[name])
		if e.opts.Version >= model.AC1015 {
			o.str(330, "0")
		}
		o.str(100, "AcDbSymbolTable")
	}
	o.integer(70, count)
	if name == "DIMSTYLE" && e.handles() {
		o.str(100, "AcDbDimStyleTable")
		if e.opts.Version >= model.AC1015 {
			o.integer(71, 0)
		}
	}
	entries()
	o.str(0, "ENDTAB")
}

// entry writes the prologue shared by all table records.
func (e *Encoder) entry(kind, subclass string, obj any, te *model.TableEntry, table string) {
	o := e.out
	o.str(0, kind)
	if e.handles() {
		code := 5
		if kind == "DIMSTYLE" {
			code = 105
		}
		o.handle(code, e.plan.handle(obj))
		if e.opts.Version >= model.AC1015 {
			o.handle(330, e.plan.controls[table])
		}
		o.str(100, "AcDbSymbolTableRecord")
		o.str(100, subclass)
	}
	o.text(2, SanitizeName(te.Name))
}

func (e *Encoder) writeTables() {
	o := e.out
	p := e.plan
	o.str(0, "SECTION")
	o.str(2, "TABLES")

	e.table("VPORT", len(p.vports), func() {
		for _, vp := range p.vports {
			e.entry("VPORT", "AcDbViewportTableRecord", vp, &vp.TableEntry, "VPORT")
			o.integer(70, vp.Flags)
			o.point2(10, vp.LowerLeft)
			o.point2(11, vp.UpperRight)
			o.point2(12, vp.Center)
			o.point(16, vp.ViewDir)
			o.point(17, vp.Target)
			o.float(40, vp.Height)
			o.float(41, vp.Ratio)
			o.float(42, vp.LensLength)
		}
	})
	e.table("LTYPE", len(p.ltypes), func() {
		for _, lt := range p.ltypes {
			e.entry("LTYPE", "AcDbLinetypeTableRecord", lt, &lt.TableEntry, "LTYPE")
			o.integer(70, lt.Flags)
			o.text(3, lt.Description)
			o.integer(72, 'A')
			o.integer(73, len(lt.Dashes))
			o.float(40, lt.Length)
			for _, d := range lt.Dashes {
				o.float(49, d.Length)
				if !e.handles() {
					continue
				}
				o.integer(74, d.ShapeFlag)
				if d.ShapeFlag != 0 {
					o.integer(75, d.ShapeNumber)
					o.float(46, d.Scale)
					o.float(50, d.Rotation)
					o.float(44, d.OffsetX)
					o.float(45, d.OffsetY)
				}
			}
		}
	})
	e.table("LAYER", len(p.layers), func() {
		for _, l := range p.layers {
			e.entry("LAYER", "AcDbLayerTableRecord", l, &l.TableEntry, "LAYER")
			o.integer(70, l.Flags)
			o.integer(62, l.Color)
			lt := l.LineType
			if lt == "" {
				lt = "CONTINUOUS"
			}
			o.text(6, SanitizeName(lt))
			if e.opts.Version >= model.AC1015 {
				if !l.Plot {
					o.integer(290, 0)
				}
				o.integer(370, l.LineWeight.DXF())
			}
		}
	})
	e.table("STYLE", len(p.styles), func() {
		for _, s := range p.styles {
			e.entry("STYLE", "AcDbTextStyleTableRecord", s, &s.TableEntry, "STYLE")
			o.integer(70, s.Flags)
			o.float(40, s.Height)
			o.float(41, s.Width)
			o.float(50, s.Oblique)
			o.integer(71, s.GenFlag)
			o.float(42, s.LastHeight)
			o.text(3, s.Font)
			o.text(4, s.BigFont)
		}
	})
	e.table("VIEW", 0, func() {})
	e.table("UCS", 0, func() {})
	e.table("APPID", len(p.appids), func() {
		for _, a := range p.appids {
			e.entry("APPID", "AcDbRegAppTableRecord", a, &a.TableEntry, "APPID")
			o.integer(70, a.Flags)
		}
	})
	e.table("DIMSTYLE", len(p.dimstyles), func() {
		for _, ds := range p.dimstyles {
			e.entry("DIMSTYLE", "AcDbDimStyleTableRecord", ds, &ds.TableEntry, "DIMSTYLE")
			o.integer(70, ds.Flags)
			o.float(40, ds.Scale)
			o.float(41, ds.ArrowSize)
			o.float(140, ds.TextHeight)
			o.float(147, ds.Gap)
		}
	})
	if e.opts.Version >= model.AC1015 {
		e.table("BLOCK_RECORD", len(p.blocks), func() {
			for _, b := range p.blocks {
				te := model.TableEntry{Name: b.name}
				e.entry("BLOCK_RECORD", "AcDbBlockTableRecord", b, &te, "BLOCK_RECORD")
			}
		})
	}
	o.str(0, "ENDSEC")
}

func (e *Encoder) writeBlocks() {
	o := e.out
	o.str(0, "SECTION")
	o.str(2, "BLOCKS")
	for _, b := range e.plan.blocks {
		blk := b.def.Block
		o.str(0, "BLOCK")
		if e.handles() {
			o.handle(5, b.begin)
			if e.opts.Version >= model.AC1015 {
				o.handle(330, b.record)
			}
			o.str(100, "AcDbEntity")
		}
		if b.paper {
			o.integer(67, 1)
		}
		o.text(8, layerName(blk.Layer))
		if e.handles() {
			o.str(100, "AcDbBlockBegin")
		}
		name := SanitizeName(b.name)
		o.text(2, name)
		o.integer(70, blk.Flags)
		o.point(10, blk.BasePoint)
		o.text(3, name)
		o.text(1, blk.XRefPath)
		if blk.Description != "" && e.handles() {
			o.text(4, blk.Description)
		}
		for _, ent := range b.def.Entities {
			e.writeEntity(ent, b.record)
		}
		o.str(0, "ENDBLK")
		if e.handles() {
			o.handle(5, b.end)
			if e.opts.Version >= model.AC1015 {
				o.handle(330, b.record)
			}
			o.str(100, "AcDbEntity")
		}
		if b.paper {
			o.integer(67, 1)
		}
		o.text(8, layerName(blk.Layer))
		if e.handles() {
			o.str(100, "AcDbBlockEnd")
		}
	}
	o.str(0, "ENDSEC")
}

func (e *Encoder) writeEntities(list []model.Entity) {
	o := e.out
	o.str(0, "SECTION")
	o.str(2, "ENTITIES")
	for _, ent := range list {
		owner := e.plan.modelSpace
		if ent.Common().Space == model.PaperSpace {
			owner = e.plan.paperSpace
		}
		e.writeEntity(ent, owner)
	}
	o.str(0, "ENDSEC")
}

// writeObjects emits the root dictionary with an empty group dictionary.
func (e *Encoder) writeObjects() {
	o := e.out
	p := e.plan
	o.str(0, "SECTION")
	o.str(2, "OBJECTS")
	o.str(0, "DICTIONARY")
	o.handle(5, p.rootDict)
	o.str(330, "0")
	o.str(100, "AcDbDictionary")
	o.integer(281, 1)
	o.text(3, "ACAD_GROUP")
	o.handle(350, p.groupDict)
	o.str(0, "DICTIONARY")
	o.handle(5, p.groupDict)
	o.handle(330, p.rootDict)
	o.str(100, "AcDbDictionary")
	o.integer(281, 1)
	o.str(0, "ENDSEC")
}

func layerName(name string) string {
	if name == "" {
		return "0"
	}
	return SanitizeName(name)
}
