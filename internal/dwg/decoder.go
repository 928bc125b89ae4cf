// Package dwg decodes DWG drawings into the version independent model.
//
// A Decoder reads the whole file into memory, locates its sections,
// builds the handle directory and then emits tables, blocks and entities
// to a model.Sink in that order. Failures of the classes, object map,
// tables and entities stages are soft: they are recorded in the Result
// and decoding goes on with whatever could be read.
package dwg

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/sirupsen/logrus"

	"github.com/dyuri/dwgconv/internal/binary"
	"github.com/dyuri/dwgconv/internal/codec"
	"github.com/dyuri/dwgconv/internal/model"
)

// State is the stage a decode has reached.
type State int

const (
	StateStart State = iota
	StateFileHeaderRead
	StateClassesRead
	StateObjectOffsetsRead
	StateTablesRead
	StateBlocksRead
	StateEntitiesRead
	StateDone
	StateFailed
)

var stateNames = [...]string{
	StateStart:             "start",
	StateFileHeaderRead:    "file header read",
	StateClassesRead:       "classes read",
	StateObjectOffsetsRead: "object offsets read",
	StateTablesRead:        "tables read",
	StateBlocksRead:        "blocks read",
	StateEntitiesRead:      "entities read",
	StateDone:              "done",
	StateFailed:            "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

const defaultMaxObjects = 1 << 22

type options struct {
	log        logrus.FieldLogger
	maxObjects int
	pageCache  int
}

// Option configures a Decoder.
type Option func(*options)

// WithLogger sets the logger for warnings and debug output. The default
// discards everything.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *options) { o.log = l }
}

// WithMaxObjects bounds the number of directory entries. Zero or less
// removes the bound.
func WithMaxObjects(n int) Option {
	return func(o *options) { o.maxObjects = n }
}

// WithPageCacheSize sets how many decompressed R2004 pages are cached.
func WithPageCacheSize(n int) Option {
	return func(o *options) { o.pageCache = n }
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// Result summarizes a decode.
type Result struct {
	Version     model.Version
	Maintenance int
	CodePage    string
	State       State
	Reason      Reason  // first soft failure, ReasonNone if there was none
	Warnings    []error // every soft failure
	Checksum    uint64  // xxhash of the input bytes
	Sections    []Section

	Classes  int
	Objects  int
	Tables   int // table entries emitted
	Blocks   int
	Entities int // entities emitted, block content included
	Skipped  int // objects of unsupported types
	Dropped  int // records that failed to decode
}

// Decoder decodes one DWG file. Every call to Decode starts from scratch,
// so a Decoder may be reused but not shared between goroutines.
type Decoder struct {
	r    io.ReaderAt
	size int64
	opts options

	state   State
	res     *Result
	version model.Version
	data    []byte
	objects []byte
	text    *codec.Codec
	header  *fileHeader
	r18     *r18File

	classes  map[int]*model.Class
	dir      *Directory
	controls map[int]model.Handle
	consumed map[model.Handle]bool

	ltypes    map[model.Handle]*model.LineType
	layers    map[model.Handle]*model.Layer
	styles    map[model.Handle]*model.TextStyle
	records   map[model.Handle]*model.BlockRecord
	recordSeq []*model.BlockRecord
}

// NewDecoder returns a decoder for the size bytes readable from r.
func NewDecoder(r io.ReaderAt, size int64, opts ...Option) *Decoder {
	o := options{maxObjects: defaultMaxObjects}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = discardLogger()
	}
	return &Decoder{r: r, size: size, opts: o}
}

// State returns the stage the last decode reached.
func (d *Decoder) State() State { return d.state }

func (d *Decoder) reset() {
	d.state = StateStart
	d.res = &Result{}
	d.version = model.VersionUnknown
	d.data, d.objects = nil, nil
	d.text = nil
	d.header, d.r18 = nil, nil
	d.classes = make(map[int]*model.Class)
	d.dir = NewDirectory()
	d.controls = make(map[int]model.Handle)
	d.consumed = make(map[model.Handle]bool)
	d.ltypes = make(map[model.Handle]*model.LineType)
	d.layers = make(map[model.Handle]*model.Layer)
	d.styles = make(map[model.Handle]*model.TextStyle)
	d.records = make(map[model.Handle]*model.BlockRecord)
	d.recordSeq = nil
}

// Decode runs all stages and emits the drawing to sink. A fatal error
// (open, version, file header) is returned together with the partial
// Result; soft failures are only reported through the Result.
func (d *Decoder) Decode(sink model.Sink) (*Result, error) {
	d.reset()
	log := d.opts.log
	if err := d.readFileHeader(); err != nil {
		d.state = StateFailed
		d.res.State = d.state
		var de *Error
		if errors.As(err, &de) {
			d.res.Reason = de.Reason
		}
		log.WithError(err).Debug("decode failed")
		return d.res, err
	}
	d.state = StateFileHeaderRead
	sink.AddHeader(d.buildHeader())

	d.readClassesStage()
	d.state = StateClassesRead

	d.readObjectMapStage()
	d.state = StateObjectOffsetsRead

	d.readTablesStage(sink)
	d.state = StateTablesRead

	d.readBlocksStage(sink)
	d.state = StateBlocksRead

	d.readEntitiesStage(sink)
	d.state = StateEntitiesRead

	d.state = StateDone
	d.res.State = d.state
	d.res.Objects = d.dir.Len()
	log.WithFields(logrus.Fields{
		"version":  d.version,
		"objects":  d.res.Objects,
		"entities": d.res.Entities,
		"dropped":  d.res.Dropped,
	}).Debug("decode done")
	return d.res, nil
}

// soft records a non-fatal stage failure.
func (d *Decoder) soft(err *Error) {
	d.opts.log.WithError(err).Warn("decode stage failed")
	d.res.Warnings = append(d.res.Warnings, err)
	if d.res.Reason == ReasonNone {
		d.res.Reason = err.Reason
	}
}

func (d *Decoder) readFileHeader() error {
	r, err := binary.NewSectionReader(d.r, 0, d.size, d.size)
	if err != nil {
		return newError(ErrBadOpen, err, "")
	}
	d.data = r.Buffer()
	d.res.Checksum = xxhash.Sum64(d.data)

	if len(d.data) < 6 {
		return newError(ErrBadVersion, nil, "file of %d bytes", len(d.data))
	}
	d.version = model.ParseVersion(string(d.data[:6]))
	d.res.Version = d.version
	if d.version == model.VersionUnknown {
		return newError(ErrBadVersion, nil, "signature %q", d.data[:6])
	}

	log := d.opts.log.WithField("version", d.version)
	switch {
	case d.version <= model.AC1009:
		return newError(ErrPartialSupport, nil, "%s files are not decoded", d.version.Release())
	case d.version <= model.AC1015:
		d.header, err = readFileHeaderR15(r, log)
		d.objects = d.data
	case d.version == model.AC1018:
		d.header, d.r18, err = readFileHeaderR18(d.data, d.opts.pageCache, log)
	default:
		d.header, err = readFileHeaderR21(d.version, r, log)
	}
	if d.header != nil {
		d.res.Maintenance = d.header.maintenance
		d.res.CodePage = codec.CodePageFromDWG(d.header.codePage)
		d.res.Sections = d.header.list()
	}
	if err != nil {
		return err
	}
	d.text = codec.New(d.res.CodePage)

	if d.r18 != nil {
		s, ok := d.header.sections[SectionObjects]
		if !ok {
			return newError(ErrBadFileHeader, nil, "no %s section", SectionObjects)
		}
		if d.objects, err = d.r18.section(s); err != nil {
			return newError(ErrBadFileHeader, err, "")
		}
	}
	return nil
}

// buildHeader returns the variables known from the file header.
func (d *Decoder) buildHeader() *model.Header {
	h := model.NewHeader()
	h.SetString("$ACADVER", 1, d.version.String())
	h.SetString("$DWGCODEPAGE", 3, d.res.CodePage)
	h.SetInt("$ACADMAINTVER", 70, d.res.Maintenance)
	return h
}

// sectionReader returns a reader over a named section.
func (d *Decoder) sectionReader(name string) (*binary.Reader, error) {
	s, ok := d.header.sections[name]
	if !ok {
		return nil, fmt.Errorf("no %s section", name)
	}
	var buf []byte
	if d.r18 != nil {
		var err error
		if buf, err = d.r18.section(s); err != nil {
			return nil, err
		}
	} else {
		r, err := binary.NewReader(d.data).Sub(int(s.Offset), int(s.Size))
		if err != nil {
			return nil, fmt.Errorf("%s section: %w", name, err)
		}
		buf = r.Buffer()
	}
	r := binary.NewReader(buf)
	r.SetDecoder(d.text)
	return r, nil
}

func (d *Decoder) readClassesStage() {
	r, err := d.sectionReader(SectionClasses)
	if err != nil {
		d.opts.log.WithError(err).Warn("classes not read")
		return
	}
	classes, err := readClasses(d.version, r, d.opts.log)
	for n, c := range classes {
		d.classes[n] = c
	}
	d.res.Classes = len(d.classes)
	if err != nil {
		d.soft(newError(ErrBadClasses, err, ""))
	}
}

func (d *Decoder) readObjectMapStage() {
	log := d.opts.log
	limit := d.opts.maxObjects
	var mapErr error
	if d.r18 != nil {
		if err := scanObjects(d.objects, limit, d.dir, log); err != nil {
			log.WithError(err).Warn("object stream scan stopped")
			mapErr = err
		}
		// objects the flat scan missed are taken from the handle map
		extra := NewDirectory()
		if r, err := d.sectionReader(SectionHandles); err != nil {
			log.WithError(err).Debug("no object map")
		} else if err := readObjectMap(r, 0, limit, extra, log); err != nil {
			log.WithError(err).Warn("object map incomplete")
		}
		for _, e := range extra.Entries() {
			if _, ok := d.dir.Get(e.Handle); !ok && (limit <= 0 || d.dir.Len() < limit) {
				d.dir.Add(*e)
			}
		}
	} else {
		r, err := d.sectionReader(SectionHandles)
		if err == nil {
			err = readObjectMap(r, 0, limit, d.dir, log)
		}
		mapErr = err
	}
	d.controls = tagObjects(d.objects, d.dir, log)
	d.res.Objects = d.dir.Len()
	switch {
	case mapErr != nil:
		d.soft(newError(ErrBadOffsets, mapErr, ""))
	case d.dir.Len() == 0:
		d.soft(newError(ErrBadOffsets, nil, "no objects"))
	}
}

// object returns a reader over the data of the object h.
func (d *Decoder) object(h model.Handle) (*binary.Reader, *ObjectEntry, error) {
	e, ok := d.dir.Get(h)
	if !ok {
		return nil, nil, fmt.Errorf("object %#x not in directory", uint64(h))
	}
	r := binary.NewReader(d.objects)
	if err := r.SetPosition(int(e.Offset)); err != nil {
		return nil, e, fmt.Errorf("object %#x: %w", uint64(h), err)
	}
	size := int(r.ModularShort())
	start := r.Position()
	sub, err := r.Sub(start, size)
	if err != nil {
		return nil, e, fmt.Errorf("object %#x: %w", uint64(h), err)
	}
	if r.SetPosition(start+size) == nil {
		calc := r.CRC(objectMapSeed, int(e.Offset), start+size)
		if stored := r.RawShort(); r.Good() && stored != calc {
			d.opts.log.WithFields(logrus.Fields{
				"handle":     h,
				"stored":     stored,
				"calculated": calc,
			}).Debug("object CRC mismatch")
		}
	}
	sub.SetDecoder(d.text)
	return sub, e, nil
}

// objectType maps class numbers to the fixed type they stand for.
func (d *Decoder) objectType(t int) int {
	if t >= 500 {
		if c, ok := d.classes[t]; ok && c.DWGType != 0 {
			return c.DWGType
		}
	}
	return t
}

// table decodes every entry of the table whose control object has type
// controlType and returns the handles in control order.
func (d *Decoder) table(controlType int, parse func(*binary.Reader) error) {
	log := d.opts.log.WithField("table", controlNames[controlType])
	h, ok := d.controls[controlType]
	if !ok {
		log.Warn("table not found")
		return
	}
	r, _, err := d.object(h)
	var c *control
	if err == nil {
		c, err = parseObjectControl(d.version, r)
	}
	if err != nil {
		d.soft(newError(ErrBadTables, err, "%s", controlNames[controlType]))
		return
	}
	entries := c.Entries
	if controlType == typeBlockControl {
		// *MODEL_SPACE and *PAPER_SPACE first
		entries = append(append([]model.Handle(nil), c.Extra...), c.Entries...)
	}
	decoded, failed := 0, 0
	seen := make(map[model.Handle]bool, len(entries))
	for _, eh := range entries {
		if eh == 0 || seen[eh] {
			continue
		}
		seen[eh] = true
		r, _, err := d.object(eh)
		if err == nil {
			err = parse(r)
		}
		if err != nil {
			failed++
			d.res.Dropped++
			log.WithError(err).WithField("handle", eh).Warn("table entry dropped")
			continue
		}
		decoded++
	}
	if decoded == 0 && failed > 0 {
		d.soft(newError(ErrBadTables, nil, "no %s entry decoded", controlNames[controlType]))
	}
}

func (d *Decoder) readTablesStage(sink model.Sink) {
	v := d.version
	var (
		ltypes    []*model.LineType
		layers    []*model.Layer
		styles    []*model.TextStyle
		dimstyles []*model.DimStyle
		vports    []*model.Vport
		appids    []*model.AppID
	)
	d.table(typeLTypeControl, func(r *binary.Reader) error {
		lt, err := parseLineType(v, r)
		if err == nil {
			d.ltypes[lt.Handle] = lt
			ltypes = append(ltypes, lt)
		}
		return err
	})
	d.table(typeLayerControl, func(r *binary.Reader) error {
		l, err := parseLayer(v, r)
		if err == nil {
			d.layers[l.Handle] = l
			layers = append(layers, l)
		}
		return err
	})
	d.table(typeStyleControl, func(r *binary.Reader) error {
		s, err := parseTextStyle(v, r)
		if err == nil {
			d.styles[s.Handle] = s
			styles = append(styles, s)
		}
		return err
	})
	d.table(typeDimStyleControl, func(r *binary.Reader) error {
		s, err := parseDimStyle(v, r)
		if err == nil {
			if s.Owner == 0 {
				s.Owner = d.controls[typeDimStyleControl]
			}
			dimstyles = append(dimstyles, s)
		}
		return err
	})
	d.table(typeVportControl, func(r *binary.Reader) error {
		vp, err := parseVport(v, r)
		if err == nil {
			if vp.Owner == 0 {
				vp.Owner = d.controls[typeVportControl]
			}
			vports = append(vports, vp)
		}
		return err
	})
	d.table(typeAppIDControl, func(r *binary.Reader) error {
		a, err := parseAppID(v, r)
		if err == nil {
			appids = append(appids, a)
		}
		return err
	})
	d.table(typeBlockControl, func(r *binary.Reader) error {
		b, err := parseBlockRecord(v, r)
		if err == nil {
			d.records[b.Handle] = b
			d.recordSeq = append(d.recordSeq, b)
		}
		return err
	})

	for _, l := range layers {
		l.LineType = "CONTINUOUS"
		if lt, ok := d.ltypes[l.LineTypeHandle]; ok {
			l.LineType = lt.Name
		}
	}
	for _, lt := range ltypes {
		sink.AddLineType(lt)
	}
	for _, l := range layers {
		sink.AddLayer(l)
	}
	for _, s := range styles {
		sink.AddTextStyle(s)
	}
	for _, s := range dimstyles {
		sink.AddDimStyle(s)
	}
	for _, vp := range vports {
		sink.AddVport(vp)
	}
	for _, a := range appids {
		sink.AddAppID(a)
	}
	d.res.Tables = len(ltypes) + len(layers) + len(styles) + len(dimstyles) + len(vports) + len(appids) + len(d.recordSeq)
}

// resolve fills the names behind the handles of a decoded entity.
func (d *Decoder) resolve(ent model.Entity) {
	c := ent.Common()
	if l, ok := d.layers[c.LayerHandle]; ok {
		c.Layer = l.Name
	}
	if lt, ok := d.ltypes[c.LineTypeHandle]; ok && c.LineTypeHandle != 0 {
		c.LineType = lt.Name
	}
	if c.LineType == "" {
		c.LineType = "BYLAYER"
	}
	switch e := ent.(type) {
	case *model.Insert:
		if b, ok := d.records[e.BlockRecord]; ok {
			e.BlockName = b.Name
		}
	case *model.Text:
		e.Style = "STANDARD"
		if s, ok := d.styles[e.StyleHandle]; ok {
			e.Style = s.Name
		}
	case *model.MText:
		e.Style = "STANDARD"
		if s, ok := d.styles[e.StyleHandle]; ok {
			e.Style = s.Name
		}
	}
}

// decodeEntity decodes the entity h and marks it consumed.
func (d *Decoder) decodeEntity(h model.Handle) (*decodedEntity, int, error) {
	d.consumed[h] = true
	r, e, err := d.object(h)
	if err != nil {
		return nil, 0, err
	}
	typ := d.objectType(e.Type)
	de, err := parseEntity(d.version, r, typ)
	return de, typ, err
}

// emit decodes the entity h, completes it and hands it to sink. It
// returns the decoded entity for list traversal, or nil.
func (d *Decoder) emit(sink model.Sink, h model.Handle) *decodedEntity {
	de, typ, err := d.decodeEntity(h)
	if err != nil {
		if errors.Is(err, errUnsupportedType) {
			d.res.Skipped++
			d.opts.log.WithFields(logrus.Fields{"handle": h, "type": typ}).Debug("object type skipped")
			return de
		}
		d.res.Dropped++
		d.opts.log.WithError(err).WithField("handle", h).Warn("entity dropped")
		return nil
	}
	if de.entity == nil {
		return de
	}
	if p, ok := de.entity.(*model.Polyline); ok {
		d.gatherVertices(p, de)
	}
	d.resolve(de.entity)
	if model.Dispatch(sink, de.entity) {
		d.res.Entities++
	} else {
		d.res.Skipped++
	}
	return de
}

func (d *Decoder) readBlocksStage(sink model.Sink) {
	for _, rec := range d.recordSeq {
		d.emitBlock(sink, rec)
		d.res.Blocks++
	}
}

func (d *Decoder) readEntitiesStage(sink model.Sink) {
	attempted, before, dropped := 0, d.res.Entities, d.res.Dropped
	for _, e := range d.dir.Entries() {
		if d.consumed[e.Handle] {
			continue
		}
		typ := d.objectType(e.Type)
		if !isEntityType(typ) {
			continue
		}
		switch typ {
		case typeBlock, typeEndBlk, typeSeqEnd,
			typeVertex2D, typeVertex3D, typeVertexMesh, typeVertexPF, typeVertexPFF:
			continue
		}
		attempted++
		d.emit(sink, e.Handle)
	}
	if attempted > 0 && d.res.Entities == before && d.res.Dropped > dropped {
		d.soft(newError(ErrBadEntities, nil, "none of %d entities decoded", attempted))
	}
}

func isModelSpace(name string) bool {
	return strings.EqualFold(name, "*Model_Space")
}
