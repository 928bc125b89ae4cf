package dxf

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/dyuri/dwgconv/internal/codec"
	"github.com/dyuri/dwgconv/internal/model"
)

// ErrNotDXF is returned when the input does not start like a DXF file.
var ErrNotDXF = errors.New("not a DXF file")

// record is one object: its type name and the groups that follow up to
// the next group 0.
type record struct {
	typ  string
	tags []Tag
}

// Reader parses ASCII or binary DXF and feeds the content into a
// model.Sink.
type Reader struct {
	in      io.Reader
	src     tagSource
	log     logrus.FieldLogger
	codec   *codec.Codec
	version model.Version

	peeked  *Tag
	pending *record

	unknown  map[string]int
	warnings []string
}

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithLogger routes diagnostics to l.
func WithLogger(l logrus.FieldLogger) ReaderOption {
	return func(r *Reader) { r.log = l }
}

// NewReader creates a DXF reader.
func NewReader(in io.Reader, opts ...ReaderOption) *Reader {
	r := &Reader{
		in:      in,
		codec:   codec.New(codec.DefaultCodePage),
		unknown: make(map[string]int),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		r.log = l
	}
	return r
}

// Version returns $ACADVER of the file read, or VersionUnknown.
func (r *Reader) Version() model.Version { return r.version }

// Warnings returns the problems that did not stop reading.
func (r *Reader) Warnings() []string { return r.warnings }

// Skipped returns the number of entities of each type the reader does not
// interpret.
func (r *Reader) Skipped() map[string]int { return r.unknown }

// Decode reads a whole DXF file into a Drawing.
func Decode(in io.Reader, opts ...ReaderOption) (*model.Drawing, error) {
	d := model.NewDrawing()
	if err := NewReader(in, opts...).Read(d); err != nil {
		return nil, err
	}
	return d, nil
}

func (r *Reader) warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.warnings = append(r.warnings, msg)
	r.log.Warn(msg)
}

// Read parses the input and emits everything into sink.
func (r *Reader) Read(sink model.Sink) error {
	src, err := newTagSource(r.in)
	if err != nil {
		return fmt.Errorf("read dxf: %w", err)
	}
	r.src = src

	first, err := r.tag()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return ErrNotDXF
		}
		return fmt.Errorf("%w: %v", ErrNotDXF, err)
	}
	if first.Code != 0 || first.Value != "SECTION" {
		return ErrNotDXF
	}
	r.unread(first)

	for {
		t, err := r.tag()
		if errors.Is(err, io.EOF) {
			r.warn("missing EOF marker")
			break
		}
		if err != nil {
			return err
		}
		if t.Code != 0 {
			continue
		}
		if t.Value == "EOF" {
			break
		}
		if t.Value != "SECTION" {
			r.warn("%s: %s outside of a section", r.src.position(), t.Value)
			continue
		}
		name, err := r.tag()
		if err != nil {
			return r.fail("section name", err)
		}
		switch strings.ToUpper(name.Value) {
		case "HEADER":
			err = r.readHeader(sink)
		case "TABLES":
			err = r.readTables(sink)
		case "BLOCKS":
			err = r.readBlocks(sink)
		case "ENTITIES":
			_, err = r.readEntities(sink)
		default:
			err = r.skipSection()
		}
		if err != nil {
			return err
		}
	}
	for typ, n := range r.unknown {
		r.log.WithFields(logrus.Fields{"type": typ, "count": n}).Debug("skipped entities")
	}
	return nil
}

func (r *Reader) fail(what string, err error) error {
	if errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return fmt.Errorf("%s: %s: %w", r.src.position(), what, err)
}

// tag returns the next group, dropping 999 comments.
func (r *Reader) tag() (Tag, error) {
	if r.peeked != nil {
		t := *r.peeked
		r.peeked = nil
		return t, nil
	}
	for {
		t, err := r.src.next()
		if err != nil {
			return Tag{}, err
		}
		if t.Code == 999 {
			continue
		}
		if t.Code == 0 {
			t.Value = strings.TrimSpace(t.Value)
		}
		return t, nil
	}
}

func (r *Reader) unread(t Tag) { r.peeked = &t }

// next reads one record. Groups before the first group 0 are dropped.
func (r *Reader) next() (record, error) {
	if r.pending != nil {
		rec := *r.pending
		r.pending = nil
		return rec, nil
	}
	var rec record
	for {
		t, err := r.tag()
		if err != nil {
			return rec, err
		}
		if t.Code == 0 {
			rec.typ = t.Value
			break
		}
	}
	for {
		t, err := r.tag()
		if errors.Is(err, io.EOF) {
			return rec, nil
		}
		if err != nil {
			return rec, err
		}
		if t.Code == 0 {
			r.unread(t)
			return rec, nil
		}
		rec.tags = append(rec.tags, t)
	}
}

func (r *Reader) skipSection() error {
	for {
		rec, err := r.next()
		if err != nil {
			return r.fail("skip section", err)
		}
		if rec.typ == "ENDSEC" {
			return nil
		}
	}
}

func (r *Reader) readHeader(sink model.Sink) error {
	h := model.NewHeader()
	for {
		t, err := r.tag()
		if err != nil {
			return r.fail("header", err)
		}
		if t.Code == 0 {
			if t.Value != "ENDSEC" {
				r.warn("%s: unexpected %s in header", r.src.position(), t.Value)
			}
			break
		}
		if err := h.ParseCode(t.Code, t.Value); err != nil {
			r.warn("%s: %v", r.src.position(), err)
		}
	}

	if s, ok := h.String("$ACADVER"); ok {
		r.version = model.ParseVersion(strings.TrimSpace(s))
	}
	if r.version >= model.AC1021 {
		r.codec = codec.New("UTF-8")
	} else if cp, ok := h.String("$DWGCODEPAGE"); ok {
		r.codec = codec.New(cp)
	}
	// string values were stored raw; decode them now that the code page
	// is known
	for _, name := range h.Names() {
		v, _ := h.Get(name)
		if sv, ok := v.(model.StringValue); ok && model.GroupKind(sv.GroupCode) == model.KindString {
			sv.Value = r.text(sv.Value)
			h.Set(name, sv)
		}
	}
	r.log.WithFields(logrus.Fields{
		"version":   r.version,
		"codepage":  r.codec.Name(),
		"variables": h.Len(),
	}).Debug("dxf header read")
	sink.AddHeader(h)
	return nil
}

// text decodes a string value from the file code page.
func (r *Reader) text(s string) string {
	return r.codec.Decode([]byte(s))
}

func (r *Reader) readTables(sink model.Sink) error {
	for {
		rec, err := r.next()
		if err != nil {
			return r.fail("tables", err)
		}
		switch rec.typ {
		case "ENDSEC":
			return nil
		case "TABLE", "ENDTAB":
		case "LTYPE":
			sink.AddLineType(r.lineType(rec.tags))
		case "LAYER":
			sink.AddLayer(r.layer(rec.tags))
		case "STYLE":
			sink.AddTextStyle(r.textStyle(rec.tags))
		case "DIMSTYLE":
			sink.AddDimStyle(r.dimStyle(rec.tags))
		case "VPORT":
			sink.AddVport(r.vport(rec.tags))
		case "APPID":
			sink.AddAppID(r.appID(rec.tags))
		}
	}
}

func (r *Reader) readBlocks(sink model.Sink) error {
	for {
		rec, err := r.next()
		if err != nil {
			return r.fail("blocks", err)
		}
		switch rec.typ {
		case "ENDSEC":
			return nil
		case "BLOCK":
			sink.AddBlock(r.block(rec.tags))
			end, err := r.readEntities(sink)
			if err != nil {
				return err
			}
			sink.EndBlock()
			if end == "ENDSEC" {
				r.warn("%s: block without ENDBLK", r.src.position())
				return nil
			}
		default:
			r.warn("%s: unexpected %s in blocks", r.src.position(), rec.typ)
		}
	}
}

// readEntities emits entities up to ENDBLK or ENDSEC and returns which of
// the two ended the list.
func (r *Reader) readEntities(sink model.Sink) (string, error) {
	for {
		rec, err := r.next()
		if err != nil {
			return "", r.fail("entities", err)
		}
		switch rec.typ {
		case "ENDSEC", "ENDBLK":
			return rec.typ, nil
		case "POLYLINE":
			pl := r.polyline(rec.tags)
			if err := r.readVertices(pl); err != nil {
				return "", err
			}
			sink.AddPolyline(pl)
			continue
		}
		ent := r.entity(rec)
		if ent == nil {
			r.unknown[rec.typ]++
			continue
		}
		model.Dispatch(sink, ent)
	}
}

// readVertices collects VERTEX records up to SEQEND.
func (r *Reader) readVertices(pl *model.Polyline) error {
	for {
		rec, err := r.next()
		if err != nil {
			return r.fail("polyline vertices", err)
		}
		switch rec.typ {
		case "VERTEX":
			pl.Vertices = append(pl.Vertices, r.vertex(rec.tags))
		case "SEQEND":
			return nil
		default:
			r.warn("%s: polyline without SEQEND", r.src.position())
			r.pending = &rec
			return nil
		}
	}
}
