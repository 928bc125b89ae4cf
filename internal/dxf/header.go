package dxf

import (
	"encoding/binary"
	"fmt"
	"reflect"
	"strings"

	"github.com/google/uuid"

	"github.com/dyuri/dwgconv/internal/model"
)

// headerDefault is a variable that is always written, with the value used
// when the drawing has none.
type headerDefault struct {
	name  string
	value model.Variant
	since model.Version // first output version carrying the variable
	flat  bool          // 2D point: groups 10 and 20 only
}

var headerDefaults = []headerDefault{
	{name: "$INSBASE", value: model.CoordValue{GroupCode: 10}},
	{name: "$EXTMIN", value: model.CoordValue{GroupCode: 10, Value: model.Coord{X: 1e20, Y: 1e20, Z: 1e20}}},
	{name: "$EXTMAX", value: model.CoordValue{GroupCode: 10, Value: model.Coord{X: -1e20, Y: -1e20, Z: -1e20}}},
	{name: "$LIMMIN", value: model.CoordValue{GroupCode: 10}, flat: true},
	{name: "$LIMMAX", value: model.CoordValue{GroupCode: 10, Value: model.Coord{X: 420, Y: 297}}, flat: true},
	{name: "$ORTHOMODE", value: model.IntValue{GroupCode: 70}},
	{name: "$LTSCALE", value: model.DoubleValue{GroupCode: 40, Value: 1}},
	{name: "$TEXTSTYLE", value: model.StringValue{GroupCode: 7, Value: "STANDARD"}},
	{name: "$CLAYER", value: model.StringValue{GroupCode: 8, Value: "0"}},
	{name: "$DIMASZ", value: model.DoubleValue{GroupCode: 40, Value: 2.5}},
	{name: "$DIMLFAC", value: model.DoubleValue{GroupCode: 40, Value: 1}},
	{name: "$DIMSCALE", value: model.DoubleValue{GroupCode: 40, Value: 1}},
	{name: "$DIMEXO", value: model.DoubleValue{GroupCode: 40, Value: 0.625}},
	{name: "$DIMEXE", value: model.DoubleValue{GroupCode: 40, Value: 1.25}},
	{name: "$DIMTXT", value: model.DoubleValue{GroupCode: 40, Value: 2.5}},
	{name: "$DIMTSZ", value: model.DoubleValue{GroupCode: 40, Value: 0}},
	{name: "$DIMAUNIT", value: model.IntValue{GroupCode: 70}, since: model.AC1012},
	{name: "$DIMADEC", value: model.IntValue{GroupCode: 70}, since: model.AC1012},
	{name: "$DIMSTYLE", value: model.StringValue{GroupCode: 2, Value: "STANDARD"}},
	{name: "$DIMGAP", value: model.DoubleValue{GroupCode: 40, Value: 0.625}},
	{name: "$DIMTIH", value: model.IntValue{GroupCode: 70}},
	{name: "$LUNITS", value: model.IntValue{GroupCode: 70, Value: 2}},
	{name: "$LUPREC", value: model.IntValue{GroupCode: 70, Value: 4}},
	{name: "$AUNITS", value: model.IntValue{GroupCode: 70}},
	{name: "$AUPREC", value: model.IntValue{GroupCode: 70, Value: 2}},
	{name: "$SPLINESEGS", value: model.IntValue{GroupCode: 70, Value: 8}},
	{name: "$PINSBASE", value: model.CoordValue{GroupCode: 10}, since: model.AC1012},
	{name: "$PLIMMIN", value: model.CoordValue{GroupCode: 10}, flat: true},
	{name: "$PLIMMAX", value: model.CoordValue{GroupCode: 10, Value: model.Coord{X: 297, Y: 210}}, flat: true},
	{name: "$INSUNITS", value: model.IntValue{GroupCode: 70}, since: model.AC1015},
	{name: "$PSVPSCALE", value: model.DoubleValue{GroupCode: 40}, since: model.AC1015},
}

// variables the encoder derives itself
var derivedVars = map[string]bool{
	"$ACADVER":         true,
	"$ACADMAINTVER":    true,
	"$HANDSEED":        true,
	"$DWGCODEPAGE":     true,
	"$DIMUNIT":         true,
	"$DIMLUNIT":        true,
	"$FINGERPRINTGUID": true,
	"$VERSIONGUID":     true,
}

// acadVersion maps an output version to its $ACADVER value. R10 and R13
// output is written as the next supported release.
func acadVersion(v model.Version) string {
	switch v {
	case model.AC1006, model.AC1009:
		return model.AC1009.String()
	case model.AC1012, model.AC1014:
		return model.AC1014.String()
	}
	return v.String()
}

// writeHeader emits the HEADER section. Variables from h override the
// defaults when their type matches; unknown variables follow in their
// original order.
func (e *Encoder) writeHeader(h *model.Header, seed model.Handle) {
	if h == nil {
		h = model.NewHeader()
	}
	o := e.out
	o.str(0, "SECTION")
	o.str(2, "HEADER")
	o.str(9, "$ACADVER")
	o.str(1, acadVersion(e.opts.Version))
	if e.opts.Version > model.AC1009 {
		o.str(9, "$HANDSEED")
		o.str(5, hexHandle(seed))
	}
	o.str(9, "$DWGCODEPAGE")
	o.str(3, dxfCodePage(e.opts.CodePage))

	known := make(map[string]bool, len(headerDefaults))
	for _, d := range headerDefaults {
		known[d.name] = true
		if d.since != 0 && e.opts.Version < d.since {
			continue
		}
		v := d.value
		if hv, ok := h.Get(d.name); ok && sameKind(hv, d.value) {
			v = hv
		}
		e.writeVariable(d.name, v, d.flat)
	}
	lunit, ok := h.Int("$DIMLUNIT")
	if !ok {
		lunit, ok = h.Int("$DIMUNIT")
	}
	if !ok || lunit < 1 || lunit > 6 {
		lunit = 2
	}
	if e.opts.Version < model.AC1015 {
		e.writeVariable("$DIMUNIT", model.IntValue{GroupCode: 70, Value: lunit}, false)
	} else {
		e.writeVariable("$DIMLUNIT", model.IntValue{GroupCode: 70, Value: lunit}, false)
	}

	for _, name := range h.Names() {
		if known[name] || derivedVars[name] {
			continue
		}
		v, _ := h.Get(name)
		e.writeVariable(name, v, false)
	}

	if e.opts.Version >= model.AC1015 {
		o.str(9, "$FINGERPRINTGUID")
		o.str(2, e.guid(h, "$FINGERPRINTGUID", "fingerprint"))
		o.str(9, "$VERSIONGUID")
		o.str(2, e.guid(h, "$VERSIONGUID", "version"))
	}
	o.str(0, "ENDSEC")
}

func (e *Encoder) writeVariable(name string, v model.Variant, flat bool) {
	o := e.out
	o.str(9, name)
	switch v := v.(type) {
	case model.StringValue:
		if model.GroupKind(v.GroupCode) == model.KindString {
			o.text(v.GroupCode, v.Value)
		} else {
			o.str(v.GroupCode, v.Value)
		}
	case model.IntValue:
		o.integer(v.GroupCode, v.Value)
	case model.DoubleValue:
		o.float(v.GroupCode, v.Value)
	case model.CoordValue:
		o.float(v.GroupCode, v.Value.X)
		o.float(v.GroupCode+10, v.Value.Y)
		if !flat {
			o.float(v.GroupCode+20, v.Value.Z)
		}
	}
}

func sameKind(a, b model.Variant) bool {
	return reflect.TypeOf(a) == reflect.TypeOf(b)
}

// guid keeps a GUID present in the header. Otherwise it is derived from
// the seed option, or random when no seed is set.
func (e *Encoder) guid(h *model.Header, name, salt string) string {
	if s, ok := h.String(name); ok && s != "" {
		return s
	}
	if e.opts.Seed == 0 {
		return strings.ToUpper("{" + uuid.New().String() + "}")
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], e.opts.Seed)
	id := uuid.NewSHA1(uuid.NameSpaceOID, append(buf[:], salt...))
	return strings.ToUpper("{" + id.String() + "}")
}

// dxfCodePage turns a code page name into the $DWGCODEPAGE spelling.
func dxfCodePage(name string) string {
	name = strings.ToUpper(strings.TrimSpace(name))
	switch name {
	case "", "UTF-8", "UTF8":
		return "ANSI_1252"
	}
	return name
}

func hexHandle(h model.Handle) string {
	return fmt.Sprintf("%X", uint64(h))
}
