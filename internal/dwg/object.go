package dwg

import (
	"fmt"

	"github.com/dyuri/dwgconv/internal/binary"
	"github.com/dyuri/dwgconv/internal/model"
)

// objectHeader is the prologue shared by every object.
type objectHeader struct {
	Type         int
	Handle       model.Handle
	ExtData      []model.XData
	NumReactors  int
	XDictMissing bool

	// bit position of the handle stream; R13/R14 store it as the
	// object size in bits after the prologue
	handleStart int
}

// parseObjectHeader reads type, size, handle and extended data.
func parseObjectHeader(v model.Version, r *binary.Reader) *objectHeader {
	oh := &objectHeader{}
	oh.Type = int(r.BitShort())
	if v >= model.AC1015 {
		oh.handleStart = int(r.RawLong())
	}
	oh.Handle = r.Handle().Ref
	oh.ExtData = readExtData(v, r, oh.Handle)
	return oh
}

// parseObjectPrologue reads the prologue of a non-entity object.
func parseObjectPrologue(v model.Version, r *binary.Reader) (*objectHeader, error) {
	oh := parseObjectHeader(v, r)
	if v < model.AC1015 {
		oh.handleStart = int(r.RawLong())
	}
	oh.NumReactors = int(r.BitLong())
	if v >= model.AC1018 {
		oh.XDictMissing = r.Bit()
	}
	if v >= model.AC1027 {
		r.Bit() // has binary data
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("object prologue: %w", err)
	}
	return oh, nil
}

// readObjectHandles reads the owner, reactor and dictionary handles that
// open the handle stream of a non-entity object.
func readObjectHandles(v model.Version, r *binary.Reader, oh *objectHeader) (owner, xdict model.Handle) {
	if v >= model.AC1015 {
		if err := r.SeekBit(oh.handleStart); err != nil {
			r.Fail(err)
			return 0, 0
		}
	}
	owner = r.Handle().Resolve(oh.Handle)
	skipReactors(r, oh.NumReactors)
	if !oh.XDictMissing {
		xdict = r.Handle().Resolve(oh.Handle)
	}
	return owner, xdict
}

func skipReactors(r *binary.Reader, n int) {
	// a handle takes at least one byte
	if n < 0 || n*8 > r.Size()*8-r.BitPosition() {
		r.Fail(fmt.Errorf("%d reactors: %w", n, binary.ErrShortRead))
		return
	}
	for i := 0; i < n && r.Good(); i++ {
		r.Handle()
	}
}

// readExtData reads the extended data loop. Only string items are kept.
func readExtData(v model.Version, r *binary.Reader, self model.Handle) []model.XData {
	var out []model.XData
	for r.Good() {
		size := int(r.BitShort())
		if size == 0 {
			break
		}
		app := r.Handle().Resolve(self)
		data := r.Bytes(size)
		if data == nil {
			break
		}
		out = append(out, decodeExtData(v, r.Decoder(), app, data)...)
	}
	return out
}

// decodeExtData interprets one extended data chunk. Decoding stops at the
// first unknown item code.
func decodeExtData(v model.Version, dec binary.TextDecoder, app model.Handle, data []byte) []model.XData {
	var out []model.XData
	r := binary.NewReader(data)
	r.SetDecoder(dec)
	for r.Remaining() > 0 && r.Good() {
		code := r.RawChar()
		switch {
		case code == 0:
			var s string
			if v >= model.AC1021 {
				n := int(r.RawShort())
				s = binary.DecodeUTF16LE(r.Bytes(n * 2))
			} else {
				n := int(r.RawChar())
				r.RawShort() // code page
				b := r.Bytes(n)
				if dec != nil {
					s = dec.Decode(b)
				} else {
					s = string(b)
				}
			}
			if r.Good() {
				out = append(out, model.XData{App: app, Code: 1000, Value: s})
			}
		case code == 2:
			r.RawChar()
		case code == 3, code == 5:
			r.Skip(8)
		case code == 4:
			r.Skip(int(r.RawChar()))
		case code >= 10 && code <= 13:
			r.Skip(24)
		case code >= 40 && code <= 42:
			r.Skip(8)
		case code == 70:
			r.Skip(2)
		case code == 71:
			r.Skip(4)
		default:
			return out
		}
	}
	return out
}

// entityHeader is the decoded entity prologue.
type entityHeader struct {
	objectHeader
	common model.EntityCommon

	ownerPresent bool
	byLayerLT    bool // R13-R14
	noLinks      bool // R13-R2000
	colorBook    bool // R2004+
	ltFlags      uint8
	plotFlags    uint8
	matFlags     uint8
}

// parseEntityPrologue reads the common entity data that precedes the
// geometry.
func parseEntityPrologue(v model.Version, r *binary.Reader) (*entityHeader, error) {
	oh := parseObjectHeader(v, r)
	e := &entityHeader{objectHeader: *oh, common: model.NewEntityCommon()}
	e.common.Handle = oh.Handle
	e.common.ExtData = oh.ExtData

	if r.Bit() {
		var n int
		if v >= model.AC1024 {
			n = int(r.BitLongLong())
		} else {
			n = int(r.RawLong())
		}
		if n < 0 || n > r.Remaining() {
			return nil, fmt.Errorf("graphics data of %d bytes: %w", n, binary.ErrShortRead)
		}
		r.Skip(n)
	}
	if v < model.AC1015 {
		e.handleStart = int(r.RawLong())
	}

	switch r.Bits2() {
	case 0:
		e.ownerPresent = true
	case 1:
		e.common.Space = model.PaperSpace
	}
	e.NumReactors = int(r.BitLong())
	e.common.NumReactors = e.NumReactors
	if v < model.AC1015 {
		e.byLayerLT = r.Bit()
	}
	if v >= model.AC1018 {
		e.XDictMissing = r.Bit()
	}
	if v >= model.AC1027 {
		r.Bit() // has binary data
	}
	if v < model.AC1018 {
		e.noLinks = r.Bit()
	}

	if v >= model.AC1018 {
		idx, flags, _, _ := r.EnColor()
		e.common.Color = idx
		e.colorBook = flags&0x4000 != 0
	} else {
		e.common.Color = int(int16(r.BitShort()))
	}
	e.common.LineTypeScale = r.BitDouble()
	if v >= model.AC1015 {
		e.ltFlags = r.Bits2()
		e.plotFlags = r.Bits2()
	}
	if v >= model.AC1021 {
		e.matFlags = r.Bits2()
		e.common.Material = int(e.matFlags)
		e.common.Shadow = int(r.RawChar())
	}
	if v >= model.AC1024 {
		r.Bit() // full visual style
		r.Bit() // face visual style
		r.Bit() // edge visual style
	}
	e.common.Visible = r.BitShort()&1 == 0
	if v >= model.AC1015 {
		e.common.LineWeight = model.LineWidthFromDWG(int(r.RawChar()))
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("entity prologue: %w", err)
	}
	return e, nil
}

// parseEntityHandles reads the handle block that follows the geometry.
// An owner reference is resolved against the entity's own handle.
func parseEntityHandles(v model.Version, r *binary.Reader, e *entityHeader) error {
	h := e.Handle
	c := &e.common
	if v >= model.AC1015 {
		if err := r.SeekBit(e.handleStart); err != nil {
			return fmt.Errorf("entity handles: %w", err)
		}
	}
	if e.ownerPresent {
		c.Owner = r.Handle().Resolve(h)
	}
	skipReactors(r, e.NumReactors)
	if !e.XDictMissing {
		c.XDict = r.Handle().Resolve(h)
	}
	if v < model.AC1015 {
		c.LayerHandle = r.Handle().Resolve(h)
		if !e.byLayerLT {
			c.LineTypeHandle = r.Handle().Resolve(h)
		}
	}
	if v < model.AC1018 {
		if e.noLinks {
			c.PrevEntity, c.NextEntity = h-1, h+1
		} else {
			c.PrevEntity = r.Handle().Resolve(h)
			c.NextEntity = r.Handle().Resolve(h)
		}
	}
	if v >= model.AC1018 && e.colorBook {
		r.Handle()
	}
	if v >= model.AC1015 {
		c.LayerHandle = r.Handle().Resolve(h)
		if e.ltFlags == 3 {
			c.LineTypeHandle = r.Handle().Resolve(h)
		}
	}
	if v >= model.AC1021 && e.matFlags == 3 {
		r.Handle()
	}
	if v >= model.AC1015 && e.plotFlags == 3 {
		c.PlotStyle = r.Handle().Resolve(h)
	}
	if err := r.Err(); err != nil {
		return fmt.Errorf("entity handles: %w", err)
	}
	return nil
}

// lineTypeFlagName names the line type selected by the R2000+ flags.
func lineTypeFlagName(f uint8) string {
	switch f {
	case 0:
		return "BYLAYER"
	case 1:
		return "BYBLOCK"
	case 2:
		return "CONTINUOUS"
	}
	return ""
}
