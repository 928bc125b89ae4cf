package dwg

import (
	"github.com/dyuri/dwgconv/internal/binary"
	"github.com/dyuri/dwgconv/internal/model"
)

// Section names. Pre-2004 files number their sections; the numbers are
// mapped onto the names used by later versions.
const (
	SectionHeader    = "AcDb:Header"
	SectionClasses   = "AcDb:Classes"
	SectionHandles   = "AcDb:Handles"
	SectionObjects   = "AcDb:AcDbObjects"
	SectionUnknown   = "AcDb:Unknown"
	SectionTemplate  = "AcDb:Template"
	SectionAuxHeader = "AcDb:AuxHeader"
)

// Page is one stored page of an R2004 section.
type Page struct {
	ID          int
	Offset      int64 // file offset of the page header
	Size        int64 // stored (compressed) size
	StartOffset int64 // position of the page data within the section
}

// Section locates a named part of the file.
type Section struct {
	Name             string
	ID               int
	Offset           int64 // file offset, pre-2004 only
	Size             int64
	DecompressedSize int64
	MaxPageSize      int64
	Pages            []Page
	Compressed       bool
	Encrypted        bool
}

// fileHeader is what the version specific parsers reconstruct.
type fileHeader struct {
	maintenance int
	codePage    int
	sections    map[string]*Section
	order       []string
}

func (h *fileHeader) add(s *Section) {
	if h.sections == nil {
		h.sections = make(map[string]*Section)
	}
	if _, ok := h.sections[s.Name]; !ok {
		h.order = append(h.order, s.Name)
	}
	h.sections[s.Name] = s
}

// list returns the sections in file order.
func (h *fileHeader) list() []Section {
	out := make([]Section, 0, len(h.order))
	for _, name := range h.order {
		out = append(out, *h.sections[name])
	}
	return out
}

// readText reads T before R2007 and TU from R2007 on.
func readText(v model.Version, r *binary.Reader) string {
	if v > model.AC1018 {
		return r.TextUnicode()
	}
	return r.Text()
}

func readExtrusion(v model.Version, r *binary.Reader) model.Coord {
	return r.Extrusion(v >= model.AC1015)
}

func readThickness(v model.Version, r *binary.Reader) float64 {
	return r.Thickness(v >= model.AC1015)
}

// readColor reads a CMC color, which carries RGB data from R2004 on.
func readColor(v model.Version, r *binary.Reader) int {
	return r.CmColor(v >= model.AC1018)
}
