package dwg

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/dgryski/go-tinylfu"
	"github.com/sirupsen/logrus"

	bitio "github.com/dyuri/dwgconv/internal/binary"
	"github.com/dyuri/dwgconv/internal/compress"
)

const (
	pageMapType    = 0x41630E3B
	sectionMapType = 0x4163003B
	dataPageType   = 0x4163043B

	r18HeaderOffset = 0x80
	r18HeaderSize   = 0x6C
	r18PageBase     = 0x100
	r18PageHeader   = 32

	// upper bounds for sizes read from the file
	maxSystemPage  = 16 << 20
	maxSectionSize = 256 << 20

	defaultPageCache = 64
)

var r18Magic = []byte("AcFssFcAJMB\x00")

// r18Header is the de-obfuscated block at 0x80.
type r18Header struct {
	lastPageID     uint32
	lastPageEnd    uint64
	secondHeader   uint64
	gapAmount      uint32
	pageAmount     uint32
	pageMapID      uint32
	pageMapAddr    uint64
	sectionMapID   uint32
	pageArraySize  uint32
	gapArraySize   uint32
	headerChecksum uint32
}

type pageLocation struct {
	offset int64
	size   int64
}

// r18File reads the paged sections of an R2004 file.
type r18File struct {
	data  []byte
	pages map[int32]pageLocation
	cache *tinylfu.T[int32, []byte]
	log   logrus.FieldLogger
}

func pageHash(id int32) uint64 {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(id))
	return xxhash.Sum64(b[:])
}

// readFileHeaderR18 reconstructs the section map of an R2004 file: the
// obfuscated header points to the page map, the page map locates the
// section map, and the section map names every section and its pages.
func readFileHeaderR18(data []byte, cacheSize int, log logrus.FieldLogger) (*fileHeader, *r18File, error) {
	if len(data) < r18PageBase {
		return nil, nil, newError(ErrBadFileHeader, nil, "file too short for R2004 header")
	}
	r := bitio.NewReader(data)
	r.SetPosition(0x0B)
	h := &fileHeader{maintenance: int(r.RawChar())}
	r.SetPosition(0x13)
	h.codePage = int(r.RawShort())

	hdr, err := decodeR18Header(data[r18HeaderOffset : r18HeaderOffset+r18HeaderSize])
	if err != nil {
		return nil, nil, err
	}
	log.WithFields(logrus.Fields{
		"pages":      hdr.pageAmount,
		"pagemap":    hdr.pageMapAddr,
		"sectionmap": hdr.sectionMapID,
	}).Debug("R2004 file header")

	if cacheSize <= 0 {
		cacheSize = defaultPageCache
	}
	f := &r18File{
		data:  data,
		pages: make(map[int32]pageLocation),
		cache: tinylfu.New[int32, []byte](cacheSize, cacheSize*10, pageHash),
		log:   log,
	}

	pageMap, err := f.systemPage(int64(hdr.pageMapAddr)+r18PageBase, pageMapType)
	if err != nil {
		return nil, nil, newError(ErrBadFileHeader, err, "page map")
	}
	f.readPageMap(pageMap)

	loc, ok := f.pages[int32(hdr.sectionMapID)]
	if !ok {
		return nil, nil, newError(ErrBadFileHeader, nil, "section map page %d not in page map", hdr.sectionMapID)
	}
	sectionMap, err := f.systemPage(loc.offset, sectionMapType)
	if err != nil {
		return nil, nil, newError(ErrBadFileHeader, err, "section map")
	}
	if err := f.readSectionMap(sectionMap, h); err != nil {
		return nil, nil, newError(ErrBadFileHeader, err, "section map")
	}
	return h, f, nil
}

func decodeR18Header(raw []byte) (*r18Header, error) {
	block := make([]byte, len(raw))
	copy(block, raw)
	for i, k := range compress.MagicSequence(len(block)) {
		block[i] ^= k
	}
	if !bytes.Equal(block[:len(r18Magic)], r18Magic) {
		return nil, newError(ErrBadFileHeader, nil, "bad R2004 header signature %q", block[:len(r18Magic)])
	}
	le := binary.LittleEndian
	return &r18Header{
		lastPageID:     le.Uint32(block[0x28:]),
		lastPageEnd:    le.Uint64(block[0x2C:]),
		secondHeader:   le.Uint64(block[0x34:]),
		gapAmount:      le.Uint32(block[0x3C:]),
		pageAmount:     le.Uint32(block[0x40:]),
		pageMapID:      le.Uint32(block[0x50:]),
		pageMapAddr:    le.Uint64(block[0x54:]),
		sectionMapID:   le.Uint32(block[0x5C:]),
		pageArraySize:  le.Uint32(block[0x60:]),
		gapArraySize:   le.Uint32(block[0x64:]),
		headerChecksum: le.Uint32(block[0x68:]),
	}, nil
}

// systemPage reads a page map or section map page: five RL header
// fields followed by the compressed payload.
func (f *r18File) systemPage(off int64, want uint32) ([]byte, error) {
	r, err := bitio.NewReader(f.data).Sub(int(min(off, int64(len(f.data)))), 20)
	if err != nil || off > int64(len(f.data)) {
		return nil, fmt.Errorf("system page at %d: %w", off, bitio.ErrOutOfRange)
	}
	typ := r.RawLong()
	decompSize := int(r.RawLong())
	compSize := int64(r.RawLong())
	compType := r.RawLong()
	r.RawLong() // checksum
	if !r.Good() {
		return nil, fmt.Errorf("system page at %d: %w", off, r.Err())
	}
	if typ != want {
		return nil, fmt.Errorf("system page at %d has type %#x, want %#x", off, typ, want)
	}
	start := off + 20
	if compSize > int64(len(f.data))-start || decompSize > maxSystemPage {
		return nil, fmt.Errorf("system page at %d size %d/%d: %w", off, compSize, decompSize, bitio.ErrOutOfRange)
	}
	payload := f.data[start : start+compSize]
	if compType != 2 {
		return append([]byte(nil), payload...), nil
	}
	return compress.DecompressExact(payload, decompSize)
}

// readPageMap collects the file offset of every page. Addresses
// accumulate from 0x100; negative ids are gaps with four extra fields.
func (f *r18File) readPageMap(buf []byte) {
	r := bitio.NewReader(buf)
	addr := int64(r18PageBase)
	for r.Remaining() >= 8 {
		id := int32(r.RawLong())
		size := int64(r.RawLong())
		if id < 0 {
			r.Skip(16)
		} else {
			f.pages[id] = pageLocation{offset: addr, size: size}
		}
		if !r.Good() {
			f.log.WithError(r.Err()).Warn("page map truncated")
			return
		}
		addr += size
	}
}

func (f *r18File) readSectionMap(buf []byte, h *fileHeader) error {
	r := bitio.NewReader(buf)
	count := r.RawLong()
	r.RawLong() // 0x02
	r.RawLong() // 0x7400
	r.RawLong() // 0x00
	r.RawLong()
	if !r.Good() {
		return r.Err()
	}
	for i := uint32(0); i < count && r.Remaining() > 0; i++ {
		s := &Section{}
		s.DecompressedSize = int64(r.RawLongLong())
		s.Size = s.DecompressedSize
		pageCount := r.RawLong()
		s.MaxPageSize = int64(r.RawLong())
		r.RawLong()
		s.Compressed = r.RawLong() == 2
		s.ID = int(r.RawLong())
		s.Encrypted = r.RawLong() == 1
		name := r.Bytes(64)
		if !r.Good() {
			return fmt.Errorf("section description %d: %w", i, r.Err())
		}
		if n := bytes.IndexByte(name, 0); n >= 0 {
			name = name[:n]
		}
		s.Name = string(name)
		if int(pageCount) > r.Remaining()/16 {
			return fmt.Errorf("section %q claims %d pages: %w", s.Name, pageCount, bitio.ErrShortRead)
		}
		for j := uint32(0); j < pageCount; j++ {
			id := int32(r.RawLong())
			size := int64(r.RawLong())
			start := int64(r.RawLongLong())
			p := Page{ID: int(id), Size: size, StartOffset: start}
			if loc, ok := f.pages[id]; ok {
				p.Offset = loc.offset
			} else {
				f.log.WithFields(logrus.Fields{"section": s.Name, "page": id}).Warn("page not in page map")
				p.Offset = -1
			}
			s.Pages = append(s.Pages, p)
		}
		if s.Name == "" {
			continue
		}
		h.add(s)
	}
	return r.Err()
}

// section assembles the decompressed content of a paged section.
func (f *r18File) section(s *Section) ([]byte, error) {
	if s.Encrypted {
		return nil, fmt.Errorf("section %q is encrypted", s.Name)
	}
	if s.DecompressedSize < 0 || s.DecompressedSize > maxSectionSize ||
		(s.MaxPageSize > 0 && s.DecompressedSize > int64(len(s.Pages))*s.MaxPageSize) {
		return nil, fmt.Errorf("section %q size %d: %w", s.Name, s.DecompressedSize, bitio.ErrOutOfRange)
	}
	out := make([]byte, s.DecompressedSize)
	for _, p := range s.Pages {
		data, err := f.page(s, p)
		if err != nil {
			return nil, fmt.Errorf("section %q: %w", s.Name, err)
		}
		if p.StartOffset < 0 || p.StartOffset > int64(len(out)) {
			return nil, fmt.Errorf("section %q page %d at %d: %w", s.Name, p.ID, p.StartOffset, bitio.ErrOutOfRange)
		}
		copy(out[p.StartOffset:], data)
	}
	return out, nil
}

// page reads and decompresses one data page. Results are cached by page
// id; pages shared between lookups are decoded once.
func (f *r18File) page(s *Section, p Page) ([]byte, error) {
	if data, ok := f.cache.Get(int32(p.ID)); ok {
		return data, nil
	}
	if p.Offset < 0 || p.Offset+r18PageHeader > int64(len(f.data)) {
		return nil, fmt.Errorf("page %d at %d: %w", p.ID, p.Offset, bitio.ErrOutOfRange)
	}
	hdr := make([]byte, r18PageHeader)
	copy(hdr, f.data[p.Offset:])
	compress.Decrypt(hdr, uint32(p.Offset))
	le := binary.LittleEndian
	if typ := le.Uint32(hdr); typ != dataPageType {
		return nil, fmt.Errorf("page %d has type %#x, want %#x", p.ID, typ, dataPageType)
	}
	compSize := int64(le.Uint32(hdr[8:]))
	pageSize := int64(le.Uint32(hdr[12:]))
	start := p.Offset + r18PageHeader
	if compSize > int64(len(f.data))-start {
		return nil, fmt.Errorf("page %d data size %d: %w", p.ID, compSize, bitio.ErrShortRead)
	}
	if limit := pageLimit(s); pageSize > limit {
		return nil, fmt.Errorf("page %d size %d exceeds %d: %w", p.ID, pageSize, limit, bitio.ErrOutOfRange)
	}
	payload := f.data[start : start+compSize]

	var data []byte
	if s.Compressed {
		var err error
		if data, err = compress.Decompress(payload, int(pageSize)); err != nil {
			return nil, fmt.Errorf("page %d: %w", p.ID, err)
		}
	} else {
		data = append([]byte(nil), payload...)
	}
	f.cache.Add(int32(p.ID), data)
	return data, nil
}

// pageLimit is the largest decompressed page the section can hold.
func pageLimit(s *Section) int64 {
	limit := int64(maxSectionSize)
	if s.DecompressedSize > 0 && s.DecompressedSize < limit {
		limit = s.DecompressedSize
	}
	if s.MaxPageSize > 0 && s.MaxPageSize < limit {
		limit = s.MaxPageSize
	}
	return limit
}
