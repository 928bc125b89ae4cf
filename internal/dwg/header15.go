package dwg

import (
	"bytes"

	"github.com/sirupsen/logrus"

	"github.com/dyuri/dwgconv/internal/binary"
)

// sentinel closing the R13-R2000 file header
var headerEndSentinel = []byte{
	0x95, 0xA0, 0x4E, 0x28, 0x99, 0x82, 0x1A, 0xE5,
	0x5E, 0x41, 0xE0, 0x5F, 0x9D, 0x3A, 0x4D, 0x00,
}

// record numbers of the R13-R2000 section locator list
var r15Sections = map[uint8]string{
	0: SectionHeader,
	1: SectionClasses,
	2: SectionHandles,
	3: SectionUnknown,
	4: SectionTemplate,
	5: SectionAuxHeader,
}

// the header CRC is XORed with a constant that depends on the record count
var r15CRCMask = map[uint32]uint16{
	3: 0xA598,
	4: 0x8101,
	5: 0x3CC4,
	6: 0x8461,
}

const maxR15Records = 16

// readFileHeaderR15 parses the locator list of R13, R14 and R2000 files.
// Objects live directly in the file, so the whole file is the object
// stream.
func readFileHeaderR15(r *binary.Reader, log logrus.FieldLogger) (*fileHeader, error) {
	fileSize := int64(r.Size())
	if err := r.SetPosition(0x0B); err != nil {
		return nil, newError(ErrBadFileHeader, err, "")
	}
	h := &fileHeader{}
	h.maintenance = int(r.RawChar())
	r.RawChar()
	preview := r.RawLong()
	r.RawShort()
	h.codePage = int(r.RawShort())
	count := r.RawLong()
	if !r.Good() {
		return nil, newError(ErrBadFileHeader, r.Err(), "preamble")
	}
	if count > maxR15Records {
		return nil, newError(ErrBadFileHeader, nil, "%d section records", count)
	}
	log.WithFields(logrus.Fields{
		"maintenance": h.maintenance,
		"codepage":    h.codePage,
		"preview":     preview,
		"records":     count,
	}).Debug("R15 file header")

	for i := uint32(0); i < count; i++ {
		id := r.RawChar()
		seek := int64(r.RawLong())
		size := int64(r.RawLong())
		if !r.Good() {
			return nil, newError(ErrBadFileHeader, r.Err(), "section record %d", i)
		}
		name, ok := r15Sections[id]
		if !ok {
			log.WithField("id", id).Debug("unknown section record")
			continue
		}
		if seek > fileSize || size > fileSize-seek {
			log.WithFields(logrus.Fields{
				"section": name,
				"seek":    seek,
				"size":    size,
			}).Warn("section exceeds file")
			continue
		}
		h.add(&Section{Name: name, ID: int(id), Offset: seek, Size: size, DecompressedSize: size})
	}

	end := r.Position()
	calc := r.CRC(0, 0, end)
	if mask, ok := r15CRCMask[count]; ok {
		calc ^= mask
	}
	if stored := r.RawShort(); r.Good() && stored != calc {
		log.WithFields(logrus.Fields{
			"stored":     stored,
			"calculated": calc,
		}).Warn("file header CRC mismatch")
	}
	if sentinel := r.Bytes(len(headerEndSentinel)); sentinel != nil && !bytes.Equal(sentinel, headerEndSentinel) {
		log.Debug("file header sentinel mismatch")
	}
	if !r.Good() {
		return nil, newError(ErrBadFileHeader, r.Err(), "header trailer")
	}
	if len(h.sections) == 0 {
		return nil, newError(ErrBadFileHeader, nil, "no sections")
	}
	return h, nil
}
