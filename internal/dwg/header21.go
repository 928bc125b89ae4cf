package dwg

import (
	"github.com/sirupsen/logrus"

	"github.com/dyuri/dwgconv/internal/binary"
	"github.com/dyuri/dwgconv/internal/model"
)

const (
	r21HeaderOffset = 0x80
	r21HeaderSize   = 0x400
)

// readFileHeaderR21 reads the plain preamble of R2007 and later files.
// The Reed-Solomon coded block at 0x80 that locates the sections is not
// decoded, so the result is always ErrPartialSupport.
func readFileHeaderR21(v model.Version, r *binary.Reader, log logrus.FieldLogger) (*fileHeader, error) {
	if r.Size() < r21HeaderOffset+r21HeaderSize {
		return nil, newError(ErrBadFileHeader, nil, "file too short for %s header", v.Release())
	}
	r.SetPosition(0x0B)
	h := &fileHeader{maintenance: int(r.RawChar())}
	r.RawChar()
	preview := r.RawLong()
	appVersion := r.RawChar()
	appMaintenance := r.RawChar()
	h.codePage = int(r.RawShort())
	if !r.Good() {
		return nil, newError(ErrBadFileHeader, r.Err(), "preamble")
	}
	log.WithFields(logrus.Fields{
		"version":     v,
		"maintenance": h.maintenance,
		"preview":     preview,
		"app":         appVersion,
		"appmaint":    appMaintenance,
		"codepage":    h.codePage,
	}).Debug("R2007+ file header")
	return h, newError(ErrPartialSupport, nil, "%s section locator is not decoded", v.Release())
}
