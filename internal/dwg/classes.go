package dwg

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/dyuri/dwgconv/internal/binary"
	"github.com/dyuri/dwgconv/internal/model"
)

// classes section: 16 byte sentinel, RL size, class data, RS CRC, 16
// byte sentinel
const classesOverhead = 16 + 4 + 2 + 16

const entityClassID = 0x1F2

// fixed object types that custom classes stand for
var classTypes = map[string]int{
	"LWPOLYLINE": typeLWPolyline,
	"HATCH":      78,
	"GROUP":      72,
	"LAYOUT":     82,
	"IMAGE":      101,
	"IMAGEDEF":   102,
}

// readClasses decodes the class list. Class numbers start at 500 and are
// used as object types by objects of custom classes.
func readClasses(v model.Version, r *binary.Reader, log logrus.FieldLogger) (map[int]*model.Class, error) {
	r.Skip(16)
	size := int(r.RawLong())
	if !r.Good() {
		return nil, fmt.Errorf("classes header: %w", r.Err())
	}
	if want := r.Size() - classesOverhead; size != want {
		log.WithFields(logrus.Fields{"size": size, "section": r.Size()}).Debug("classes size differs from section size")
	}
	data, err := r.Sub(r.Position(), size)
	if err != nil {
		return nil, fmt.Errorf("classes data: %w", err)
	}
	end := size * 8

	if v >= model.AC1018 {
		data.BitShort() // highest class number
		data.RawChar()
		data.RawChar()
		data.Bit()
	}

	classes := make(map[int]*model.Class)
	// the data ends with fewer than 8 padding bits
	for end-data.BitPosition() >= 8 && data.Good() {
		c := &model.Class{}
		c.Number = int(data.BitShort())
		c.ProxyFlags = int(data.BitShort())
		c.AppName = readText(v, data)
		c.ClassName = readText(v, data)
		c.RecordName = readText(v, data)
		c.WasAZombie = data.Bit()
		c.IsEntity = data.BitShort() == entityClassID
		if v >= model.AC1018 {
			data.BitLong() // instance count
			data.BitLong() // dwg version
			data.BitLong() // maintenance version
			data.BitLong()
			data.BitLong()
		}
		if !data.Good() {
			break
		}
		c.DWGType = classTypes[c.RecordName]
		classes[c.Number] = c
	}
	if err := data.Err(); err != nil {
		return classes, fmt.Errorf("class %d: %w", len(classes), err)
	}
	return classes, nil
}
