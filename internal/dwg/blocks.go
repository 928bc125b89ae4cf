package dwg

import (
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/dyuri/dwgconv/internal/model"
)

// walker follows an entity chain. It stops at handles already seen and
// after as many steps as the directory has entries, so crafted files with
// looping links terminate.
type walker struct {
	seen  map[model.Handle]bool
	steps int
	limit int
}

func newWalker(limit int) *walker {
	return &walker{seen: make(map[model.Handle]bool), limit: limit}
}

// visit reports whether h may be visited and records it.
func (w *walker) visit(h model.Handle) bool {
	if h == 0 || w.seen[h] || w.steps >= w.limit {
		return false
	}
	w.seen[h] = true
	w.steps++
	return true
}

// emitBlock emits the BLOCK entity of a record, the entities it owns
// and the closing EndBlock. Model space content is left to the entities
// stage.
func (d *Decoder) emitBlock(sink model.Sink, rec *model.BlockRecord) {
	log := d.opts.log.WithFields(logrus.Fields{"block": rec.Name, "record": rec.Handle})
	blk := &model.Block{EntityCommon: model.NewEntityCommon()}
	if de, _, err := d.decodeEntity(rec.Block); err == nil {
		if b, ok := de.entity.(*model.Block); ok {
			blk = b
			d.resolve(blk)
		}
	} else if rec.Block != 0 {
		log.WithError(err).Debug("BLOCK entity not decoded")
	}
	if blk.Handle == 0 {
		blk.Handle = rec.Block
	}
	blk.Name = rec.Name
	blk.BasePoint = rec.BasePoint
	blk.Flags = rec.Flags
	blk.Description = rec.Description
	blk.XRefPath = rec.XRefPath
	blk.Record = rec.Handle
	blk.Owner = rec.Handle
	if strings.EqualFold(rec.Name, "*Paper_Space") {
		blk.Space = model.PaperSpace
	}
	sink.AddBlock(blk)

	if !isModelSpace(rec.Name) {
		w := newWalker(d.dir.Len())
		if d.version >= model.AC1018 {
			for _, h := range rec.Entities {
				if w.visit(h) {
					d.emit(sink, h)
				}
			}
		} else {
			d.walkChain(sink, w, rec.FirstEntity, rec.LastEntity, log)
		}
	}

	if rec.EndBlock != 0 {
		d.consumed[rec.EndBlock] = true
	}
	sink.EndBlock()
}

// walkChain emits the pre-2004 linked entity list from first to last.
func (d *Decoder) walkChain(sink model.Sink, w *walker, first, last model.Handle, log logrus.FieldLogger) {
	h := first
	for w.visit(h) {
		de := d.emit(sink, h)
		if h == last {
			return
		}
		if de == nil {
			log.WithField("handle", h).Warn("entity chain broken")
			return
		}
		h = de.header.common.NextEntity
	}
	if h != 0 && h != last {
		log.WithField("handle", h).Warn("entity chain stopped at a repeated handle")
	}
}

// gatherVertices collects the VERTEX entities of a heavy polyline and
// marks them and the closing SEQEND consumed.
func (d *Decoder) gatherVertices(p *model.Polyline, de *decodedEntity) {
	log := d.opts.log.WithField("polyline", de.header.Handle)
	w := newWalker(d.dir.Len())
	add := func(h model.Handle) *decodedEntity {
		vd, _, err := d.decodeEntity(h)
		if err != nil {
			log.WithError(err).WithField("vertex", h).Warn("vertex dropped")
			return nil
		}
		if vx, ok := vd.entity.(*model.Vertex); ok {
			d.resolve(vx)
			p.Vertices = append(p.Vertices, vx)
		}
		return vd
	}
	if d.version >= model.AC1018 {
		for _, h := range de.owned {
			if w.visit(h) {
				add(h)
			}
		}
	} else {
		h := de.first
		for w.visit(h) {
			vd := add(h)
			if h == de.last || vd == nil {
				break
			}
			h = vd.header.common.NextEntity
		}
	}
	if de.seqEnd != 0 {
		d.consumed[de.seqEnd] = true
	}
}
