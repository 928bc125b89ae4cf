// Package dwgconv provides functions for reading AutoCAD DWG and DXF
// drawings and writing them back as DXF.
//
// This package can be used as a library to decode drawings into a
// version independent model, stream them into a custom sink, or convert
// them to DXF programmatically.
//
// Example usage:
//
//	d, res, err := dwgconv.Decode("plan.dwg")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(res.Version.Release(), len(d.Entities))
//
//	out, _ := os.Create("plan.dxf")
//	defer out.Close()
//	dwgconv.WriteDXF(out, d, dwgconv.WriteOptions{Version: model.AC1015})
package dwgconv

import (
	"bytes"
	"errors"
	"io"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/sirupsen/logrus"

	"github.com/dyuri/dwgconv/internal/container"
	"github.com/dyuri/dwgconv/internal/dwg"
	"github.com/dyuri/dwgconv/internal/dxf"
	"github.com/dyuri/dwgconv/internal/model"
)

// Result summarizes a decode. DXF input only fills Version, State,
// Checksum, Warnings and Skipped.
type Result = dwg.Result

// WriteOptions controls DXF output.
type WriteOptions = dxf.Options

type config struct {
	log        logrus.FieldLogger
	maxObjects int
}

// Option configures reading.
type Option func(*config)

// WithLogger routes warnings and debug output to l.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *config) { c.log = l }
}

// WithMaxObjects bounds the number of objects a DWG file may declare.
func WithMaxObjects(n int) Option {
	return func(c *config) { c.maxObjects = n }
}

func newConfig(opts []Option) *config {
	c := &config{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *config) dwgOptions() []dwg.Option {
	var o []dwg.Option
	if c.log != nil {
		o = append(o, dwg.WithLogger(c.log))
	}
	if c.maxObjects != 0 {
		o = append(o, dwg.WithMaxObjects(c.maxObjects))
	}
	return o
}

func (c *config) dxfOptions() []dxf.ReaderOption {
	if c.log == nil {
		return nil
	}
	return []dxf.ReaderOption{dxf.WithLogger(c.log)}
}

// ReadDWG decodes a DWG file and emits its content to sink.
//
// The reader must support ReadAt for random access. The size parameter
// should be the total file size in bytes. Soft failures are reported in
// the Result; a returned error means the file header could not be read.
//
// Example:
//
//	f, _ := os.Open("plan.dwg")
//	defer f.Close()
//	stat, _ := f.Stat()
//	d := model.NewDrawing()
//	res, err := ReadDWG(f, stat.Size(), d)
func ReadDWG(r io.ReaderAt, size int64, sink model.Sink, opts ...Option) (*Result, error) {
	c := newConfig(opts)
	res, err := dwg.NewDecoder(r, size, c.dwgOptions()...).Decode(sink)
	if err != nil {
		return res, wrap(err)
	}
	return res, nil
}

// ReadDXF parses an ASCII or binary DXF stream and emits its content to
// sink.
func ReadDXF(r io.Reader, sink model.Sink, opts ...Option) error {
	_, err := readDXF(r, sink, newConfig(opts))
	return err
}

func readDXF(r io.Reader, sink model.Sink, c *config) (*dxf.Reader, error) {
	dr := dxf.NewReader(r, c.dxfOptions()...)
	if err := dr.Read(sink); err != nil {
		if errors.Is(err, dxf.ErrNotDXF) {
			return dr, &Error{Code: ErrBadVersion.Code, Message: "neither DWG nor DXF", Cause: err}
		}
		return dr, &Error{Code: ErrInvalidFormat.Code, Message: "malformed DXF", Cause: err}
	}
	return dr, nil
}

// ReadFile reads a DWG or DXF file, optionally wrapped in gzip, zstd, xz
// or lz4, and emits its content to sink. The format is detected from the
// content, not the file name.
func ReadFile(path string, sink model.Sink, opts ...Option) (*Result, error) {
	data, _, err := container.Open(path)
	if err != nil {
		return nil, &Error{Code: ErrBadOpen.Code, Message: "cannot read " + path, Cause: err}
	}
	return ReadBytes(data, sink, opts...)
}

// ReadBytes is ReadFile for content already in memory.
func ReadBytes(data []byte, sink model.Sink, opts ...Option) (*Result, error) {
	c := newConfig(opts)
	if IsDWG(data) {
		res, err := dwg.NewDecoder(bytes.NewReader(data), int64(len(data)), c.dwgOptions()...).Decode(sink)
		if err != nil {
			return res, wrap(err)
		}
		return res, nil
	}

	res := &Result{Checksum: xxhash.Sum64(data), State: dwg.StateFailed}
	dr, err := readDXF(bytes.NewReader(data), sink, c)
	if err != nil {
		return res, err
	}
	res.State = dwg.StateDone
	res.Version = dr.Version()
	for _, w := range dr.Warnings() {
		res.Warnings = append(res.Warnings, errors.New(w))
	}
	for _, n := range dr.Skipped() {
		res.Skipped += n
	}
	return res, nil
}

// IsDWG reports whether data starts with a known DWG version signature.
func IsDWG(data []byte) bool {
	return len(data) >= 6 && model.ParseVersion(string(data[:6])) != model.VersionUnknown
}

// Decode reads a DWG or DXF file into a Drawing.
//
// Example:
//
//	d, res, err := Decode("plan.dwg")
//	for _, w := range res.Warnings {
//	    log.Println(w)
//	}
func Decode(path string, opts ...Option) (*model.Drawing, *Result, error) {
	d := model.NewDrawing()
	res, err := ReadFile(path, d, opts...)
	if err != nil {
		return nil, res, err
	}
	return d, res, nil
}

// WriteDXF writes a drawing as DXF.
//
// Example:
//
//	out, _ := os.Create("plan.dxf")
//	defer out.Close()
//	err := WriteDXF(out, d, WriteOptions{Version: model.AC1015, Binary: true})
func WriteDXF(w io.Writer, d *model.Drawing, opts WriteOptions) error {
	return dxf.NewEncoder(w, opts).Encode(d)
}

// ExtractText returns the strings of all TEXT and MTEXT entities, block
// content first, in drawing order. Empty strings are left out.
func ExtractText(d *model.Drawing) []string {
	var out []string
	for _, e := range d.AllEntities() {
		var s string
		switch t := e.(type) {
		case *model.Text:
			s = t.Value
		case *model.MText:
			s = t.Value
		}
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

// wrap gives decoder errors a Code callers can switch on.
func wrap(err error) error {
	code := ErrInvalidFormat.Code
	switch {
	case errors.Is(err, dwg.ErrPartialSupport):
		return &Error{Code: ErrNotImplemented.Code, Message: "DWG version not supported", Cause: err}
	case errors.Is(err, dwg.ErrBadOpen):
		code = ErrBadOpen.Code
	case errors.Is(err, dwg.ErrBadVersion):
		code = ErrBadVersion.Code
	}
	return &Error{Code: code, Message: "cannot decode DWG", Cause: err}
}

// Common errors
var (
	ErrNotImplemented = &Error{Code: "not_implemented", Message: "feature not yet implemented"}
	ErrInvalidFormat  = &Error{Code: "invalid_format", Message: "invalid file format"}
	ErrBadOpen        = &Error{Code: "bad_open", Message: "cannot open file"}
	ErrBadVersion     = &Error{Code: "bad_version", Message: "unrecognized file format or version"}
)

// Error represents a dwgconv error
type Error struct {
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches errors with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}
