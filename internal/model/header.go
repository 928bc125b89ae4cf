package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Variant is a typed header value. The concrete types are StringValue,
// IntValue, DoubleValue and CoordValue; no other type implements it.
type Variant interface {
	// Code is the DXF group code the value is written with.
	Code() int
	variant()
}

type StringValue struct {
	GroupCode int
	Value     string
}

type IntValue struct {
	GroupCode int
	Value     int
}

type DoubleValue struct {
	GroupCode int
	Value     float64
}

// CoordValue is written as groups Code, Code+10 and Code+20.
type CoordValue struct {
	GroupCode int
	Value     Coord
}

func (v StringValue) Code() int { return v.GroupCode }
func (v IntValue) Code() int    { return v.GroupCode }
func (v DoubleValue) Code() int { return v.GroupCode }
func (v CoordValue) Code() int  { return v.GroupCode }

func (StringValue) variant() {}
func (IntValue) variant()    {}
func (DoubleValue) variant() {}
func (CoordValue) variant()  {}

// ValueKind classifies a DXF group code by the type of value it carries.
type ValueKind int

const (
	KindString ValueKind = iota
	KindInt
	KindDouble
	KindHandle
)

// GroupKind returns the value type for a DXF group code.
func GroupKind(code int) ValueKind {
	switch {
	case code >= 0 && code <= 4, code >= 6 && code <= 9:
		return KindString
	case code == 5 || code == 105:
		return KindHandle
	case code >= 10 && code <= 59:
		return KindDouble
	case code >= 60 && code <= 99:
		return KindInt
	case code >= 100 && code <= 109:
		return KindString
	case code >= 110 && code <= 149:
		return KindDouble
	case code >= 160 && code <= 179:
		return KindInt
	case code >= 210 && code <= 239:
		return KindDouble
	case code >= 270 && code <= 299:
		return KindInt
	case code >= 300 && code <= 309:
		return KindString
	case code >= 310 && code <= 369:
		return KindHandle
	case code >= 370 && code <= 389:
		return KindInt
	case code >= 390 && code <= 399:
		return KindHandle
	case code >= 400 && code <= 409:
		return KindInt
	case code >= 410 && code <= 419:
		return KindString
	case code >= 420 && code <= 429:
		return KindInt
	case code >= 430 && code <= 439:
		return KindString
	case code >= 440 && code <= 459:
		return KindInt
	case code >= 460 && code <= 469:
		return KindDouble
	case code >= 470 && code <= 481:
		return KindString
	case code >= 1000 && code <= 1009:
		return KindString
	case code >= 1010 && code <= 1059:
		return KindDouble
	case code >= 1060 && code <= 1071:
		return KindInt
	}
	return KindString
}

// Header is the drawing header variable table. Names keep their "$"
// prefix, e.g. "$ACADVER".
type Header struct {
	Comments string

	vars    map[string]Variant
	order   []string
	current string
}

// NewHeader returns an empty variable table.
func NewHeader() *Header {
	return &Header{vars: make(map[string]Variant)}
}

// Len returns the number of variables.
func (h *Header) Len() int { return len(h.order) }

// Names returns the variable names in insertion order.
func (h *Header) Names() []string {
	out := make([]string, len(h.order))
	copy(out, h.order)
	return out
}

// Get returns a variable.
func (h *Header) Get(name string) (Variant, bool) {
	v, ok := h.vars[name]
	return v, ok
}

// Set stores a variable, replacing any previous value.
func (h *Header) Set(name string, v Variant) {
	if h.vars == nil {
		h.vars = make(map[string]Variant)
	}
	if _, ok := h.vars[name]; !ok {
		h.order = append(h.order, name)
	}
	h.vars[name] = v
}

// Delete removes a variable.
func (h *Header) Delete(name string) {
	if _, ok := h.vars[name]; !ok {
		return
	}
	delete(h.vars, name)
	for i, n := range h.order {
		if n == name {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
}

func (h *Header) SetString(name string, code int, v string) {
	h.Set(name, StringValue{GroupCode: code, Value: v})
}

func (h *Header) SetInt(name string, code int, v int) {
	h.Set(name, IntValue{GroupCode: code, Value: v})
}

func (h *Header) SetDouble(name string, code int, v float64) {
	h.Set(name, DoubleValue{GroupCode: code, Value: v})
}

func (h *Header) SetCoord(name string, code int, v Coord) {
	h.Set(name, CoordValue{GroupCode: code, Value: v})
}

// String returns a string variable.
func (h *Header) String(name string) (string, bool) {
	v, ok := h.vars[name].(StringValue)
	return v.Value, ok
}

// Int returns an integer variable.
func (h *Header) Int(name string) (int, bool) {
	v, ok := h.vars[name].(IntValue)
	return v.Value, ok
}

// Double returns a floating point variable.
func (h *Header) Double(name string) (float64, bool) {
	v, ok := h.vars[name].(DoubleValue)
	return v.Value, ok
}

// Coord returns a point variable.
func (h *Header) Coord(name string) (Coord, bool) {
	v, ok := h.vars[name].(CoordValue)
	return v.Value, ok
}

// ParseCode accumulates one DXF group of the HEADER section. Group 9
// names the variable that the following groups belong to; coordinate
// groups 20 and 30 patch the value started by the preceding group 10.
func (h *Header) ParseCode(code int, value string) error {
	if code == 9 {
		h.current = strings.TrimSpace(value)
		return nil
	}
	if h.current == "" {
		return nil
	}
	name := h.current

	if code >= 10 && code <= 39 {
		f, err := parseFloat(value)
		if err != nil {
			return fmt.Errorf("header %s group %d: %w", name, code, err)
		}
		base := code % 10
		switch code / 10 {
		case 1:
			h.SetCoord(name, code, Coord{X: f})
		case 2, 3:
			cv, ok := h.vars[name].(CoordValue)
			if !ok || cv.GroupCode%10 != base {
				return fmt.Errorf("header %s: group %d without matching x", name, code)
			}
			if code/10 == 2 {
				cv.Value.Y = f
			} else {
				cv.Value.Z = f
			}
			h.vars[name] = cv
		}
		return nil
	}

	switch GroupKind(code) {
	case KindDouble:
		f, err := parseFloat(value)
		if err != nil {
			return fmt.Errorf("header %s group %d: %w", name, code, err)
		}
		h.SetDouble(name, code, f)
	case KindInt:
		i, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("header %s group %d: %w", name, code, err)
		}
		h.SetInt(name, code, i)
	default:
		h.SetString(name, code, value)
	}
	return nil
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}
