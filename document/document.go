// Copyright 2023 Sneller, Inc.
//
//  Licensed under the Apache License, Version 2.0 (the "License");
//  you may not use this file except in compliance with the License.
//  You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.

// Package document defines the stored
// representation of documents: an ordered
// list of named, typed field values.
package document

import (
	"bytes"
	"fmt"
	"math"
	"strconv"

	"github.com/SnellerInc/segcodec/store"
)

// Type is the type tag of a stored field.
type Type uint8

const (
	// TypeInvalid is the zero Type.
	TypeInvalid Type = iota
	TypeString
	TypeBinary
	TypeInt
	TypeLong
	TypeFloat
	TypeDouble
)

func (t Type) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeBinary:
		return "binary"
	case TypeInt:
		return "int"
	case TypeLong:
		return "long"
	case TypeFloat:
		return "float"
	case TypeDouble:
		return "double"
	default:
		return "Type(" + strconv.Itoa(int(t)) + ")"
	}
}

// Field is a single stored value.
type Field struct {
	Name string
	Type Type

	// str holds string and binary values;
	// num holds the bits of numeric values
	str []byte
	num uint64
}

// String returns a string-typed field.
func String(name, value string) Field {
	return Field{Name: name, Type: TypeString, str: []byte(value)}
}

// Binary returns a binary field.
// The value is not copied.
func Binary(name string, value []byte) Field {
	return Field{Name: name, Type: TypeBinary, str: value}
}

// Int returns a 32-bit integer field.
func Int(name string, value int32) Field {
	return Field{Name: name, Type: TypeInt, num: uint64(uint32(value))}
}

// Long returns a 64-bit integer field.
func Long(name string, value int64) Field {
	return Field{Name: name, Type: TypeLong, num: uint64(value)}
}

// Float returns a 32-bit float field.
func Float(name string, value float32) Field {
	return Field{Name: name, Type: TypeFloat, num: uint64(math.Float32bits(value))}
}

// Double returns a 64-bit float field.
func Double(name string, value float64) Field {
	return Field{Name: name, Type: TypeDouble, num: math.Float64bits(value)}
}

// StringValue returns the value of a string field,
// or the textual representation of any other type.
func (f *Field) StringValue() string {
	switch f.Type {
	case TypeString, TypeBinary:
		return string(f.str)
	case TypeInt:
		return strconv.FormatInt(int64(f.IntValue()), 10)
	case TypeLong:
		return strconv.FormatInt(f.LongValue(), 10)
	case TypeFloat:
		return strconv.FormatFloat(float64(f.FloatValue()), 'g', -1, 32)
	case TypeDouble:
		return strconv.FormatFloat(f.DoubleValue(), 'g', -1, 64)
	}
	return ""
}

// BinaryValue returns the bytes of a
// string or binary field.
func (f *Field) BinaryValue() []byte { return f.str }

func (f *Field) IntValue() int32 { return int32(uint32(f.num)) }

func (f *Field) LongValue() int64 { return int64(f.num) }

func (f *Field) FloatValue() float32 { return math.Float32frombits(uint32(f.num)) }

func (f *Field) DoubleValue() float64 { return math.Float64frombits(f.num) }

// Equal reports whether f and o have the
// same name, type and value.
func (f *Field) Equal(o *Field) bool {
	return f.Name == o.Name && f.Type == o.Type &&
		f.num == o.num && bytes.Equal(f.str, o.str)
}

func (f Field) String() string {
	return fmt.Sprintf("%s:%s=%s", f.Name, f.Type, f.StringValue())
}

// Document is an ordered collection of fields.
type Document struct {
	Fields []Field
}

// New returns a document holding fields.
func New(fields ...Field) *Document {
	return &Document{Fields: fields}
}

// Add appends a field.
func (d *Document) Add(f Field) {
	d.Fields = append(d.Fields, f)
}

// Field returns the first field with
// the given name, or nil.
func (d *Document) Field(name string) *Field {
	for i := range d.Fields {
		if d.Fields[i].Name == name {
			return &d.Fields[i]
		}
	}
	return nil
}

// Get returns the string value of the
// first field with the given name, or ""
// if there is no such field.
func (d *Document) Get(name string) string {
	if f := d.Field(name); f != nil {
		return f.StringValue()
	}
	return ""
}

// Equal reports whether d and o hold
// equal fields in the same order.
func (d *Document) Equal(o *Document) bool {
	if len(d.Fields) != len(o.Fields) {
		return false
	}
	for i := range d.Fields {
		if !d.Fields[i].Equal(&o.Fields[i]) {
			return false
		}
	}
	return true
}

// Encode writes the stored representation of d.
//
// Numeric values are written with the
// fixed-width methods of out, so they follow
// the byte order of out.
func Encode(out store.DataOutput, d *Document) error {
	if err := out.WriteVInt(int32(len(d.Fields))); err != nil {
		return err
	}
	for i := range d.Fields {
		f := &d.Fields[i]
		if err := out.WriteString(f.Name); err != nil {
			return err
		}
		if err := out.WriteByte(byte(f.Type)); err != nil {
			return err
		}
		var err error
		switch f.Type {
		case TypeString, TypeBinary:
			if err = out.WriteVInt(int32(len(f.str))); err == nil {
				err = out.WriteBytes(f.str)
			}
		case TypeInt, TypeFloat:
			err = out.WriteInt(int32(uint32(f.num)))
		case TypeLong, TypeDouble:
			err = out.WriteLong(int64(f.num))
		default:
			err = fmt.Errorf("field %q: cannot encode %s", f.Name, f.Type)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Decode reads a document written by Encode.
// Counts and lengths are checked against the
// bytes remaining in in before anything is
// allocated for them.
func Decode(in store.IndexInput) (*Document, error) {
	n, err := in.ReadVInt()
	if err != nil {
		return nil, err
	}
	// every field takes at least two bytes
	if n < 0 || int64(n) > remaining(in)/2 {
		return nil, fmt.Errorf("invalid field count %d with %d bytes remaining", n, remaining(in))
	}
	d := &Document{Fields: make([]Field, n)}
	for i := range d.Fields {
		f := &d.Fields[i]
		if f.Name, err = in.ReadString(); err != nil {
			return nil, err
		}
		t, err := in.ReadByte()
		if err != nil {
			return nil, err
		}
		f.Type = Type(t)
		switch f.Type {
		case TypeString, TypeBinary:
			size, err := in.ReadVInt()
			if err != nil {
				return nil, err
			}
			if size < 0 || int64(size) > remaining(in) {
				return nil, fmt.Errorf("field %q: invalid length %d with %d bytes remaining", f.Name, size, remaining(in))
			}
			f.str = make([]byte, size)
			if err := in.ReadBytes(f.str); err != nil {
				return nil, err
			}
		case TypeInt, TypeFloat:
			v, err := in.ReadInt()
			if err != nil {
				return nil, err
			}
			f.num = uint64(uint32(v))
		case TypeLong, TypeDouble:
			v, err := in.ReadLong()
			if err != nil {
				return nil, err
			}
			f.num = uint64(v)
		default:
			return nil, fmt.Errorf("field %q: unknown type %s", f.Name, f.Type)
		}
	}
	return d, nil
}

func remaining(in store.IndexInput) int64 { return in.Length() - in.Position() }
