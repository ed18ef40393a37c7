// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

package document

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// ErrMissingField is returned when looking up an absent field.
var ErrMissingField = errors.New("missing field")

// Reader gives typed access to the fields of an encoded document.
type Reader struct {
	raw bson.Raw
}

// NewReader validates an encoded document and returns a reader for it.
func NewReader(encoded []byte) (Reader, error) {
	raw := bson.Raw(encoded)
	if err := raw.Validate(); err != nil {
		return Reader{}, fmt.Errorf("invalid document: %w", err)
	}
	return Reader{raw: raw}, nil
}

// Has tells if the field is present.
func (r Reader) Has(name string) bool {
	_, err := r.raw.LookupErr(name)
	return err == nil
}

// Keys returns the field names, in order.
func (r Reader) Keys() []string {
	elements, err := r.raw.Elements()
	if err != nil {
		return nil
	}
	keys := make([]string, 0, len(elements))
	for _, element := range elements {
		keys = append(keys, element.Key())
	}
	return keys
}

func (r Reader) lookup(name string, expected ...bsontype.Type) (bson.RawValue, error) {
	value, err := r.raw.LookupErr(name)
	if err != nil {
		return value, fmt.Errorf("%w %q", ErrMissingField, name)
	}
	for _, t := range expected {
		if value.Type == t {
			return value, nil
		}
	}
	return value, fmt.Errorf("field %q has unexpected type %s", name, value.Type)
}

// Type returns the type of a field.
func (r Reader) Type(name string) (bsontype.Type, error) {
	value, err := r.raw.LookupErr(name)
	if err != nil {
		return 0, fmt.Errorf("%w %q", ErrMissingField, name)
	}
	return value.Type, nil
}

// String returns a string field.
func (r Reader) String(name string) (string, error) {
	value, err := r.lookup(name, bsontype.String)
	if err != nil {
		return "", err
	}
	return value.StringValue(), nil
}

// Int64 returns an integer field. 32-bit integers are accepted.
func (r Reader) Int64(name string) (int64, error) {
	value, err := r.lookup(name, bsontype.Int64, bsontype.Int32)
	if err != nil {
		return 0, err
	}
	if value.Type == bsontype.Int32 {
		return int64(value.Int32()), nil
	}
	return value.Int64(), nil
}

// Uint returns an integer field, checking it fits in the provided
// number of bits.
func (r Reader) Uint(name string, bits int) (uint64, error) {
	v, err := r.Int64(name)
	if err != nil {
		return 0, err
	}
	if v < 0 || (bits < 64 && uint64(v) >= 1<<bits) {
		return 0, fmt.Errorf("field %q out of range for %d bits: %d", name, bits, v)
	}
	return uint64(v), nil
}

// Binary returns a copy of a binary field.
func (r Reader) Binary(name string) ([]byte, error) {
	value, err := r.lookup(name, bsontype.Binary)
	if err != nil {
		return nil, err
	}
	_, data := value.Binary()
	return append([]byte{}, data...), nil
}

// Document returns a reader for a nested document.
func (r Reader) Document(name string) (Reader, error) {
	value, err := r.lookup(name, bsontype.EmbeddedDocument)
	if err != nil {
		return Reader{}, err
	}
	return Reader{raw: value.Document()}, nil
}
