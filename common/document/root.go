// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

// Package document builds self-describing nested documents. Fields are
// written in order, and documents are encoded as BSON.
package document

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Writer writes the fields of a document, in order.
type Writer interface {
	WriteString(name string, value string)
	WriteInt64(name string, value int64)
	WriteBinary(name string, value []byte)
	// WriteDocument writes a nested document whose fields are written
	// by fill.
	WriteDocument(name string, fill func(Writer))
}

// BSONWriter is a Writer producing a BSON document.
type BSONWriter struct {
	doc bson.D
}

// NewBSONWriter returns an empty BSON writer.
func NewBSONWriter() *BSONWriter {
	return &BSONWriter{doc: bson.D{}}
}

// WriteString writes a string field.
func (w *BSONWriter) WriteString(name string, value string) {
	w.doc = append(w.doc, bson.E{Key: name, Value: value})
}

// WriteInt64 writes a 64-bit integer field.
func (w *BSONWriter) WriteInt64(name string, value int64) {
	w.doc = append(w.doc, bson.E{Key: name, Value: value})
}

// WriteBinary writes a generic binary field.
func (w *BSONWriter) WriteBinary(name string, value []byte) {
	w.doc = append(w.doc, bson.E{Key: name, Value: primitive.Binary{
		Subtype: bsontype.BinaryGeneric,
		Data:    value,
	}})
}

// WriteDocument writes a nested document.
func (w *BSONWriter) WriteDocument(name string, fill func(Writer)) {
	nested := NewBSONWriter()
	fill(nested)
	w.doc = append(w.doc, bson.E{Key: name, Value: nested.doc})
}

// D returns the document written so far.
func (w *BSONWriter) D() bson.D {
	return w.doc
}

// Bytes encodes the document written so far.
func (w *BSONWriter) Bytes() ([]byte, error) {
	out, err := bson.Marshal(w.doc)
	if err != nil {
		return nil, fmt.Errorf("unable to encode document: %w", err)
	}
	return out, nil
}

// ExtJSON renders an encoded document as relaxed extended JSON.
func ExtJSON(encoded []byte) ([]byte, error) {
	raw := bson.Raw(encoded)
	if err := raw.Validate(); err != nil {
		return nil, fmt.Errorf("invalid document: %w", err)
	}
	out, err := bson.MarshalExtJSON(raw, false, false)
	if err != nil {
		return nil, fmt.Errorf("unable to render document: %w", err)
	}
	return out, nil
}
