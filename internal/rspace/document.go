// Package rspace decodes the per-document XML files found in RSpace .eln
// exports. Each exported notebook entry carries one XML file describing its
// name, type, form fields and linked images.
package rspace

import (
	"encoding/xml"
	"errors"
	"fmt"
	"os"
)

// Document types as written by the RSpace exporter.
const (
	TypeNormal   = "NORMAL"
	TypeTemplate = "NORMAL:TEMPLATE"
)

// MainFieldName is the field holding the document's main rich-text body.
// All other fields are plain key-value metadata.
const MainFieldName = "Data"

// ErrEmptyDocument is returned when the XML decodes but carries no name.
var ErrEmptyDocument = errors.New("document has no name")

// Document is one decoded RSpace record.
type Document struct {
	Name       string    `xml:"name"`
	Type       string    `xml:"type"`
	ListFields FieldList `xml:"listFields"`
}

// FieldList holds the document's form fields. The exporter is not consistent
// about the element name of each entry, so any child element is accepted.
type FieldList struct {
	Fields []Field `xml:",any"`
}

// Field is one form field of a document.
type Field struct {
	Name   string    `xml:"fieldName"`
	Data   string    `xml:"fieldData"`
	Images ImageList `xml:"imageList"`
}

// ImageList holds the images linked from a field.
type ImageList struct {
	Images []Image `xml:",any"`
}

// Image is a linked binary file: the on-disk location plus display metadata.
type Image struct {
	Name        string `xml:"name"`
	LinkFile    string `xml:"linkFile"`
	Description string `xml:"description"`
}

// IsTemplate reports whether the document is an experiment template rather
// than a regular experiment.
func (d *Document) IsTemplate() bool {
	return d.Type == TypeTemplate
}

// Fields returns the document's form fields in file order.
func (d *Document) Fields() []Field {
	return d.ListFields.Fields
}

// MainField returns the rich-text body field, or nil if the document has
// none.
func (d *Document) MainField() *Field {
	for i := range d.ListFields.Fields {
		if d.ListFields.Fields[i].Name == MainFieldName {
			return &d.ListFields.Fields[i]
		}
	}
	return nil
}

// Decode parses an RSpace document from raw XML.
func Decode(data []byte) (*Document, error) {
	var doc Document
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode document XML: %w", err)
	}
	if doc.Name == "" {
		return nil, ErrEmptyDocument
	}
	return &doc, nil
}

// DecodeFile parses the RSpace document XML at path.
func DecodeFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document %s: %w", path, err)
	}
	doc, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}
