package eln

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrBadManifest is returned when the RO-Crate manifest is missing or not
// valid JSON-LD.
var ErrBadManifest = errors.New("invalid RO-Crate manifest")

// Crate is a decoded RO-Crate manifest with entity lookup by @id.
type Crate struct {
	archive *Archive
	byID    map[string]gjson.Result
	order   []string
}

// Dataset is a Dataset entity of the crate, typically one exported record
// together with its files.
type Dataset struct {
	// ID is the entity @id, a crate-relative path like "doc_42/".
	ID string
	// Keywords are the entity keywords, used as tags on import.
	Keywords []string
	// Parts are the files the dataset references via hasPart, in manifest
	// order.
	Parts []Part
}

// Part is one file referenced by a Dataset.
type Part struct {
	// ID is the crate-relative file ID.
	ID string
	// Path is the absolute path of the extracted file.
	Path string
	// Name is the display name from the File entity, if any.
	Name string
	// Description is the free-text description from the File entity, if any.
	Description string
	// ContentType is the encodingFormat from the File entity, if any.
	ContentType string
}

// Decode reads and indexes the archive's RO-Crate manifest.
func Decode(a *Archive) (*Crate, error) {
	raw, err := os.ReadFile(a.ManifestPath())
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("%w: not valid JSON", ErrBadManifest)
	}

	graph := gjson.GetBytes(raw, "@graph")
	if !graph.IsArray() {
		return nil, fmt.Errorf("%w: missing @graph array", ErrBadManifest)
	}

	c := &Crate{
		archive: a,
		byID:    make(map[string]gjson.Result),
	}
	graph.ForEach(func(_, entity gjson.Result) bool {
		id := entity.Get("@id").String()
		if id == "" {
			return true
		}
		if _, seen := c.byID[id]; !seen {
			c.order = append(c.order, id)
		}
		c.byID[id] = entity
		return true
	})

	if len(c.byID) == 0 {
		return nil, fmt.Errorf("%w: empty @graph", ErrBadManifest)
	}
	return c, nil
}

// Resolve maps a crate-relative file ID to a path inside the extracted
// archive. Record XML files reference their images this way, outside the
// manifest.
func (c *Crate) Resolve(id string) (string, error) {
	return c.archive.Resolve(id)
}

// Datasets returns the crate's Dataset entities in manifest order, excluding
// the crate root dataset itself.
func (c *Crate) Datasets() []Dataset {
	var out []Dataset
	for _, id := range c.order {
		entity := c.byID[id]
		if id == "./" || id == "." {
			continue
		}
		if !hasType(entity, "Dataset") {
			continue
		}
		out = append(out, c.dataset(id, entity))
	}
	return out
}

func (c *Crate) dataset(id string, entity gjson.Result) Dataset {
	d := Dataset{
		ID:       strings.TrimSuffix(strings.TrimPrefix(id, "./"), "/"),
		Keywords: stringList(entity.Get("keywords")),
	}
	entity.Get("hasPart").ForEach(func(_, part gjson.Result) bool {
		partID := part.Get("@id").String()
		if partID == "" {
			// hasPart may be a plain list of IDs rather than references
			partID = part.String()
		}
		if partID == "" {
			return true
		}
		d.Parts = append(d.Parts, c.part(partID))
		return true
	})
	return d
}

func (c *Crate) part(id string) Part {
	p := Part{ID: strings.TrimPrefix(id, "./")}
	if path, err := c.archive.Resolve(id); err == nil {
		p.Path = path
	}
	if entity, ok := c.byID[id]; ok {
		p.Name = entity.Get("name").String()
		p.Description = entity.Get("description").String()
		p.ContentType = entity.Get("encodingFormat").String()
	}
	return p
}

// hasType reports whether the entity's @type equals want. JSON-LD allows
// @type to be a string or an array of strings.
func hasType(entity gjson.Result, want string) bool {
	t := entity.Get("@type")
	if t.IsArray() {
		for _, v := range t.Array() {
			if v.String() == want {
				return true
			}
		}
		return false
	}
	return t.String() == want
}

// stringList normalizes a JSON-LD value that may be an array of strings or a
// single comma-separated string.
func stringList(v gjson.Result) []string {
	var out []string
	appendClean := func(s string) {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	if v.IsArray() {
		for _, item := range v.Array() {
			appendClean(item.String())
		}
		return out
	}
	for _, s := range strings.Split(v.String(), ",") {
		appendClean(s)
	}
	return out
}
