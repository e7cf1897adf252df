package instrument

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// catalogDelimiter separates entries of a memory catalog response.
const catalogDelimiter = `","`

// CatalogEntry is one file in an instrument memory catalog.
type CatalogEntry struct {
	Name string
	Type string
	Size int64
}

// Catalog lists catalog entries in device response order. Duplicates are kept.
type Catalog []CatalogEntry

// ParseCatalog parses a MMEM:CAT? response:
//
//	<header>"name,type,size","name,type,size",...
//
// Anything before the first quote (memory used/free figures on MXG firmware)
// is discarded, as are trailing quotes and line terminators. A response
// without any quoted entry is an empty catalog.
func ParseCatalog(raw string) (Catalog, error) {
	if !strings.Contains(raw, `"`) {
		return Catalog{}, nil
	}

	tokens := strings.Split(raw, catalogDelimiter)
	tokens[0] = tokens[0][strings.IndexByte(tokens[0], '"')+1:]
	last := len(tokens) - 1
	tokens[last] = strings.Trim(tokens[last], "\" \t\r\n")

	catalog := make(Catalog, 0, len(tokens))
	for _, token := range tokens {
		if token == "" {
			continue
		}

		entry, err := parseCatalogEntry(token)
		if err != nil {
			return nil, newError(ErrParse, "parse catalog", err)
		}
		catalog = append(catalog, entry)
	}

	return catalog, nil
}

func parseCatalogEntry(token string) (CatalogEntry, error) {
	fields := strings.Split(token, ",")
	if len(fields) != 3 {
		return CatalogEntry{}, fmt.Errorf("entry %q: expected 3 fields, got %d", token, len(fields))
	}

	size, err := strconv.ParseInt(strings.TrimSpace(fields[2]), 10, 64)
	if err != nil {
		return CatalogEntry{}, fmt.Errorf("entry %q: invalid size: %w", token, errors.Unwrap(err))
	}

	return CatalogEntry{Name: fields[0], Type: fields[1], Size: size}, nil
}

// Find returns the first entry whose name matches case-insensitively.
func (c Catalog) Find(name string) (CatalogEntry, bool) {
	for _, e := range c {
		if strings.EqualFold(e.Name, name) {
			return e, true
		}
	}

	return CatalogEntry{}, false
}

// Contains reports whether an entry named name exists, ignoring case.
func (c Catalog) Contains(name string) bool {
	_, ok := c.Find(name)
	return ok
}

// ContainsSized reports whether an entry named name (ignoring case) with
// exactly size bytes exists.
func (c Catalog) ContainsSized(name string, size int64) bool {
	for _, e := range c {
		if strings.EqualFold(e.Name, name) && e.Size == size {
			return true
		}
	}

	return false
}

// Names returns the entry names in catalog order.
func (c Catalog) Names() []string {
	names := make([]string, len(c))
	for i, e := range c {
		names[i] = e.Name
	}

	return names
}

// Catalog queries MMEM:CAT? for the named memory catalog, e.g. "SNVWFM".
func (c *Conn) Catalog(name string) (Catalog, error) {
	op := "catalog " + name

	if err := c.ensureOpen(op); err != nil {
		return nil, err
	}
	if name == "" || strings.ContainsAny(name, `'"`) {
		return nil, c.wrap(ErrValidation, op, fmt.Errorf("invalid catalog name %q", name))
	}

	raw, err := c.QueryString("MMEM:CAT? '" + name + "'")
	if err != nil {
		return nil, err
	}

	catalog, err := ParseCatalog(raw)
	if err != nil {
		return nil, c.fail(op, err)
	}

	return catalog, nil
}

// CatalogContains reports whether the named catalog holds an entry called
// name. When size is positive the entry size must match too. Absence is not
// an error.
func (c *Conn) CatalogContains(catalog, name string, size int64) (bool, error) {
	entries, err := c.Catalog(catalog)
	if err != nil {
		return false, err
	}

	if size > 0 {
		return entries.ContainsSized(name, size), nil
	}

	return entries.Contains(name), nil
}
