// Package frontmatter splits a page source into its metadata block and body.
//
// Three block styles are recognized at the very start of a document:
//
//	---      YAML
//	+++      TOML
//	;;;      JSON
//
// A block is only honored when its closing delimiter ends within the
// configured scan limit (the project's metadata buffer). A block closing
// later is not front matter: the whole document is body.
package frontmatter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	adrg "github.com/adrg/frontmatter"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// ErrMissingClosingDelimiter indicates the document opened a metadata block
// that never closes.
var ErrMissingClosingDelimiter = errors.New("front matter start delimiter found but closing delimiter is missing")

type delimiter struct {
	mark   string
	format *adrg.Format
}

var delimiters = []delimiter{
	{"---", adrg.NewFormat("---", "---", yaml.Unmarshal)},
	{"+++", adrg.NewFormat("+++", "+++", toml.Unmarshal)},
	{";;;", adrg.NewFormat(";;;", ";;;", json.Unmarshal)},
}

// Result is the outcome of parsing one document.
type Result struct {
	Metadata map[string]any
	Body     []byte
	// Raw is the block content without delimiters; empty when Had is false.
	Raw []byte
	Had bool
}

// Parse extracts metadata and body. limit bounds how far into content the
// closing delimiter may appear; limit <= 0 disables the bound.
func Parse(content []byte, limit int) (Result, error) {
	plain := Result{Metadata: map[string]any{}, Body: content}
	d, ok := opening(content)
	if !ok {
		return plain, nil
	}

	raw, end, err := block(content, d.mark)
	if err != nil {
		return Result{}, err
	}
	if limit > 0 && end > limit {
		return plain, nil
	}

	meta := map[string]any{}
	body, err := adrg.Parse(bytes.NewReader(content), &meta, d.format)
	if err != nil {
		return Result{}, fmt.Errorf("decode %s front matter: %w", d.mark, err)
	}
	if meta == nil {
		meta = map[string]any{}
	}
	return Result{Metadata: meta, Body: body, Raw: raw, Had: true}, nil
}

// Body returns content with any metadata block Parse would honor under limit
// removed. Malformed blocks are returned untouched.
func Body(content []byte, limit int) []byte {
	res, err := Parse(content, limit)
	if err != nil {
		return content
	}
	return res.Body
}

func opening(content []byte) (delimiter, bool) {
	line, _ := nextLine(content, 0)
	for _, d := range delimiters {
		if string(line) == d.mark {
			return d, true
		}
	}
	return delimiter{}, false
}

// block returns the raw block content and the offset just past the closing line.
func block(content []byte, mark string) ([]byte, int, error) {
	_, pos := nextLine(content, 0)
	start := pos
	for pos < len(content) {
		line, next := nextLine(content, pos)
		if string(line) == mark {
			return content[start:pos], next, nil
		}
		pos = next
	}
	return nil, 0, ErrMissingClosingDelimiter
}

// nextLine returns the line at offset without its terminator and the offset
// of the following line.
func nextLine(content []byte, offset int) ([]byte, int) {
	idx := bytes.IndexByte(content[offset:], '\n')
	if idx < 0 {
		return bytes.TrimSuffix(content[offset:], []byte("\r")), len(content)
	}
	return bytes.TrimSuffix(content[offset:offset+idx], []byte("\r")), offset + idx + 1
}
