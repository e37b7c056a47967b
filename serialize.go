package arbor

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
)

// gzipMagic is the two-byte header every gzip stream starts with. Its
// presence makes the encoded form self-describing: Decode never needs
// out-of-band knowledge of whether compression was used.
var gzipMagic = []byte{0x1f, 0x8b}

// Encode serializes a document to JSON, optionally gzip-compressed. The
// round trip through Decode preserves node kinds, names, locations, extents,
// attributes, child order, scopes, references, and the symbol list exactly;
// only incidental JSON key ordering may differ.
func Encode(doc *ASTDocument, compress bool) ([]byte, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	if !compress {
		return raw, nil
	}
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return nil, fmt.Errorf("compress document: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress document: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode deserializes a document produced by Encode, sniffing the gzip
// magic bytes to decide whether to decompress first.
func Decode(data []byte) (*ASTDocument, error) {
	if bytes.HasPrefix(data, gzipMagic) {
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decompress document: %w", err)
		}
		defer zr.Close()
		data, err = io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("decompress document: %w", err)
		}
	}
	doc := &ASTDocument{}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if doc.Root == nil {
		return nil, fmt.Errorf("decode document: missing root node")
	}
	return doc, nil
}
