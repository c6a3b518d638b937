package sidebar

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"
)

const (
	jsPrefix = "initSidebarItems("
	jsSuffix = ");"
)

var ErrNotSidebarScript = errors.New("not a sidebar-items script")

// MarshalJSON encodes the index as {"kind":[["name","summary"],...],...}.
// Kinds are emitted in lexical order and HTML is left unescaped.
func (idx Index) MarshalJSON() ([]byte, error) {
	wire := make(map[Kind][][2]string, len(idx))
	for k, entries := range idx {
		rows := make([][2]string, len(entries))
		for i, e := range entries {
			rows[i] = [2]string{e.Name, e.Summary}
		}
		wire[k] = rows
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(wire); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// UnmarshalJSON accepts the form produced by MarshalJSON. Rows may omit the
// summary.
func (idx *Index) UnmarshalJSON(data []byte) error {
	var wire map[Kind][][]string
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("decoding sidebar index: %w", err)
	}
	out := make(Index, len(wire))
	for k, rows := range wire {
		entries := make([]Entry, 0, len(rows))
		for i, row := range rows {
			if len(row) == 0 {
				return fmt.Errorf("decoding sidebar index: %s entry %d is empty", k, i)
			}
			e := Entry{Name: row[0]}
			if len(row) > 1 {
				e.Summary = row[1]
			}
			entries = append(entries, e)
		}
		out[k] = entries
	}
	*idx = out
	return nil
}

// WriteJS writes the index as a sidebar-items.js script.
func (idx Index) WriteJS(w io.Writer) error {
	data, err := idx.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encoding sidebar index: %w", err)
	}
	if _, err := io.WriteString(w, jsPrefix); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	_, err = io.WriteString(w, jsSuffix)
	return err
}

// JS returns the sidebar-items.js script for the index.
func (idx Index) JS() []byte {
	var buf bytes.Buffer
	// Writes to a bytes.Buffer and marshaling string pairs cannot fail.
	_ = idx.WriteJS(&buf)
	return buf.Bytes()
}

// ParseJS decodes a sidebar-items.js script.
func ParseJS(data []byte) (Index, error) {
	body := bytes.TrimSpace(data)
	body = bytes.TrimSuffix(body, []byte(";"))
	body = bytes.TrimSpace(body)
	if !bytes.HasPrefix(body, []byte(jsPrefix)) || !bytes.HasSuffix(body, []byte(")")) {
		return nil, ErrNotSidebarScript
	}
	body = body[len(jsPrefix) : len(body)-1]

	var idx Index
	if err := json.Unmarshal(body, &idx); err != nil {
		return nil, err
	}
	return idx, nil
}

// Fingerprint hashes the serialized form, so two indices with equal
// fingerprints render identically.
func (idx Index) Fingerprint() uint64 {
	return xxhash.Sum64(idx.JS())
}
