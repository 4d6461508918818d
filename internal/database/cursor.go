package database

import (
	"encoding/base64"
	"strings"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack"
)

// A Cursor marks a position in the (sortWeight, createdAt, id) descending
// total order of items. Its encoded form is opaque and versioned so the wire
// format can change without breaking stored client state.
type Cursor struct {
	SortWeight int64  `msgpack:"w"`
	CreatedAt  int64  `msgpack:"c"`
	ID         string `msgpack:"i"`
}

const cursorVersion = "v1."

// Encode returns the opaque form of the cursor.
func (c *Cursor) Encode() string {
	payload, err := msgpack.Marshal(c)
	if err != nil {
		panic(err) // struct of scalars, cannot fail
	}
	return cursorVersion + base64.RawURLEncoding.EncodeToString(payload)
}

// DecodeCursor parses an opaque cursor produced by Encode.
func DecodeCursor(s string) (*Cursor, error) {
	if !strings.HasPrefix(s, cursorVersion) {
		return nil, errors.New("unsupported cursor version")
	}

	payload, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(s, cursorVersion))
	if err != nil {
		return nil, errors.Wrap(err, "could not decode cursor")
	}

	var c Cursor
	if err := msgpack.Unmarshal(payload, &c); err != nil {
		return nil, errors.Wrap(err, "could not parse cursor")
	}
	return &c, nil
}
