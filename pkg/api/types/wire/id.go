// Package wire has JSON helpers shared by API types.
package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Id is an identifier which the server sends either as string or as number.
type Id string

func (id *Id) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return fmt.Errorf("id is missing")
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*id = Id(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		*id = Id(n.String())
		return nil
	}
	return fmt.Errorf("id is malformed: %s", b)
}

func (id Id) String() string {
	return string(id)
}
