package domain

import (
	"bytes"
	"encoding/json"
	"strings"
)

// ID — идентификатор вендора/клиента/товара из payload.
// Продюсеры шлют его и строкой, и числом, поэтому принимаем оба варианта.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(strings.TrimSpace(s))
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

func (id ID) Empty() bool { return id == "" }
