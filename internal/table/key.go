package table

import (
	"strconv"
	"strings"
	"time"
)

// nullKey stands in for a nil cell in an encoded key.
const nullKey = "\x00"

// Key encodes one or more cells into a string usable as a map key. Values of
// different kinds never encode equal, and nil encodes to a fixed marker so
// that two nil cells produce the same key.
func Key(vals ...any) string {
	var b strings.Builder
	for i, v := range vals {
		if i > 0 {
			b.WriteByte('\x1f')
		}
		switch x := v.(type) {
		case nil:
			b.WriteString(nullKey)
		case string:
			b.WriteString("s:")
			b.WriteString(x)
		case float64:
			b.WriteString("f:")
			b.WriteString(strconv.FormatFloat(x, 'g', -1, 64))
		case int64:
			b.WriteString("i:")
			b.WriteString(strconv.FormatInt(x, 10))
		case bool:
			b.WriteString("b:")
			b.WriteString(strconv.FormatBool(x))
		case time.Time:
			b.WriteString("t:")
			b.WriteString(x.UTC().Format(time.RFC3339Nano))
		}
	}
	return b.String()
}
