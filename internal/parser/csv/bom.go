package csv

import "strings"

// utf8BOM is stripped from the first header cell if present.
const utf8BOM = "\uFEFF"

// StripHeaderBOM removes a UTF-8 BOM from the first header cell if present.
// Spreadsheet exports commonly prepend one, which would otherwise turn the
// first column name into a BOM-prefixed "order_id".
func StripHeaderBOM(headers []string) []string {
	if len(headers) > 0 {
		headers[0] = strings.TrimPrefix(headers[0], utf8BOM)
	}
	return headers
}
