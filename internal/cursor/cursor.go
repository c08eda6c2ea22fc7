// Package cursor converts feed cursors to and from the timestamps they mark.
//
// A cursor is the ISO-8601 local date-time of the last item on a page, with
// no zone and as much fractional precision as the timestamp carries. It is
// the exclusive upper bound of the next page.
package cursor

import (
	"strings"
	"time"

	"github.com/UkralStul/echonymous/internal/domain"
)

// Layout is the encoding layout. Trailing zero fraction digits are dropped.
const Layout = "2006-01-02T15:04:05.999999999"

const invalidMessage = "Invalid cursor format. Expected ISO_LOCAL_DATE_TIME."

// Parsing with Layout also accepts input without a fractional part.
var layouts = []string{Layout, "2006-01-02T15:04"}

// maxFractionDigits is nanosecond precision.
const maxFractionDigits = 9

// Encode renders t's UTC wall clock.
func Encode(t time.Time) string {
	return t.UTC().Format(Layout)
}

// Decode parses a cursor. An empty cursor decodes to nil, meaning the first
// page. Malformed input fails with a validation error.
func Decode(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	// time.Parse also takes a comma separator and truncates longer fractions.
	if strings.ContainsRune(s, ',') {
		return nil, domain.Validation(invalidMessage)
	}
	if i := strings.IndexByte(s, '.'); i >= 0 && len(s)-i-1 > maxFractionDigits {
		return nil, domain.Validation(invalidMessage)
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, domain.Validation(invalidMessage)
}
