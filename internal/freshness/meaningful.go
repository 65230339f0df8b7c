// ABOUTME: Shared predicates for value meaningfulness and trusted timestamps.
// ABOUTME: Used by every decision path and by callers assembling a write.
package freshness

import (
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/harperreed/health/internal/models"
)

// IsMeaningful reports whether v can take part in reconciliation at all.
// nil, zero or NaN numbers, blank strings, and empty lists or maps are not
// meaningful. Pointers are followed.
func IsMeaningful(v any) bool {
	if v == nil {
		return false
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return false
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		return f != 0 && !math.IsNaN(f) && !math.IsInf(f, 0)
	case reflect.String:
		return strings.TrimSpace(rv.String()) != ""
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len() > 0
	case reflect.Bool:
		return true
	default:
		return false
	}
}

// TrustedRecordedAt returns the stored measurement time of a field, if it can
// be trusted: the value must be meaningful and the metadata must carry a
// non-zero timestamp.
func TrustedRecordedAt(value any, meta *models.FieldMetadata) (time.Time, bool) {
	if meta == nil || !IsMeaningful(value) || !ValidTimestamp(meta.RecordedAt) {
		return time.Time{}, false
	}
	return meta.RecordedAt, true
}

// ValidTimestamp rejects zero times and anything before the Unix epoch,
// which is what unparsed or NaN-derived timestamps collapse to.
func ValidTimestamp(t time.Time) bool {
	return !t.IsZero() && t.Unix() >= 0
}
