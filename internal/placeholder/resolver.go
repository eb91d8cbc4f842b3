package placeholder

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// System placeholder keys. They are derived from the generation time and
// cannot be overridden by entity or caller data.
const (
	KeyCurrentDate = "current_date"
	KeyCurrentTime = "current_time"
	KeyCurrentYear = "current_year"
)

// Format controls how system placeholders and time values are rendered.
type Format struct {
	// Location converts now before formatting; nil keeps now's own zone.
	Location   *time.Location
	DateLayout string
	TimeLayout string
}

// DefaultFormat renders dates the way the tr-TR locale does.
var DefaultFormat = Format{
	DateLayout: "02.01.2006",
	TimeLayout: "15:04:05",
}

// Resolver substitutes placeholders. The zero value uses DefaultFormat layouts.
type Resolver struct {
	Format Format
}

// Resolve renders body with DefaultFormat.
func Resolve(body string, attrs, caller map[string]any, now time.Time) string {
	return Resolver{Format: DefaultFormat}.Resolve(body, attrs, caller, now)
}

// Resolve replaces every {{key}} token in body.
//
// Precedence per key: system placeholder, then a non-empty entity attribute,
// then a non-empty caller value, then the empty string. Unknown keys are not
// an error.
func (r Resolver) Resolve(body string, attrs, caller map[string]any, now time.Time) string {
	segments := Parse(body)
	if len(segments) == 0 {
		return body
	}

	system := r.systemValues(now)
	entityVals := normalizeValues(attrs)
	callerVals := normalizeValues(caller)

	var b strings.Builder
	b.Grow(len(body))
	for _, seg := range segments {
		if !seg.Placeholder {
			b.WriteString(seg.Literal)
			continue
		}
		if v, ok := system[seg.Key]; ok {
			b.WriteString(v)
			continue
		}
		v, _ := r.lookup(seg.Key, entityVals, callerVals)
		b.WriteString(v)
	}
	return b.String()
}

// Missing lists the keys of body that would render as the empty string.
// System placeholders are never missing.
func (r Resolver) Missing(body string, attrs, caller map[string]any) []string {
	entityVals := normalizeValues(attrs)
	callerVals := normalizeValues(caller)

	var missing []string
	for _, key := range Keys(body) {
		if isSystemKey(key) {
			continue
		}
		if _, ok := r.lookup(key, entityVals, callerVals); !ok {
			missing = append(missing, key)
		}
	}
	return missing
}

func (r Resolver) lookup(key string, entityVals, callerVals map[string]any) (string, bool) {
	if v, ok := entityVals[key]; ok {
		if s := r.render(v); s != "" {
			return s, true
		}
	}
	if v, ok := callerVals[key]; ok {
		if s := r.render(v); s != "" {
			return s, true
		}
	}
	return "", false
}

func (r Resolver) systemValues(now time.Time) map[string]string {
	if r.Format.Location != nil {
		now = now.In(r.Format.Location)
	}
	return map[string]string{
		KeyCurrentDate: now.Format(r.dateLayout()),
		KeyCurrentTime: now.Format(r.timeLayout()),
		KeyCurrentYear: strconv.Itoa(now.Year()),
	}
}

// Date renders t the way {{current_date}} does.
func (r Resolver) Date(t time.Time) string {
	if r.Format.Location != nil {
		t = t.In(r.Format.Location)
	}
	return t.Format(r.dateLayout())
}

func (r Resolver) dateLayout() string {
	if r.Format.DateLayout == "" {
		return DefaultFormat.DateLayout
	}
	return r.Format.DateLayout
}

func (r Resolver) timeLayout() string {
	if r.Format.TimeLayout == "" {
		return DefaultFormat.TimeLayout
	}
	return r.Format.TimeLayout
}

// render turns an attribute value into text. Empty values render as "".
func (r Resolver) render(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case time.Time:
		if val.IsZero() {
			return ""
		}
		if r.Format.Location != nil {
			val = val.In(r.Format.Location)
		}
		return val.Format(r.dateLayout())
	case *time.Time:
		if val == nil {
			return ""
		}
		return r.render(*val)
	case []string:
		return strings.Join(val, ", ")
	case fmt.Stringer:
		return val.String()
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return ""
		}
		return r.render(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		parts := make([]string, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			if s := r.render(rv.Index(i).Interface()); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case reflect.Map:
		if rv.Len() == 0 {
			return ""
		}
	}
	return fmt.Sprint(v)
}

func normalizeValues(values map[string]any) map[string]any {
	if len(values) == 0 {
		return nil
	}
	out := make(map[string]any, len(values))
	for k, v := range values {
		nk := NormalizeKey(k)
		// Prefer a non-empty value if two spellings collapse onto one key.
		if existing, ok := out[nk]; ok && existing != nil && v == nil {
			continue
		}
		out[nk] = v
	}
	return out
}

func isSystemKey(key string) bool {
	switch key {
	case KeyCurrentDate, KeyCurrentTime, KeyCurrentYear:
		return true
	}
	return false
}
