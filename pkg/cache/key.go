package cache

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Params holds the inputs that identify a cached computation. Values may
// be strings, numbers, booleans, or string slices.
type Params map[string]any

// BuildKey derives a deterministic cache key from a namespace and a
// parameter set. The key embeds the namespace verbatim so that prefix
// invalidation can match on it, followed by an xxhash64 digest of the
// canonicalized parameters.
func BuildKey(namespace string, params Params) string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(namespace)
	for _, name := range names {
		b.WriteByte('|')
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(canonicalValue(params[name]))
	}

	digest := xxhash.Sum64String(b.String())
	return fmt.Sprintf("%s:%016x", namespace, digest)
}

// canonicalValue renders a parameter value in a form independent of
// caller-side ordering. String slices are sorted before joining so the
// same feature set always hashes identically.
func canonicalValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []string:
		sorted := make([]string, len(val))
		copy(sorted, val)
		sort.Strings(sorted)
		return strings.Join(sorted, ",")
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
