package util

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// maskedIDSuffix replaces the trailing characters of transaction IDs.
const maskedIDSuffix = "*****"

// ToSnakeCase rewrites a camelCase identifier to snake_case. Identifiers
// already in snake_case pass through unchanged.
func ToSnakeCase(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 4)
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SnakeCaseKeys recursively rewrites all object keys in a JSON document from
// camelCase to snake_case. PayPal mixes key casings across endpoints; the
// proxy normalizes everything to snake_case for consistency. Documents that
// fail to re-encode are returned unchanged.
func SnakeCaseKeys(body []byte) []byte {
	converted := snakeCaseValue(gjson.ParseBytes(body))
	out, err := json.Marshal(converted)
	if err != nil {
		return body
	}
	return out
}

// snakeCaseValue rebuilds a gjson value with normalized object keys.
func snakeCaseValue(v gjson.Result) any {
	switch {
	case v.IsObject():
		m := make(map[string]any)
		v.ForEach(func(key, value gjson.Result) bool {
			m[ToSnakeCase(key.String())] = snakeCaseValue(value)
			return true
		})
		return m
	case v.IsArray():
		items := v.Array()
		arr := make([]any, 0, len(items))
		for _, item := range items {
			arr = append(arr, snakeCaseValue(item))
		}
		return arr
	default:
		return v.Value()
	}
}

// MaskTransactionIDs replaces the last 5 characters of every transaction ID
// in a transactions document with asterisks, covering both
// transaction_info.transaction_id and any top-level transaction_id on each
// record. IDs of 5 characters or fewer are left alone.
func MaskTransactionIDs(body []byte) []byte {
	details := gjson.GetBytes(body, "transaction_details")
	if !details.IsArray() {
		return body
	}
	for i := range details.Array() {
		for _, path := range []string{
			fmt.Sprintf("transaction_details.%d.transaction_info.transaction_id", i),
			fmt.Sprintf("transaction_details.%d.transaction_id", i),
		} {
			id := gjson.GetBytes(body, path)
			if !id.Exists() || len(id.String()) <= len(maskedIDSuffix) {
				continue
			}
			masked := id.String()[:len(id.String())-len(maskedIDSuffix)] + maskedIDSuffix
			if updated, err := sjson.SetBytes(body, path, masked); err == nil {
				body = updated
			}
		}
	}
	return body
}
