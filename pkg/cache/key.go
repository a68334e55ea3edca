package cache

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// Key identifies one cacheable computation call.
// Its string form is tag_1-...-tag_n-name-arg_1-...-arg_k.
type Key struct {
	Tags []string
	Name string
	Args []any
}

// NewKey builds an untagged key.
func NewKey(name string, args ...any) Key {
	return Key{Name: name, Args: args}
}

// WithTags returns a copy of k carrying tags ahead of the name.
func (k Key) WithTags(tags ...string) Key {
	k.Tags = append(append([]string(nil), k.Tags...), tags...)
	return k
}

func (k Key) String() string {
	parts := make([]string, 0, len(k.Tags)+1+len(k.Args))
	parts = append(parts, k.Tags...)
	parts = append(parts, k.Name)
	for _, a := range k.Args {
		parts = append(parts, FormatArg(a))
	}
	return strings.Join(parts, "-")
}

// FormatArg renders one key argument. Equal values always render equally,
// regardless of the identity of the value holding them.
func FormatArg(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case int64:
		return strconv.FormatInt(t, 10)
	case uint:
		return strconv.FormatUint(uint64(t), 10)
	case uint32:
		return strconv.FormatUint(uint64(t), 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case *big.Int:
		if t == nil {
			return "null"
		}
		return t.String()
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}
