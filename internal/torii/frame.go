package torii

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/rlchess/internal/entitysync"
	"github.com/roach88/rlchess/internal/ir"
	"github.com/roach88/rlchess/internal/model"
)

// Frame types.
const (
	FrameEntity    = "entity"
	FrameSubscribe = "subscribe"
	FrameError     = "error"
)

// Frame is one websocket message.
type Frame struct {
	Type   string   `json:"type"`
	Entity *Entity  `json:"entity,omitempty"`
	Models []string `json:"models,omitempty"`
	Error  string   `json:"error,omitempty"`
}

// Entity is the set of models that changed for one entity.
type Entity struct {
	HashedKeys string  `json:"hashed_keys"`
	Models     []Model `json:"models"`
}

// Model is one component value, named by its tag.
type Model struct {
	Name     string   `json:"name"`
	Children []Member `json:"children"`
}

// Member is a named, typed field.
type Member struct {
	Name string `json:"name"`
	Key  bool   `json:"key,omitempty"`
	Ty   Ty     `json:"ty"`
}

// Ty holds exactly one of its variants.
type Ty struct {
	Primitive *Primitive `json:"primitive,omitempty"`
	Enum      *Enum      `json:"enum,omitempty"`
	Struct    *Struct    `json:"struct,omitempty"`
	Array     *Array     `json:"array,omitempty"`
	ByteArray *string    `json:"bytearray,omitempty"`
}

// Primitive is a scalar. Value is a JSON number, a string, or an object
// wrapping either under a single type key ({"u32": 3}).
type Primitive struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

// Enum is a selected variant. Value is set for variants carrying data.
type Enum struct {
	Name   string `json:"name,omitempty"`
	Option string `json:"option"`
	Value  *Ty    `json:"value,omitempty"`
}

// Struct is a nested member list.
type Struct struct {
	Name     string   `json:"name,omitempty"`
	Children []Member `json:"children"`
}

// Array is a list of values.
type Array struct {
	Items []Ty `json:"items"`
}

// ParseFrame decodes one websocket message.
func ParseFrame(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("parse frame: %w", err)
	}
	return f, nil
}

// Decode turns an entity frame into updates, one per model.
//
// Models outside namespace are skipped; an empty namespace accepts all.
// A frame with no models yields no updates. Keys come from members flagged
// as keys, or from the component's known key fields when none are flagged.
func Decode(e Entity, namespace string) ([]entitysync.Update, error) {
	if len(e.Models) == 0 {
		return nil, nil
	}

	updates := make([]entitysync.Update, 0, len(e.Models))
	for _, m := range e.Models {
		ns, name, ok := model.SplitTag(m.Name)
		if namespace != "" && (!ok || ns != namespace) {
			continue
		}

		value := make(ir.IRObject, len(m.Children))
		var flagged []string
		for _, c := range m.Children {
			v, err := decodeTy(c.Ty)
			if err != nil {
				return nil, fmt.Errorf("decode %s.%s: %w", m.Name, c.Name, err)
			}
			value[c.Name] = v
			if c.Key {
				flagged = append(flagged, c.Name)
			}
		}

		keyNames := flagged
		if len(keyNames) == 0 {
			keyNames, _ = model.KeyFields(name)
		}
		if len(keyNames) == 0 {
			return nil, fmt.Errorf("decode %s: no key members", m.Name)
		}

		keys := make(ir.IRArray, len(keyNames))
		for i, k := range keyNames {
			v, present := value[k]
			if !present {
				return nil, fmt.Errorf("decode %s: missing key %q", m.Name, k)
			}
			keys[i] = v
		}

		updates = append(updates, entitysync.Update{
			Component: name,
			Keys:      keys,
			Value:     value,
		})
	}
	return updates, nil
}

func decodeTy(t Ty) (ir.IRValue, error) {
	switch {
	case t.Primitive != nil:
		return decodePrimitive(*t.Primitive)
	case t.Enum != nil:
		if t.Enum.Option == "Some" && t.Enum.Value != nil {
			return decodeTy(*t.Enum.Value)
		}
		return ir.IRString(t.Enum.Option), nil
	case t.Struct != nil:
		obj := make(ir.IRObject, len(t.Struct.Children))
		for _, c := range t.Struct.Children {
			v, err := decodeTy(c.Ty)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", c.Name, err)
			}
			obj[c.Name] = v
		}
		return obj, nil
	case t.Array != nil:
		arr := make(ir.IRArray, len(t.Array.Items))
		for i, item := range t.Array.Items {
			v, err := decodeTy(item)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr[i] = v
		}
		return arr, nil
	case t.ByteArray != nil:
		return ir.IRString(*t.ByteArray), nil
	default:
		return nil, fmt.Errorf("empty type")
	}
}

func decodePrimitive(p Primitive) (ir.IRValue, error) {
	raw, err := unwrapScalar(p.Value)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.Type, err)
	}

	switch strings.ToLower(p.Type) {
	case "bool":
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("bool: %w", err)
		}
		return ir.IRBool(b), nil
	case "u8", "u16", "u32", "u64", "usize", "i8", "i16", "i32", "i64":
		n, err := ir.ParseFelt(raw)
		if err == nil && n.IsInt64() {
			return ir.IRInt(n.Int64()), nil
		}
		// IRInt is signed: u64 values past MaxInt64 stay felt hex.
		if err == nil && n.BitLen() <= 64 && strings.HasPrefix(strings.ToLower(p.Type), "u") {
			return ir.IRString(ir.FeltHex(n)), nil
		}
		if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return ir.IRInt(i), nil
		}
		return nil, fmt.Errorf("%s: invalid integer %q", p.Type, raw)
	case "u128", "u256", "i128", "felt252", "classhash", "contractaddress", "ethaddress":
		n, err := ir.ParseFelt(raw)
		if err != nil {
			return nil, err
		}
		return ir.IRString(ir.FeltHex(n)), nil
	default:
		return nil, fmt.Errorf("unsupported primitive %q", p.Type)
	}
}

// unwrapScalar reduces a primitive value to its textual form, descending
// through single-key wrapper objects.
func unwrapScalar(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", fmt.Errorf("missing value")
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	case '{':
		var wrapper map[string]json.RawMessage
		if err := json.Unmarshal(raw, &wrapper); err != nil {
			return "", err
		}
		if len(wrapper) != 1 {
			return "", fmt.Errorf("ambiguous value with %d fields", len(wrapper))
		}
		for _, inner := range wrapper {
			return unwrapScalar(inner)
		}
	}
	numeric := raw[0] == '-' || (raw[0] >= '0' && raw[0] <= '9')
	if numeric && bytes.ContainsAny(raw, ".eE") {
		return "", fmt.Errorf("floats are not allowed: %s", raw)
	}
	return string(raw), nil
}
