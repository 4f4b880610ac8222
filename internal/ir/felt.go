package ir

import (
	"fmt"
	"math/big"
	"strings"
)

// FeltPrime is the Starknet field modulus: 2^251 + 17*2^192 + 1.
var FeltPrime = func() *big.Int {
	p := new(big.Int).Lsh(big.NewInt(1), 251)
	p.Add(p, new(big.Int).Lsh(big.NewInt(17), 192))
	return p.Add(p, big.NewInt(1))
}()

// ShortStringMax is the longest ASCII string that fits in one felt.
const ShortStringMax = 31

// ParseFelt parses a felt written as 0x-prefixed hex or as a decimal string.
// Values outside [0, FeltPrime) are rejected.
func ParseFelt(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("parse felt: empty string")
	}

	n := new(big.Int)
	var ok bool
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		_, ok = n.SetString(s[2:], 16)
	} else {
		_, ok = n.SetString(s, 10)
	}
	if !ok {
		return nil, fmt.Errorf("parse felt: invalid number %q", s)
	}
	if n.Sign() < 0 || n.Cmp(FeltPrime) >= 0 {
		return nil, fmt.Errorf("parse felt: %q out of field range", s)
	}
	return n, nil
}

// FeltHex renders a felt in canonical form: lowercase hex, 0x prefix, no
// leading zeros ("0x0" for zero).
func FeltHex(n *big.Int) string {
	if n == nil || n.Sign() == 0 {
		return "0x0"
	}
	return "0x" + n.Text(16)
}

// IsFelt reports whether s is a 0x-prefixed hex felt.
func IsFelt(s string) bool {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return false
	}
	_, err := ParseFelt(s)
	return err == nil
}

// NormalizeFelt returns the canonical hex form of s, or s unchanged when it
// does not parse.
func NormalizeFelt(s string) string {
	n, err := ParseFelt(s)
	if err != nil {
		return s
	}
	return FeltHex(n)
}

// FeltValue converts a key or calldata value into a felt.
// IRInt must be non-negative; IRBool maps to 0/1; IRString must parse.
func FeltValue(v IRValue) (*big.Int, error) {
	switch val := v.(type) {
	case IRInt:
		if val < 0 {
			return nil, fmt.Errorf("felt: negative integer %d", int64(val))
		}
		return big.NewInt(int64(val)), nil
	case IRBool:
		if val {
			return big.NewInt(1), nil
		}
		return big.NewInt(0), nil
	case IRString:
		return ParseFelt(string(val))
	default:
		return nil, fmt.Errorf("felt: unsupported value %T", v)
	}
}

// Felt returns v in canonical felt form as an IRString.
func Felt(v IRValue) (IRString, error) {
	n, err := FeltValue(v)
	if err != nil {
		return "", err
	}
	return IRString(FeltHex(n)), nil
}

// MustFelt is like Felt but panics on error. Use only with constant input.
func MustFelt(s string) IRString {
	f, err := Felt(IRString(s))
	if err != nil {
		panic(err)
	}
	return f
}

// EncodeShortString packs an ASCII string of at most 31 bytes into a felt,
// big-endian, the way Cairo short strings are laid out.
func EncodeShortString(s string) (*big.Int, error) {
	if len(s) > ShortStringMax {
		return nil, fmt.Errorf("short string %q exceeds %d bytes", s, ShortStringMax)
	}
	for i := 0; i < len(s); i++ {
		if s[i] > 0x7f {
			return nil, fmt.Errorf("short string %q is not ASCII", s)
		}
	}
	return new(big.Int).SetBytes([]byte(s)), nil
}

// DecodeShortString unpacks a felt into its short string. Leading zero bytes
// are dropped; zero decodes to "".
func DecodeShortString(n *big.Int) string {
	if n == nil || n.Sign() <= 0 {
		return ""
	}
	return string(n.Bytes())
}

// EncodeByteArray serializes s as a Cairo ByteArray:
// [full_word_count, words..., pending_word, pending_word_len].
func EncodeByteArray(s string) []*big.Int {
	b := []byte(s)
	full := len(b) / ShortStringMax

	out := make([]*big.Int, 0, full+3)
	out = append(out, big.NewInt(int64(full)))
	for i := 0; i < full; i++ {
		out = append(out, new(big.Int).SetBytes(b[i*ShortStringMax:(i+1)*ShortStringMax]))
	}
	rest := b[full*ShortStringMax:]
	out = append(out, new(big.Int).SetBytes(rest))
	out = append(out, big.NewInt(int64(len(rest))))
	return out
}

// DecodeByteArray is the inverse of EncodeByteArray. It returns the string and
// the number of felts consumed.
func DecodeByteArray(felts []*big.Int) (string, int, error) {
	if len(felts) < 3 {
		return "", 0, fmt.Errorf("byte array: need at least 3 felts, got %d", len(felts))
	}
	if !felts[0].IsInt64() || felts[0].Int64() < 0 {
		return "", 0, fmt.Errorf("byte array: invalid word count")
	}
	full := int(felts[0].Int64())
	if len(felts) < full+3 {
		return "", 0, fmt.Errorf("byte array: truncated, want %d felts", full+3)
	}

	var sb strings.Builder
	for i := 1; i <= full; i++ {
		sb.Write(leftPad(felts[i].Bytes(), ShortStringMax))
	}
	pendingLen := felts[full+2]
	if !pendingLen.IsInt64() || pendingLen.Int64() < 0 || pendingLen.Int64() >= ShortStringMax {
		return "", 0, fmt.Errorf("byte array: invalid pending length")
	}
	sb.Write(leftPad(felts[full+1].Bytes(), int(pendingLen.Int64())))
	return sb.String(), full + 3, nil
}

func leftPad(b []byte, n int) []byte {
	if len(b) >= n {
		return b[len(b)-n:]
	}
	out := make([]byte, n)
	copy(out[n-len(b):], b)
	return out
}
