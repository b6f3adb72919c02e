package protocol

import (
	"bufio"
	"encoding/base64"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/cockroachdb/apd/v3"
)

// Ref is a decoded reference to an object held in the gateway registry.
type Ref string

// ProxyRef is a decoded reference to an object living in the interpreter
// process, together with the host interfaces it claims to implement.
type ProxyRef struct {
	ID         string
	Interfaces []string
}

// Escape makes s safe to transmit on a single line.
func Escape(s string) string {
	if !strings.ContainsAny(s, "\\\r\n") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 8)
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\\':
			b.WriteString(`\\`)
		case '\r':
			b.WriteString(`\r`)
		case '\n':
			b.WriteString(`\n`)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Unescape reverses Escape. A character following the escape character is
// taken literally unless it is 'n' or 'r'.
func Unescape(s string) string {
	if strings.IndexByte(s, EscapeChar) < 0 {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	escaping := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if escaping {
			switch c {
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			default:
				b.WriteByte(c)
			}
			escaping = false
			continue
		}
		if c == EscapeChar {
			escaping = true
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// ReadLine reads one protocol line without its terminator. io.EOF is returned
// only when no bytes were read at all.
func ReadLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		if err == io.EOF && line != "" {
			return "", Errorf("unterminated line %q", line)
		}
		return "", err
	}
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r"), nil
}

// ReadArgs reads raw argument lines until the end marker.
func ReadArgs(r *bufio.Reader) ([]string, error) {
	var args []string
	for {
		line, err := ReadLine(r)
		if err != nil {
			if err == io.EOF {
				return nil, Errorf("missing end of command")
			}
			return nil, err
		}
		if line == End {
			return args, nil
		}
		args = append(args, line)
	}
}

// ReadEnd consumes the end marker, failing if anything else is found.
func ReadEnd(r *bufio.Reader) error {
	line, err := ReadLine(r)
	if err != nil {
		if err == io.EOF {
			return Errorf("missing end of command")
		}
		return err
	}
	if line != End {
		return Errorf("expected end of command, got %q", line)
	}
	return nil
}

// Decode converts one tagged argument line into a Go value. Integers decode to
// int32 (int64 on overflow), longs to int64, doubles to float64, decimals to
// *apd.Decimal, bytes to []byte. References and collections decode to Ref,
// proxies to ProxyRef.
func Decode(part string) (interface{}, error) {
	if part == "" {
		return nil, Errorf("empty argument")
	}
	tag, value := part[0], part[1:]
	switch tag {
	case NullType:
		return nil, nil
	case IntegerType:
		i, err := strconv.ParseInt(value, 10, 32)
		if err == nil {
			return int32(i), nil
		}
		l, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, Errorf("bad integer %q", value)
		}
		return l, nil
	case LongType:
		l, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, Errorf("bad long %q", value)
		}
		return l, nil
	case DoubleType:
		return ParseDouble(value)
	case BooleanType:
		return strings.EqualFold(value, "true"), nil
	case StringType:
		return Unescape(value), nil
	case BytesType:
		b, err := base64.StdEncoding.DecodeString(value)
		if err != nil {
			return nil, Errorf("bad bytes: %v", err)
		}
		return b, nil
	case DecimalType:
		return ParseDecimal(value)
	case ReferenceType, ListType, SetType, ArrayType, MapType, IteratorType:
		return Ref(value), nil
	case PythonProxy:
		parts := strings.Split(value, ";")
		return ProxyRef{ID: parts[0], Interfaces: parts[1:]}, nil
	case VoidType:
		return nil, nil
	default:
		return nil, Errorf("unknown type tag %q", string(tag))
	}
}

// DecodeAll decodes a list of argument lines.
func DecodeAll(parts []string) ([]interface{}, error) {
	values := make([]interface{}, len(parts))
	for i, part := range parts {
		v, err := Decode(part)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}

// ParseDouble accepts Go float syntax plus nan, inf and -inf.
func ParseDouble(s string) (float64, error) {
	switch strings.ToLower(s) {
	case "nan":
		return math.NaN(), nil
	case "inf", "+inf", "infinity":
		return math.Inf(1), nil
	case "-inf", "-infinity":
		return math.Inf(-1), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, Errorf("bad double %q", s)
	}
	return f, nil
}

// FormatDouble is the inverse of ParseDouble.
func FormatDouble(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// ParseDecimal parses the exact plain-string form of a decimal.
func ParseDecimal(s string) (*apd.Decimal, error) {
	d, _, err := apd.NewFromString(s)
	if err != nil {
		return nil, Errorf("bad decimal %q: %v", s, err)
	}
	return d, nil
}

// FormatDecimal renders d without exponent so the digit sequence survives the
// round trip.
func FormatDecimal(d *apd.Decimal) string {
	return d.Text('f')
}

// EncodePrimitive renders a scalar with its type tag. It reports false when v
// is not a scalar the protocol can carry by value.
func EncodePrimitive(v interface{}) (string, bool) {
	switch x := v.(type) {
	case nil:
		return string(NullType), true
	case bool:
		if x {
			return string(BooleanType) + "true", true
		}
		return string(BooleanType) + "false", true
	case string:
		return string(StringType) + Escape(x), true
	case []byte:
		return string(BytesType) + base64.StdEncoding.EncodeToString(x), true
	case int8:
		return string(IntegerType) + strconv.FormatInt(int64(x), 10), true
	case int16:
		return string(IntegerType) + strconv.FormatInt(int64(x), 10), true
	case int32:
		return string(IntegerType) + strconv.FormatInt(int64(x), 10), true
	case uint8:
		return string(IntegerType) + strconv.FormatUint(uint64(x), 10), true
	case uint16:
		return string(IntegerType) + strconv.FormatUint(uint64(x), 10), true
	case int64:
		return string(LongType) + strconv.FormatInt(x, 10), true
	case uint32:
		return intOrLong(int64(x)), true
	case int:
		return intOrLong(int64(x)), true
	case uint:
		if uint64(x) > math.MaxInt64 {
			return string(DecimalType) + strconv.FormatUint(uint64(x), 10), true
		}
		return intOrLong(int64(x)), true
	case uint64:
		if x > math.MaxInt64 {
			return string(DecimalType) + strconv.FormatUint(x, 10), true
		}
		return string(LongType) + strconv.FormatUint(x, 10), true
	case float32:
		return string(DoubleType) + FormatDouble(float64(x)), true
	case float64:
		return string(DoubleType) + FormatDouble(x), true
	case *apd.Decimal:
		if x == nil {
			return string(NullType), true
		}
		return string(DecimalType) + FormatDecimal(x), true
	}
	return "", false
}

func intOrLong(i int64) string {
	if i >= math.MinInt32 && i <= math.MaxInt32 {
		return string(IntegerType) + strconv.FormatInt(i, 10)
	}
	return string(LongType) + strconv.FormatInt(i, 10)
}

// SuccessReply wraps an encoded payload in a success frame.
func SuccessReply(part string) string {
	return string(ReturnMessage) + string(Success) + part + EndOutput
}

// ErrorMessageReply is an error frame carrying an escaped message.
func ErrorMessageReply(msg string) string {
	return string(ReturnMessage) + string(Error) + string(StringType) + Escape(msg) + EndOutput
}

// ErrorReferenceReply is an error frame pointing at a registered exception.
func ErrorReferenceReply(id string) string {
	return string(ReturnMessage) + string(Error) + string(ReferenceType) + id + EndOutput
}

// FatalReply is a fatal error frame; the sender tears the connection down
// after writing it.
func FatalReply(msg string) string {
	return string(ReturnMessage) + string(FatalError) + string(StringType) + Escape(msg) + EndOutput
}

// MemberReply answers reflection queries, e.g. "!yc" + "java.util.List".
func MemberReply(tag byte, name string) string {
	return string(ReturnMessage) + string(Success) + string(tag) + name + EndOutput
}

// Reply is a parsed reply line.
type Reply struct {
	Status  byte
	Payload string
}

// IsError reports whether the reply carries an error or fatal status.
func (r Reply) IsError() bool {
	return r.Status != Success
}

// ParseReply splits a reply line (without terminator) into status and payload.
func ParseReply(line string) (Reply, error) {
	if len(line) < 2 || line[0] != ReturnMessage {
		return Reply{}, Errorf("bad reply %q", line)
	}
	switch line[1] {
	case Success, Error, FatalError:
	default:
		return Reply{}, Errorf("bad reply status %q", line[1:2])
	}
	return Reply{Status: line[1], Payload: line[2:]}, nil
}

// BuildCommand assembles a request frame from a command code and already
// encoded argument lines.
func BuildCommand(code string, parts ...string) string {
	var b strings.Builder
	b.WriteString(code)
	b.WriteString(EndOutput)
	for _, p := range parts {
		b.WriteString(p)
		b.WriteString(EndOutput)
	}
	b.WriteString(End)
	b.WriteString(EndOutput)
	return b.String()
}
