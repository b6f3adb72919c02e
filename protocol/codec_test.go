package protocol

import (
	"bufio"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/cockroachdb/apd/v3"
	"github.com/pkg/errors"
)

// TestEscapeRoundTrip checks that every mix of backslash, CR and LF survives
// escaping and never produces a multi-line value.
func TestEscapeRoundTrip(t *testing.T) {
	inputs := []string{
		"",
		"plain",
		`\`,
		"\n",
		"\r",
		"\r\n",
		`\n`,
		`\\n`,
		"a\\\nb\\\rc",
		"trailing\\",
		"\n\n\\\\\r\r",
	}
	for _, in := range inputs {
		enc := Escape(in)
		if strings.ContainsAny(enc, "\r\n") {
			t.Errorf("Escape(%q) = %q contains a line break", in, enc)
		}
		if out := Unescape(enc); out != in {
			t.Errorf("Unescape(Escape(%q)) = %q", in, out)
		}
	}
}

// TestUnescapeLiteral checks that unknown escapes keep the escaped character.
func TestUnescapeLiteral(t *testing.T) {
	if got := Unescape(`a\tb\\c`); got != `atb\c` {
		t.Errorf("Expected %q, got %q", `atb\c`, got)
	}
}

// TestDecodeScalars covers every by-value tag.
func TestDecodeScalars(t *testing.T) {
	tests := []struct {
		part string
		want interface{}
	}{
		{"i42", int32(42)},
		{"i-7", int32(-7)},
		{"i3000000000", int64(3000000000)},
		{"L9", int64(9)},
		{"btrue", true},
		{"bTrue", true},
		{"bfalse", false},
		{"d1.5", 1.5},
		{`sa\nb`, "a\nb"},
		{"n", nil},
		{"ro3", Ref("o3")},
		{"lo4", Ref("o4")},
	}
	for _, tt := range tests {
		got, err := Decode(tt.part)
		if err != nil {
			t.Errorf("Decode(%q) failed: %v", tt.part, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Decode(%q) = %#v, want %#v", tt.part, got, tt.want)
		}
	}
}

// TestDecodeSpecialDoubles checks nan and infinities.
func TestDecodeSpecialDoubles(t *testing.T) {
	v, err := Decode("dnan")
	if err != nil || !math.IsNaN(v.(float64)) {
		t.Errorf("Expected NaN, got %v (%v)", v, err)
	}
	v, _ = Decode("dinf")
	if !math.IsInf(v.(float64), 1) {
		t.Errorf("Expected +Inf, got %v", v)
	}
	v, _ = Decode("d-inf")
	if !math.IsInf(v.(float64), -1) {
		t.Errorf("Expected -Inf, got %v", v)
	}
	if FormatDouble(math.Inf(-1)) != "-inf" {
		t.Errorf("Expected -inf, got %s", FormatDouble(math.Inf(-1)))
	}
}

// TestDecodeProxy checks the id;iface;iface form.
func TestDecodeProxy(t *testing.T) {
	v, err := Decode("fp0;org.example.Listener;java.lang.Runnable")
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	p := v.(ProxyRef)
	if p.ID != "p0" || len(p.Interfaces) != 2 || p.Interfaces[1] != "java.lang.Runnable" {
		t.Errorf("Unexpected proxy %+v", p)
	}
}

// TestDecodeBytes checks base64 payloads in both directions.
func TestDecodeBytes(t *testing.T) {
	enc, ok := EncodePrimitive([]byte{0, 1, 2, 255})
	if !ok {
		t.Fatal("Expected bytes to be primitive")
	}
	v, err := Decode(enc)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if string(v.([]byte)) != string([]byte{0, 1, 2, 255}) {
		t.Errorf("Unexpected bytes %v", v)
	}
}

// TestDecimalExact checks that digit sequences, trailing zeros included, are
// preserved.
func TestDecimalExact(t *testing.T) {
	for _, s := range []string{"0.10", "123456789012345678901234567890.000001", "-5", "1E+3"} {
		v, err := Decode("D" + s)
		if err != nil {
			t.Fatalf("Decode(%q) failed: %v", s, err)
		}
		enc, _ := EncodePrimitive(v)
		again, err := Decode(enc)
		if err != nil {
			t.Fatalf("Decode(%q) failed: %v", enc, err)
		}
		if again.(*apd.Decimal).Cmp(v.(*apd.Decimal)) != 0 {
			t.Errorf("Round trip of %q changed value: %q", s, enc)
		}
		if strings.ContainsAny(enc[1:], "eE") {
			t.Errorf("Expected plain form, got %q", enc)
		}
	}
	d, _ := ParseDecimal("0.10")
	if FormatDecimal(d) != "0.10" {
		t.Errorf("Expected 0.10, got %s", FormatDecimal(d))
	}
}

// TestEncodeIntWidth checks that Go ints use the narrow tag when they fit.
func TestEncodeIntWidth(t *testing.T) {
	if s, _ := EncodePrimitive(3); s != "i3" {
		t.Errorf("Expected i3, got %s", s)
	}
	if s, _ := EncodePrimitive(1 << 40); s != "L1099511627776" {
		t.Errorf("Expected long, got %s", s)
	}
	if s, _ := EncodePrimitive(int64(3)); s != "L3" {
		t.Errorf("Expected L3, got %s", s)
	}
	if _, ok := EncodePrimitive(struct{}{}); ok {
		t.Error("Expected struct to be rejected")
	}
}

// TestReadArgsMissingEnd checks that EOF before the end marker is a protocol
// error.
func TestReadArgsMissingEnd(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("o1\nsize\n"))
	_, err := ReadArgs(r)
	var perr *ProtocolError
	if !errors.As(err, &perr) {
		t.Fatalf("Expected ProtocolError, got %v", err)
	}

	r = bufio.NewReader(strings.NewReader("o1\nsize\ne\nnext\n"))
	args, err := ReadArgs(r)
	if err != nil {
		t.Fatalf("ReadArgs failed: %v", err)
	}
	if len(args) != 2 || args[1] != "size" {
		t.Errorf("Unexpected args %v", args)
	}
}

// TestParseReply checks status parsing and strictness.
func TestParseReply(t *testing.T) {
	r, err := ParseReply("!yi3")
	if err != nil || r.IsError() || r.Payload != "i3" {
		t.Errorf("Unexpected reply %+v (%v)", r, err)
	}
	r, _ = ParseReply("!xsboom")
	if !r.IsError() {
		t.Error("Expected error reply")
	}
	if _, err := ParseReply("yi3"); err == nil {
		t.Error("Expected missing marker to fail")
	}
}

// TestBuildCommand checks frame layout.
func TestBuildCommand(t *testing.T) {
	got := BuildCommand(CallProxyCommand, "p1", "run", "i1")
	if got != "c\np1\nrun\ni1\ne\n" {
		t.Errorf("Unexpected frame %q", got)
	}
	if ErrorMessageReply("a\nb") != "!xsa\\nb\n" {
		t.Errorf("Unexpected error frame %q", ErrorMessageReply("a\nb"))
	}
}

func TestErrorfCarriesStack(t *testing.T) {
	err := Errorf("bad frame %d", 3)
	var perr *ProtocolError
	if !errors.As(err, &perr) {
		t.Fatalf("Expected ProtocolError, got %T", err)
	}
	if err.Error() != "protocol error: bad frame 3" {
		t.Errorf("Unexpected message %q", err.Error())
	}
	if trace := fmt.Sprintf("%+v", err); !strings.Contains(trace, "TestErrorfCarriesStack") {
		t.Errorf("Expected a stack trace, got %q", trace)
	}
}
