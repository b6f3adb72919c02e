package py4go

import (
	"strings"
	"testing"
)

func TestHelpPage(t *testing.T) {
	g := newTestGateway(t)
	class, ok := g.ClassForName("java.lang.Math", nil)
	if !ok {
		t.Fatal("Expected java.lang.Math to be registered")
	}

	page, err := HelpPage(class, "", true)
	if err != nil {
		t.Fatalf("HelpPage failed: %v", err)
	}
	for _, want := range []string{
		"Help on class Math in package java.lang:",
		helpMethodsTitle,
		helpFieldsTitle,
		"|  sqrt(",
		"|  PI : ",
	} {
		if !strings.Contains(page, want) {
			t.Errorf("Expected %q in:\n%s", want, page)
		}
	}

	page, err = HelpPage(class, "sqrt*", true)
	if err != nil {
		t.Fatalf("HelpPage failed: %v", err)
	}
	if !strings.Contains(page, "sqrt(") || strings.Contains(page, "pow(") || strings.Contains(page, "PI : ") {
		t.Errorf("Expected only sqrt to match, got:\n%s", page)
	}
}

func TestHelpCommand(t *testing.T) {
	g := newTestGateway(t)
	peer := startConnection(t, g, ConnectionConfig{})

	got := peer.call(t, "h\nc\njava.lang.Math\nssqrt*\nbtrue\ne\n")
	if !strings.HasPrefix(got, "!ysHelp on class Math") {
		t.Errorf("Expected a help page, got %q", got)
	}
	got = peer.call(t, "h\no\nt\nn\nbfalse\ne\n")
	if !strings.HasPrefix(got, "!ysHelp on class ") || !strings.Contains(got, "greeting(") {
		t.Errorf("Expected the entry point's help page, got %q", got)
	}
	if got := peer.call(t, "h\nx\nt\nn\nbfalse\ne\n"); !strings.HasPrefix(got, "!xs") {
		t.Errorf("Expected an error for an unknown subcommand, got %q", got)
	}
}

func TestHelpRegexp(t *testing.T) {
	re, err := helpRegexp("get*(int)")
	if err != nil {
		t.Fatalf("helpRegexp failed: %v", err)
	}
	if !re.MatchString("getItem(int)") || re.MatchString("setItem(int)") {
		t.Errorf("Unexpected matching for %s", re)
	}
}
