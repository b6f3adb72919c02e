package py4go

import (
	"context"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/richinsley/py4go/protocol"
	"github.com/richinsley/py4go/reflection"
)

const (
	helpPrefix       = "|  "
	helpDoubleLines  = "\n" + helpPrefix + "\n"
	helpSeparator    = helpPrefix + "------------------------------------------------------------\n"
	helpMethodsTitle = "Methods defined here:"
	helpFieldsTitle  = "Fields defined here:"
	helpClassesTitle = "Internal classes defined here:"
)

// HelpCommand renders a help page:
//
//	h o <object id> <pattern> <short names> e
//	h c <class> <pattern> <short names> e
//
// The pattern is a glob over member signatures, or null for all members.
func HelpCommand(ctx context.Context, req *Request) error {
	parts, err := req.lines(4)
	if err != nil {
		return err
	}
	g := req.Gateway

	var class *reflection.Class
	switch parts[0] {
	case protocol.HelpObject:
		obj, err := req.object(parts[1])
		if err != nil {
			return err
		}
		if class, err = g.Engine().ClassOf(obj); err != nil {
			return err
		}
	case protocol.HelpClass:
		var ok bool
		if class, ok = g.ClassForName(parts[1], nil); !ok {
			return errors.Errorf("class %s not found", parts[1])
		}
	default:
		return req.Reply(protocol.ErrorMessageReply("Unknown Help SubCommand Name: " + parts[0]))
	}

	pattern, err := g.DecodeValue(parts[2])
	if err != nil {
		return err
	}
	short, err := g.DecodeValue(parts[3])
	if err != nil {
		return err
	}
	glob, _ := pattern.(string)
	shortName, _ := short.(bool)
	page, err := HelpPage(class, glob, shortName)
	if err != nil {
		return err
	}
	return req.ReplyObject(g.GetReturnObject(page))
}

// HelpPage renders the pydoc-like page for class, keeping the members whose
// signature matches the glob pattern. An empty pattern keeps everything.
func HelpPage(class *reflection.Class, pattern string, shortName bool) (string, error) {
	re, err := helpRegexp(pattern)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("Help on class ")
	b.WriteString(reflection.ShortName(class.Name))
	b.WriteString(" in package ")
	b.WriteString(reflection.PackageName(class.Name))
	b.WriteString(":\n\n")
	b.WriteString(class.Signature(shortName))
	b.WriteString(" {")
	b.WriteString(helpDoubleLines)

	b.WriteString(helpPrefix + helpMethodsTitle + helpDoubleLines)
	for _, sig := range methodSignatures(class, shortName) {
		if re.MatchString(sig) {
			b.WriteString(helpPrefix + sig + helpDoubleLines)
		}
	}

	b.WriteString(helpSeparator)
	b.WriteString(helpPrefix + helpFieldsTitle + helpDoubleLines)
	for _, sig := range fieldSignatures(class, shortName) {
		if re.MatchString(sig) {
			b.WriteString(helpPrefix + sig + helpDoubleLines)
		}
	}

	b.WriteString(helpSeparator)
	b.WriteString(helpPrefix + helpClassesTitle + helpDoubleLines)
	for _, inner := range class.NestedClasses() {
		b.WriteString(helpPrefix + inner.Signature(shortName) + helpDoubleLines)
	}
	b.WriteString("}\n")
	return b.String(), nil
}

// helpRegexp turns a glob such as "get*(int)" into an anchored expression.
func helpRegexp(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return regexp.Compile(".*")
	}
	p := strings.TrimSpace(pattern)
	p = strings.NewReplacer(
		".", `\.`,
		"*", ".*",
		"?", ".?",
		"(", `\(`,
		")", `\)`,
	).Replace(p)
	re, err := regexp.Compile("^" + p + "$")
	if err != nil {
		return nil, errors.Wrapf(err, "bad help pattern %q", pattern)
	}
	return re, nil
}

func methodSignatures(class *reflection.Class, shortName bool) []string {
	var sigs []string
	for _, kind := range []reflection.MemberKind{reflection.MethodMember, reflection.StaticMember} {
		for _, m := range class.Members(kind) {
			sigs = append(sigs, m.Signature(shortName))
		}
	}
	sort.Strings(sigs)
	return sigs
}

func fieldSignatures(class *reflection.Class, shortName bool) []string {
	var sigs []string
	display := func(t reflect.Type) string {
		name := reflection.TypeName(t)
		if shortName {
			return reflection.ShortName(name)
		}
		return name
	}
	if t := class.Type; t != nil {
		if t.Kind() == reflect.Ptr {
			t = t.Elem()
		}
		if t.Kind() == reflect.Struct {
			for _, f := range reflect.VisibleFields(t) {
				if f.IsExported() && !f.Anonymous {
					sigs = append(sigs, reflection.WireName(f.Name)+" : "+display(f.Type))
				}
			}
		}
	}
	for _, name := range class.StaticFieldNames() {
		v, _ := class.StaticFieldValue(name)
		sigs = append(sigs, name+" : "+display(v.Type()))
	}
	sort.Strings(sigs)
	return sigs
}
