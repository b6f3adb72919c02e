package py4go

import (
	"context"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/richinsley/py4go/protocol"
	"github.com/richinsley/py4go/reflection"
)

// ReflectionCommand answers name lookups made while the interpreter walks a
// dotted path such as java.util.ArrayList:
//
//	r u <name> <view> e      class ("!yc<fqn>") or package ("!yp")
//	r m <class> <member> e   static field value, "!ym" or "!yc<fqn$Inner>"
//	r c <class> e            the class object itself
func ReflectionCommand(ctx context.Context, req *Request) error {
	parts, err := req.lines(2)
	if err != nil {
		return err
	}
	g := req.Gateway

	switch parts[0] {
	case protocol.ReflectionUnknown:
		var view *JVMView
		if len(parts) > 2 {
			if view, err = viewArg(g, parts[2]); err != nil {
				return err
			}
		}
		if class, ok := g.ClassForName(parts[1], view); ok {
			return req.Reply(protocol.MemberReply(protocol.ClassType, class.Name))
		}
		return req.Reply(protocol.MemberReply(protocol.PackageType, ""))

	case protocol.ReflectionMember:
		if len(parts) < 3 {
			return protocol.Errorf("reflection member needs a class and a name")
		}
		class, ok := g.ClassForName(parts[1], nil)
		if !ok {
			return req.Reply(protocol.ErrorReply)
		}
		return req.Reply(staticMember(g, class, parts[2]))

	case protocol.ReflectionJavaClass:
		class, ok := g.ClassForName(parts[1], nil)
		if !ok {
			return req.Reply(protocol.ErrorMessageReply("The class " + parts[1] + " does not exist."))
		}
		return req.ReplyObject(g.GetReturnObject(class))
	}
	return req.Reply(protocol.ErrorMessageReply("Unknown Reflection SubCommand Name: " + parts[0]))
}

func staticMember(g *Gateway, class *reflection.Class, member string) string {
	if v, ok := g.Engine().GetStaticField(class, member); ok {
		return g.GetReturnObject(v).Reply()
	}
	if class.HasMember(reflection.StaticMember, member) {
		return protocol.MemberReply(protocol.MethodType, "")
	}
	if class.HasMember(reflection.MethodMember, member) {
		return protocol.ErrorMessageReply("Trying to access a non-static member from a static context.")
	}
	if inner, ok := class.NestedClass(member); ok {
		return protocol.MemberReply(protocol.ClassType, inner.Name)
	}
	return protocol.ErrorReply
}

// JVMViewCommand manages import scopes:
//
//	j c <name> e                 new view, answered with its reference
//	j i <view> <import> e        import a class or, with ".*", a package
//	j r <view> <import> e        remove an import, answered with a boolean
//	j s <view> <last seq> e      imported names if changed since last seq
func JVMViewCommand(ctx context.Context, req *Request) error {
	parts, err := req.lines(2)
	if err != nil {
		return err
	}
	g := req.Gateway

	if parts[0] == protocol.JVMViewCreate {
		view := NewJVMView(protocol.Unescape(parts[1]), "")
		ro := g.GetReturnObject(view)
		view.id = ro.ID
		return req.ReplyObject(ro)
	}

	view, err := viewArg(g, parts[1])
	if err != nil {
		return err
	}
	switch parts[0] {
	case protocol.JVMViewImport, protocol.JVMViewRemoveImport:
		if len(parts) < 3 {
			return protocol.Errorf("import needs a name")
		}
		name := protocol.Unescape(parts[2])
		pkg, star := strings.CutSuffix(name, ".*")
		if parts[0] == protocol.JVMViewImport {
			if star {
				view.AddStarImport(pkg)
			} else {
				view.AddSingleImport(name)
			}
			return req.Reply(protocol.VoidReply)
		}
		var removed bool
		if star {
			removed = view.RemoveStarImport(pkg)
		} else {
			removed = view.RemoveSingleImport(name)
		}
		return req.ReplyObject(g.GetReturnObject(removed))

	case protocol.JVMViewQuery:
		last, err := lastSequence(g, parts[2:])
		if err != nil {
			return err
		}
		return req.Reply(viewNamesReply(view, last))
	}
	return req.Reply(protocol.ErrorMessageReply("Unknown JVM View SubCommand Name: " + parts[0]))
}

// DirCommand lists member names, one per line in a single string:
//
//	d f <object id> e
//	d m <object id> e
//	d s <class> e
//	d v <view> <last seq> e   "seq\nname..." or null when unchanged
func DirCommand(ctx context.Context, req *Request) error {
	parts, err := req.lines(2)
	if err != nil {
		return err
	}
	g := req.Gateway
	engine := g.Engine()

	var names []string
	switch parts[0] {
	case protocol.DirFields, protocol.DirMethods:
		target, err := req.object(parts[1])
		if err != nil {
			return err
		}
		if parts[0] == protocol.DirFields {
			names = engine.FieldNames(target)
		} else {
			names = engine.MethodNames(target)
		}
	case protocol.DirStatic:
		class, ok := g.ClassForName(parts[1], nil)
		if !ok {
			return errors.Errorf("class %s not found", parts[1])
		}
		names = engine.StaticNames(class)
	case protocol.DirJVMView:
		view, err := viewArg(g, parts[1])
		if err != nil {
			return err
		}
		last, err := lastSequence(g, parts[2:])
		if err != nil {
			return err
		}
		return req.Reply(viewNamesReply(view, last))
	default:
		return req.Reply(protocol.ErrorMessageReply("Unknown Dir SubCommand Name: " + parts[0]))
	}
	return req.ReplyObject(g.GetReturnObject(strings.Join(names, "\n")))
}

func viewNamesReply(view *JVMView, last int64) string {
	seq, names, changed := view.Query(last)
	if !changed {
		return NullReturnObject.Reply()
	}
	lines := append([]string{strconv.FormatInt(seq, 10)}, names...)
	return protocol.SuccessReply(string(protocol.StringType) + protocol.Escape(strings.Join(lines, "\n")))
}

func viewArg(g *Gateway, part string) (*JVMView, error) {
	v, err := g.DecodeValue(part)
	if err != nil {
		return nil, err
	}
	view, ok := v.(*JVMView)
	if !ok {
		return nil, errors.Errorf("%s is not a view", part)
	}
	return view, nil
}

func lastSequence(g *Gateway, parts []string) (int64, error) {
	if len(parts) == 0 {
		return 0, nil
	}
	v, err := g.DecodeValue(parts[0])
	if err != nil {
		return 0, err
	}
	switch x := v.(type) {
	case nil:
		return 0, nil
	case string:
		n, err := strconv.ParseInt(x, 10, 64)
		if err != nil {
			return 0, errors.Wrap(err, "bad sequence id")
		}
		return n, nil
	}
	n, err := toInt(v)
	return int64(n), err
}
