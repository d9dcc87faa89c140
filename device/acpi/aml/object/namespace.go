package object

import (
	"gopheraml/kernel"
	"strings"

	"github.com/google/btree"
)

// btreeDegree is the fan-out of the per-scope child index.
const btreeDegree = 8

var (
	errDuplicateName = &kernel.Error{Module: "acpi_aml_namespace", Message: "name already exists in scope", Errno: kernel.EEXIST}
	errInvalidName   = &kernel.Error{Module: "acpi_aml_namespace", Message: "invalid NameSeg", Errno: kernel.EINVAL}
	errAlreadyNamed  = &kernel.Error{Module: "acpi_aml_namespace", Message: "object is already bound to a scope", Errno: kernel.EINVAL}
)

func lessByName(a, b *Object) bool { return a.name < b.name }

// NewRoot returns the root scope of a new namespace.
func NewRoot() *Object {
	root := NewScope()
	root.name = `\`
	root.Flags |= FlagNamed
	return root
}

// Name returns the object's NameSeg or an empty string for unnamed objects.
func (o *Object) Name() string { return o.name }

// Parent returns the scope containing this object.
func (o *Object) Parent() *Object { return o.parent }

// Root returns the root of the namespace containing o.
func (o *Object) Root() *Object {
	for o.parent != nil {
		o = o.parent
	}

	return o
}

// Path returns the absolute namespace path for o, e.g. `\_SB_.PCI0`.
func (o *Object) Path() string {
	if o.parent == nil {
		return o.name
	}

	var segs []string
	for cur := o; cur.parent != nil; cur = cur.parent {
		segs = append(segs, cur.name)
	}

	for i, j := 0, len(segs)-1; i < j; i, j = i+1, j-1 {
		segs[i], segs[j] = segs[j], segs[i]
	}

	return `\` + strings.Join(segs, ".")
}

// AddChild binds child to name in this scope.
func (o *Object) AddChild(name string, child *Object) error {
	if len(name) != 4 {
		return errInvalidName
	}

	if child.parent != nil {
		return errAlreadyNamed
	}

	if o.children == nil {
		o.children = btree.NewG[*Object](btreeDegree, lessByName)
	}

	child.name = name
	if _, found := o.children.Get(child); found {
		return errDuplicateName
	}

	child.parent = o
	child.Flags |= FlagNamed
	o.children.ReplaceOrInsert(child)
	return nil
}

// RemoveChild unbinds child from this scope.
func (o *Object) RemoveChild(child *Object) {
	if o.children == nil || child.parent != o {
		return
	}

	o.children.Delete(child)
	child.parent = nil
}

// Child returns the child bound to name or nil.
func (o *Object) Child(name string) *Object {
	if o.children == nil {
		return nil
	}

	child, _ := o.children.Get(&Object{name: name})
	return child
}

// Children returns the children of this scope sorted by name.
func (o *Object) Children() []*Object {
	if o.children == nil {
		return nil
	}

	out := make([]*Object, 0, o.children.Len())
	o.children.Ascend(func(child *Object) bool {
		out = append(out, child)
		return true
	})
	return out
}

// ChildCount returns the number of children bound in this scope.
func (o *Object) ChildCount() int {
	if o.children == nil {
		return 0
	}

	return o.children.Len()
}

// ResolveScopedPath examines a path expression and attempts to break it down
// into a parent and child segment. The parent segment is looked up via the
// regular scope rules specified in page 252 of the ACPI 6.2 spec. If the
// parent scope is found then the function returns back the parent object and
// the name of the child that should be appended to it. If the expression
// lookup fails then the function returns nil, "".
func ResolveScopedPath(curScope *Object, expr string) (parent *Object, name string) {
	if len(expr) <= 1 {
		return nil, ""
	}

	// Pattern looks like \FOO or ^+BAR or BAZ (relative to curScope)
	lastDotIndex := strings.LastIndexByte(expr, '.')
	if lastDotIndex == -1 {
		switch expr[0] {
		case '\\':
			return curScope.Root(), expr[1:]
		case '^':
			lastHatIndex := strings.LastIndexByte(expr, '^')
			if target := findScope(curScope, expr[:lastHatIndex+1]); target != nil {
				return target, expr[lastHatIndex+1:]
			}

			return nil, ""
		default:
			return curScope, expr
		}
	}

	// Pattern looks like: \FOO.BAR.BAZ or ^+FOO.BAR.BAZ or FOO.BAR.BAZ
	if target := findScope(curScope, expr[:lastDotIndex]); target != nil {
		return target, expr[lastDotIndex+1:]
	}

	return nil, ""
}

// findScope looks up name and follows any alias it resolves to.
func findScope(curScope *Object, name string) *Object {
	target, err := Find(curScope, name).Resolve()
	if err != nil {
		return nil
	}

	return target
}

// Find attempts to find an object with the given name using the rules
// specified in page 252 of the ACPI 6.2 spec:
//
// There are two types of namespace paths: an absolute namespace path (that is,
// one that starts with a ‘\’ prefix), and a relative namespace path (that is,
// one that is relative to the current namespace). The namespace search rules
// discussed above, only apply to single NameSeg paths, which is a relative
// namespace path. For those relative name paths that contain multiple NameSegs
// or Parent Prefixes, ‘^’, the search rules do not apply. If the search rules
// do not apply to a relative namespace path, the namespace object is looked up
// relative to the current namespace
//
// Aliases met while walking intermediate segments are followed; the final
// object is returned as-is.
func Find(curScope *Object, name string) *Object {
	nameLen := len(name)
	if nameLen == 0 || curScope == nil {
		return nil
	}

	switch {
	case name[0] == '\\': // relative to the root scope
		if nameLen > 1 {
			return findRelativeToScope(curScope.Root(), name[1:])
		}

		// Name was just `\`; this matches the root namespace
		return curScope.Root()
	case name[0] == '^': // relative to the parent scope(s)
		for startIndex := 0; startIndex < nameLen; startIndex++ {
			switch name[startIndex] {
			case '^':
				curScope = curScope.Parent()

				// No parent to visit
				if curScope == nil {
					return nil
				}
			default:
				// Found the start of the name. Look it up relative to curScope
				return findRelativeToScope(curScope, name[startIndex:])
			}
		}

		// Name was just a sequence of '^'; this matches the last curScope value
		return curScope
	case strings.ContainsRune(name, '.'):
		// If the name contains any '.' then we still need to look it
		// up relative to the current scope
		return findRelativeToScope(curScope, name)
	default:
		// We can apply the search rules described by the ACPI specification
		for s := curScope; s != nil; s = s.Parent() {
			if child := s.Child(name); child != nil {
				return child
			}
		}
	}

	// Not found
	return nil
}

// findRelativeToScope returns the object referenced by path relative to
// scope. If the name contains dots, each segment is used to access a nested
// scope.
func findRelativeToScope(scope *Object, path string) *Object {
	for {
		dotSepIndex := strings.IndexByte(path, '.')
		if dotSepIndex == -1 {
			return scope.Child(path)
		}

		next := scope.Child(path[:dotSepIndex])
		if next == nil {
			return nil
		}

		var err error
		if scope, err = next.Resolve(); err != nil || scope == nil {
			return nil
		}
		path = path[dotSepIndex+1:]
	}
}
