// Package types implements Quartz's type pool: simple types are process-wide
// singletons, composite types (function/class/object/array/alias) are
// allocated once in a pointer-stable arena and handed out by value-equality
// lookup.
package types

import "strings"

type Kind int

const (
	Number Kind = iota
	Bool
	Nil
	String
	Void
	Unknown
	Any
	Function
	Class
	Object
	Array
	Alias
)

func (k Kind) String() string {
	switch k {
	case Number:
		return "Number"
	case Bool:
		return "Bool"
	case Nil:
		return "Nil"
	case String:
		return "String"
	case Void:
		return "Void"
	case Unknown:
		return "Unknown"
	case Any:
		return "Any"
	case Function:
		return "Function"
	case Class:
		return "Class"
	case Object:
		return "Object"
	case Array:
		return "Array"
	case Alias:
		return "Alias"
	default:
		return "?"
	}
}

// Type is a tagged variant over every Quartz type shape. Instances handed
// out by a *Pool are never moved or freed individually; the pool itself
// owns them for the whole compile-plus-run cycle.
type Type struct {
	Kind Kind

	// Function
	Params []*Type
	Return *Type

	// Class / Object: Name identifies the class; ObjectOf points back at
	// the Class type for an Object{class:Type}.
	Name     string
	ObjectOf *Type

	// Array
	Inner *Type

	// Alias
	AliasName string
	AliasDef  *Type
}

// --- simple type singletons ---------------------------------------------

var (
	numberSingleton  = &Type{Kind: Number}
	boolSingleton    = &Type{Kind: Bool}
	nilSingleton     = &Type{Kind: Nil}
	stringSingleton  = &Type{Kind: String}
	voidSingleton    = &Type{Kind: Void}
	unknownSingleton = &Type{Kind: Unknown}
	anySingleton     = &Type{Kind: Any}
)

func NumberType() *Type  { return numberSingleton }
func BoolType() *Type    { return boolSingleton }
func NilType() *Type     { return nilSingleton }
func StringType() *Type  { return stringSingleton }
func VoidType() *Type    { return voidSingleton }
func UnknownType() *Type { return unknownSingleton }
func AnyType() *Type     { return anySingleton }

// --- pointer-stable arena -------------------------------------------------

const bucketCapacity = 256

// bucket is a fixed-capacity, never-resized array of Types; the pool is a
// forward-linked chain of buckets so that a *Type handed out earlier stays
// valid no matter how many more types are interned afterwards.
type bucket struct {
	items [bucketCapacity]Type
	used  int
	next  *bucket
}

// Pool is an append-only arena of composite Type records, interned by
// structural value where cheap. One Pool is shared by the parser, checker,
// emitter and VM for a single compile-plus-run cycle.
type Pool struct {
	head *bucket
	tail *bucket

	functions []*Type
	classes   map[string]*Type
	objects   []*Type
	arrays    []*Type
	aliases   map[string]*Type
}

func NewPool() *Pool {
	b := &bucket{}
	return &Pool{
		head:    b,
		tail:    b,
		classes: map[string]*Type{},
		aliases: map[string]*Type{},
	}
}

// alloc returns a pointer into the arena for a freshly-built Type, growing
// the bucket chain if the current tail is full.
func (p *Pool) alloc(t Type) *Type {
	if p.tail.used == bucketCapacity {
		next := &bucket{}
		p.tail.next = next
		p.tail = next
	}
	idx := p.tail.used
	p.tail.items[idx] = t
	p.tail.used++
	return &p.tail.items[idx]
}

// Function interns (params, ret) -> Function type, reusing an existing
// entry if one with identical structural shape already exists.
func (p *Pool) Function(params []*Type, ret *Type) *Type {
	// Exact pointer match on each part (all of which are themselves
	// singletons or pool-interned): Equals would treat Any as a wildcard and
	// merge distinct shapes.
	for _, existing := range p.functions {
		if existing.Return != ret || len(existing.Params) != len(params) {
			continue
		}
		same := true
		for i := range params {
			same = same && existing.Params[i] == params[i]
		}
		if same {
			return existing
		}
	}
	t := p.alloc(Type{Kind: Function, Params: append([]*Type{}, params...), Return: ret})
	p.functions = append(p.functions, t)
	return t
}

func sameParams(a, b []*Type) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equals(a[i], b[i]) {
			return false
		}
	}
	return true
}

// Class interns a nominal class type by name; declaring the same class
// name twice yields the same *Type.
func (p *Pool) Class(name string) *Type {
	if existing, ok := p.classes[name]; ok {
		return existing
	}
	t := p.alloc(Type{Kind: Class, Name: name})
	p.classes[name] = t
	return t
}

// Object returns the Object{class} type wrapping a Class type.
func (p *Pool) Object(class *Type) *Type {
	for _, existing := range p.objects {
		if existing.ObjectOf == class {
			return existing
		}
	}
	t := p.alloc(Type{Kind: Object, ObjectOf: class})
	p.objects = append(p.objects, t)
	return t
}

// Array interns Array{inner}.
func (p *Pool) Array(inner *Type) *Type {
	for _, existing := range p.arrays {
		if existing.Inner == inner {
			return existing
		}
	}
	t := p.alloc(Type{Kind: Array, Inner: inner})
	p.arrays = append(p.arrays, t)
	return t
}

// Alias interns a typedef by name; the def it owns a copy of the name
// string so equality unwraps aliases regardless of later pool growth.
func (p *Pool) Alias(name string, def *Type) *Type {
	if existing, ok := p.aliases[name]; ok {
		return existing
	}
	t := p.alloc(Type{Kind: Alias, AliasName: strings.Clone(name), AliasDef: def})
	p.aliases[name] = t
	return t
}

// Resolve unwraps Alias chains down to the first non-alias Type.
func Resolve(t *Type) *Type {
	for t != nil && t.Kind == Alias {
		t = t.AliasDef
	}
	return t
}

// Equals is structural for Function/Array/Class (by name), identity-or-
// structural for the rest, and always unwraps aliases first. Ported from
// qcc/type.h's TYPE_EQUALS, which compares Kind, never a token kind — see
// DESIGN.md.
func Equals(a, b *Type) bool {
	a, b = Resolve(a), Resolve(b)
	if a == nil || b == nil {
		return a == b
	}
	if a == b {
		return true
	}
	if a.Kind == Any || b.Kind == Any {
		return true
	}
	if a.Kind != b.Kind {
		return false
	}

	switch a.Kind {
	case Function:
		return sameParams(a.Params, b.Params) && Equals(a.Return, b.Return)
	case Class:
		return a.Name == b.Name
	case Object:
		return Equals(a.ObjectOf, b.ObjectOf)
	case Array:
		return Equals(a.Inner, b.Inner)
	default:
		return true // simple kinds already matched above via a.Kind == b.Kind
	}
}

// AssignableTo reports whether a value of type `from` may be assigned to a
// location of type `to`. Any is assignable to/from anything; Unknown is the
// bottom/uninferred type.
func AssignableTo(from, to *Type) bool {
	from, to = Resolve(from), Resolve(to)
	if from == nil || to == nil {
		return false
	}
	if from.Kind == Any || to.Kind == Any {
		return true
	}
	if from.Kind == Unknown || to.Kind == Unknown {
		return true
	}
	return Equals(from, to)
}

func (t *Type) String() string {
	if t == nil {
		return "<nil type>"
	}
	switch t.Kind {
	case Function:
		parts := make([]string, len(t.Params))
		for i, p := range t.Params {
			parts[i] = p.String()
		}
		return "(" + strings.Join(parts, ", ") + "): " + t.Return.String()
	case Class:
		return t.Name
	case Object:
		return "Object{" + t.ObjectOf.String() + "}"
	case Array:
		return "[]" + t.Inner.String()
	case Alias:
		return t.AliasName
	default:
		return t.Kind.String()
	}
}
