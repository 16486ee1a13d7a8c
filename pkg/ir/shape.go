package ir

// ShapeKind discriminates the Shape variants.
type ShapeKind string

const (
	KindPrimitive ShapeKind = "primitive"
	KindLiteral   ShapeKind = "literal"
	KindObject    ShapeKind = "object"
	KindArray     ShapeKind = "array"
	KindRef       ShapeKind = "ref"
	KindUnknown   ShapeKind = "unknown"
)

// PrimitiveKind is the scalar type of a primitive or literal value.
type PrimitiveKind string

const (
	String  PrimitiveKind = "string"
	Number  PrimitiveKind = "number"
	Boolean PrimitiveKind = "boolean"
)

// Shape is the canonical, adapter-independent description of a value.
// Exactly one group of fields is meaningful, selected by Kind:
//
//	KindPrimitive  Primitive
//	KindLiteral    Literals (ordered, no duplicates)
//	KindObject     Fields (declaration order)
//	KindArray      Elem
//	KindRef        Ref and Target
//	KindUnknown    nothing
//
// Shapes are immutable once the normalizer returns them and may be shared,
// so the graph is a DAG rather than a tree.
type Shape struct {
	Kind      ShapeKind
	Primitive PrimitiveKind
	Literals  []Literal
	Fields    []Field
	Elem      *Shape
	Ref       string
	Target    *Shape
}

// Literal is a single constant. Raw holds its JSON encoding, e.g. `"world"`,
// `42` or `true`.
type Literal struct {
	Kind PrimitiveKind
	Raw  string
}

// Field is one named member of an object shape.
type Field struct {
	Name     string
	Shape    *Shape
	Required bool
}

// NewPrimitive returns a primitive shape.
func NewPrimitive(kind PrimitiveKind) *Shape {
	return &Shape{Kind: KindPrimitive, Primitive: kind}
}

// NewLiteralUnion returns a literal union, dropping repeated values.
func NewLiteralUnion(values ...Literal) *Shape {
	s := &Shape{Kind: KindLiteral}
	seen := make(map[Literal]bool, len(values))
	for _, v := range values {
		if seen[v] {
			continue
		}
		seen[v] = true
		s.Literals = append(s.Literals, v)
	}
	return s
}

// NewObject returns an object shape with the given fields.
func NewObject(fields ...Field) *Shape {
	return &Shape{Kind: KindObject, Fields: fields}
}

// NewArray returns an array of elem.
func NewArray(elem *Shape) *Shape {
	return &Shape{Kind: KindArray, Elem: elem}
}

// NewRef returns a reference to a named definition.
func NewRef(name string, target *Shape) *Shape {
	return &Shape{Kind: KindRef, Ref: name, Target: target}
}

// NewUnknown returns the unconstrained shape.
func NewUnknown() *Shape {
	return &Shape{Kind: KindUnknown}
}

// Resolve follows references until it reaches a non-reference shape.
func Resolve(s *Shape) *Shape {
	for s != nil && s.Kind == KindRef {
		s = s.Target
	}
	return s
}

// Field returns the field called name, if any.
func (s *Shape) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// LiteralKinds reports the distinct primitive kinds used by a literal union,
// in first-seen order.
func (s *Shape) LiteralKinds() []PrimitiveKind {
	var kinds []PrimitiveKind
	for _, l := range s.Literals {
		dup := false
		for _, k := range kinds {
			if k == l.Kind {
				dup = true
				break
			}
		}
		if !dup {
			kinds = append(kinds, l.Kind)
		}
	}
	return kinds
}
