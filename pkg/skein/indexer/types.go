package indexer

// Terminal value type names.
const (
	TypeNumber           = "number"
	TypeString           = "string"
	TypeBool             = "bool"
	TypeElementReference = "elementReference"

	// Structural types; nodes of these types are never indexed.
	TypeAttributeValue      = "attributeValue"
	TypeFunctionApplication = "functionApplication"
	TypeDefun               = "defun"
	TypeNegation            = "negation"
	TypeRange               = "range"

	// Special pseudo-types understood by SetKeyValue only.
	TypeAttribute    = "attribute"
	TypeNonAttribute = "nonAttribute"
)

// neverIndexed reports whether nodes of the type stay out of
// sub-indexes.
func neverIndexed(typ string) bool {
	switch typ {
	case TypeAttributeValue, TypeFunctionApplication, TypeDefun, TypeNegation, TypeRange:
		return true
	}
	return false
}

// discreteType reports whether the type uses a discrete (hash)
// sub-index. Strings are discrete unless the path has alphabetic
// ranges enabled.
func discreteType(typ string, alphabeticRanges bool) bool {
	switch typ {
	case TypeBool, TypeElementReference:
		return true
	case TypeString:
		return !alphabeticRanges
	}
	return false
}

// normalizeKey maps a raw key to a canonical comparable representation
// usable as a map key.
func normalizeKey(typ string, key interface{}) interface{} {
	if typ == TypeNumber {
		return toFloat(key)
	}
	return key
}

// Lookup is one registered selection value: an exact scalar or an
// interval.
type Lookup struct {
	IsRange  bool
	Scalar   interface{}
	Interval Interval
}

// ScalarLookup builds an exact-match lookup.
func ScalarLookup(typ string, key interface{}) Lookup {
	return Lookup{Scalar: normalizeKey(typ, key)}
}

// RangeLookup builds an interval lookup.
func RangeLookup(typ string, min, max interface{}, minOpen, maxOpen bool) Lookup {
	return Lookup{
		IsRange: true,
		Interval: Interval{
			Type:    typ,
			Min:     normalizeKey(typ, min),
			Max:     normalizeKey(typ, max),
			MinOpen: minOpen,
			MaxOpen: maxOpen,
		},
	}
}
