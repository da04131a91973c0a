package tree

import (
	"fmt"
	"reflect"
	"strconv"
)

// listFind searches for an item in a list by field name
func listFind(l []interface{}, fields []string, key string) (interface{}, uint64, bool) {
	for _, field := range fields {
		for i, v := range l {
			idx := uint64(i)

			switch v.(type) {
			case map[string]interface{}:
				value, ok := v.(map[string]interface{})[field]
				if ok && value == key {
					return v, idx, true
				}
			case map[interface{}]interface{}:
				value, ok := v.(map[interface{}]interface{})[field]
				if ok && value == key {
					return v, idx, true
				}
			}
		}
	}
	return nil, 0, false
}

// Resolve resolves the cursor path in the given data structure
func (c *Cursor) Resolve(o interface{}) (interface{}, error) {
	var path []string

	for _, k := range c.Nodes {
		path = append(path, k)

		switch o.(type) {
		case map[string]interface{}:
			v, ok := o.(map[string]interface{})[k]
			if !ok {
				return nil, NotFoundError{
					Path: path,
				}
			}
			o = v

		case map[interface{}]interface{}:
			v, ok := o.(map[interface{}]interface{})[k]
			if !ok {
				/* key might not actually be a string.  let's iterate */
				k2 := fmt.Sprintf("%v", k)
				for k1, v1 := range o.(map[interface{}]interface{}) {
					if fmt.Sprintf("%v", k1) == k2 {
						v, ok = v1, true
						break
					}
				}
				if !ok {
					return nil, NotFoundError{
						Path: path,
					}
				}
			}
			o = v

		case []interface{}:
			i, err := strconv.ParseUint(k, 10, 0)
			if err == nil {
				// if k is an integer (in string form), go by index
				if int(i) >= len(o.([]interface{})) {
					return nil, NotFoundError{
						Path: path,
					}
				}
				o = o.([]interface{})[i]
				continue
			}

			// if k is a string, look for immediate map descendants who have
			//     'name', 'key' or 'id' fields matching k
			var found bool
			o, _, found = listFind(o.([]interface{}), NameFields, k)
			if !found {
				return nil, NotFoundError{
					Path: path,
				}
			}

		default:
			path = path[0 : len(path)-1]
			return nil, TypeMismatchError{
				Path:   path,
				Wanted: "a map or a list",
				Got:    "a scalar",
				Value:  o,
			}
		}
	}

	return o, nil
}

// ResolveString resolves the cursor path and returns the value as a string
func (c *Cursor) ResolveString(tree interface{}) (string, error) {
	o, err := c.Resolve(tree)
	if err != nil {
		return "", err
	}

	switch o.(type) {
	case string:
		return o.(string), nil
	case int:
		return fmt.Sprintf("%d", o.(int)), nil
	}
	return "", TypeMismatchError{
		Path:   c.Nodes,
		Wanted: "a string",
	}
}

// Find attempts to find the value at `path` inside data structure `o`.
// If found, returns it as a plain interface{} type, for you to
// typecheck + cast as you see fit. Errors will be
// returned for data of invalid type, or nonexistent paths.
func Find(o interface{}, path string) (interface{}, error) {
	c, err := ParseCursor(path)
	if err != nil {
		return nil, err
	}
	return c.Resolve(o)
}

// FindString attempts to find the value at `path` inside data structure `o`.
// If found, attempts to cast it as a string. Errors will be
// returned for data of invalid type, or nonexistent paths.
func FindString(o interface{}, path string) (string, error) {
	obj, err := Find(o, path)
	if err != nil {
		return "", err
	}
	if s, ok := obj.(string); ok {
		return s, nil
	}
	return "", fmt.Errorf("Invalid data type - wanted string, got %s", reflect.TypeOf(obj))
}
