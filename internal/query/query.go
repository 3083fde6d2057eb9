// Package query defines the query objects a layer module hands to a data
// provider. A query object is a tagged value: the Type field selects which of
// the other fields are meaningful.
package query

import (
	"errors"
	"fmt"
)

// Type is the tag of a query object.
type Type string

const (
	// TypeShape requests the full feature collection stored under Key.
	TypeShape Type = "shape"
	// TypeScalar requests the scalar time series of one class.
	TypeScalar Type = "scalar"
)

var (
	ErrUnknownType    = errors.New("unknown query type")
	ErrMissingKey     = errors.New("shape query requires a key")
	ErrMissingClassID = errors.New("scalar query requires a classId")
)

// Object is what a layer asks a provider for.
type Object struct {
	Type    Type   `json:"type" enum:"shape,scalar" doc:"Query kind"`
	Key     string `json:"key,omitempty" doc:"Shape data access key"`
	ClassID string `json:"classId,omitempty" doc:"Class identifier for scalar queries"`
}

// Shape builds a shape query for the given access key.
func Shape(key string) Object {
	return Object{Type: TypeShape, Key: key}
}

// Scalar builds a scalar query for one class.
func Scalar(classID string) Object {
	return Object{Type: TypeScalar, ClassID: classID}
}

// Validate reports whether the object carries the fields its tag needs.
func (o Object) Validate() error {
	switch o.Type {
	case TypeShape:
		if o.Key == "" {
			return ErrMissingKey
		}
	case TypeScalar:
		if o.ClassID == "" {
			return ErrMissingClassID
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownType, o.Type)
	}
	return nil
}

// String is used in log lines.
func (o Object) String() string {
	switch o.Type {
	case TypeShape:
		return "shape:" + o.Key
	case TypeScalar:
		return "scalar:" + o.ClassID
	}
	return string(o.Type)
}
