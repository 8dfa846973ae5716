package node

import (
	"reflect"

	"golang.org/x/xerrors"
)

// reflectInjector resolves dependencies by reflection: a dependency satisfies
// a request when its type is assignable to the requested one.
//
// - implements node.Injector
type reflectInjector struct {
	mapper map[reflect.Type]interface{}
}

// NewInjector returns a empty injector.
func NewInjector() Injector {
	return &reflectInjector{
		mapper: make(map[reflect.Type]interface{}),
	}
}

// Resolve implements node.Injector. It populates the given pointer with the
// first compatible dependency.
func (inj *reflectInjector) Resolve(v interface{}) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr {
		return xerrors.New("expect a pointer")
	}

	if !rv.Elem().IsValid() {
		return xerrors.Errorf("reflect value '%v' is invalid", rv)
	}

	for typ, value := range inj.mapper {
		if typ.AssignableTo(rv.Elem().Type()) {
			rv.Elem().Set(reflect.ValueOf(value))
			return nil
		}
	}

	return xerrors.Errorf("couldn't find dependency for '%v'", rv.Elem().Type())
}

// Inject implements node.Injector. It stores the dependency, replacing any
// previous one of the exact same type.
func (inj *reflectInjector) Inject(v interface{}) {
	key := reflect.TypeOf(v)
	inj.mapper[key] = v
}
