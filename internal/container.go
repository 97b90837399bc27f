// Package internal provides internal implementation for the servex package.
package internal

import (
	"reflect"
	"sync"

	"go.eggybyte.com/servex/core/errors"
)

// Container is a small reflection-based dependency injection container used
// by App during route registration.
type Container struct {
	mu           sync.Mutex
	constructors map[reflect.Type]reflect.Value
	instances    map[reflect.Type]reflect.Value
	building     map[reflect.Type]bool
}

// NewContainer creates an empty container.
func NewContainer() *Container {
	return &Container{
		constructors: make(map[reflect.Type]reflect.Value),
		instances:    make(map[reflect.Type]reflect.Value),
		building:     make(map[reflect.Type]bool),
	}
}

// Provide registers a constructor function. The constructor must return one
// value, optionally followed by an error. Its parameters are resolved from
// other registered constructors.
func (c *Container) Provide(constructor any) error {
	v := reflect.ValueOf(constructor)
	t := v.Type()

	if t.Kind() != reflect.Func {
		return errors.Newf(errors.CodeInvalidArgument, "constructor must be a function, got %T", constructor)
	}
	if t.NumOut() == 0 || t.NumOut() > 2 {
		return errors.Newf(errors.CodeInvalidArgument, "constructor must return 1 or 2 values, got %d", t.NumOut())
	}
	if t.NumOut() == 2 {
		errType := reflect.TypeOf((*error)(nil)).Elem()
		if !t.Out(1).Implements(errType) {
			return errors.Newf(errors.CodeInvalidArgument, "constructor's second return value must be error, got %s", t.Out(1))
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.constructors[t.Out(0)] = v
	return nil
}

// Resolve builds (or reuses) an instance of the target's type and stores it
// in the provided pointer.
func (c *Container) Resolve(target any) error {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Ptr {
		return errors.New(errors.CodeInvalidArgument, "resolve target must be a pointer")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	instance, err := c.build(v.Elem().Type())
	if err != nil {
		return err
	}

	v.Elem().Set(instance)
	return nil
}

// build resolves an instance, constructing dependencies recursively. Callers
// must hold c.mu.
func (c *Container) build(typ reflect.Type) (reflect.Value, error) {
	if instance, ok := c.instances[typ]; ok {
		return instance, nil
	}
	if c.building[typ] {
		return reflect.Value{}, errors.Newf(errors.CodeCycleDetected, "circular dependency detected for type %s", typ)
	}

	constructor, ok := c.constructors[typ]
	if !ok {
		return reflect.Value{}, errors.Newf(errors.CodeNotFound, "no constructor registered for type %s", typ)
	}

	c.building[typ] = true
	defer delete(c.building, typ)

	ct := constructor.Type()
	args := make([]reflect.Value, ct.NumIn())
	for i := 0; i < ct.NumIn(); i++ {
		arg, err := c.build(ct.In(i))
		if err != nil {
			return reflect.Value{}, errors.Wrapf(errors.CodeInternal, "container.build", err, "failed to resolve dependency %s", ct.In(i))
		}
		args[i] = arg
	}

	results := constructor.Call(args)
	if len(results) == 2 && !results[1].IsNil() {
		return reflect.Value{}, errors.Wrap(errors.CodeInternal, "container.build", results[1].Interface().(error))
	}

	c.instances[typ] = results[0]
	return results[0], nil
}
