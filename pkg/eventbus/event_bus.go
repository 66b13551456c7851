// Package eventbus delivers in-process notifications to handlers whose
// parameter list matches the published arguments.
package eventbus

import (
	"reflect"
	"sync"

	"github.com/sirupsen/logrus"
)

type EventBus interface {
	Publish(args ...any)
	Subscribe(handler any)
	Unsubscribe(handler any)
	Clear()
	SubscribersCount() int
}

type bus struct {
	mu       sync.RWMutex
	log      *logrus.Logger
	handlers []reflect.Value
}

func NewEventPublisher(log *logrus.Logger) EventBus {
	return &bus{log: log}
}

// MatchSignature reports whether handler can be called with args.
func MatchSignature(handler any, args []any) bool {
	t := reflect.TypeOf(handler)
	if t == nil || t.Kind() != reflect.Func {
		return false
	}
	if t.NumIn() != len(args) {
		return false
	}
	for i, arg := range args {
		paramType := t.In(i)
		if arg == nil {
			if paramType.Kind() != reflect.Interface && paramType.Kind() != reflect.Ptr {
				return false
			}
			continue
		}
		argType := reflect.TypeOf(arg)
		if paramType.Kind() == reflect.Interface {
			if !argType.Implements(paramType) {
				return false
			}
			continue
		}
		if !argType.AssignableTo(paramType) {
			return false
		}
	}
	return true
}

func (b *bus) Publish(args ...any) {
	b.mu.RLock()
	handlers := make([]reflect.Value, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	handled := false
	for _, h := range handlers {
		if !MatchSignature(h.Interface(), args) {
			continue
		}
		b.call(h, callArgs(h.Type(), args), args)
		handled = true
	}

	if !handled && b.log != nil {
		b.log.Warnf("eventbus.Publish: no matching subscribers for event with args: %v", args)
	}
}

func callArgs(t reflect.Type, args []any) []reflect.Value {
	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		if arg == nil {
			in[i] = reflect.Zero(t.In(i))
			continue
		}
		in[i] = reflect.ValueOf(arg)
	}
	return in
}

func (b *bus) call(h reflect.Value, in []reflect.Value, args []any) {
	defer func() {
		if r := recover(); r != nil && b.log != nil {
			b.log.Errorf("eventbus: handler %s panicked with args %v: %v", h.Type().String(), args, r)
		}
	}()
	h.Call(in)
}

func (b *bus) Subscribe(handler any) {
	v := reflect.ValueOf(handler)
	if v.Kind() != reflect.Func {
		panic("handler must be a function")
	}
	b.mu.Lock()
	b.handlers = append(b.handlers, v)
	b.mu.Unlock()
}

func (b *bus) Unsubscribe(handler any) {
	ptr := reflect.ValueOf(handler).Pointer()
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, h := range b.handlers {
		if h.Pointer() == ptr {
			b.handlers = append(b.handlers[:i], b.handlers[i+1:]...)
			return
		}
	}
}

func (b *bus) Clear() {
	b.mu.Lock()
	b.handlers = nil
	b.mu.Unlock()
}

func (b *bus) SubscribersCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers)
}
