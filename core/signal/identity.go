package signal

import (
	"reflect"
	"weak"
)

// Any is the sentinel sender meaning "no sender filter". A receiver connected
// with Any is notified on every emission of the signal.
var Any any = &anySentinel{name: "ANY"}

type anySentinel struct{ name string }

func (a *anySentinel) String() string { return a.name }

// isAny reports whether sender is the Any sentinel. A type assertion is used
// instead of == so that non-comparable senders cannot panic the check.
func isAny(sender any) bool {
	_, ok := sender.(*anySentinel)
	return ok
}

// anyID is the reserved bucket key under which Any registrations are indexed.
type anyIDType struct{}

var anyID any = anyIDType{}

// refKey is the stable identity of a registered receiver.
//
// Free receivers get a unique handle at construction time, so identity never
// depends on memory addresses. Bound receivers are keyed by the owning
// instance (a weak pointer, which compares equal across separate Bind calls
// on the same owner) plus the method's code pointer, so the same logical
// binding always resolves to the same key.
type refKey struct {
	handle uint64
	owner  any
	fn     uintptr
}

// ptrIdentity keys reference-shaped senders by address without retaining
// them. The destruction watch pins the object until its cleanup has removed
// the entry, so an address cannot be reused while it is still indexed.
type ptrIdentity struct {
	typ  reflect.Type
	addr uintptr
}

// senderKey returns a stable, comparable identity for sender. Comparable
// values (strings, ints, comparable structs) are keyed by value; pointers,
// channels, maps, funcs and slices by address.
func senderKey(sender any) any {
	if sender == nil {
		return nil
	}
	v := reflect.ValueOf(sender)
	switch v.Kind() {
	case reflect.Pointer, reflect.Chan, reflect.Map, reflect.Func, reflect.Slice, reflect.UnsafePointer:
		return ptrIdentity{typ: v.Type(), addr: v.Pointer()}
	default:
		if v.Comparable() {
			return sender
		}
		// Value senders without a stable identity collapse onto their type.
		return ptrIdentity{typ: v.Type()}
	}
}

// senderBucketID maps a sender to its index bucket key, routing Any to the
// reserved sentinel bucket.
func senderBucketID(sender any) any {
	if isAny(sender) {
		return anyID
	}
	return senderKey(sender)
}

// boundKey builds the identity key for a bound receiver.
func boundKey[T any](owner weak.Pointer[T], pc uintptr) refKey {
	return refKey{owner: owner, fn: pc}
}
