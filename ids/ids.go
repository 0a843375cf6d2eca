// Package ids computes the stable numeric identifiers that stand in for
// service and method names on the wire.
//
// Both sides of a connection hash the same fully-qualified names with the
// same function, so no name exchange is needed at runtime. The hash is a
// 65599 polynomial hash with uint32 wraparound; its output for a given name
// never changes across builds or versions. Collisions between the methods of
// one service (or between registered services) are rejected when the method
// table is registered, not at runtime.
package ids

// HashConstant is the multiplier of the polynomial hash.
const HashConstant = 65599

// Calculate returns the identifier for a service or method name.
func Calculate(name string) uint32 {
	hash := uint32(len(name))
	coefficient := uint32(HashConstant)
	for i := 0; i < len(name); i++ {
		hash += coefficient * uint32(name[i])
		coefficient *= HashConstant
	}
	return hash
}
