// Package internaldefs holds the shared metric name table consumed by the
// export bridges. It is not part of the public API surface.
package internaldefs
