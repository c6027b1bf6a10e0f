package protocol

import (
	"reflect"

	"github.com/wagiedev/siteos-go/internal/config"
)

// SameWindow reports whether a and b are the same handle. Handles with uncomparable
// dynamic types never match instead of panicking.
func SameWindow(a, b config.Window) bool {
	if a == nil || b == nil {
		return false
	}

	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) || !ta.Comparable() {
		return false
	}

	return a == b
}
