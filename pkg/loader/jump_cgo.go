//go:build linux && amd64 && cgo

package loader

/*
#include <stdint.h>

static int elfload_jump(uintptr_t entry) {
    int (*fn)(void) = (int (*)(void))entry;
    return fn();
}
*/
import "C"

// jump calls the code at entry on the C stack and returns whatever it leaves in
// eax. Loaded programs normally exit the process instead.
func jump(entry uintptr) (int, error) {
	return int(C.elfload_jump(C.uintptr_t(entry))), nil
}
