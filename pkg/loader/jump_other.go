//go:build !(linux && amd64 && cgo)

package loader

func jump(uintptr) (int, error) {
	return 0, ErrJumpUnsupported
}
