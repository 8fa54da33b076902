//go:build !linux

package copyrange

func resolve() (Func, string) {
	return Generic, "generic"
}
