//go:build !cgo && !windows

package invoke

func native() Table {
	return Table{}
}
