//go:build !(linux || darwin)

package loader

import (
	"errors"
	"os"
)

func mapFile(*os.File, int64) ([]byte, error) {
	return nil, errors.ErrUnsupported
}

func unmapFile([]byte) error {
	return nil
}
