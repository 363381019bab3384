package gpu

import (
	"strconv"
	"strings"

	"github.com/nvmltool/nvmltool/internal/errors"
)

// ParseDeviceSpec expands a device selection like "0", "0-2" or "0,2,4" into
// device indices. Ranges are inclusive; a reversed range expands to nothing.
// The result keeps parse order and preserves duplicates. Indices are not
// checked against the enumerated device count here; that happens when the
// handle is looked up.
func ParseDeviceSpec(spec string) ([]int, error) {
	errFactory := errors.New()

	var ids []int
	for _, token := range strings.Split(spec, ",") {
		start, end, ok := strings.Cut(token, "-")
		if !ok {
			id, err := strconv.Atoi(token)
			if err != nil {
				return nil, errFactory.WithData(ErrInvalidDeviceSpec, token)
			}
			ids = append(ids, id)
			continue
		}

		lo, err := strconv.Atoi(start)
		if err != nil {
			return nil, errFactory.WithData(ErrInvalidDeviceSpec, token)
		}
		hi, err := strconv.Atoi(end)
		if err != nil {
			return nil, errFactory.WithData(ErrInvalidDeviceSpec, token)
		}

		for i := lo; i <= hi; i++ {
			ids = append(ids, i)
		}
	}

	return ids, nil
}

// matchUUID reports whether a device UUID matches a user-supplied fragment.
// The match is a case-sensitive substring search.
func matchUUID(uuid, fragment string) bool {
	return strings.Contains(uuid, fragment)
}
