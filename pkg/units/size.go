package units

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	KB = 1000
	MB = 1000 * KB
	GB = 1000 * MB
	TB = 1000 * GB
	PB = 1000 * TB

	KiB = 1024
	MiB = 1024 * KiB
	GiB = 1024 * MiB
	TiB = 1024 * GiB
	PiB = 1024 * TiB
)

type unitMap map[byte]int64

var (
	decimalMap = unitMap{'k': KB, 'm': MB, 'g': GB, 't': TB, 'p': PB}
	binaryMap  = unitMap{'k': KiB, 'm': MiB, 'g': GiB, 't': TiB, 'p': PiB}
)

var (
	decimapAbbrs = []string{"B", "kB", "MB", "GB", "TB", "PB", "EB", "ZB", "YB"}
	binaryAbbrs  = []string{"B", "KiB", "MiB", "GiB", "TiB", "PiB", "EiB", "ZiB", "YiB"}
)

func getSizeAndUnit(size float64, base float64, _map []string) (float64, string) {
	i := 0
	unitsLimit := len(_map) - 1
	for size >= base && i < unitsLimit {
		size = size / base
		i++
	}
	return size, _map[i]
}

func HumanSize(size float64) string {
	return HumanSizeWithPrecision(size, 3)
}

func HumanSizeWithPrecision(size float64, precision int) string {
	size, unit := getSizeAndUnit(size, 1000.0, decimapAbbrs)
	return fmt.Sprintf("%.*g%s", precision, size, unit)
}

func BytesSize(size float64) string {
	size, unit := getSizeAndUnit(size, 1024.0, binaryAbbrs)
	return fmt.Sprintf("%.4g%s", size, unit)
}

// RAMInBytes parses memory sizes as they appear in workflow files:
// "16GB", "512MiB", "1g" or a bare byte count. Unit-ambiguous suffixes
// ("GB") are treated as binary, matching how resource requests are
// documented.
func RAMInBytes(size string) (int64, error) {
	size = strings.TrimSpace(size)
	if size == "" {
		return 0, fmt.Errorf("empty size")
	}
	i := 0
	for i < len(size) && (size[i] == '.' || size[i] >= '0' && size[i] <= '9') {
		i++
	}
	num, suffix := size[:i], strings.TrimSpace(size[i:])
	value, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size: %s", size)
	}
	if suffix == "" {
		return int64(value), nil
	}
	suffix = strings.ToLower(suffix)
	mul, ok := binaryMap[suffix[0]]
	if !ok && suffix[0] == 'b' && len(suffix) == 1 {
		return int64(value), nil
	}
	if !ok {
		return 0, fmt.Errorf("invalid size suffix: %s", size)
	}
	switch suffix[1:] {
	case "", "b", "ib", " b":
	default:
		return 0, fmt.Errorf("invalid size suffix: %s", size)
	}
	return int64(value * float64(mul)), nil
}
