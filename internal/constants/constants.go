package constants

import (
	"os"
	"strconv"
)

const (
	Version = "1.0"

	DefaultChunkSize = 1024
	DefaultSeparator = '|'
	DefaultEncoding  = "utf-8"

	// refuse chunk sizes that would make a single read(2) absurd
	MaxChunkSize = 64 * 1024 * 1024

	minGoVersion = __SOFTWARE_REQUIRES_GO_VERSION_1_13__
)

var LongTests bool
var VeryLongTests bool

func init() {
	VeryLongTests = isTruthy("TEST_CUTTER_VERY_LONG")
	LongTests = VeryLongTests || isTruthy("TEST_CUTTER_LONG")
}

func isTruthy(varname string) bool {
	envStr := os.Getenv(varname)
	if envStr != "" {
		if num, err := strconv.ParseUint(envStr, 10, 64); err != nil || num != 0 {
			return true
		}
	}
	return false
}
