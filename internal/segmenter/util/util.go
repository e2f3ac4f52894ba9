package util

import (
	"errors"
	"io"
	"log"
	"os"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"syscall"

	getopt "github.com/pborman/getopt/v2"
)

var ProfileStartStop func() func()

// ReadOptimizations is populated by individual OS-specific init()s
var ReadOptimizations []FileHandleOptimization

type FileHandleOptimization struct {
	Name   string
	Action func(
		file *os.File,
		stat os.FileInfo,
	) error
}

// ArgParse runs getopt over the full argv ( program name included ), and
// returns any parsing failures as a list of human readable strings
func ArgParse(args []string, optSet *getopt.Set) (argErrs []string) {
	if err := optSet.Getopt(args, nil); err != nil {
		argErrs = append(argErrs, err.Error())
	}
	return
}

// IsBrokenPipe reports whether a write failed because the downstream
// consumer ( e.g. `head` ) went away
func IsBrokenPipe(err error) bool {
	return err != nil && (errors.Is(err, syscall.EPIPE) || errors.Is(err, io.ErrClosedPipe))
}

func Commify(inVal int) []byte {
	return Commify64(int64(inVal))
}

func Commify64(inVal int64) []byte {
	inStr := strconv.FormatInt(inVal, 10)

	outStr := make([]byte, 0, 20)
	i := 1

	if inVal < 0 {
		outStr = append(outStr, '-')
		i++
	}

	for i <= len(inStr) {
		outStr = append(outStr, inStr[i-1])

		if i < len(inStr) &&
			((len(inStr)-i)%3) == 0 {
			outStr = append(outStr, ',')
		}

		i++
	}

	return outStr
}

func AvailableMapKeys(m interface{}) string {
	v := reflect.ValueOf(m)
	if v.Kind() != reflect.Map {
		log.Panicf("input type not a map: %v", v)
	}
	avail := make([]string, 0, v.Len())
	for _, k := range v.MapKeys() {
		avail = append(avail, "'"+k.String()+"'")
	}
	sort.Strings(avail)
	return strings.Join(avail, ", ")
}
