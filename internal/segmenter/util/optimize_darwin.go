package util

import (
	"os"

	"golang.org/x/sys/unix"
)

func init() {

	// https://developer.apple.com/library/archive/documentation/System/Conceptual/ManPages_iPhoneOS/man2/fcntl.2.html
	ReadOptimizations = append(ReadOptimizations, FileHandleOptimization{
		"F_RDAHEAD",
		func(fh *os.File, stat os.FileInfo) error {
			if !stat.Mode().IsRegular() {
				return os.ErrInvalid
			}

			_, err := unix.FcntlInt(fh.Fd(), unix.F_RDAHEAD, 1)
			return err
		},
	})
}
