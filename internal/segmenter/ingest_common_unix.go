// +build linux darwin

package segmenter

import (
	"runtime"

	"golang.org/x/sys/unix"
)

func init() {

	preProcessTasks = func(sgm *Segmenter) {
		var ru unix.Rusage
		unix.Getrusage(unix.RUSAGE_SELF, &ru) // ignore errors
		sys := &sgm.statSummary.SysStats

		// set everything to negative values: we will simply += in postprocessing
		sys.CpuUserNsecs = -unix.TimevalToNsec(ru.Utime)
		sys.CpuSysNsecs = -unix.TimevalToNsec(ru.Stime)
		sys.MinFlt = -ru.Minflt
		sys.MajFlt = -ru.Majflt
		sys.BioRead = -ru.Inblock
		sys.BioWrite = -ru.Oublock
		sys.Sigs = -ru.Nsignals
		sys.CtxSwYield = -ru.Nvcsw
		sys.CtxSwForced = -ru.Nivcsw
	}

	postProcessTasks = func(sgm *Segmenter) {
		var ru unix.Rusage
		unix.Getrusage(unix.RUSAGE_SELF, &ru) // ignore errors

		if runtime.GOOS != "darwin" {
			// anywhere but mac, maxrss is actually KiB
			ru.Maxrss *= 1024
		}

		sys := &sgm.statSummary.SysStats

		sys.MaxRssBytes = ru.Maxrss
		sys.CpuUserNsecs += unix.TimevalToNsec(ru.Utime)
		sys.CpuSysNsecs += unix.TimevalToNsec(ru.Stime)
		sys.MinFlt += ru.Minflt
		sys.MajFlt += ru.Majflt
		sys.BioRead += ru.Inblock
		sys.BioWrite += ru.Oublock
		sys.Sigs += ru.Nsignals
		sys.CtxSwYield += ru.Nvcsw
		sys.CtxSwForced += ru.Nivcsw
	}
}
