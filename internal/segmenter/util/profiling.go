// +build profiling

package util

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"time"
)

func init() {
	ProfileStartStop = setupProfiling
}

// set via -ldflags="-X 'github.com/ipfs-shipyard/DNAcutter/internal/segmenter/util.profileOutDir=...'"
// the environment takes precedence when set
var profileOutDir string

// written out at stop time, in addition to the CPU profile
var snapshotProfiles = []string{"heap", "allocs"}

func setupProfiling() (profilingStopper func()) {

	if d := os.Getenv("CUTTER_PROFILE_DIR"); d != "" {
		profileOutDir = d
	}
	if profileOutDir == "" {
		log.Fatalf(`The profile destination is an empty string: set CUTTER_PROFILE_DIR or build with -ldflags="-X '....profileOutDir=...'"`)
	}

	pathPrefix := profileOutDir + "/" + time.Now().Format("2006-01-02_15-04-05.000")
	var openHandles []*os.File

	cpuProfFh := openProfHandle("cpu", pathPrefix, &openHandles)
	snapshotFhs := make(map[string]*os.File, len(snapshotProfiles))
	for _, p := range snapshotProfiles {
		snapshotFhs[p] = openProfHandle(p, pathPrefix, &openHandles)
	}

	runtime.GC() // recommended by https://golang.org/pkg/runtime/pprof/#hdr-Profiling_a_Go_program

	if err := pprof.StartCPUProfile(cpuProfFh); err != nil {
		log.Fatalf(
			"Unable to start CPU profiling: %s",
			err,
		)
	}

	// this function is a closer, no aborts on errors
	profilingStopper = func() {

		pprof.StopCPUProfile()
		runtime.GC()

		for _, p := range snapshotProfiles {
			if err := pprof.Lookup(p).WriteTo(snapshotFhs[p], 0); err != nil {
				log.Printf(
					"Error writing out '%s' profile: %s",
					p,
					err,
				)
			}
		}

		for _, fh := range openHandles {
			if err := fh.Close(); err != nil {
				log.Printf(
					"Closing %s failed: %s",
					fh.Name(),
					err,
				)
			}
		}
	}

	return profilingStopper
}

func openProfHandle(profName string, pathPrefix string, openHandles *[]*os.File) (fh *os.File) {
	filename := fmt.Sprintf("%s_%s.prof", pathPrefix, profName)

	var err error

	if fh, err = os.OpenFile(
		filename,
		os.O_RDWR|os.O_CREATE|os.O_EXCL,
		0640,
	); err != nil {
		log.Fatalf(
			"Unable to open '%s' profile output: %s",
			profName,
			err,
		)
	}

	// point a latest_X.prof symlink at what we just opened
	os.Symlink(
		filepath.Base(fh.Name()),
		fh.Name()+".templnk",
	)
	os.Rename(
		fh.Name()+".templnk",
		fmt.Sprintf(
			"%s/latest_%s.prof",
			filepath.Dir(fh.Name()),
			profName,
		),
	)

	*openHandles = append(*openHandles, fh)

	return fh
}
