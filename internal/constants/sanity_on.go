// +build sanity

package constants

// Adds a number of internal consistency checks to the segmentation loop
// Enable via `go build -tags sanity ...`
const PerformSanityChecks = true
