// +build !sanity

package constants

const PerformSanityChecks = false
