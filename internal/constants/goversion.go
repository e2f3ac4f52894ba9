// +build go1.13

package constants

const __SOFTWARE_REQUIRES_GO_VERSION_1_13__ = true
