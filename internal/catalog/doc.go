// Package catalog declares the finance API's endpoints and their
// invalidation wiring in CUE.
//
// A catalog file lists endpoints under the endpoint struct:
//
//	endpoint: GetAccounts: {
//		method:     "GET"
//		path:       "/accounts"
//		subscribes: ["accounts"]
//	}
//
// Every source is unified with an embedded schema before compilation, so a
// misspelled field or an unknown method fails with its CUE position.
// Default returns the built-in catalog; LoadDir reads a directory of
// .cue files instead.
package catalog
