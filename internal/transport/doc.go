// Package transport is the narrow HTTP contract stores are built on.
//
// A Transport performs one request and returns the raw response body, or a
// *Error describing why no usable response was obtained. Stores never see
// net/http types beyond the response header.
package transport
