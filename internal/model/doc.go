// Package model defines the finance API payloads decoded by the stores.
//
// Field names follow the API's snake_case JSON. Monetary amounts are
// float64 as the API stores them as REAL; dates are Unix seconds.
package model
