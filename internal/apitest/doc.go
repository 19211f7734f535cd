// Package apitest is an in-memory fake of the finance REST API.
//
// It serves every catalog endpoint under /api/v1 with chi, keeps its data
// in memory, counts hits per route and can inject failures. Tests point a
// transport.HTTP at Start's base URL.
package apitest
