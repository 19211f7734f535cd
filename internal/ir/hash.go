package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Hash domains. Each identity kind is hashed under its own prefix so a
// request key can never collide with an execution ID.
const (
	DomainExecution = "fintrack/execution/v1"
	DomainRequest   = "fintrack/request/v1"
)

func hashWithDomain(domain string, data []byte) string {
	buf := make([]byte, 0, len(domain)+1+len(data))
	buf = append(buf, domain...)
	buf = append(buf, 0)
	buf = append(buf, data...)
	sum := sha256.Sum256(buf)
	return hex.EncodeToString(sum[:])
}

// RequestKey identifies what a request asks for, independent of when.
// Two executes with the same method, path and query share a key.
func RequestKey(method Method, path string, query IRObject) (string, error) {
	if query == nil {
		query = IRObject{}
	}
	obj := IRObject{
		"method": IRString(method),
		"path":   IRString(path),
		"query":  query,
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("RequestKey: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainRequest, canonical), nil
}

// ExecutionID computes the content-addressed ID of one execution.
// It is stable given the same flow, store, request and sequence number.
func ExecutionID(flowToken, store string, method Method, path string, query IRObject, seq int64) (string, error) {
	key, err := RequestKey(method, path, query)
	if err != nil {
		return "", fmt.Errorf("ExecutionID: %w", err)
	}
	obj := IRObject{
		"flow_token":  IRString(flowToken),
		"store":       IRString(store),
		"request_key": IRString(key),
		"seq":         IRInt(seq),
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("ExecutionID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainExecution, canonical), nil
}

// MustExecutionID is like ExecutionID but panics on error.
func MustExecutionID(flowToken, store string, method Method, path string, query IRObject, seq int64) string {
	id, err := ExecutionID(flowToken, store, method, path, query, seq)
	if err != nil {
		panic(err)
	}
	return id
}
