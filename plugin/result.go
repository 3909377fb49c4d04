package plugin

import (
	"encoding/json"
	"fmt"
)

// Result is the envelope every plugin function returns: data on success,
// an error message on failure. Failures may still carry data, e.g. the
// captured output of a failed execution.
type Result struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Kind    Kind   `json:"kind,omitempty"`
}

// OK wraps data in a successful Result.
func OK(data any) Result {
	return Result{Success: true, Data: data}
}

// Fail converts err into a failed Result.
func Fail(err error) Result {
	return FailWith(err, nil)
}

// FailWith converts err into a failed Result that also carries data.
func FailWith(err error, data any) Result {
	if err == nil {
		err = fmt.Errorf("%w: unknown error", ErrExternalCall)
	}
	return Result{Error: err.Error(), Kind: KindOf(err), Data: data}
}

// JSON renders the envelope for hosts that exchange plain strings.
func (r Result) JSON() string {
	b, err := json.Marshal(r)
	if err != nil {
		fb, _ := json.Marshal(Result{Error: "failed to encode result: " + err.Error(), Kind: KindExternalCall})
		return string(fb)
	}
	return string(b)
}
