package common

import (
	"encoding/json"
	"io"
	"os"
)

type CIResult struct {
	OK      bool     `json:"ok"`
	Check   string   `json:"check"`
	Details []string `json:"details"`
	Error   string   `json:"error,omitempty"`
}

// PrintCIResult writes one machine-readable line for CI logs.
func PrintCIResult(ok bool, check string, details []string, err error) {
	_ = WriteCIResult(os.Stdout, ok, check, details, err)
}

func WriteCIResult(w io.Writer, ok bool, check string, details []string, err error) error {
	res := CIResult{OK: ok, Check: check, Details: details}
	if res.Details == nil {
		res.Details = []string{}
	}
	if err != nil {
		res.Error = err.Error()
	}
	return json.NewEncoder(w).Encode(res)
}
