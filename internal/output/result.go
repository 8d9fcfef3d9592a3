package output

import "time"

// Result is one finished transformation as rendered by the CLI.
type Result struct {
	Mode      string        `json:"mode" yaml:"mode"`
	Backend   string        `json:"backend" yaml:"backend"`
	RequestID string        `json:"request_id" yaml:"request_id"`
	Text      string        `json:"text" yaml:"text"`
	Updates   int           `json:"updates" yaml:"updates"`
	Elapsed   time.Duration `json:"elapsed_ns" yaml:"elapsed_ns"`
}
