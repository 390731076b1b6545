package result

import "time"

const DefaultRecent = 100

type CheckResult struct {
	ID        int64         `json:"id"`
	ProbeID   string        `json:"probe_id"`
	CheckName string        `json:"check_name"`
	Host      string        `json:"node"`
	At        time.Time     `json:"time"`
	Result    bool          `json:"result"`
	Status    string        `json:"status"`
	Latency   time.Duration `json:"latency"`
}
