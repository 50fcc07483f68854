package timex

import "time"

var bootTime = time.Now()

// UptimeMs returns milliseconds since process start. Monotonic and
// non-decreasing; used as the ingestion timestamp for every log row.
func UptimeMs() int64 { return int64(time.Since(bootTime) / time.Millisecond) }
