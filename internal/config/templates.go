package config

import (
	"fmt"
	"os"
)

// Template returns the commented picoctl config template.
func Template() string {
	return picoctlTemplate
}

func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(picoctlTemplate), 0o600)
}

const picoctlTemplate = `# picoctl configuration

[device]
# Serial device of the instrument. Leave empty to probe probe_patterns.
port = ""
probe_patterns = ["/dev/ttyUSB*", "/dev/ttyACM*"]
baud = 230400

[protocol]
# methodscript (8 char values), legacy (9 char values) or auto
encoding = "methodscript"
# per_line: a package counts once, failed if any field failed
# per_field: every field counts
tally = "per_line"

[session]
read_timeout = "30s"
version_timeout = "2s"
# 0 writes the script in one call; Bluetooth LE links need 20
write_chunk_size = 0
write_chunk_delay = "0s"
probe_attempts = 2

[output]
script = "cmd/picoctl/scripts/cv.mscr"
csv = "cv.csv"
report_dir = "reports"
log_measurements = false

[redis]
enabled = false
addr = "localhost:6379"
password = ""
db = 0
channel = "picoctl:measurements"
key_prefix = "picoctl"
history_len = 1000

[monitor]
enabled = false
addr = ":9200"
cors_origins = ["http://localhost:3000"]
capacity = 4096
`
