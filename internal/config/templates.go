package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "mxprintd", "device":
		return deviceTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const deviceTemplate = `# mxprintd device emulator
device_name = "MX05"
listen_addr = ":9600"
admin_addr = "127.0.0.1:9601"
cors_origins = []
log_level = "info"

# framing
magic = 0x7851
capture_payload = true
fatal_policy = "close"   # close | reset
read_buffer_size = 512
idle_timeout = "2m"
write_timeout = "5s"

# body of the reply to a status query
status_payload = [0x00, 0x01, 0xCA]
`
