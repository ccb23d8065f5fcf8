package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ExampleYAML is the starter configuration written by WriteExample.
const ExampleYAML = `# dailyping configuration
discord_webhook_url: https://discord.com/api/webhooks/YOUR_WEBHOOK_ID/YOUR_WEBHOOK_TOKEN
monitor:
  target: 8.8.8.8
  target_label: Google
  interval: 1s
  probe_timeout: 3s
  method: icmp
  privileged: false
  gateway: ""
  max_consecutive_faults: 10
notify:
  timeout: 10s
  username: Ping Monitor
  rate_per_minute: 30
metrics:
  listen: 127.0.0.1:9320
log:
  level: info
  format: text
`

// WriteExample writes ExampleYAML to path. An existing file is left untouched
// unless force is set.
func WriteExample(path string, force bool) error {
	if !force {
		_, err := os.Stat(path)
		if err == nil {
			return fmt.Errorf("config %q already exists", path)
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("check config %q: %w", path, err)
		}
	}

	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("ensure config dir %q: %w", dir, err)
		}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(ExampleYAML), 0o600); err != nil {
		return fmt.Errorf("write temp config %q: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("commit config %q: %w", path, err)
	}

	return nil
}
