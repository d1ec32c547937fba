package config

import (
	"fmt"
	"os"
)

const starterConfig = `# flatsite configuration
debug: true
port: 8000
output: build
verbose: true
pruning: true
encoding: utf-8

pages:
  root: .
  extensions: [.html, .xml]

posts:
  root: post
  extensions: [.markdown, .md]

metrics: false
history:
  enabled: false
  path: flatsite.db
`

// WriteStarter writes a commented starter config to path. Refuses to
// overwrite an existing file unless force is set.
func WriteStarter(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", path)
		}
	}
	return os.WriteFile(path, []byte(starterConfig), 0o644)
}
