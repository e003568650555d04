// Package hack embeds support files needed at install time.
package hack

import _ "embed"

// SystemdUnitTemplate is the deskd systemd unit. The install command
// replaces the placeholder binary path with the real one.
//
//go:embed deskd.service
var SystemdUnitTemplate string
