// Package appfs holds the files embedded into the binaries: SQL migrations, email templates
// and the common passwords list.
package appfs

import "embed"

//go:embed migrations/*.sql all:templates common-passwords.txt
var FS embed.FS
