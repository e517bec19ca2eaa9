// Package seed embeds the default starter question catalog shipped with the
// binaries.
package seed

import "embed"

//go:embed starter-sets.yaml
var Files embed.FS

// DefaultCatalog is the path of the embedded starter catalog within Files.
const DefaultCatalog = "starter-sets.yaml"
