// Package app assembles the runtime dependencies shared by the binaries.
package app

// Version is overridden at build time with
// -ldflags "-X github.com/luizacavalcantee/gestao-fiscal/internal/app.Version=...".
var Version = "dev"
