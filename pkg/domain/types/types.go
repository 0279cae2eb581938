package types

// AppName is the canonical binary name
const AppName = "commis"

// Version is set at build time via -ldflags
var Version = "dev"
