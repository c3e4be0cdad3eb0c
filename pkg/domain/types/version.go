package types

// Version is overwritten at build time with -ldflags "-X ...types.Version=..."
var Version = "dev"

// AppName is used in logs, health responses and the rendered pages
const AppName = "mapsdrop"
