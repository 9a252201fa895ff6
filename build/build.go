package build

var (
	Version = "0.4.0"
	Date    = "unknown"
)
