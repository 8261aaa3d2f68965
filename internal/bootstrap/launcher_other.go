//go:build !unix

package bootstrap

// NewPlatformLauncher returns the child-process launcher with signal
// forwarding; process replacement is not available on this platform.
func NewPlatformLauncher() Launcher {
	return NewChildLauncher()
}
