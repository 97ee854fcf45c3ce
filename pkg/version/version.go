// Package version provides version information for the quotefuse application.
package version

// Version is the current version of the quotefuse application.
const Version = "1.1.0"

// AgentString returns the full agent string with versioning.
// Format: @nimblefi/quotefuse@v{version}
func AgentString() string {
	return "@nimblefi/quotefuse@v" + Version
}
