// Package constants defines the constants used across the revision service.
package constants

var (
	// Version is the version of the application.
	Version = "Dev"
)

const (
	// CmdName is the name of the review service command.
	CmdName = "form-revision-service"
)

// Database constants.
const (
	// DefaultDBName is the default name of the revisions database.
	DefaultDBName = "formtelecom"
)
