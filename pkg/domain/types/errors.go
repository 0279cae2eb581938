package types

import "github.com/m-mizutani/goerr/v2"

// Error tags classify installer failures. Each tag maps to a distinct
// terminal condition of the install pipeline.
var (
	// ErrTagDirectory marks failures to provision a destination directory
	ErrTagDirectory = goerr.NewTag("directory")

	// ErrTagNetwork marks failures to complete an artifact download
	ErrTagNetwork = goerr.NewTag("network")

	// ErrTagExtraction marks a malformed archive or unexpected archive layout
	ErrTagExtraction = goerr.NewTag("extraction")

	// ErrTagIntegrity marks an installed artifact that fails its size floor
	ErrTagIntegrity = goerr.NewTag("integrity")
)
