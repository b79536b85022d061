package domain

import "errors"

var (
	// ErrNotebookNotFound signals that a stored notebook does not exist.
	ErrNotebookNotFound = errors.New("notebook does not exist")
	// ErrUnknownFormat signals that no exporter is registered under a name.
	ErrUnknownFormat = errors.New("unknown format")
	// ErrInvalidNotebook signals a document that is not a valid notebook.
	ErrInvalidNotebook = errors.New("invalid notebook")
	// ErrUnsupportedVersion signals a notebook in an nbformat major version
	// this service does not read.
	ErrUnsupportedVersion = errors.New("unsupported nbformat version")
	// ErrResourceBundling signals a conversion that produced auxiliary files
	// while bundling them is disabled.
	ErrResourceBundling = errors.New("conversion produced resource files")

	// ErrInvalidAPIKey signals that the provided API key is not known.
	ErrInvalidAPIKey = errors.New("invalid api key")
	// ErrTokenStoreNotReady signals that the token store has not been loaded yet.
	// This can happen during startup when the DB isn't ready.
	ErrTokenStoreNotReady = errors.New("token store not ready")
)
