// Package handlers implements the notebook conversion endpoints.
package handlers
