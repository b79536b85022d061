// Package domain contains the core business concepts for the nbconvert service.
// Keep this package free of transport (HTTP) and infrastructure (Redis/Chrome) concerns.
package domain
