// Package domain contains the core value types of the PDF service: page dimensions, page formats,
// render options and document metadata, plus the sentinel errors shared across layers.
// Keep this package free of transport (HTTP) and infrastructure (Redis/Chrome/pdfcpu) concerns.
package domain
