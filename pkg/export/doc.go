// Package export renders approved stories as standalone documents.
package export
