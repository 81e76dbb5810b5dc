// Package file stores wizard state snapshots as JSON files.
package file
