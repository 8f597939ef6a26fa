// Package export writes participant series snapshots to CSV or JSON and
// restores device backups into the raw store.
package export
