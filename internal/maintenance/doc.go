// Package maintenance implements the housekeeping commands a dashboard can
// send to the device: clearing the on-disk cache and compacting local
// storage.
//
// Both operations are safe to call concurrently with normal engine work;
// Optimize serialises itself so overlapping requests do not run VACUUM
// twice.
package maintenance
