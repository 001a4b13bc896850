// Package subscription tracks which sessions want which live feed and
// fans out broadcast frames to them, pruning any subscriber whose write
// fails without blocking the rest of the broadcast on it.
package subscription
