// Package state implements the observable props wrapper shared between a host and a
// guest.
//
// Every local Set or Delete applies the mutation and then hands the full snapshot to a
// change hook; the owning peer broadcasts it as a PropsUpdated event. The receiving
// peer calls Replace with the snapshot, which overwrites its own view without merging
// and without broadcasting back.
package state
