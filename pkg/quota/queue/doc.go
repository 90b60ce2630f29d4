// Package queue provides the durable pending-record queue used by the quota
// service to survive transient failures of the remote counter backend.
//
// The queue is a small ordered list of pending records persisted as a single
// JSON blob under one fixed key in a Store. The whole list is read, modified,
// and written back in one shot, so a crash mid-flush can at worst leave a
// record pending again, never duplicate it in the queue itself.
package queue
