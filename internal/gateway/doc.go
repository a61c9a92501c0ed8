// Package gateway bounds concurrent transforms.
//
// At most K transforms hold a slot at once. Later callers wait in FIFO order
// and are told their queue position when they enqueue and periodically while
// waiting. A released slot is handed directly to the head waiter under the
// same lock that removes it from the queue, so no caller can overtake another.
package gateway
