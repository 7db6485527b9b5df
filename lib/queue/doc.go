// Package queue provides a lock-free Multi-Producer Single-Consumer (MPSC)
// mailbox. It is the message queue in front of the connection actor: the
// receive loop, the timer and the application all push events, a single
// goroutine consumes them.
//
// Features and Guarantees:
//
//   - Lock-Free: producers append with atomic operations, no producer ever blocks
//   - Unbounded Size: the mailbox can grow as needed, limited only by available memory
//   - Single Consumer: values are consumed by one goroutine via the Recv() channel,
//     which makes the mailbox usable in select statements
//   - FIFO per producer: items pushed by one goroutine arrive in push order.
//     Across producers the order is decided by which append completes first
//   - Close drains, Discard drops: after Close the remaining items are still
//     delivered, Discard stops delivery immediately
package queue
