// Package framer turns a delimited byte stream into discrete frame strings.
//
// Datagrams may carry several frames, and a frame may in principle be split
// across datagrams, so the receive side keeps a buffer of bytes not yet
// terminated by the delimiter. Feeding the same byte stream in any chunking
// (one byte at a time, all at once, anything in between) yields exactly the
// same ordered list of frames.
//
// The delimiter is not escaped. A payload containing the delimiter splits its
// frame in two and both halves fail to decode; the connection therefore
// refuses to send such payloads.
package framer
