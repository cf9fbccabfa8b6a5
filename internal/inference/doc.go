// Package inference defines the capability interface implemented by the
// fixed-shape neural classifiers and the loader that supplies their model
// blobs. Backends are opaque: one float tensor in, one float tensor out.
package inference
