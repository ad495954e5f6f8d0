// Package tagclass maps numeric tags to semantic kinds.
//
// Two strategies coexist:
//
//	RangeClassifier   16-bit microtag ids, kind given by the id range
//	SuffixClassifier  8-bit timestamp ids, kind given by the name suffix
//	                  (_BEGIN/_END, _START/_STOP) in an explicit Table
//
// Tables are plain values passed by the caller; there is no process-wide
// dictionary. DefaultTimestampTable returns the tags of the TLS library
// instrumentation that the timestamp tooling was written for.
package tagclass
