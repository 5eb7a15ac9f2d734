// Package vision defines the contract with the external vision extractor.
//
// The extractor is a collaborator, not part of this service: given raw image
// bytes it produces a scene label and a list of piece observations. This
// package holds the Extraction payload shape, the Extractor interface the
// scan pipeline depends on, and an HTTP client implementation for a remote
// extractor service.
//
// The extractor's accuracy is explicitly not this service's concern. Whatever
// structured observations come back are validated, merged, and recorded; a
// misdetection surfaces later as a merge conflict, not as an error here.
package vision
