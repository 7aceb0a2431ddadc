package volume

import "volaug/pkg/geometry"

// Request maps volume types to the world-unit regions a downstream node
// needs. Nodes may rewrite entries before passing a request upstream.
type Request map[Type]geometry.Roi

// Clone returns an independent copy of the request.
func (r Request) Clone() Request {
	out := make(Request, len(r))
	for t, roi := range r {
		out[t] = roi.Clone()
	}
	return out
}

// Batch maps volume types to concrete data honoring a request. Volumes in
// a batch are owned by the batch and may be mutated in place by the node
// processing it.
type Batch map[Type]*Volume
