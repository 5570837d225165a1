package ingest

import (
	"errors"
	"fmt"
	"strings"

	"github.com/RoaringBitmap/roaring/roaring64"
)

var (
	// ErrUnresolvedEdgeEndpoint means a staged edge names a node id that no
	// staged node carries.
	ErrUnresolvedEdgeEndpoint = errors.New("unresolved edge endpoint")
	// ErrLabelKindConflict means one label was used for both nodes and edges.
	ErrLabelKindConflict = errors.New("label used for both nodes and edges")
	// ErrTableConflict means a label's native or staging table would be the
	// table of another label.
	ErrTableConflict = errors.New("label tables collide")
	// ErrStagedCount means the staged row count disagrees with the parser.
	ErrStagedCount = errors.New("staged row count mismatch")
)

// Endpoint is one staged edge that failed to resolve.
type Endpoint struct {
	Ord    int64
	Source string
	Target string
}

// UnresolvedEndpointError lists the staged edges of one label whose source
// or target matched no node.
type UnresolvedEndpointError struct {
	Label string
	// Rows holds the staging ordinals of every unresolved edge.
	Rows   *roaring64.Bitmap
	Sample []Endpoint
}

func (e *UnresolvedEndpointError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d edge(s) of %q", ErrUnresolvedEdgeEndpoint, e.Rows.GetCardinality(), e.Label)
	for i, ep := range e.Sample {
		if i == 0 {
			b.WriteString(": ")
		} else {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s->%s", ep.Source, ep.Target)
	}
	if uint64(len(e.Sample)) < e.Rows.GetCardinality() {
		b.WriteString(", ...")
	}
	return b.String()
}

func (e *UnresolvedEndpointError) Is(target error) bool { return target == ErrUnresolvedEdgeEndpoint }
