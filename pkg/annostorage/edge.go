package annostorage

import "github.com/graphannis-go/graphannis/pkg/graphannis"

// EdgeAnnotationStorage specializes AnnotationStorage for (source,
// target) edge pairs. Each graph storage owns exactly one of these.
type EdgeAnnotationStorage struct {
	*AnnotationStorage[graphannis.Edge]
}

// NewEdgeAnnotationStorage creates an empty edge annotation storage.
func NewEdgeAnnotationStorage() *EdgeAnnotationStorage {
	return &EdgeAnnotationStorage{AnnotationStorage: New[graphannis.Edge](nil)}
}

// EdgeAnnotationsDir is the on-disk subfolder name for a component's
// edge annotations.
const EdgeAnnotationsDir = "annotations"
