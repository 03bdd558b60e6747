package service

import "detectserver/internal/model"

// MetadataProvider serves the fixed description of the deployed model.
type MetadataProvider struct {
	metadata model.ModelMetadata
}

// NewMetadataProvider captures a private copy of metadata.
func NewMetadataProvider(metadata model.ModelMetadata) *MetadataProvider {
	return &MetadataProvider{metadata: metadata.Copy()}
}

// Metadata returns a copy so callers cannot alter later responses.
func (p *MetadataProvider) Metadata() model.ModelMetadata {
	return p.metadata.Copy()
}
