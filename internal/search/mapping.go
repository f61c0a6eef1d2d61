package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
)

// buildIndexMapping creates the Bleve mapping for rock documents.
//
// Names get English stemming. Type labels and owner names are short proper
// nouns, so they only get lowercased. owner_id is a keyword so the
// owner filter is an exact term match.
func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = en.AnalyzerName

	docMapping := bleve.NewDocumentMapping()

	nameField := bleve.NewTextFieldMapping()
	nameField.Analyzer = en.AnalyzerName
	nameField.Store = true
	nameField.IncludeTermVectors = true
	docMapping.AddFieldMappingsAt("name", nameField)

	typeField := bleve.NewTextFieldMapping()
	typeField.Analyzer = simple.Name
	typeField.Store = true
	docMapping.AddFieldMappingsAt("type_label", typeField)

	ownerNameField := bleve.NewTextFieldMapping()
	ownerNameField.Analyzer = simple.Name
	ownerNameField.Store = true
	docMapping.AddFieldMappingsAt("owner_name", ownerNameField)

	// Keyword fields
	idField := bleve.NewTextFieldMapping()
	idField.Analyzer = keyword.Name
	docMapping.AddFieldMappingsAt("id", idField)

	ownerIDField := bleve.NewTextFieldMapping()
	ownerIDField.Analyzer = keyword.Name
	ownerIDField.Store = true
	docMapping.AddFieldMappingsAt("owner_id", ownerIDField)

	// Numeric fields
	weightField := bleve.NewNumericFieldMapping()
	weightField.Store = true
	docMapping.AddFieldMappingsAt("weight", weightField)

	createdAtField := bleve.NewNumericFieldMapping()
	createdAtField.Store = true
	docMapping.AddFieldMappingsAt("created_at", createdAtField)

	indexMapping.AddDocumentMapping("_default", docMapping)

	return indexMapping
}
