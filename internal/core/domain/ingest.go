package domain

import "path/filepath"

// SourceFile describes one tracked catalog file.
type SourceFile struct {
	Path     string
	Category string
	Language string
}

// Filter returns the index scope covered by this file.
func (f SourceFile) Filter() Filter {
	return Filter{Category: f.Category, Language: f.Language}
}

// catalogFileNames maps category to the file name under each language folder.
var catalogFileNames = map[string]string{
	CategoryIDOS:    "All_services_list.json",
	CategoryNonIDOS: "All_services_list_gai.json",
}

// Languages lists the supported catalog languages.
var Languages = []string{LanguageEnglish, LanguageArabic}

// Categories lists the supported catalog categories.
var Categories = []string{CategoryIDOS, CategoryNonIDOS}

// TrackedFiles returns the catalog files under root selected by the filter.
// File layout is <root>/<language>/<category file>.
func TrackedFiles(root string, filter Filter) []SourceFile {
	var files []SourceFile
	for _, category := range Categories {
		if filter.Category != "" && filter.Category != category {
			continue
		}
		for _, language := range Languages {
			if filter.Language != "" && filter.Language != language {
				continue
			}
			files = append(files, SourceFile{
				Path:     filepath.Join(root, language, catalogFileNames[category]),
				Category: category,
				Language: language,
			})
		}
	}
	return files
}

// Fingerprint records a tracked file's last modification time.
// LastModifiedDate is RFC3339; empty when the file is missing.
type Fingerprint struct {
	File             string `json:"file"`
	LastModifiedDate string `json:"lastModifiedDate"`
}

// IngestResult summarizes one populate run.
type IngestResult struct {
	Documents int     `json:"documents"`
	Chunks    int     `json:"chunks"`
	Embedded  int     `json:"embedded"`
	Failed    int     `json:"failed"`
	Deleted   int     `json:"deleted"`
	Duration  float64 `json:"duration_seconds"`
}
