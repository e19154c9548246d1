package domain

// Document file types recognised by the corpus reader
const (
	FileTypePDF = "pdf"
	FileTypeMD  = "md"
	FileTypeMDX = "mdx"
	FileTypeTXT = "txt"
)

// Document is a source file loaded from the corpus directory
type Document struct {
	Path     string `json:"path"`
	Title    string `json:"title"`
	FileType string `json:"file_type"`
	Text     string `json:"-"`
}

// IngestReport summarises one ingestion run
type IngestReport struct {
	Documents  int `json:"documents"`
	Failed     int `json:"failed"`
	Chunks     int `json:"chunks"`
	Stored     int `json:"stored"`
	Duplicates int `json:"duplicates"`
}
