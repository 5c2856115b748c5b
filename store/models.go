package store

// AssetType classifies what an asset row describes. Only files exist today;
// the column is kept open for future source kinds (urls, transcripts).
type AssetType string

const (
	AssetTypeFile AssetType = "file"
)

// Project is a logical namespace for assets and chunks. Projects are
// materialised on first reference and never deleted implicitly.
type Project struct {
	ID int64
}

// Asset is the metadata record for one uploaded file. Name is the stored
// filename on disk and is unique within a project.
type Asset struct {
	ID        int64
	ProjectID int64
	Type      AssetType
	Name      string
	Size      int64
}

// DataChunk is one bounded fragment of an asset's text. Order is 1-based
// and dense within an asset.
type DataChunk struct {
	ID        int64
	ProjectID int64
	AssetID   int64
	Text      string
	Order     int
}
