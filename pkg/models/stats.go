package models

type CategoryStats struct {
	Category string
	Count    int64
	Bytes    int64
}

type Stats struct {
	Categories   []CategoryStats
	TotalFiles   int64
	TotalBytes   int64
	Folders      int64
	TrashedFiles int64
	TrashedBytes int64
}
