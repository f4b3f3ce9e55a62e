package schemas

import "time"

type FileOut struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	MimeType  string    `json:"mimeType"`
	Category  string    `json:"category"`
	FolderID  *string   `json:"folderId"`
	Hash      string    `json:"hash,omitempty"`
	IsDeleted bool      `json:"isDeleted"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Pagination struct {
	Page       int        `json:"page"`
	Limit      int        `json:"limit"`
	Total      int        `json:"total"`
	TotalPages int        `json:"totalPages"`
	AsOf       *time.Time `json:"asOf,omitempty"`
}

type FileList struct {
	Files      []FileOut  `json:"files"`
	Pagination Pagination `json:"pagination"`
}

// UpdateFile renames or moves a file. folder_id "root" moves it to the root.
type UpdateFile struct {
	Name     *string `json:"name" validate:"omitempty,min=1,max=255"`
	FolderID *string `json:"folder_id" validate:"omitempty,min=1"`
}

type RestoreFiles struct {
	IDs []string `json:"ids" validate:"required,min=1,max=100,dive,required"`
}

type RestoreResult struct {
	ID       string `json:"id"`
	Restored bool   `json:"restored"`
	Error    string `json:"error,omitempty"`
}

type RestoreResults struct {
	Results []RestoreResult `json:"results"`
}

type PurgeResult struct {
	Purged int `json:"purged"`
}

type Preview struct {
	FileType   string    `json:"fileType"`
	FileName   string    `json:"fileName"`
	PreviewURL string    `json:"previewUrl"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

type CategoryStats struct {
	Category string `json:"category"`
	Count    int64  `json:"count"`
	Bytes    int64  `json:"bytes"`
}

type Stats struct {
	Categories   []CategoryStats `json:"categories"`
	TotalFiles   int64           `json:"totalFiles"`
	TotalBytes   int64           `json:"totalBytes"`
	Folders      int64           `json:"folders"`
	TrashedFiles int64           `json:"trashedFiles"`
	TrashedBytes int64           `json:"trashedBytes"`
}
