package schemas

import "time"

type FolderOut struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	ParentID  *string   `json:"parentId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type CreateFolder struct {
	Name     string  `json:"name" validate:"required,max=255"`
	ParentID *string `json:"parent_id"`
}

// UpdateFolder renames or moves a folder. parent_id "root" moves it to the root.
type UpdateFolder struct {
	Name     *string `json:"name" validate:"omitempty,min=1,max=255"`
	ParentID *string `json:"parent_id" validate:"omitempty,min=1"`
}

type FolderList struct {
	Folders []FolderOut `json:"folders"`
}

type FolderPath struct {
	Path []FolderOut `json:"path"`
}

// FolderContents lists the direct children of a folder.
type FolderContents struct {
	Folder  *FolderOut  `json:"folder,omitempty"`
	Path    []FolderOut `json:"path"`
	Folders []FolderOut `json:"folders"`
	Files   []FileOut   `json:"files"`
}
