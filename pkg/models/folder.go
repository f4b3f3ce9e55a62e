package models

import "time"

type Folder struct {
	ID        string
	OwnerID   string
	Name      string
	ParentID  *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type FolderPatch struct {
	Name       *string
	ParentID   *string
	MoveToRoot bool
	UpdatedAt  time.Time
}
