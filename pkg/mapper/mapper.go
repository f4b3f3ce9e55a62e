package mapper

import (
	"time"

	"github.com/tgdrive/clouddrive/internal/utils"
	"github.com/tgdrive/clouddrive/pkg/models"
	"github.com/tgdrive/clouddrive/pkg/schemas"
)

func ToFileOut(f models.File) schemas.FileOut {
	return schemas.FileOut{
		ID:        f.ID,
		Name:      f.Name,
		Size:      f.Size,
		MimeType:  f.MimeType,
		Category:  f.Category,
		FolderID:  f.FolderID,
		Hash:      f.Hash,
		IsDeleted: f.Trashed(),
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}

func ToFileOuts(files []models.File) []schemas.FileOut {
	return utils.Map(files, ToFileOut)
}

func ToFolderOut(f models.Folder) schemas.FolderOut {
	return schemas.FolderOut{
		ID:        f.ID,
		Name:      f.Name,
		ParentID:  f.ParentID,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}

func ToFolderOuts(folders []models.Folder) []schemas.FolderOut {
	return utils.Map(folders, ToFolderOut)
}

func ToShareLinkOut(s models.ShareLink, now time.Time) schemas.ShareLinkOut {
	return schemas.ShareLinkOut{
		ID:        s.ID,
		FileID:    s.FileID,
		Status:    s.Status(now),
		Protected: s.Password != nil,
		IssuedAt:  s.IssuedAt,
		ExpiresAt: s.ExpiresAt,
		RevokedAt: s.RevokedAt,
	}
}

func ToStats(st *models.Stats) schemas.Stats {
	return schemas.Stats{
		Categories: utils.Map(st.Categories, func(c models.CategoryStats) schemas.CategoryStats {
			return schemas.CategoryStats{Category: c.Category, Count: c.Count, Bytes: c.Bytes}
		}),
		TotalFiles:   st.TotalFiles,
		TotalBytes:   st.TotalBytes,
		Folders:      st.Folders,
		TrashedFiles: st.TrashedFiles,
		TrashedBytes: st.TrashedBytes,
	}
}
