package schemas

import "time"

type CreateShare struct {
	// ExpiresIn is the link lifetime in seconds.
	ExpiresIn *int64  `json:"expiresIn"`
	Password  *string `json:"password" validate:"omitempty,min=1,max=72"`
}

type ShareOut struct {
	ID        string    `json:"id"`
	Token     string    `json:"token"`
	SignedURL string    `json:"signedUrl"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type ShareLinkOut struct {
	ID        string     `json:"id"`
	FileID    string     `json:"fileId"`
	Status    string     `json:"status"`
	Protected bool       `json:"protected"`
	IssuedAt  time.Time  `json:"issuedAt"`
	ExpiresAt time.Time  `json:"expiresAt"`
	RevokedAt *time.Time `json:"revokedAt,omitempty"`
}

type ShareList struct {
	Shares []ShareLinkOut `json:"shares"`
}

// SharedFile is what a valid share token resolves to.
type SharedFile struct {
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	MimeType  string    `json:"mimeType"`
	FileType  string    `json:"fileType"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}
