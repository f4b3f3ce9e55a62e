package cache

func KeyShare(linkID string) string {
	return Key("shares", linkID)
}

func KeyStats(ownerID string) string {
	return Key("users", "stats", ownerID)
}
