package types

// User is the projection of a platform account carried on a live
// connection. The relay never owns user records; identity is bound from the
// session token or a join-user announcement.
type User struct {
	Id        string `json:"id"`
	Username  string `json:"username,omitempty"`
	AvatarUrl string `json:"avatar_url,omitempty"`
}
