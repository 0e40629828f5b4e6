package models

// UnknownUserName is the display name used when a sender cannot be resolved.
const UnknownUserName = "Unknown User"

// Profile is a sender's display profile as resolved at receipt time.
type Profile struct {
	ID         string `json:"id"`
	FirstName  string `json:"firstName,omitempty"`
	LastName   string `json:"lastName,omitempty"`
	Name       string `json:"name"`
	ProfilePic string `json:"profilePic,omitempty"`
}

// FallbackProfile returns the minimal profile stored when lookup is unavailable.
func FallbackProfile(senderID string) Profile {
	return Profile{ID: senderID, Name: UnknownUserName}
}

// IsFallback reports whether p carries no resolved data.
func (p Profile) IsFallback() bool {
	return p.FirstName == "" && p.LastName == "" && p.Name == UnknownUserName
}
