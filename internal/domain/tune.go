package domain

import "time"

// Tune is a single repertoire-able unit. OwnerID is empty for public
// tunes shared through a genre; a non-empty OwnerID marks the tune as
// private to that user.
type Tune struct {
	ID             string    `json:"id"`
	Genre          string    `json:"genre"`
	OwnerID        string    `json:"owner_id,omitempty"`
	Title          string    `json:"title"`
	Deleted        bool      `json:"deleted,omitempty"`
	LastModifiedAt time.Time `json:"last_modified_at"`
}

// Visible reports whether the tune should be retained locally for a
// user with the given genre selection. A private tune owned by the
// user is always visible, regardless of genre.
func (t Tune) Visible(userID string, genres map[string]bool) bool {
	if t.OwnerID != "" && t.OwnerID == userID {
		return true
	}
	return genres[t.Genre]
}

// RepertoireEntry links a playlist to a tune the user practices.
// Scheduled, when set, overrides the due date derived from the latest
// practice record. Explicit marks entries the user added themselves,
// as opposed to entries present only through genre visibility.
type RepertoireEntry struct {
	PlaylistID     string     `json:"playlist_id"`
	TuneID         string     `json:"tune_id"`
	Scheduled      *time.Time `json:"scheduled,omitempty"`
	Learned        bool       `json:"learned,omitempty"`
	Goal           string     `json:"goal,omitempty"`
	Explicit       bool       `json:"explicit,omitempty"`
	Deleted        bool       `json:"deleted,omitempty"`
	LastModifiedAt time.Time  `json:"last_modified_at"`
}

// Key returns the row identifier used by the outbox and remote store.
func (e RepertoireEntry) Key() string {
	return e.PlaylistID + "/" + e.TuneID
}

// Note is a free-text annotation on a tune.
type Note struct {
	ID             string    `json:"id"`
	TuneID         string    `json:"tune_id"`
	DisplayOrder   int       `json:"display_order"`
	Content        string    `json:"content"`
	Deleted        bool      `json:"deleted,omitempty"`
	LastModifiedAt time.Time `json:"last_modified_at"`
}

// Reference is a URL annotation on a tune.
type Reference struct {
	ID             string    `json:"id"`
	TuneID         string    `json:"tune_id"`
	DisplayOrder   int       `json:"display_order"`
	URL            string    `json:"url"`
	Deleted        bool      `json:"deleted,omitempty"`
	LastModifiedAt time.Time `json:"last_modified_at"`
}
