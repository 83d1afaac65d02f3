package models

import "encoding/json"

// Post represents one workout entry in the social feed.
//
// LikeCount, CommentCount and LikedByViewer are pointers because the backend
// may omit them: nil means "not yet known", which is distinct from zero. The
// known-good counter cache fills unknowns in from session history.
type Post struct {
	ID          string `json:"id"`
	AuthorID    string `json:"authorId"`
	Activity    string `json:"activity"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	DistanceKm    *float64 `json:"distanceKm,omitempty"`
	DurationSec   *int     `json:"durationSec,omitempty"`
	ElevationGain *float64 `json:"elevationGain,omitempty"`

	RouteImageURL string `json:"routeImageUrl,omitempty"`
	UserImageURL  string `json:"userImageUrl,omitempty"`

	// CreatedAt is kept as the raw ISO-8601 string the backend sent.
	// Parsing is deferred to CreatedTime so one malformed record cannot
	// poison a whole decode.
	CreatedAt string `json:"createdAt"`

	Author AuthorInfo `json:"author"`

	LikeCount     *int  `json:"likeCount,omitempty"`
	CommentCount  *int  `json:"commentCount,omitempty"`
	LikedByViewer *bool `json:"likedByViewer,omitempty"`
}

// Likes returns the displayable like count, treating unknown as zero.
func (p *Post) Likes() int {
	if p.LikeCount == nil {
		return 0
	}
	return *p.LikeCount
}

// Comments returns the displayable comment count, treating unknown as zero.
func (p *Post) Comments() int {
	if p.CommentCount == nil {
		return 0
	}
	return *p.CommentCount
}

// Liked reports whether the current viewer has liked the post. Unknown
// reads as false.
func (p *Post) Liked() bool {
	return p.LikedByViewer != nil && *p.LikedByViewer
}

func (p *Post) SetLikes(n int) {
	p.LikeCount = &n
}

func (p *Post) SetComments(n int) {
	p.CommentCount = &n
}

func (p *Post) SetLiked(v bool) {
	p.LikedByViewer = &v
}

// Clone returns a copy that shares no pointers with the original, so a
// snapshot handed to a reader cannot be mutated under it.
func (p *Post) Clone() *Post {
	c := *p
	if p.DistanceKm != nil {
		v := *p.DistanceKm
		c.DistanceKm = &v
	}
	if p.DurationSec != nil {
		v := *p.DurationSec
		c.DurationSec = &v
	}
	if p.ElevationGain != nil {
		v := *p.ElevationGain
		c.ElevationGain = &v
	}
	if p.LikeCount != nil {
		v := *p.LikeCount
		c.LikeCount = &v
	}
	if p.CommentCount != nil {
		v := *p.CommentCount
		c.CommentCount = &v
	}
	if p.LikedByViewer != nil {
		v := *p.LikedByViewer
		c.LikedByViewer = &v
	}
	return &c
}

// ClonePosts deep-copies a post list for snapshot responses.
func ClonePosts(posts []*Post) []*Post {
	out := make([]*Post, len(posts))
	for i, p := range posts {
		out[i] = p.Clone()
	}
	return out
}

// AuthorInfo is the author display metadata attached to a post. The backend
// sometimes delivers posts before the author profile is available, so the
// value is either Known (name, avatar, pro flag) or Unknown, with a
// dedicated enrichment step performing the Unknown -> Known transition.
type AuthorInfo struct {
	known     bool
	Name      string
	AvatarURL string
	IsPro     bool
}

func KnownAuthor(name, avatarURL string, isPro bool) AuthorInfo {
	return AuthorInfo{known: true, Name: name, AvatarURL: avatarURL, IsPro: isPro}
}

func UnknownAuthor() AuthorInfo {
	return AuthorInfo{}
}

// Known reports whether display metadata has been loaded.
func (a AuthorInfo) Known() bool {
	return a.known
}

type authorInfoJSON struct {
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl,omitempty"`
	IsPro     bool   `json:"isPro"`
}

// MarshalJSON encodes an unknown author as null so cached feeds round-trip
// the distinction.
func (a AuthorInfo) MarshalJSON() ([]byte, error) {
	if !a.known {
		return []byte("null"), nil
	}
	return json.Marshal(authorInfoJSON{Name: a.Name, AvatarURL: a.AvatarURL, IsPro: a.IsPro})
}

func (a *AuthorInfo) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*a = UnknownAuthor()
		return nil
	}
	var raw authorInfoJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*a = KnownAuthor(raw.Name, raw.AvatarURL, raw.IsPro)
	return nil
}

// Profile is the standalone author record returned by the profile endpoint,
// used to enrich posts whose author metadata is still Unknown.
type Profile struct {
	UserID    string `json:"userId"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl,omitempty"`
	IsPro     bool   `json:"isPro"`
}
