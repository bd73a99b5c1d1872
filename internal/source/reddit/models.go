package reddit

// Listing is the envelope of a subreddit top.json response.
type Listing struct {
	Data ListingData `json:"data"`
}

type ListingData struct {
	Children []Post `json:"children"`
}

type Post struct {
	Data PostData `json:"data"`
}

type PostData struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Author    string `json:"author"`
	Permalink string `json:"permalink"`
	SelfText  string `json:"selftext"`
	Ups       int    `json:"ups"`
	Stickied  bool   `json:"stickied"`
}
