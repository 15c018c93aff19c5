package models

// Result is one search hit with its snippet already reduced to plain text.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}
