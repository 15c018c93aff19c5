package models

// Result is an extracted page. Status is the HTTP status of the fetch, or
// 599 when the page could not be retrieved at all.
type Result struct {
	URL      string `json:"url"`
	Title    string `json:"title"`
	Byline   string `json:"byline"`
	SiteName string `json:"site_name"`
	Text     string `json:"text"`
	HTMLHash string `json:"html_hash"`
	Status   int    `json:"status"`
	RenderMS int    `json:"render_ms"`
}

// StatusUnreachable marks a network or browser level failure.
const StatusUnreachable = 599

// OK reports whether the fetch produced readable text.
func (r Result) OK() bool {
	return r.Status >= 200 && r.Status < 300 && r.Text != ""
}
