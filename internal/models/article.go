package models

// UnknownCategory is assigned to articles whose source no category claims.
const UnknownCategory = "Unknown"

// RawSource is the source block of a NewsAPI article.
type RawSource struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RawArticle mirrors a single record returned by the article search API.
// JSON nulls decode to empty strings.
type RawArticle struct {
	Source      RawSource `json:"source"`
	Author      string    `json:"author"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	URLToImage  string    `json:"urlToImage"`
	PublishedAt string    `json:"publishedAt"`
	Content     string    `json:"content"`
}

// Article is the canonical record handed to dedupe and grouping.
type Article struct {
	Source          string `json:"source"`
	PrimaryCategory string `json:"primary_category"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	Content         string `json:"content"`
	URL             string `json:"url"`
	Image           string `json:"image"`
	PublishedAt     string `json:"publishedAt"`
}
