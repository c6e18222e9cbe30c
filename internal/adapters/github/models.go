package github

import "time"

// Repo is the subset of a search result item the crawler records
type Repo struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	FullName    string    `json:"full_name"`
	HTMLURL     string    `json:"html_url"`
	Description string    `json:"description"`
	Language    string    `json:"language"`
	Topics      []string  `json:"topics"`
	Stargazers  int       `json:"stargazers_count"`
	ForksCount  int       `json:"forks_count"`
	OpenIssues  int       `json:"open_issues_count"`
	Size        int       `json:"size"`
	Fork        bool      `json:"fork"`
	Owner       Owner     `json:"owner"`
	CreatedAt   time.Time `json:"created_at"`
	PushedAt    time.Time `json:"pushed_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Owner is a partial GitHub user or org document
type Owner struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
	Type  string `json:"type"`
}

// SearchPage is one page of /search/repositories
type SearchPage struct {
	TotalCount        int    `json:"total_count"`
	IncompleteResults bool   `json:"incomplete_results"`
	Items             []Repo `json:"items"`
}

type contentDoc struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	Encoding string `json:"encoding"`
	Content  string `json:"content"`
}
