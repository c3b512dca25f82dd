package comments

import "time"

// Comment is a single user-submitted comment, scoped to a post slug and
// stored in the post's hash map under an opaque id. New comments start
// unapproved and only become visible through moderation.
type Comment struct {
	ID        string    `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	Email     string    `json:"email" yaml:"email"`
	Website   string    `json:"website,omitempty" yaml:"website,omitempty"`
	Msg       string    `json:"msg" yaml:"msg"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	IP        string    `json:"ip,omitempty" yaml:"ip,omitempty"`
	Approved  bool      `json:"approved" yaml:"approved"`
}

// Submission carries the raw form fields of a comment submission.
type Submission struct {
	Name    string
	Email   string
	Website string
	Msg     string

	// Honeypot is the hidden form field legitimate users never fill.
	Honeypot string

	// Token is the submitted anti-forgery token.
	Token string

	IP string
}
