package catalog

import "errors"

var (
	ErrBookNotFound     = errors.New("book not found")
	ErrInvalidCopyCount = errors.New("invalid copy count")
	ErrMissingField     = errors.New("missing required field")
	ErrBookOnLoan       = errors.New("book has open loans")
)

// Book represents a catalog record and its copy counts. Quantity is the
// total owned copies; Available is the subset not currently on loan.
type Book struct {
	ID          int64  `json:"id" db:"id"`
	ISBN        string `json:"isbn" db:"isbn"`
	Title       string `json:"title" db:"title"`
	Author      string `json:"author" db:"author"`
	Category    string `json:"category,omitempty" db:"category"`
	Publisher   string `json:"publisher,omitempty" db:"publisher"`
	PublishYear string `json:"publish_year,omitempty" db:"publish_year"`
	Edition     string `json:"edition,omitempty" db:"edition"`
	Quantity    int    `json:"quantity" db:"quantity"`
	Available   int    `json:"available" db:"available"`
}
