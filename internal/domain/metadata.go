package domain

import "time"

// Metadata carries optional document-information updates. Nil or empty fields are left untouched
// on the target document.
type Metadata struct {
	Title            string     `json:"title,omitempty"`
	Author           string     `json:"author,omitempty"`
	Subject          string     `json:"subject,omitempty"`
	Keywords         []string   `json:"keywords"`
	Creator          string     `json:"creator,omitempty"`
	Producer         string     `json:"producer,omitempty"`
	Language         string     `json:"language,omitempty"`
	CreationDate     *time.Time `json:"creationDate,omitempty"`
	ModificationDate *time.Time `json:"modificationDate,omitempty"`
}

// IsEmpty reports whether applying m would change nothing.
func (m Metadata) IsEmpty() bool {
	return m.Title == "" && m.Author == "" && m.Subject == "" && m.Keywords == nil &&
		m.Creator == "" && m.Producer == "" && m.Language == "" &&
		m.CreationDate == nil && m.ModificationDate == nil
}
