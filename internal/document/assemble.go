package document

import "pdfservice/internal/domain"

// Merge concatenates all pages of inputs, in order, into a new document. No inputs yields a
// valid document without pages.
func Merge(codec Codec, inputs [][]byte) ([]byte, error) {
	out, err := codec.Create()
	if err != nil {
		return nil, err
	}
	defer out.Close()

	for _, in := range inputs {
		if err := appendAll(out, codec, in); err != nil {
			return nil, err
		}
	}
	return out.Save()
}

func appendAll(dst Document, codec Codec, pdf []byte) error {
	src, err := codec.Load(pdf)
	if err != nil {
		return err
	}
	defer src.Close()

	indices := make([]int, src.PageCount())
	for i := range indices {
		indices[i] = i
	}
	return dst.CopyPages(src, indices)
}

// ApplyMetadata calls the setter of every field present in m and nothing else.
func ApplyMetadata(doc Document, m domain.Metadata) {
	if m.Title != "" {
		doc.SetTitle(m.Title)
	}
	if m.Author != "" {
		doc.SetAuthor(m.Author)
	}
	if m.Subject != "" {
		doc.SetSubject(m.Subject)
	}
	if m.Keywords != nil {
		doc.SetKeywords(m.Keywords)
	}
	if m.Creator != "" {
		doc.SetCreator(m.Creator)
	}
	if m.Producer != "" {
		doc.SetProducer(m.Producer)
	}
	if m.Language != "" {
		doc.SetLanguage(m.Language)
	}
	if m.CreationDate != nil {
		doc.SetCreationDate(*m.CreationDate)
	}
	if m.ModificationDate != nil {
		doc.SetModificationDate(*m.ModificationDate)
	}
}

// Manipulate loads pdf, applies m and serializes the result.
func Manipulate(codec Codec, pdf []byte, m domain.Metadata) ([]byte, error) {
	doc, err := codec.Load(pdf)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	ApplyMetadata(doc, m)
	return doc.Save()
}
