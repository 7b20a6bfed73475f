package pdfcodec

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"pdfservice/internal/domain"
)

// metaUpdate holds the metadata fields set on a document. Nil means untouched.
type metaUpdate struct {
	title       *string
	author      *string
	subject     *string
	creator     *string
	producer    *string
	language    *string
	keywords    []string
	keywordsSet bool
	created     *time.Time
	modified    *time.Time
}

func (m metaUpdate) isEmpty() bool {
	return m.title == nil && m.author == nil && m.subject == nil && !m.keywordsSet &&
		m.creator == nil && m.producer == nil && m.language == nil &&
		m.created == nil && m.modified == nil
}

func (m metaUpdate) touchesCatalog() bool {
	return m.title != nil || m.language != nil
}

func (m metaUpdate) applyInfo(info types.Dict) {
	setText := func(key string, v *string) {
		if v != nil {
			info[key] = textString(*v)
		}
	}
	setText("Title", m.title)
	setText("Author", m.author)
	setText("Subject", m.subject)
	setText("Creator", m.creator)
	setText("Producer", m.producer)
	if m.keywordsSet {
		info["Keywords"] = textString(strings.Join(m.keywords, " "))
	}
	if m.created != nil {
		info["CreationDate"] = textString(types.DateString(*m.created))
	}
	if m.modified != nil {
		info["ModDate"] = textString(types.DateString(*m.modified))
	}
}

// pdfObject is one object rewritten by an incremental update.
type pdfObject struct {
	nr, gen int
	body    string
}

// appendMetadata writes m as an incremental update: the document information dictionary and,
// when needed, the catalog are redefined in a new cross-reference section appended to data.
// pdfcpu's own writer stamps Producer and ModDate on every save, so the update is written here.
func appendMetadata(data []byte, m metaUpdate, conf *model.Configuration) ([]byte, error) {
	ctx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return nil, fmt.Errorf("read for metadata: %w", err)
	}
	if ctx.Encrypt != nil {
		return nil, errors.New("metadata update of encrypted documents is not supported")
	}
	if ctx.Root == nil {
		return nil, errors.New("document has no catalog")
	}
	prev, err := lastStartXRef(data)
	if err != nil {
		return nil, err
	}

	next := nextObjectNumber(ctx.Table)
	var objects []pdfObject

	info := types.Dict{}
	infoRef := types.IndirectRef{ObjectNumber: types.Integer(next)}
	if ctx.Info != nil {
		if existing, err := ctx.DereferenceDict(*ctx.Info); err == nil {
			for k, v := range existing {
				info[k] = v
			}
		}
		infoRef = *ctx.Info
	} else {
		next++
	}
	m.applyInfo(info)
	objects = append(objects, pdfObject{nr: int(infoRef.ObjectNumber), gen: int(infoRef.GenerationNumber), body: info.PDFString()})

	if m.touchesCatalog() {
		catalog, err := ctx.Catalog()
		if err != nil {
			return nil, fmt.Errorf("read catalog: %w", err)
		}
		updated := types.Dict{}
		for k, v := range catalog {
			updated[k] = v
		}
		if m.language != nil {
			updated["Lang"] = textString(*m.language)
		}
		if m.title != nil {
			vp, err := displayDocTitle(ctx, updated["ViewerPreferences"])
			if err != nil {
				return nil, err
			}
			if vp.body != "" {
				objects = append(objects, vp)
			} else {
				updated["ViewerPreferences"] = types.Dict{"DisplayDocTitle": types.Boolean(true)}
				if existing, ok := catalog["ViewerPreferences"].(types.Dict); ok {
					merged := types.Dict{}
					for k, v := range existing {
						merged[k] = v
					}
					merged["DisplayDocTitle"] = types.Boolean(true)
					updated["ViewerPreferences"] = merged
				}
			}
		}
		objects = append(objects, pdfObject{nr: int(ctx.Root.ObjectNumber), gen: int(ctx.Root.GenerationNumber), body: updated.PDFString()})
	}

	var buf bytes.Buffer
	buf.Write(data)
	if !bytes.HasSuffix(data, []byte("\n")) {
		buf.WriteByte('\n')
	}

	sort.Slice(objects, func(i, j int) bool { return objects[i].nr < objects[j].nr })
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d %d obj\n%s\nendobj\n", obj.nr, obj.gen, obj.body)
	}

	xref := buf.Len()
	buf.WriteString("xref\n0 1\n0000000000 65535 f \n")
	for i, obj := range objects {
		fmt.Fprintf(&buf, "%d 1\n%010d %05d n \n", obj.nr, offsets[i], obj.gen)
	}

	trailer := types.Dict{
		"Size": types.Integer(next),
		"Root": *ctx.Root,
		"Info": infoRef,
		"Prev": types.Integer(prev),
	}
	if len(ctx.ID) > 0 {
		trailer["ID"] = ctx.ID
	}
	fmt.Fprintf(&buf, "trailer\n%s\nstartxref\n%d\n%%%%EOF\n", trailer.PDFString(), xref)
	return buf.Bytes(), nil
}

// displayDocTitle handles an indirect /ViewerPreferences entry by returning the rewritten
// object. For inline or missing entries it returns an empty pdfObject and the caller edits the
// catalog directly.
func displayDocTitle(ctx *model.Context, entry types.Object) (pdfObject, error) {
	ref, ok := entry.(types.IndirectRef)
	if !ok {
		return pdfObject{}, nil
	}
	existing, err := ctx.DereferenceDict(ref)
	if err != nil {
		return pdfObject{}, fmt.Errorf("read viewer preferences: %w", err)
	}
	vp := types.Dict{}
	for k, v := range existing {
		vp[k] = v
	}
	vp["DisplayDocTitle"] = types.Boolean(true)
	return pdfObject{nr: int(ref.ObjectNumber), gen: int(ref.GenerationNumber), body: vp.PDFString()}, nil
}

func nextObjectNumber(table map[int]*model.XRefTableEntry) int {
	highest := 0
	for nr := range table {
		if nr > highest {
			highest = nr
		}
	}
	return highest + 1
}

// lastStartXRef returns the byte offset recorded after the final startxref keyword.
func lastStartXRef(data []byte) (int, error) {
	i := bytes.LastIndex(data, []byte("startxref"))
	if i < 0 {
		return 0, errors.New("startxref not found")
	}
	fields := bytes.Fields(data[i+len("startxref"):])
	if len(fields) == 0 {
		return 0, errors.New("startxref offset missing")
	}
	off, err := strconv.Atoi(string(fields[0]))
	if err != nil {
		return 0, fmt.Errorf("startxref offset: %w", err)
	}
	return off, nil
}

// textString encodes s as a PDF text string: plain bytes for ASCII, UTF-16BE with a byte order
// mark otherwise. Hex form avoids literal-string escaping.
func textString(s string) types.HexLiteral {
	ascii := true
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			ascii = false
			break
		}
	}
	if ascii {
		return types.HexLiteral(hex.EncodeToString([]byte(s)))
	}
	units := utf16.Encode([]rune(s))
	b := make([]byte, 2, 2+2*len(units))
	b[0], b[1] = 0xFE, 0xFF
	for _, u := range units {
		b = append(b, byte(u>>8), byte(u))
	}
	return types.HexLiteral(hex.EncodeToString(b))
}

// decodeText is the inverse of textString and also accepts literal strings.
func decodeText(obj types.Object) (string, bool) {
	var raw []byte
	switch v := obj.(type) {
	case types.HexLiteral:
		b, err := hex.DecodeString(string(v))
		if err != nil {
			return "", false
		}
		raw = b
	case types.StringLiteral:
		raw = unescapeLiteral(string(v))
	default:
		return "", false
	}

	if len(raw) >= 2 && raw[0] == 0xFE && raw[1] == 0xFF {
		units := make([]uint16, 0, (len(raw)-2)/2)
		for i := 2; i+1 < len(raw); i += 2 {
			units = append(units, uint16(raw[i])<<8|uint16(raw[i+1]))
		}
		return string(utf16.Decode(units)), true
	}
	runes := make([]rune, len(raw))
	for i, b := range raw {
		runes[i] = rune(b)
	}
	return string(runes), true
}

func unescapeLiteral(s string) []byte {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 == len(s) {
			out = append(out, c)
			continue
		}
		i++
		switch c = s[i]; c {
		case 'n':
			out = append(out, '\n')
		case 'r':
			out = append(out, '\r')
		case 't':
			out = append(out, '\t')
		case 'b':
			out = append(out, '\b')
		case 'f':
			out = append(out, '\f')
		case '\n':
		case '0', '1', '2', '3', '4', '5', '6', '7':
			n := 0
			j := i
			for ; j < len(s) && j < i+3 && s[j] >= '0' && s[j] <= '7'; j++ {
				n = n*8 + int(s[j]-'0')
			}
			out = append(out, byte(n))
			i = j - 1
		default:
			out = append(out, c)
		}
	}
	return out
}

// parseDate reads "D:YYYYMMDDHHmmSS" with an optional "Z" or "+HH'mm'" zone suffix.
func parseDate(s string) (time.Time, bool) {
	s = strings.TrimPrefix(s, "D:")
	if len(s) < 14 {
		return time.Time{}, false
	}
	t, err := time.Parse("20060102150405", s[:14])
	if err != nil {
		return time.Time{}, false
	}
	zone := strings.ReplaceAll(s[14:], "'", "")
	if zone == "" || zone[0] == 'Z' {
		return t, true
	}
	if len(zone) < 3 || (zone[0] != '+' && zone[0] != '-') {
		return t, true
	}
	hh, err := strconv.Atoi(zone[1:3])
	if err != nil {
		return t, true
	}
	mm := 0
	if len(zone) >= 5 {
		mm, _ = strconv.Atoi(zone[3:5])
	}
	offset := hh*3600 + mm*60
	if zone[0] == '-' {
		offset = -offset
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0,
		time.FixedZone("", offset)), true
}

func readMetadata(ctx *model.Context) (domain.Metadata, error) {
	var m domain.Metadata
	if ctx.Info != nil {
		info, err := ctx.DereferenceDict(*ctx.Info)
		if err != nil {
			return m, fmt.Errorf("read info: %w", err)
		}
		text := func(key string) string {
			obj, err := ctx.Dereference(info[key])
			if err != nil || obj == nil {
				return ""
			}
			s, _ := decodeText(obj)
			return s
		}
		m.Title = text("Title")
		m.Author = text("Author")
		m.Subject = text("Subject")
		m.Creator = text("Creator")
		m.Producer = text("Producer")
		if kw := text("Keywords"); kw != "" {
			m.Keywords = strings.Fields(kw)
		}
		if t, ok := parseDate(text("CreationDate")); ok {
			m.CreationDate = &t
		}
		if t, ok := parseDate(text("ModDate")); ok {
			m.ModificationDate = &t
		}
	}

	catalog, err := ctx.Catalog()
	if err != nil {
		return m, fmt.Errorf("read catalog: %w", err)
	}
	if lang, err := ctx.Dereference(catalog["Lang"]); err == nil && lang != nil {
		m.Language, _ = decodeText(lang)
	}
	return m, nil
}
