package markup

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"pdfservice/internal/infra/logging"
)

// Resource is a fetched remote file.
type Resource struct {
	Data     []byte
	MIMEType string
}

// Fetcher retrieves remote resources. Failures wrap domain.ErrFetch.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Resource, error)
}

// DefaultConcurrency bounds parallel image fetches when none is configured.
const DefaultConcurrency = 4

// embeddedImage is one distinct image source and its inlined replacement.
type embeddedImage struct {
	url     string
	fetched Resource
	resized []byte
	mime    string
	ok      bool
}

func (e embeddedImage) dataURI() string {
	data := e.fetched.Data
	if e.resized != nil {
		data = e.resized
	}
	return "data:" + e.mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// Inliner replaces <img src> references with data URIs.
type Inliner struct {
	fetcher     Fetcher
	concurrency int
}

// NewInliner returns an Inliner fetching through f with at most concurrency requests in flight.
func NewInliner(f Fetcher, concurrency int) *Inliner {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Inliner{fetcher: f, concurrency: concurrency}
}

// InlineHTML inlines every image of a full HTML document and returns the re-serialized
// document. maxDim bounds the larger image axis in pixels; zero keeps original sizes.
// Unreachable images keep their original src.
func (in *Inliner) InlineHTML(ctx context.Context, html string, maxDim int) string {
	doc, err := parseFragment(html)
	if err != nil {
		return html
	}
	in.Inline(ctx, doc.Selection, maxDim)
	out, err := doc.Html()
	if err != nil {
		return html
	}
	return out
}

// Inline rewrites the img elements below root in place. It never fails: a fetch or decode error
// for one image is logged and leaves that image untouched.
func (in *Inliner) Inline(ctx context.Context, root *goquery.Selection, maxDim int) {
	imgs := root.Find("img")
	if imgs.Length() == 0 || in.fetcher == nil {
		return
	}

	index := map[string]int{}
	var images []embeddedImage
	imgs.Each(func(_ int, s *goquery.Selection) {
		src := strings.TrimSpace(s.AttrOr("src", ""))
		if src == "" || strings.HasPrefix(strings.ToLower(src), "data:") {
			return
		}
		if _, seen := index[src]; !seen {
			index[src] = len(images)
			images = append(images, embeddedImage{url: src})
		}
	})
	if len(images) == 0 {
		return
	}

	var g errgroup.Group
	g.SetLimit(in.concurrency)
	for i := range images {
		img := &images[i]
		g.Go(func() error {
			res, err := in.fetcher.Fetch(ctx, img.url)
			if err != nil {
				logging.Warn("Image inlining skipped", "url", img.url, "error", err)
				return nil
			}
			img.fetched = res
			img.mime = res.MIMEType
			if maxDim > 0 {
				if data, mime, ok := shrink(res.Data, maxDim); ok {
					img.resized, img.mime = data, mime
				}
			}
			if img.mime == "" {
				img.mime = "application/octet-stream"
			}
			img.ok = true
			return nil
		})
	}
	_ = g.Wait()

	imgs.Each(func(_ int, s *goquery.Selection) {
		i, ok := index[strings.TrimSpace(s.AttrOr("src", ""))]
		if !ok || !images[i].ok {
			return
		}
		s.SetAttr("src", images[i].dataURI())
	})
}

// shrink downsamples data so that its larger axis equals maxDim. It reports false when the
// image is already within bounds or cannot be decoded.
func shrink(data []byte, maxDim int) ([]byte, string, bool) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", false
	}
	w, h := cfg.Width, cfg.Height
	if w <= maxDim && h <= maxDim {
		return nil, "", false
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", false
	}

	tw, th := fitWithin(w, h, maxDim)
	dst := image.NewRGBA(image.Rect(0, 0, tw, th))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	mime := "image/png"
	if format == "jpeg" {
		mime = "image/jpeg"
		err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 90})
	} else {
		err = png.Encode(&buf, dst)
	}
	if err != nil {
		return nil, "", false
	}
	return buf.Bytes(), mime, true
}

// fitWithin scales (w, h) so the larger side equals maxDim, preserving aspect ratio.
func fitWithin(w, h, maxDim int) (int, int) {
	if w >= h {
		th := h * maxDim / w
		if th < 1 {
			th = 1
		}
		return maxDim, th
	}
	tw := w * maxDim / h
	if tw < 1 {
		tw = 1
	}
	return tw, maxDim
}
