package chrome

import (
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfservice/internal/domain"
	"pdfservice/internal/infra/pdfcodec"
)

// chromeBinary returns an installed Chrome or skips the test.
func chromeBinary(t *testing.T) string {
	t.Helper()
	for _, name := range []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser"} {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	t.Skip("no Chrome or Chromium binary on PATH")
	return ""
}

func TestEngine_RendersSinglePageWithChrome(t *testing.T) {
	bin := chromeBinary(t)
	for _, size := range []int{0, 1} {
		cfg := testConfig(size)
		cfg.PDF.ChromePath = bin
		cfg.PDF.ChromeNoSandbox = true
		cfg.PDF.UserDataDir = t.TempDir()
		cfg.PDF.TimeoutSecs = 30

		e := NewEngine(cfg)
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		pdf, err := e.Render(ctx, "<p>hi</p>", domain.RenderOptions{Format: "a4", Scale: 1})
		cancel()
		e.Close()
		require.NoError(t, err, "pool size %d", size)

		doc, err := pdfcodec.New(t.TempDir()).Load(pdf)
		require.NoError(t, err)
		assert.Equal(t, 1, doc.PageCount(), "pool size %d", size)
		page, err := doc.PageSize(0)
		require.NoError(t, err)
		assert.InDelta(t, 595.0, page.Width, 1.5)
		assert.InDelta(t, 842.0, page.Height, 1.5)
	}
}

func TestEngine_MissingChromeFailsWithRenderError(t *testing.T) {
	cfg := testConfig(0)
	cfg.PDF.ChromePath = "/definitely/missing/chrome"

	e := NewEngine(cfg)
	defer e.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := e.Render(ctx, "<p>hi</p>", domain.RenderOptions{Format: "a4", Scale: 1})
	if !errors.Is(err, domain.ErrRender) {
		t.Fatalf("Render error = %v, want ErrRender", err)
	}
}

func TestEngine_PoolInitErrorSurfaces(t *testing.T) {
	cfg := testConfig(1)
	cfg.PDF.UserDataDir = "/dev/null/not-allowed"
	e := NewEngine(cfg)

	_, err := e.Stats()
	require.Error(t, err)

	_, err = e.Render(context.Background(), "<p>hi</p>", domain.RenderOptions{Format: "a4"})
	assert.ErrorIs(t, err, domain.ErrRender)
}

func TestEngine_StatsDisabledAndEnabled(t *testing.T) {
	disabled := NewEngine(testConfig(0))
	st, err := disabled.Stats()
	require.NoError(t, err)
	assert.False(t, st.Enabled)
	assert.Equal(t, 1, st.TimeoutSecs)

	cfg := testConfig(2)
	cfg.PDF.UserDataDir = t.TempDir()
	cfg.PDF.ChromePath = "/bin/true"
	enabled := NewEngine(cfg)
	defer enabled.Close()

	st, err = enabled.Stats()
	require.NoError(t, err)
	assert.True(t, st.Enabled)
	assert.Equal(t, 2, st.Capacity)
	assert.Equal(t, 2, st.Idle)
	assert.Equal(t, 0, st.InUse)

	p1, err := enabled.Pool()
	require.NoError(t, err)
	p2, err := enabled.Pool()
	require.NoError(t, err)
	assert.Same(t, p1, p2)
}

func TestEngine_ClosedPoolFailsRender(t *testing.T) {
	cfg := testConfig(1)
	cfg.PDF.UserDataDir = t.TempDir()
	e := NewEngine(cfg)
	p, err := e.Pool()
	require.NoError(t, err)
	p.Close()

	_, err = e.Render(context.Background(), "<p>hi</p>", domain.RenderOptions{Format: "a4"})
	assert.ErrorIs(t, err, domain.ErrRender)
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestPrintParams(t *testing.T) {
	p := printParams(domain.RenderOptions{
		Format:          "letter",
		Landscape:       true,
		Scale:           1.5,
		PrintBackground: true,
		Margins: domain.Margins{
			Top:  domain.Dimension{Value: 1, Unit: domain.UnitInch},
			Left: domain.Pixels(48),
		},
	})
	assert.Equal(t, 8.5, p.PaperWidth)
	assert.Equal(t, 11.0, p.PaperHeight)
	assert.True(t, p.Landscape)
	assert.True(t, p.PrintBackground)
	assert.Equal(t, 1.5, p.Scale)
	assert.Equal(t, 1.0, p.MarginTop)
	assert.InDelta(t, 0.5, p.MarginLeft, 1e-9)
	assert.InDelta(t, 10/25.4, p.MarginBottom, 1e-9)
	assert.False(t, p.DisplayHeaderFooter)
	assert.Empty(t, p.HeaderTemplate)

	p = printParams(domain.RenderOptions{
		Width:               domain.Pixels(960),
		Height:              domain.Pixels(480),
		DisplayHeaderFooter: true,
		HeaderTemplate:      "<div>head</div>",
		FooterTemplate:      " ",
	})
	assert.InDelta(t, 10, p.PaperWidth, 1e-9)
	assert.InDelta(t, 5, p.PaperHeight, 1e-9)
	assert.Equal(t, 1.0, p.Scale)
	assert.True(t, p.DisplayHeaderFooter)
	assert.Equal(t, "<div>head</div>", p.HeaderTemplate)
	assert.Equal(t, " ", p.FooterTemplate)
}

func TestSettle(t *testing.T) {
	if err := settle(context.Background(), time.Millisecond); err != nil {
		t.Fatalf("settle: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	if err := settle(ctx, time.Minute); !errors.Is(err, context.Canceled) {
		t.Fatalf("settle on canceled ctx = %v, want context.Canceled", err)
	}
	if time.Since(start) > time.Second {
		t.Fatalf("settle did not return promptly")
	}
}

func TestRenderInTab_ContextWithoutBrowser(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := renderInTab(ctx, "<p>hello</p>", domain.RenderOptions{Format: "a4"}); err == nil {
		t.Fatalf("expected error without a chromedp context")
	}
}

func TestWaitForRenderReady_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := waitForRenderReady(ctx, 10*time.Millisecond); err == nil {
		t.Fatalf("expected canceled-context error")
	}
}
