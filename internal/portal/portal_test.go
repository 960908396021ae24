package portal_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/challan-cli/internal/browser"
	"github.com/xkilldash9x/challan-cli/internal/browser/browsertest"
	"github.com/xkilldash9x/challan-cli/internal/config"
	"github.com/xkilldash9x/challan-cli/internal/downloads"
	"github.com/xkilldash9x/challan-cli/internal/interaction"
	"github.com/xkilldash9x/challan-cli/internal/portal"
	"github.com/xkilldash9x/challan-cli/internal/portal/portaltest"
	"github.com/xkilldash9x/challan-cli/internal/records"
	"github.com/xkilldash9x/challan-cli/internal/session"
)

type keeper struct {
	persisted, restored int
	persistErr          error
}

func (k *keeper) Persist(context.Context, browser.Client) (int, error) {
	k.persisted++
	return 0, k.persistErr
}

func (k *keeper) Restore(context.Context, browser.Client) (int, error) {
	k.restored++
	return 0, nil
}

type fixedCRN string

func (c fixedCRN) NextCRN() string { return string(c) }

type harness struct {
	site     *portaltest.Site
	portal   *portal.Portal
	keeper   *keeper
	dumpDir  string
	download string
}

func testTimeouts() config.TimeoutConfig {
	return config.TimeoutConfig{
		Element:   80 * time.Millisecond,
		PageReady: 80 * time.Millisecond,
		Sidebar:   80 * time.Millisecond,
		Popup:     40 * time.Millisecond,
		DualLogin: 40 * time.Millisecond,
		Poll:      5 * time.Millisecond,
	}
}

func newHarness(t *testing.T, opts portaltest.Options, logger *zap.Logger) *harness {
	t.Helper()
	if logger == nil {
		logger = zaptest.NewLogger(t)
	}
	h := &harness{
		keeper:   &keeper{},
		dumpDir:  t.TempDir(),
		download: t.TempDir(),
	}
	if opts.DownloadDir == "" {
		opts.DownloadDir = h.download
	} else {
		h.download = opts.DownloadDir
	}
	h.site = portaltest.New(opts)

	to := testTimeouts()
	in := interaction.New(h.site, logger, interaction.Options{
		DefaultTimeout: to.Element,
		PollInterval:   to.Poll,
		Dumper:         interaction.NewDumper(h.site, h.dumpDir, true, logger),
	})
	finder := downloads.NewPDFFinder(h.download, 60*time.Millisecond, 5*time.Millisecond)
	h.portal = portal.New(in, h.keeper, finder, fixedCRN("CRN1700000000"), portal.Options{
		URL:      portaltest.URL,
		Timeouts: to,
	}, logger)
	return h
}

func sampleRecord() *records.Record {
	return &records.Record{
		Row:            2,
		Company:        "Acme Traders Pvt Ltd",
		UserID:         "AAACA1234F",
		Password:       "s3cret!",
		AssessmentYear: "2025-26",
		Tax:            decimal.NewNullDecimal(decimal.RequireFromString("12100.75")),
		Surcharge:      decimal.NewNullDecimal(decimal.Zero),
		Cess:           decimal.NewNullDecimal(decimal.RequireFromString("484")),
		Interest:       decimal.NullDecimal{},
	}
}

func typed(site *portaltest.Site) map[string]string {
	out := map[string]string{}
	for _, c := range site.CallsFor("SendKeys") {
		out[c.Locator] = c.Value
	}
	return out
}

func TestLogin(t *testing.T) {
	t.Run("Plain", func(t *testing.T) {
		h := newHarness(t, portaltest.Options{}, nil)

		res := h.portal.Login(context.Background(), sampleRecord())

		require.True(t, res.OK, res.Reason)
		assert.False(t, res.DualLogin)
		assert.Equal(t, portaltest.Dashboard, h.site.Screen())
		assert.Equal(t, portaltest.URL, h.site.URL())
		assert.Equal(t, map[string]string{
			portal.UserIDInput.Name:   "AAACA1234F",
			portal.PasswordInput.Name: "s3cret!",
		}, typed(h.site))
		assert.Equal(t, 1, h.keeper.persisted)
		assert.Equal(t, 1, h.keeper.restored)
	})

	t.Run("Number Popup", func(t *testing.T) {
		h := newHarness(t, portaltest.Options{Popup: true}, nil)

		res := h.portal.Login(context.Background(), sampleRecord())

		require.True(t, res.OK, res.Reason)
		assert.Equal(t, "1234", typed(h.site)[portal.PopupNumberInput.Name])
		assert.Equal(t, portaltest.Dashboard, h.site.Screen())
	})

	t.Run("Number Popup Still Animating", func(t *testing.T) {
		h := newHarness(t, portaltest.Options{Popup: true}, nil)
		markup := strings.Replace(portaltest.Markup(portaltest.LoginPopup),
			`placeholder="Enter any number">`, `placeholder="Enter any number" disabled>`, 1)
		require.Contains(t, markup, "disabled")
		h.site.AddScreen(portaltest.LoginPopup, markup)

		res := h.portal.Login(context.Background(), sampleRecord())

		require.True(t, res.OK, res.Reason)
		assert.Equal(t, "1234", typed(h.site)[portal.PopupNumberInput.Name])
		assert.Equal(t, portaltest.Dashboard, h.site.Screen())
	})

	t.Run("Dual Login", func(t *testing.T) {
		h := newHarness(t, portaltest.Options{DualLogin: true}, nil)

		res := h.portal.Login(context.Background(), sampleRecord())

		require.True(t, res.OK, res.Reason)
		assert.True(t, res.DualLogin)
		assert.Equal(t, portaltest.Dashboard, h.site.Screen())
	})

	t.Run("Checkbox Needs Second Click", func(t *testing.T) {
		h := newHarness(t, portaltest.Options{}, nil)
		h.site.IgnoreClicks(portal.SecureCheckbox.XPath, 1)

		res := h.portal.Login(context.Background(), sampleRecord())

		require.True(t, res.OK, res.Reason)
		clicks := 0
		for _, c := range h.site.CallsFor("Click") {
			if c.Locator == portal.SecureCheckbox.Name {
				clicks++
			}
		}
		assert.Equal(t, 2, clicks)
	})

	t.Run("Checkbox Never Ticks", func(t *testing.T) {
		h := newHarness(t, portaltest.Options{}, nil)
		h.site.IgnoreClicks(portal.SecureCheckbox.XPath, 2)

		res := h.portal.Login(context.Background(), sampleRecord())

		assert.False(t, res.OK)
		assert.Equal(t, "checkbox not ticked", res.Reason)
		assert.Equal(t, portaltest.LoginPassword, h.site.Screen())
		assert.FileExists(t, filepath.Join(h.dumpDir, "login_error.png"))
		assert.FileExists(t, filepath.Join(h.dumpDir, "login_error.html"))
		assert.Zero(t, h.keeper.persisted)
	})

	t.Run("Portal Unreachable", func(t *testing.T) {
		h := newHarness(t, portaltest.Options{}, nil)
		h.site.FailOn("Navigate", errors.New("net::ERR_NAME_NOT_RESOLVED"))

		res := h.portal.Login(context.Background(), sampleRecord())

		assert.False(t, res.OK)
		assert.Equal(t, "portal not reachable", res.Reason)
	})

	t.Run("Missing Login Link Dumps Once", func(t *testing.T) {
		h := newHarness(t, portaltest.Options{}, nil)
		h.site.AddScreen(portaltest.Home, "<html><body><p>Maintenance</p></body></html>")

		res := h.portal.Login(context.Background(), sampleRecord())

		assert.Equal(t, "login link not found", res.Reason)
		assert.FileExists(t, filepath.Join(h.dumpDir, "login_error.png"))
		assert.Len(t, h.site.CallsFor("Screenshot"), 1)
	})

	t.Run("Session Save Failure Is Not Fatal", func(t *testing.T) {
		core, logs := observer.New(zap.WarnLevel)
		h := newHarness(t, portaltest.Options{}, zap.New(core))
		h.keeper.persistErr = errors.New("disk full")

		res := h.portal.Login(context.Background(), sampleRecord())

		require.True(t, res.OK, res.Reason)
		assert.Zero(t, h.keeper.restored)
		assert.Equal(t, 1, logs.FilterMessage("Could not save session cookies.").Len())
	})

	t.Run("Cancelled", func(t *testing.T) {
		h := newHarness(t, portaltest.Options{}, nil)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		res := h.portal.Login(ctx, sampleRecord())

		assert.False(t, res.OK)
		assert.Equal(t, context.Canceled.Error(), res.Reason)
		assert.Empty(t, h.site.CallsFor("Screenshot"))
	})

	t.Run("Masks User ID In Logs", func(t *testing.T) {
		core, logs := observer.New(zap.InfoLevel)
		h := newHarness(t, portaltest.Options{}, zap.New(core))

		h.portal.Login(context.Background(), sampleRecord())

		entries := logs.FilterMessage("Logging in.").All()
		require.Len(t, entries, 1)
		assert.Equal(t, "********4F", entries[0].ContextMap()["user_id"])
	})
}

func TestLoginWithSessionManager(t *testing.T) {
	dir := t.TempDir()
	logger := zaptest.NewLogger(t)
	site := portaltest.New(portaltest.Options{})
	in := interaction.New(site, logger, interaction.Options{
		DefaultTimeout: 80 * time.Millisecond,
		PollInterval:   5 * time.Millisecond,
	})
	cookies := filepath.Join(dir, "session", "cookies.json")
	p := portal.New(in, session.NewManager(cookies, logger), downloads.NewPDFFinder(dir, 0, 0),
		fixedCRN("CRN1"), portal.Options{URL: portaltest.URL, Timeouts: testTimeouts()}, logger)

	res := p.Login(context.Background(), sampleRecord())

	require.True(t, res.OK, res.Reason)
	assert.FileExists(t, cookies)
	assert.Len(t, site.CallsFor("Reload"), 1)
	assert.Equal(t, portaltest.Dashboard, site.Screen())
}

func TestNavigate(t *testing.T) {
	t.Run("Reaches Payment Screen", func(t *testing.T) {
		h := newHarness(t, portaltest.Options{}, nil)
		h.site.Show(portaltest.Dashboard)

		res := h.portal.Navigate(context.Background())

		require.True(t, res.OK, res.Reason)
		assert.Equal(t, portaltest.EPayTax, h.site.Screen())
		assert.NotEmpty(t, h.site.CallsFor("ScrollIntoView"))
	})

	t.Run("Waits For Page Load", func(t *testing.T) {
		h := newHarness(t, portaltest.Options{}, nil)
		h.site.Show(portaltest.Dashboard)
		h.site.SetReadyStates("loading", "interactive", "complete")

		res := h.portal.Navigate(context.Background())

		require.True(t, res.OK, res.Reason)
		assert.GreaterOrEqual(t, len(h.site.CallsFor("ReadyState")), 3)
	})

	t.Run("Page Never Loads", func(t *testing.T) {
		h := newHarness(t, portaltest.Options{}, nil)
		h.site.Show(portaltest.Dashboard)
		h.site.SetReadyStates("loading")

		res := h.portal.Navigate(context.Background())

		assert.False(t, res.OK)
		assert.Equal(t, "page did not finish loading", res.Reason)
		assert.FileExists(t, filepath.Join(h.dumpDir, "navigation_error.png"))
	})

	t.Run("Sidebar Does Not Open", func(t *testing.T) {
		h := newHarness(t, portaltest.Options{}, nil)
		h.site.Show(portaltest.Dashboard)
		h.site.IgnoreClicks(portal.MenuButton.XPath, 1)

		res := h.portal.Navigate(context.Background())

		assert.False(t, res.OK)
		assert.Equal(t, "sidebar did not open", res.Reason)
		assert.FileExists(t, filepath.Join(h.dumpDir, "sidebar_error.png"))
		assert.NoFileExists(t, filepath.Join(h.dumpDir, "navigation_error.png"))
	})
}

func TestCreateChallan(t *testing.T) {
	t.Run("Fills Positive Amounts And Downloads", func(t *testing.T) {
		h := newHarness(t, portaltest.Options{}, nil)
		h.site.Show(portaltest.EPayTax)

		res := h.portal.CreateChallan(context.Background(), sampleRecord())

		require.True(t, res.OK, res.Reason)
		assert.Equal(t, "CRN1700000000", res.CRN)
		assert.Equal(t, portal.StatusCreated, res.Status)
		assert.Equal(t, portal.PaymentMode, res.PaymentMode)
		assert.Equal(t, filepath.Join(h.download, "challan_1.pdf"), res.PDFPath)
		assert.Equal(t, 1, h.site.Downloads())

		assert.Equal(t, map[string]string{
			"Tax":                     "12100",
			"Health & Education Cess": "484",
		}, typed(h.site))

		selected := map[string]string{}
		for _, c := range h.site.CallsFor("SetValue") {
			selected[c.Locator] = c.Value
		}
		assert.Equal(t, map[string]string{
			portal.AssessmentYear.Name: "2025-26",
			portal.PaymentType.Name:    portal.SelfAssessmentTax,
		}, selected)
		assert.Equal(t, portaltest.Download, h.site.Screen())
	})

	t.Run("Missing Amount Field", func(t *testing.T) {
		h := newHarness(t, portaltest.Options{}, nil)
		h.site.AddScreen(portaltest.Amounts, `<html><body>
<label>Tax</label><div><input type="text"></div>
<button>Continue</button></body></html>`)
		h.site.Show(portaltest.EPayTax)

		res := h.portal.CreateChallan(context.Background(), sampleRecord())

		assert.False(t, res.OK)
		assert.Equal(t, "Health & Education Cess field not found", res.Reason)
		assert.Empty(t, res.CRN)
		assert.Zero(t, h.site.Downloads())
	})

	t.Run("Missing Download Button", func(t *testing.T) {
		h := newHarness(t, portaltest.Options{}, nil)
		h.site.AddScreen(portaltest.Download, `<html><body><p>Service unavailable</p></body></html>`)
		h.site.Show(portaltest.EPayTax)

		res := h.portal.CreateChallan(context.Background(), sampleRecord())

		assert.False(t, res.OK)
		assert.Equal(t, "Download button not found", res.Reason)
		assert.FileExists(t, filepath.Join(h.dumpDir, "download_error.png"))
	})

	t.Run("PDF Never Arrives", func(t *testing.T) {
		h := newHarness(t, portaltest.Options{}, nil)
		// Clicks on Download produce nothing.
		h.site.OnClick(portaltest.Download, portal.DownloadButton.XPath, func(*browsertest.Browser) {})
		h.site.Show(portaltest.EPayTax)

		res := h.portal.CreateChallan(context.Background(), sampleRecord())

		require.True(t, res.OK, res.Reason)
		assert.Equal(t, portal.DownloadFailed, res.PDFPath)
		assert.Equal(t, "CRN1700000000", res.CRN)
		entries, err := os.ReadDir(h.download)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("No Amounts Still Submits", func(t *testing.T) {
		h := newHarness(t, portaltest.Options{}, nil)
		h.site.Show(portaltest.EPayTax)
		rec := sampleRecord()
		rec.Tax, rec.Cess = decimal.NullDecimal{}, decimal.NullDecimal{}

		res := h.portal.CreateChallan(context.Background(), rec)

		require.True(t, res.OK, res.Reason)
		assert.Empty(t, h.site.CallsFor("SendKeys"))
	})
}

func TestAmountInput(t *testing.T) {
	loc := portal.AmountInput(records.ColCess)
	assert.Equal(t, "Health & Education Cess", loc.Name)
	assert.Equal(t, browser.RoleInput, loc.Role)
	assert.Equal(t, "//label[contains(text(),'Health & Education Cess')]/following-sibling::div//input", loc.XPath)

	assert.Equal(t, "Penalty", portal.AmountLabel(records.ColPenalty))
	assert.Equal(t, "Unknown", portal.AmountLabel("Unknown"))
}
