// Package portaltest scripts a browsertest.Browser into a small imitation of
// the e-filing portal, screen by screen, for flow and batch tests.
package portaltest

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/xkilldash9x/challan-cli/internal/browser/browsertest"
	"github.com/xkilldash9x/challan-cli/internal/portal"
)

// URL is the address the fake portal answers on.
const URL = "https://portal.test/iec/foportal/"

// Screen names.
const (
	Home          = "home"
	LoginPopup    = "login-popup"
	LoginUserID   = "login-user"
	LoginPassword = "login-password"
	DualLogin     = "dual-login"
	Dashboard     = "dashboard"
	DashboardMenu = "dashboard-menu"
	EPayTax       = "e-pay-tax"
	Category      = "category"
	Details       = "details"
	Amounts       = "amounts"
	Payment       = "payment"
	Download      = "download"
)

// Options selects the optional branches the fake portal shows.
type Options struct {
	// Popup shows the "enter any number" prompt after the login link.
	Popup bool
	// DualLogin shows the "Login Here" prompt after the password step.
	DualLogin bool
	// DownloadDir receives a PDF when Download is clicked. Empty disables it.
	DownloadDir string
}

// Site is the fake portal plus a count of PDFs it has produced.
type Site struct {
	*browsertest.Browser
	downloads atomic.Int32
}

// Downloads reports how many PDFs the Download button produced.
func (s *Site) Downloads() int { return int(s.downloads.Load()) }

const page = `<html><head><title>e-Filing</title></head><body>
<div class="header">Income Tax Department</div>
%s
</body></html>`

var screens = map[string]string{
	Home: `<a href="#">Login</a>`,
	LoginPopup: `<div class="modal"><p>Please enter a number to continue</p>
<input type="text" placeholder="Enter any number"><button>OK</button></div>
<input type="text" placeholder="Enter your User ID"><button>Continue</button>`,
	LoginUserID: `<input type="text" placeholder="Enter your User ID"><button> Continue </button>`,
	LoginPassword: `<label><input type="checkbox" id="secure"> Please confirm your secure access message</label>
<input type="password"><button>Continue</button>`,
	DualLogin: `<div class="modal"><p>You are already logged in on another device.</p><button>Login Here</button></div>`,
	Dashboard: `<button class="menuIconForSidenav" aria-label="Menu">Menu</button><h2>Dashboard</h2>`,
	DashboardMenu: `<button class="menuIconForSidenav" aria-label="Menu">Menu</button>
<div class="sideNav"><ul><li><span>e-File</span></li><li><span>Authorised Partners</span></li></ul></div>`,
	EPayTax: `<h2>e-Pay Tax</h2><button class="newPaymentBtn"><span>New Payment</span></button>`,
	Category: `<div class="tile"><h3>Income Tax</h3></div><div class="tile"><h3>Demand Payment</h3></div>`,
	Details: `<label>Assessment Year</label><div><select><option value="">Select</option>
<option value="2024-25">2024-25</option><option value="2025-26">2025-26</option></select></div>
<label>Type of Payment (Minor Head)</label><div><select><option value="">Select</option>
<option value="100">Advance Tax (100)</option><option value="300">Self-Assessment Tax (300)</option></select></div>
<button>Continue</button>`,
	Amounts: `<label>Tax</label><div><input type="text"></div>
<label>Surcharge</label><div><input type="text"></div>
<label>Health &amp; Education Cess</label><div><input type="text"></div>
<label>Interest</label><div><input type="text"></div>
<label>Penalty</label><div><input type="text"></div>
<label>Fee</label><div><input type="text"></div>
<label>Others</label><div><input type="text"></div>
<button>Continue</button>`,
	Payment: `<label><input type="radio" name="mode"> Net Banking</label>
<label>RTGS/NEFT</label>
<button>Continue</button>`,
	Download: `<p>Challan generated</p><button>Download</button>`,
}

// Markup returns the full HTML of a named screen.
func Markup(screen string) string {
	body, ok := screens[screen]
	if !ok {
		panic(fmt.Sprintf("portaltest: unknown screen %q", screen))
	}
	return fmt.Sprintf(page, body)
}

// New builds a fake portal showing a blank tab. Navigating to URL opens Home.
func New(opts Options) *Site {
	b := browsertest.New()
	site := &Site{Browser: b}
	for name := range screens {
		b.AddScreen(name, Markup(name))
	}
	b.Route(URL, Home)

	if opts.Popup {
		b.Transition(Home, portal.LoginEntry.XPath, LoginPopup)
		b.Transition(LoginPopup, portal.PopupOK.XPath, LoginUserID)
	} else {
		b.Transition(Home, portal.LoginEntry.XPath, LoginUserID)
	}
	b.Transition(LoginUserID, portal.LoginContinue.XPath, LoginPassword)
	if opts.DualLogin {
		b.Transition(LoginPassword, portal.LoginContinue.XPath, DualLogin)
		b.Transition(DualLogin, portal.DualLoginButton.XPath, Dashboard)
	} else {
		b.Transition(LoginPassword, portal.LoginContinue.XPath, Dashboard)
	}

	b.Transition(Dashboard, portal.MenuButton.XPath, DashboardMenu)
	b.Transition(DashboardMenu, portal.EFileEntry.XPath, EPayTax)

	b.Transition(EPayTax, portal.NewPayment.XPath, Category)
	b.Transition(Category, portal.IncomeTaxTile.XPath, Details)
	b.Transition(Details, portal.FormContinue.XPath, Amounts)
	b.Transition(Amounts, portal.FormContinue.XPath, Payment)
	b.Transition(Payment, portal.FormContinue.XPath, Download)

	if opts.DownloadDir != "" {
		dir := opts.DownloadDir
		b.OnClick(Download, portal.DownloadButton.XPath, func(*browsertest.Browser) {
			n := site.downloads.Add(1)
			name := filepath.Join(dir, fmt.Sprintf("challan_%d.pdf", n))
			_ = os.WriteFile(name, []byte("%PDF-1.4 fake challan"), 0o644)
		})
	}
	return site
}

// Restart returns the fake to the portal home page, as a new login would.
func (s *Site) Restart() {
	s.Show(Home)
}
