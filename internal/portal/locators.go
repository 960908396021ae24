package portal

import (
	"fmt"

	"github.com/xkilldash9x/challan-cli/internal/browser"
	"github.com/xkilldash9x/challan-cli/internal/records"
)

// Login screen.
var (
	LoginEntry       = browser.NewLocator("Login", browser.RoleLink, "//a[normalize-space()='Login']")
	PopupNumberInput = browser.NewLocator("Popup Number", browser.RoleInput, "//input[@placeholder='Enter any number']")
	PopupOK          = browser.NewLocator("Popup OK", browser.RoleButton, "//button[text()='OK']")
	UserIDInput      = browser.NewLocator("User ID", browser.RoleInput, "//input[contains(@placeholder, 'User ID')]")
	LoginContinue    = browser.NewLocator("Login Continue", browser.RoleButton, "//button[normalize-space()='Continue']")
	SecureCheckbox   = browser.NewLocator("Secure Access Checkbox", browser.RoleCheckbox, "//input[@type='checkbox']")
	PasswordInput    = browser.NewLocator("Password", browser.RoleInput, "//input[@type='password']")
	DualLoginButton  = browser.NewLocator("Login Here", browser.RoleButton, "//button[normalize-space()='Login Here']")
)

// Dashboard navigation.
var (
	MenuButton       = browser.NewLocator("Menu", browser.RoleButton, "//button[contains(@class, 'menuIconForSidenav') or @aria-label='Menu']")
	Sidebar          = browser.NewLocator("Sidebar", browser.RoleContainer, "//div[contains(@class,'menuIconForSidenav') or contains(@class,'sideNav')]")
	EFileEntry       = browser.NewLocator("e-File", browser.RoleLink, "//*[contains(text(), 'e-File') or contains(text(), 'E-File') or contains(text(), 'E-file')]")
	NewPaymentMarker = browser.NewLocator("New Payment Marker", browser.RoleButton, "//button[contains(., 'New Payment')]")
)

// Challan form.
var (
	NewPayment     = browser.NewLocator("New Payment", browser.RoleButton, "//span[contains(text(),'New Payment')]")
	IncomeTaxTile  = browser.NewLocator("Income Tax", browser.RoleHeading, "//h3[contains(text(),'Income Tax')]")
	AssessmentYear = browser.NewLocator("Assessment Year", browser.RoleSelect, "//label[contains(text(),'Assessment Year')]/following-sibling::div//select")
	PaymentType    = browser.NewLocator("Type of Payment", browser.RoleSelect, "//label[contains(text(),'Type of Payment')]/following-sibling::div//select")
	FormContinue   = browser.NewLocator("Continue", browser.RoleButton, "//button[contains(text(), 'Continue')]")
	RTGSOption     = browser.NewLocator("RTGS/NEFT", browser.RoleOption, "//label[contains(text(), 'RTGS/NEFT')]")
	DownloadButton = browser.NewLocator("Download", browser.RoleButton, "//button[contains(text(), 'Download')]")
)

const (
	// SelfAssessmentTax is the minor-head value of the payment-type select.
	SelfAssessmentTax = "300"

	// PaymentMode is the only settlement mode this tool selects.
	PaymentMode = "RTGS/NEFT"
)

// amountLabels maps record columns to the label the portal prints next to the input.
var amountLabels = map[string]string{
	records.ColTax:       "Tax",
	records.ColSurcharge: "Surcharge",
	records.ColCess:      "Health & Education Cess",
	records.ColInterest:  "Interest",
	records.ColFee:       "Fee",
	records.ColPenalty:   "Penalty",
	records.ColOthers:    "Others",
}

// AmountLabel returns the on-screen label for a monetary column.
func AmountLabel(column string) string {
	if l, ok := amountLabels[column]; ok {
		return l
	}
	return column
}

// AmountInput locates the input that follows the label for column.
func AmountInput(column string) browser.Locator {
	label := AmountLabel(column)
	return browser.NewLocator(label, browser.RoleInput,
		fmt.Sprintf("//label[contains(text(),'%s')]/following-sibling::div//input", label))
}
