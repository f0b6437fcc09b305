package browser

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/playwright-community/playwright-go"
)

const navigationTimeout = 60 * time.Second

type playwrightSession struct {
	pw       *playwright.Playwright
	browser  playwright.Browser
	debugDir string
}

// NewSession launches a Chromium instance. The returned session must be
// closed by the caller on every exit path.
func NewSession(headless bool, debugDir string) (Session, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	b, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(headless),
		Args: []string{
			"--disable-dev-shm-usage",
			"--no-sandbox",
			"--window-size=1920,1080",
			"--ignore-certificate-errors",
		},
	})
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	return &playwrightSession{pw: pw, browser: b, debugDir: debugDir}, nil
}

func (s *playwrightSession) NewPage() (Page, error) {
	p, err := s.browser.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	return &playwrightPage{page: p, debugDir: s.debugDir}, nil
}

func (s *playwrightSession) Close() {
	if s.browser != nil {
		s.browser.Close()
	}
	if s.pw != nil {
		s.pw.Stop()
	}
}

type playwrightPage struct {
	page     playwright.Page
	debugDir string
}

func (p *playwrightPage) Navigate(url string) error {
	_, err := p.page.Goto(url, playwright.PageGotoOptions{
		Timeout:   playwright.Float(float64(navigationTimeout.Milliseconds())),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	return err
}

func (p *playwrightPage) WaitVisible(selector string, timeout time.Duration) error {
	return p.page.Locator(selector).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
}

func (p *playwrightPage) WaitPresent(selector string, timeout time.Duration) error {
	return p.page.Locator(selector).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
}

func (p *playwrightPage) Elements(selector string) ([]Element, error) {
	locators, err := p.page.Locator(selector).All()
	if err != nil {
		return nil, err
	}
	elements := make([]Element, 0, len(locators))
	for _, loc := range locators {
		elements = append(elements, &playwrightElement{loc: loc})
	}
	return elements, nil
}

func (p *playwrightPage) Element(selector string) (Element, bool) {
	loc := p.page.Locator(selector).First()
	count, err := p.page.Locator(selector).Count()
	if err != nil || count == 0 {
		return nil, false
	}
	return &playwrightElement{loc: loc}, true
}

func (p *playwrightPage) Eval(script string) (any, error) {
	return p.page.Evaluate(script)
}

func (p *playwrightPage) Content() (string, error) {
	return p.page.Content()
}

func (p *playwrightPage) Snapshot(name string) (string, error) {
	if err := os.MkdirAll(p.debugDir, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(p.debugDir, fmt.Sprintf("%s_%s.png", name, time.Now().Format("20060102-150405")))
	_, err := p.page.Screenshot(playwright.PageScreenshotOptions{
		Path: playwright.String(path),
	})
	if err != nil {
		return "", err
	}
	return path, nil
}

func (p *playwrightPage) DumpSource(name string) (string, error) {
	content, err := p.page.Content()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(p.debugDir, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(p.debugDir, name+".html")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", err
	}
	return path, nil
}

type playwrightElement struct {
	loc playwright.Locator
}

func (e *playwrightElement) Attribute(name string) (string, bool) {
	v, err := e.loc.GetAttribute(name)
	if err != nil || v == "" {
		return "", false
	}
	return v, true
}

func (e *playwrightElement) All(selector string) ([]Element, error) {
	locators, err := e.loc.Locator(selector).All()
	if err != nil {
		return nil, err
	}
	elements := make([]Element, 0, len(locators))
	for _, loc := range locators {
		elements = append(elements, &playwrightElement{loc: loc})
	}
	return elements, nil
}

func (e *playwrightElement) Click() error {
	return e.loc.Click()
}

func (e *playwrightElement) ScrollIntoView() error {
	return e.loc.ScrollIntoViewIfNeeded()
}

func (e *playwrightElement) Visible() bool {
	visible, err := e.loc.IsVisible()
	return err == nil && visible
}
