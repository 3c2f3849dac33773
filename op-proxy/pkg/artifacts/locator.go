package artifacts

import (
	"fmt"
	"net/url"
	"strings"
)

type schemeUnmarshaler func(string) (*Locator, error)

var schemeUnmarshalerDispatch = map[string]schemeUnmarshaler{
	"file":  unmarshalURL,
	"http":  unmarshalURL,
	"https": unmarshalURL,
}

// Locator points at a forge output directory: a local `file://` path, or an
// `http(s)://` tarball of one. A tarball URL may pin its content with a
// `#sha256=<hex>` fragment.
type Locator struct {
	URL *url.URL
}

func NewLocatorFromURL(u string) (*Locator, error) {
	var loc Locator
	if err := loc.UnmarshalText([]byte(u)); err != nil {
		return nil, err
	}
	return &loc, nil
}

func MustNewLocatorFromURL(u string) *Locator {
	loc, err := NewLocatorFromURL(u)
	if err != nil {
		panic(err)
	}
	return loc
}

func NewFileLocator(path string) (*Locator, error) {
	u, err := url.Parse("file://" + path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	return &Locator{URL: u}, nil
}

func (a *Locator) UnmarshalText(text []byte) error {
	str := string(text)
	for scheme, unmarshaler := range schemeUnmarshalerDispatch {
		if !strings.HasPrefix(str, scheme+"://") {
			continue
		}
		loc, err := unmarshaler(str)
		if err != nil {
			return err
		}
		*a = *loc
		return nil
	}
	return fmt.Errorf("unsupported artifacts locator %q", str)
}

func (a *Locator) MarshalText() ([]byte, error) {
	return []byte(a.URL.String()), nil
}

func (a *Locator) String() string {
	return a.URL.String()
}

func (a *Locator) Equal(b *Locator) bool {
	return a.URL.String() == b.URL.String()
}

func (a *Locator) IsRemote() bool {
	return a.URL.Scheme == "http" || a.URL.Scheme == "https"
}

// Checksum returns the sha256 pinned by the URL fragment, if any.
func (a *Locator) Checksum() string {
	sum, ok := strings.CutPrefix(a.URL.Fragment, "sha256=")
	if !ok {
		return ""
	}
	return sum
}

func unmarshalURL(text string) (*Locator, error) {
	u, err := url.Parse(text)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "file" && u.Path == "" {
		return nil, fmt.Errorf("file locator %q has no path", text)
	}
	if u.Scheme != "file" && u.Host == "" {
		return nil, fmt.Errorf("locator %q has no host", text)
	}
	return &Locator{URL: u}, nil
}
