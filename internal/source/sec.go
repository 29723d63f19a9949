package source

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"

	"github.com/altgovph/procurement-cli/internal/registry"
)

var secEntryRe = regexp.MustCompile(`(?s)COMPANY DETAILS\nCompany Name\n(.*?)\n\nSEC Number\n(.*?)\n\nDate Registered\n(.*?)\n\nStatus\n(.*?)\n\nAddress\n(.*?)\n\nSECONDARY LICENSE DETAILS`)

var secDateLayouts = []string{"January 2, 2006", "Jan 2, 2006", "2006-01-02"}

// ParseSECDump extracts the company detail blocks of a saved SEC registry
// search page. Blocks without a company name are dropped; an unparseable
// registration date is left nil.
func ParseSECDump(data []byte) []registry.Verification {
	text := decodeText(data)
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var out []registry.Verification
	for _, m := range secEntryRe.FindAllStringSubmatch(text, -1) {
		v := registry.Verification{
			Name:               strings.TrimSpace(m[1]),
			RegistrationNumber: strings.TrimSpace(m[2]),
			DateRegistered:     parseSECDate(strings.TrimSpace(m[3])),
			Status:             strings.TrimSpace(m[4]),
			Address:            strings.Join(strings.Fields(m[5]), " "),
		}
		if v.Name == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}

// LoadSECDir parses every *.txt file under dir. Files are read in name order.
func LoadSECDir(dir string) ([]registry.Verification, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.txt"))
	if err != nil {
		return nil, eris.Wrapf(err, "source: sec: list %s", dir)
	}
	sort.Strings(paths)

	log := zap.L().With(zap.String("component", "source.sec"))
	var out []registry.Verification
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, eris.Wrapf(err, "source: sec: read %s", p)
		}
		entries := ParseSECDump(data)
		if len(entries) == 0 {
			log.Warn("no company details found", zap.String("file", filepath.Base(p)))
			continue
		}
		out = append(out, entries...)
	}
	log.Info("loaded sec entries", zap.Int("files", len(paths)), zap.Int("entries", len(out)))
	return out, nil
}

func parseSECDate(s string) *time.Time {
	for _, layout := range secDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// decodeText treats input that is not valid UTF-8 as Windows-1252, the
// encoding browsers use when saving these pages.
func decodeText(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	out, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return string(data)
	}
	return string(out)
}
