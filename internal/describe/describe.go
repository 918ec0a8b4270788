// Package describe builds event descriptions with a provenance footer.
package describe

import (
	"strings"
	"time"

	"sheetcal/internal/config"
)

// TimestampLayout is yyyy/MM/dd HH:mm:ss.
const TimestampLayout = "2006/01/02 15:04:05"

// Builder appends the footer. It is pure given Now and Link.
type Builder struct {
	Footer   config.Footer
	Location *time.Location
	// Link points back at the originating row store.
	Link string
	// Now defaults to time.Now.
	Now func() time.Time
}

// New builds a Builder from footer config. The footer zone must load.
func New(footer config.Footer, link string) (*Builder, error) {
	loc, err := time.LoadLocation(footer.Timezone)
	if err != nil {
		return nil, err
	}
	return &Builder{Footer: footer, Location: loc, Link: link, Now: time.Now}, nil
}

// Build returns original followed by the footer.
func (b *Builder) Build(original string) string {
	now := time.Now
	if b.Now != nil {
		now = b.Now
	}
	loc := b.Location
	if loc == nil {
		loc = time.UTC
	}

	var sb strings.Builder
	sb.WriteString(original)
	sb.WriteString("\n\n\n---\n")
	sb.WriteString(b.Footer.Notice)
	sb.WriteString("\n")
	sb.WriteString(b.Footer.TimestampLabel)
	sb.WriteString(now().In(loc).Format(TimestampLayout))
	sb.WriteString("\n")
	sb.WriteString(b.Footer.LinkLabel)
	sb.WriteString(b.Link)
	return sb.String()
}
