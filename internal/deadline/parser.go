package deadline

import (
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	apperrors "taskforce-bot.com/taskforce-bot/internal/errors"
)

// layouts accepted before falling back to natural-language parsing. The
// first one is the format the original bot prompted users with.
var layouts = []string{
	"02.01.2006 15:04",
	"2006-01-02 15:04",
	time.RFC3339,
}

// Parser turns user-entered deadline text into an instant. It understands
// fixed layouts and natural language ("tomorrow at 17:00", "in 2 days").
type Parser struct {
	w *when.Parser
}

func NewParser() *Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return &Parser{w: w}
}

// Parse resolves text against now. The result must lie in the future;
// anything else is ErrInvalidDeadline.
func (p *Parser) Parse(text string, now time.Time) (time.Time, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, apperrors.ErrDeadlineRequired
	}

	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, text, now.Location()); err == nil {
			return p.validate(t, now)
		}
	}

	r, err := p.w.Parse(text, now)
	if err != nil || r == nil {
		return time.Time{}, apperrors.ErrInvalidDeadline
	}
	return p.validate(r.Time, now)
}

func (p *Parser) validate(t, now time.Time) (time.Time, error) {
	if !t.After(now) {
		return time.Time{}, apperrors.ErrInvalidDeadline
	}
	return t, nil
}
