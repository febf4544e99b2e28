// Package render personalizes campaign message bodies per recipient.
package render

import (
	"strings"

	"github.com/example/campaign-dispatch/internal/campaign"
)

// Render substitutes recipient placeholders into the template. Only {{name}}
// is supported today; unknown placeholders pass through verbatim so a typo in
// a template never fails a whole campaign. Pure function, safe for concurrent
// use.
func Render(template string, c campaign.Customer) string {
	return strings.ReplaceAll(template, "{{name}}", c.Name)
}
