package composer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ikanisa/easymo-router/internal/models"
)

// Render flattens a response into plain text. Gateways that cannot send
// buttons or templates natively send this body instead.
func Render(resp models.SkillResponse) string {
	var b strings.Builder
	switch resp.Type {
	case models.ResponseTemplate:
		if resp.Template == nil {
			return resp.Text
		}
		b.WriteString(resp.Template.Name)
		keys := make([]string, 0, len(resp.Template.Variables))
		for k := range resp.Template.Variables {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%s", k, resp.Template.Variables[k])
		}
		return b.String()
	case models.ResponseMedia:
		if resp.Text == "" {
			return resp.MediaURL
		}
		return resp.Text + "\n" + resp.MediaURL
	}

	b.WriteString(resp.Text)
	if len(resp.Options) > 0 {
		b.WriteString("\n")
		for i, o := range resp.Options {
			fmt.Fprintf(&b, "\n%d. %s", i+1, o.Label)
		}
	}
	return b.String()
}
