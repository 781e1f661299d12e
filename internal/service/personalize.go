package service

import (
	"strings"

	"github.com/spec-kit/senseirm/internal/domain"
)

// DefaultRecipientName fills {{name}} for clients without a name.
const DefaultRecipientName = "Cliente"

// Personalize substitutes recipient placeholders in a campaign template in a
// single pass, so values containing placeholder text are never expanded again.
func Personalize(template string, client domain.Client) string {
	if template == "" {
		return template
	}
	name := client.Name
	if name == "" {
		name = DefaultRecipientName
	}
	return strings.NewReplacer(
		"{{name}}", name,
		"{{company}}", client.Company,
		"{{email}}", client.Email,
		"{{phone}}", client.Phone,
	).Replace(template)
}
