package mail

import (
	"bytes"
	"fmt"
	"html/template"
)

var confirmTmpl = template.Must(template.New("confirm").Parse(`<p>Welcome to CampusConnect!</p>
<p>Please confirm your email address to finish signing up:</p>
<p><a href="{{.Link}}">Confirm my email</a></p>
<p>If you did not create an account you can ignore this message.</p>`))

// ConfirmationEmail renders the subject and body of the sign-up confirmation.
func ConfirmationEmail(link string) (subject, body string, err error) {
	var buf bytes.Buffer
	if err := confirmTmpl.Execute(&buf, struct{ Link string }{link}); err != nil {
		return "", "", fmt.Errorf("mail: rendering confirmation email: %w", err)
	}
	return "Confirm your CampusConnect account", buf.String(), nil
}
