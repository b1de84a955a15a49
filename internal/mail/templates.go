// internal/mail/templates.go
package mail

import (
	"fmt"
	"strings"

	"firmadoc-engine/internal/models"
)

// Template parameters:
//   recipientName - display name of the client
//   documentHash  - public hash of the document, used in links
//   otp           - one-time code, only in "created" mails
//   expiresAt     - formatted expiry date
type template struct {
	Subject string
	Text    string
	HTML    string
}

// Fixed Italian copy per notification kind.
var templates = map[models.NotificationKind]template{
	models.KindCreated: {
		Subject: "Nuovo preventivo {{documentHash}} da firmare",
		Text: "Gentile {{recipientName}},\n\n" +
			"è stato predisposto un nuovo preventivo per lei. Per visualizzarlo e firmarlo " +
			"acceda al documento {{documentHash}} e inserisca il codice di verifica: {{otp}}\n\n" +
			"Il codice è valido per un solo accesso.\n\nCordiali saluti",
		HTML: "<p>Gentile {{recipientName}},</p>" +
			"<p>è stato predisposto un nuovo preventivo per lei. Per visualizzarlo e firmarlo " +
			"acceda al documento <strong>{{documentHash}}</strong> e inserisca il codice di verifica: " +
			"<strong>{{otp}}</strong></p>" +
			"<p>Il codice è valido per un solo accesso.</p><p>Cordiali saluti</p>",
	},
	models.KindFollowup: {
		Subject: "Preventivo {{documentHash}} firmato correttamente",
		Text: "Gentile {{recipientName}},\n\n" +
			"la firma del preventivo {{documentHash}} è stata registrata correttamente. " +
			"Il documento resta valido fino al {{expiresAt}}.\n\nCordiali saluti",
		HTML: "<p>Gentile {{recipientName}},</p>" +
			"<p>la firma del preventivo <strong>{{documentHash}}</strong> è stata registrata correttamente. " +
			"Il documento resta valido fino al {{expiresAt}}.</p><p>Cordiali saluti</p>",
	},
	models.KindExpiryWarning: {
		Subject: "Promemoria: il preventivo {{documentHash}} scade tra 7 giorni",
		Text: "Gentile {{recipientName}},\n\n" +
			"le ricordiamo che il preventivo {{documentHash}} scadrà il {{expiresAt}}.\n\nCordiali saluti",
		HTML: "<p>Gentile {{recipientName}},</p>" +
			"<p>le ricordiamo che il preventivo <strong>{{documentHash}}</strong> scadrà il {{expiresAt}}.</p>" +
			"<p>Cordiali saluti</p>",
	},
	models.KindExpired: {
		Subject: "Il preventivo {{documentHash}} è scaduto",
		Text: "Gentile {{recipientName}},\n\n" +
			"la informiamo che il preventivo {{documentHash}} è scaduto e non è più firmabile. " +
			"Per un nuovo preventivo può contattarci in qualsiasi momento.\n\nCordiali saluti",
		HTML: "<p>Gentile {{recipientName}},</p>" +
			"<p>la informiamo che il preventivo <strong>{{documentHash}}</strong> è scaduto e non è più firmabile. " +
			"Per un nuovo preventivo può contattarci in qualsiasi momento.</p><p>Cordiali saluti</p>",
	},
	models.KindClosed: {
		Subject: "Pratica {{documentHash}} completata",
		Text: "Gentile {{recipientName}},\n\n" +
			"la pratica relativa al preventivo {{documentHash}} è stata archiviata correttamente. " +
			"Riceverà copia del documento firmato.\n\nCordiali saluti",
		HTML: "<p>Gentile {{recipientName}},</p>" +
			"<p>la pratica relativa al preventivo <strong>{{documentHash}}</strong> è stata archiviata correttamente. " +
			"Riceverà copia del documento firmato.</p><p>Cordiali saluti</p>",
	},
}

// Render produces the message for a notification kind, with placeholders
// substituted from data.
func Render(kind models.NotificationKind, to string, data map[string]string) (Message, error) {
	tmpl, exists := templates[kind]
	if !exists {
		return Message{}, fmt.Errorf("no template for notification kind %q", kind)
	}

	return Message{
		To:       to,
		Subject:  renderTemplate(tmpl.Subject, data),
		TextBody: renderTemplate(tmpl.Text, data),
		HTMLBody: renderTemplate(tmpl.HTML, data),
	}, nil
}

func renderTemplate(tmpl string, data map[string]string) string {
	result := tmpl
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		result = strings.ReplaceAll(result, placeholder, v)
	}
	return result
}
