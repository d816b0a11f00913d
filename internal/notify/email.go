package notify

import (
	"bytes"
	"fmt"
	"html/template"

	"portal/internal/qr"
)

// QRImageName is the inline attachment name referenced by the HTML body.
const QRImageName = "qr.png"

// Email is a rendered message ready for a Sender.
type Email struct {
	To      string
	ToName  string
	Subject string
	HTML    string
	Inline  map[string][]byte
}

var confirmationTmpl = template.Must(template.New("confirmation").Parse(`<html>
  <body style="font-family: Arial, sans-serif;">
    <h2>Dear {{.Name}},</h2>
    <p>Thank you for registering. Your unique ID is: <strong>{{.UID}}</strong></p>
    <p>Please present the QR code below for check-in:</p>
    <img src="cid:{{.Image}}" alt="Registration QR Code" style="width: 150px; height: 150px; display: block; margin: 10px 0;"/>
    <p>If the image does not load, show this link instead: <a href="{{.VerifyURL}}">{{.VerifyURL}}</a></p>
    <p>We look forward to reviewing your submission.</p>
  </body>
</html>
`))

// Confirmation renders the confirmation e-mail for job, embedding a QR code
// of the verification URL under siteURL.
func Confirmation(job Job, siteURL string) (Email, error) {
	verifyURL := qr.VerifyURL(siteURL, job.UID)
	png, err := qr.PNG(verifyURL, qr.DefaultSize)
	if err != nil {
		return Email{}, err
	}

	var body bytes.Buffer
	err = confirmationTmpl.Execute(&body, struct {
		Name, UID, VerifyURL, Image string
	}{job.Name, job.UID, verifyURL, QRImageName})
	if err != nil {
		return Email{}, fmt.Errorf("render confirmation: %w", err)
	}

	return Email{
		To:      job.Email,
		ToName:  job.Name,
		Subject: "Registration Confirmed: Your Unique ID " + job.UID,
		HTML:    body.String(),
		Inline:  map[string][]byte{QRImageName: png},
	}, nil
}
