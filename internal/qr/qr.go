// Package qr renders and reads the check-in QR codes handed to applicants.
package qr

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/url"
	"regexp"
	"strings"

	"github.com/makiuchi-d/gozxing"
	gozxingqr "github.com/makiuchi-d/gozxing/qrcode"
	qrcode "github.com/skip2/go-qrcode"
)

// DefaultSize is the PNG edge length in pixels.
const DefaultSize = 256

// ErrNoCode is returned when an image holds no readable QR code.
var ErrNoCode = errors.New("no qr code found")

// VerifyURL is the payload encoded for uid: <origin>/admin/verify?uid=<uid>.
func VerifyURL(origin, uid string) string {
	return strings.TrimRight(origin, "/") + "/admin/verify?uid=" + url.QueryEscape(uid)
}

// PNG renders payload as a PNG with medium error recovery.
func PNG(payload string, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultSize
	}
	png, err := qrcode.Encode(payload, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}

// DataURL renders payload as an inline data:image/png URL.
func DataURL(payload string, size int) (string, error) {
	png, err := PNG(payload, size)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

var uidParam = regexp.MustCompile(`[?&]uid=([^&#\s]+)`)

// ExtractUID pulls the uid out of scanned text. URLs use their uid query
// parameter; other text is searched for a uid= parameter. ok is false when
// nothing usable was found.
func ExtractUID(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if u, err := url.Parse(raw); err == nil && u.Scheme != "" && u.Host != "" {
		if uid := strings.TrimSpace(u.Query().Get("uid")); uid != "" {
			return uid, true
		}
	}
	m := uidParam.FindStringSubmatch(raw)
	if m == nil {
		return "", false
	}
	uid, err := url.QueryUnescape(m[1])
	if err != nil {
		uid = m[1]
	}
	uid = strings.TrimSpace(uid)
	return uid, uid != ""
}

// Decode reads the text of the QR code in img.
func Decode(img image.Image) (string, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", fmt.Errorf("prepare qr image: %w", err)
	}
	hints := map[gozxing.DecodeHintType]interface{}{gozxing.DecodeHintType_TRY_HARDER: true}
	res, err := gozxingqr.NewQRCodeReader().Decode(bmp, hints)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoCode, err)
	}
	return res.GetText(), nil
}

// DecodeBytes decodes an encoded PNG, JPEG or GIF image.
func DecodeBytes(b []byte) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(b))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoCode, err)
	}
	return Decode(img)
}
