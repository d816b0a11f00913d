package blob

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Cloudinary uploads attachments through the Cloudinary REST API.
// Images and PDFs are stored as image resources, everything else as raw.
type Cloudinary struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
	HTTP      *http.Client

	// APIBase and DeliveryBase are overridable for tests.
	APIBase      string
	DeliveryBase string

	now func() time.Time
}

// NewCloudinary creates a Cloudinary client.
func NewCloudinary(cloudName, apiKey, apiSecret, folder string) *Cloudinary {
	return &Cloudinary{
		CloudName:    cloudName,
		APIKey:       apiKey,
		APISecret:    apiSecret,
		Folder:       strings.Trim(folder, "/"),
		HTTP:         &http.Client{Timeout: 30 * time.Second},
		APIBase:      "https://api.cloudinary.com/v1_1",
		DeliveryBase: "https://res.cloudinary.com",
		now:          time.Now,
	}
}

type cloudinaryResult struct {
	PublicID  string `json:"public_id"`
	SecureURL string `json:"secure_url"`
	Error     *struct {
		Message string `json:"message"`
	} `json:"error"`
}

var imageExts = map[string]bool{"png": true, "jpg": true, "jpeg": true, "gif": true, "webp": true, "pdf": true}

// asset maps a storage key onto the Cloudinary resource type and public id.
// Image public ids drop the extension; raw ones keep it.
func (c *Cloudinary) asset(key string) (resourceType, publicID, ext string) {
	id := key
	if c.Folder != "" {
		id = c.Folder + "/" + key
	}
	ext = strings.TrimPrefix(path.Ext(key), ".")
	if imageExts[ext] {
		return "image", strings.TrimSuffix(id, "."+ext), ext
	}
	return "raw", id, ext
}

func (c *Cloudinary) Put(ctx context.Context, key, contentType string, body io.Reader) error {
	resourceType, publicID, _ := c.asset(key)
	params := map[string]string{
		"timestamp": strconv.FormatInt(c.now().Unix(), 10),
		"public_id": publicID,
	}
	params["signature"] = c.sign(params)
	params["api_key"] = c.APIKey

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range params {
		_ = w.WriteField(k, v)
	}
	part, err := w.CreateFormFile("file", path.Base(key))
	if err != nil {
		return fmt.Errorf("cloudinary: create form file failed: %w", err)
	}
	if _, err := io.Copy(part, body); err != nil {
		return fmt.Errorf("cloudinary: write file failed: %w", err)
	}
	w.Close()

	endpoint := fmt.Sprintf("%s/%s/%s/upload", c.APIBase, c.CloudName, resourceType)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return fmt.Errorf("cloudinary: create request failed: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("cloudinary: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		var res cloudinaryResult
		if json.Unmarshal(raw, &res) == nil && res.Error != nil {
			return fmt.Errorf("cloudinary: upload failed (%d): %s", resp.StatusCode, res.Error.Message)
		}
		return fmt.Errorf("cloudinary: upload failed (%d): %s", resp.StatusCode, string(raw))
	}
	return nil
}

func (c *Cloudinary) URL(key string) string {
	resourceType, publicID, ext := c.asset(key)
	u := fmt.Sprintf("%s/%s/%s/upload/%s", c.DeliveryBase, c.CloudName, resourceType, publicID)
	if resourceType == "image" {
		u += "." + ext
	}
	return u
}

// sign computes the API signature. api_key, file and resource_type are not signed.
func (c *Cloudinary) sign(params map[string]string) string {
	excludeKeys := map[string]bool{"api_key": true, "file": true, "resource_type": true}

	pairs := make([]string, 0, len(params))
	for k, v := range params {
		if !excludeKeys[k] && v != "" {
			pairs = append(pairs, k+"="+v)
		}
	}
	sort.Strings(pairs)

	h := sha1.New()
	h.Write([]byte(strings.Join(pairs, "&") + c.APISecret))
	return fmt.Sprintf("%x", h.Sum(nil))
}
