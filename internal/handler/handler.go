package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"portal/internal/admin"
	"portal/internal/auth"
	"portal/internal/blob"
	"portal/internal/qr"
	"portal/internal/registration"
)

type Handler struct {
	regs      *registration.Service
	admins    *admin.Service
	gate      *admin.Gate
	siteURL   string
	maxUpload int64
	log       *zap.SugaredLogger
}

func New(regs *registration.Service, admins *admin.Service, gate *admin.Gate, siteURL string, maxUpload int64, log *zap.SugaredLogger) *Handler {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Handler{regs: regs, admins: admins, gate: gate, siteURL: siteURL, maxUpload: maxUpload, log: log}
}

// Routes mounts the API. authn must place the caller's e-mail in the context
// (see auth.Authenticate); admin routes additionally pass RequireAdmin.
func (h *Handler) Routes(r gin.IRouter, authn gin.HandlerFunc) {
	v1 := r.Group("/v1")
	v1.POST("/registrations", h.Submit)
	v1.GET("/registrations", h.Lookup)
	v1.GET("/registrations/:uid/qr", h.QRCode)

	v1.POST("/admin/login", h.Login)
	v1.POST("/admin/setup", h.Setup)

	adm := v1.Group("/admin", authn, h.RequireAdmin)
	adm.GET("/registrations", h.List)
	adm.PATCH("/registrations", h.Update)
	adm.POST("/verify", h.Verify)
	adm.POST("/scan", h.Scan)
}

// ---------- Admin gate ----------

// RequireAdmin rejects callers that are not on the admin allowlist.
func (h *Handler) RequireAdmin(c *gin.Context) {
	if err := h.gate.Authorize(c.Request.Context(), auth.Email(c)); err != nil {
		h.writeError(c, err)
		c.Abort()
		return
	}
	c.Next()
}

// ---------- Public registration ----------

// Submit accepts a multipart form (with optional photo and resume files) or a
// JSON body.
func (h *Handler) Submit(c *gin.Context) {
	if h.maxUpload > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 2*h.maxUpload+1<<20)
	}

	var in registration.Input
	var attachments []registration.Attachment
	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		if err := c.ShouldBind(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid form: " + err.Error()})
			return
		}
		for _, kind := range []registration.AttachmentKind{registration.AttachmentPhoto, registration.AttachmentResume} {
			fh, err := c.FormFile(string(kind))
			if errors.Is(err, http.ErrMissingFile) {
				continue
			}
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + string(kind) + " file"})
				return
			}
			f, err := fh.Open()
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + string(kind) + " file"})
				return
			}
			defer f.Close()
			attachments = append(attachments, registration.Attachment{
				Kind:        kind,
				Filename:    fh.Filename,
				ContentType: fh.Header.Get("Content-Type"),
				Size:        fh.Size,
				Body:        f,
			})
		}
	} else if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	reg, err := h.regs.Submit(c.Request.Context(), in, attachments)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"uid": reg.UID})
}

// lookupResponse is a registration plus its check-in QR code as a data URL,
// ready for the success page.
type lookupResponse struct {
	registration.Registration
	QRCode string `json:"qr_code"`
}

// Lookup returns one registration by ?uid=.
func (h *Handler) Lookup(c *gin.Context) {
	reg, err := h.regs.Get(c.Request.Context(), c.Query("uid"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	code, err := qr.DataURL(qr.VerifyURL(h.siteURL, reg.UID), qr.DefaultSize)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, lookupResponse{Registration: reg, QRCode: code})
}

// QRCode renders the check-in QR code for an existing registration.
func (h *Handler) QRCode(c *gin.Context) {
	reg, err := h.regs.Get(c.Request.Context(), c.Param("uid"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	size := qr.DefaultSize
	if v, err := strconv.Atoi(c.Query("size")); err == nil && v >= 128 && v <= 1024 {
		size = v
	}
	png, err := qr.PNG(qr.VerifyURL(h.siteURL, reg.UID), size)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Header("Cache-Control", "public, max-age=86400")
	c.Data(http.StatusOK, "image/png", png)
}

// ---------- Admin accounts ----------

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Code     string `json:"code"`
}

func (h *Handler) Login(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	tok, err := h.admins.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tok)
}

// Setup creates an administrator when the caller presents the setup code.
func (h *Handler) Setup(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := h.admins.Setup(c.Request.Context(), req.Email, req.Password, req.Code); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// ---------- Admin registrations ----------

func (h *Handler) List(c *gin.Context) {
	f := registration.Filter{
		Query:  c.Query("q"),
		Kind:   c.Query("type"),
		Status: c.Query("status"),
	}
	if v, err := strconv.Atoi(c.Query("limit")); err == nil {
		f.Limit = v
	}
	if v, err := strconv.Atoi(c.Query("from")); err == nil {
		f.Offset = v
	}
	page, err := h.regs.List(c.Request.Context(), f)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) Update(c *gin.Context) {
	var req struct {
		UID       string  `json:"uid"`
		CheckedIn *bool   `json:"checked_in"`
		Status    *string `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	err := h.regs.Update(c.Request.Context(), req.UID, registration.Patch{CheckedIn: req.CheckedIn, Status: req.Status})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Verify checks in a UID typed by hand or a raw scanned QR payload.
func (h *Handler) Verify(c *gin.Context) {
	var req struct {
		UID     string `json:"uid"`
		Payload string `json:"payload"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	uid := strings.TrimSpace(req.UID)
	if uid == "" && strings.TrimSpace(req.Payload) != "" {
		extracted, ok := qr.ExtractUID(req.Payload)
		if !ok {
			h.noUID(c)
			return
		}
		uid = extracted
	}
	h.checkIn(c, uid)
}

// Scan checks in the UID encoded in an uploaded QR image.
func (h *Handler) Scan(c *gin.Context) {
	fh, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file is required"})
		return
	}
	if h.maxUpload > 0 && fh.Size > h.maxUpload {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image exceeds the upload size limit"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid image file"})
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid image file"})
		return
	}

	text, err := qr.DecodeBytes(data)
	if err != nil {
		h.writeError(c, err)
		return
	}
	uid, ok := qr.ExtractUID(text)
	if !ok {
		h.noUID(c)
		return
	}
	h.checkIn(c, uid)
}

// noUID answers a scan that carries no registration uid. It is a negative
// result, not an error.
func (h *Handler) noUID(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": false, "message": "no registration uid in scan"})
}

func (h *Handler) checkIn(c *gin.Context, uid string) {
	res, err := h.regs.CheckIn(c.Request.Context(), uid)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if !res.Found {
		c.JSON(http.StatusOK, gin.H{"ok": false, "uid": res.UID, "message": "UID not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":                 true,
		"uid":                res.UID,
		"message":            "Checked in " + res.UID,
		"already_checked_in": res.AlreadyCheckedIn,
		"checkin_at":         res.CheckedInAt,
	})
}

// ---------- Dev file serving ----------

// MemoryFiles serves objects held by the in-memory storage backend.
func MemoryFiles(m *blob.Memory) gin.HandlerFunc {
	return func(c *gin.Context) {
		obj, ok := m.Get(strings.TrimPrefix(c.Param("key"), "/"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
			return
		}
		c.Data(http.StatusOK, obj.ContentType, obj.Data)
	}
}
