package registration

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"portal/internal/metrics"
)

// FileStore keeps uploaded attachments.
type FileStore interface {
	Put(ctx context.Context, key, contentType string, body io.Reader) error
	URL(key string) string
}

// Notifier is told about each accepted registration after it is stored.
type Notifier interface {
	NotifyRegistered(ctx context.Context, reg Registration) error
}

// Options tunes a Service. Zero values select defaults.
type Options struct {
	MaxUploadBytes int64
	// EnqueueTimeout bounds how long Submit waits to hand a confirmation to
	// the notifier. Delivery itself happens elsewhere.
	EnqueueTimeout time.Duration
	Metrics        *metrics.Metrics
	Logger         *zap.SugaredLogger
}

// Service coordinates submission, lookup, admin updates and check-in.
type Service struct {
	store    Store
	ids      *Generator
	files    FileStore
	notifier Notifier

	maxUpload      int64
	enqueueTimeout time.Duration
	metrics        *metrics.Metrics
	log            *zap.SugaredLogger
	now            func() time.Time
}

// NewService creates a service. files and notifier may be nil; submissions
// with attachments then fail with ErrNoFileStorage and no notification is sent.
func NewService(store Store, ids *Generator, files FileStore, notifier Notifier, opts Options) *Service {
	if ids == nil {
		ids = NewGenerator(DefaultIDPrefix)
	}
	if opts.EnqueueTimeout <= 0 {
		opts.EnqueueTimeout = 2 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	return &Service{
		store:          store,
		ids:            ids,
		files:          files,
		notifier:       notifier,
		maxUpload:      opts.MaxUploadBytes,
		enqueueTimeout: opts.EnqueueTimeout,
		metrics:        opts.Metrics,
		log:            opts.Logger,
		now:            time.Now,
	}
}

// Patch is an admin update request. At least one field must be set.
type Patch struct {
	CheckedIn *bool   `json:"checked_in"`
	Status    *string `json:"status"`
}

// Submit validates in, stores attachments, then inserts the record. No row
// is written unless every attachment was stored.
func (s *Service) Submit(ctx context.Context, in Input, attachments []Attachment) (Registration, error) {
	if err := in.Validate(); err != nil {
		s.metrics.SubmitFailed("validation")
		return Registration{}, err
	}
	attachments = pendingAttachments(attachments)
	if err := s.checkSizes(attachments); err != nil {
		s.metrics.SubmitFailed("validation")
		return Registration{}, err
	}
	if len(attachments) > 0 && s.files == nil {
		s.metrics.SubmitFailed("upload")
		return Registration{}, ErrNoFileStorage
	}

	kindText := string(in.Kind)
	if strings.TrimSpace(kindText) == "" {
		kindText = string(in.Purpose)
	}
	kind := ParseKind(kindText)
	uid, err := s.ids.Next(kind)
	if err != nil {
		s.metrics.SubmitFailed("id")
		return Registration{}, err
	}
	reg := in.toRegistration(uid, kind)

	for _, a := range attachments {
		key := AttachmentKey(uid, a.Kind, a.Filename)
		contentType := a.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		if err := s.files.Put(ctx, key, contentType, a.Body); err != nil {
			s.metrics.SubmitFailed("upload")
			s.log.Errorw("attachment upload failed", "uid", uid, "kind", a.Kind, "err", err)
			return Registration{}, &UploadError{Kind: a.Kind, Err: err}
		}
		k := key
		switch a.Kind {
		case AttachmentPhoto:
			reg.PhotoPath = &k
		case AttachmentResume:
			reg.ResumePath = &k
		}
	}

	if err := s.store.Insert(ctx, &reg); err != nil {
		if errors.Is(err, ErrConflict) {
			s.metrics.SubmitFailed("conflict")
		} else {
			s.metrics.SubmitFailed("store")
		}
		return Registration{}, err
	}
	s.metrics.Submitted(string(kind))
	s.log.Infow("registration submitted", "uid", uid, "type", kind)

	s.publish(ctx, reg)
	return s.withURLs(reg), nil
}

// publish hands the registration to the notifier. The outcome never
// affects the submission.
func (s *Service) publish(ctx context.Context, reg Registration) {
	if s.notifier == nil {
		return
	}
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.enqueueTimeout)
	defer cancel()
	if err := s.notifier.NotifyRegistered(nctx, reg); err != nil {
		s.metrics.Notification("publish_failed")
		s.log.Warnw("queue confirmation failed", "uid", reg.UID, "err", err)
		return
	}
	s.metrics.Notification("queued")
}

func (s *Service) checkSizes(attachments []Attachment) error {
	if s.maxUpload <= 0 {
		return nil
	}
	ve := &ValidationError{}
	for _, a := range attachments {
		if a.Size > s.maxUpload {
			ve.Fields = append(ve.Fields, FieldError{
				Field:   string(a.Kind),
				Message: string(a.Kind) + " exceeds the upload size limit",
			})
		}
	}
	if len(ve.Fields) > 0 {
		return ve
	}
	return nil
}

// pendingAttachments drops empty and unknown files and orders photo before resume.
func pendingAttachments(in []Attachment) []Attachment {
	out := make([]Attachment, 0, len(in))
	for _, a := range in {
		if a.Body == nil || a.Size == 0 {
			continue
		}
		if a.Kind != AttachmentPhoto && a.Kind != AttachmentResume {
			continue
		}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Kind == AttachmentPhoto && out[j].Kind != AttachmentPhoto
	})
	return out
}

// Get looks up one registration by uid.
func (s *Service) Get(ctx context.Context, uid string) (Registration, error) {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return Registration{}, ErrMissingUID
	}
	reg, err := s.store.Get(ctx, uid)
	if err != nil {
		return Registration{}, err
	}
	return s.withURLs(reg), nil
}

// List returns a filtered page of registrations for administrators.
func (s *Service) List(ctx context.Context, f Filter) (Page, error) {
	page, err := s.store.List(ctx, f)
	if err != nil {
		return Page{}, err
	}
	for i := range page.Data {
		page.Data[i] = s.withURLs(page.Data[i])
	}
	return page, nil
}

// Update applies an admin patch. Setting checked_in stamps the check-in
// time; clearing it clears the stamp.
func (s *Service) Update(ctx context.Context, uid string, p Patch) error {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return ErrMissingUID
	}
	if p.CheckedIn == nil && p.Status == nil {
		return ErrNothingToUpdate
	}

	var ch Change
	if p.Status != nil {
		st, err := ParseStatus(*p.Status)
		if err != nil {
			return err
		}
		ch.Status = &st
	}
	if p.CheckedIn != nil {
		checked := *p.CheckedIn
		ch.CheckedIn = &checked
		if checked {
			at := s.now().UTC()
			ch.CheckInAt = &at
		}
	}
	if err := s.store.Update(ctx, uid, ch); err != nil {
		return err
	}
	s.log.Infow("registration updated", "uid", uid)
	return nil
}

// CheckIn marks uid as checked in. An unknown uid is reported through
// CheckInResult.Found rather than an error. Repeated check-ins re-stamp the time.
func (s *Service) CheckIn(ctx context.Context, uid string) (CheckInResult, error) {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return CheckInResult{}, ErrMissingUID
	}
	at := s.now().UTC()
	was, found, err := s.store.CheckIn(ctx, uid, at)
	if err != nil {
		s.metrics.CheckIn("error")
		return CheckInResult{}, err
	}
	if !found {
		s.metrics.CheckIn("not_found")
		return CheckInResult{UID: uid}, nil
	}
	if was {
		s.metrics.CheckIn("repeat")
	} else {
		s.metrics.CheckIn("checked_in")
	}
	s.log.Infow("checked in", "uid", uid, "repeat", was)
	return CheckInResult{UID: uid, Found: true, AlreadyCheckedIn: was, CheckedInAt: at}, nil
}

func (s *Service) withURLs(reg Registration) Registration {
	if s.files == nil {
		return reg
	}
	if reg.PhotoPath != nil {
		reg.PhotoURL = s.files.URL(*reg.PhotoPath)
	}
	if reg.ResumePath != nil {
		reg.ResumeURL = s.files.URL(*reg.ResumePath)
	}
	return reg
}
