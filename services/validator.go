package services

import (
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"

	"github.com/cppla/ygportal/models"
	"github.com/cppla/ygportal/utils"
)

const (
	maxImageBytes = 2048 * 1024
	maxFileBytes  = 10240 * 1024
)

var allowedImageTypes = []string{"image/jpeg", "image/png", "image/gif"}

// Upload is a single uploaded blob as received from a multipart form.
type Upload struct {
	Filename string
	Size     int64
	Open     func() (io.ReadCloser, error)
}

// PostInput is the raw, unvalidated admin submission. Subscription is nil when
// the field was not sent at all.
type PostInput struct {
	Title        string
	Content      string
	Category     string
	Status       string
	Subscription *string
	Image        *Upload
	File         *Upload
}

// PostRecord is a validated submission ready to be persisted.
type PostRecord struct {
	Title           string
	Content         string
	Category        string
	Status          models.PostStatus
	Subscription    bool
	SubscriptionSet bool
	Image           *Upload
	File            *Upload
}

type postFields struct {
	Title    string `json:"title" validate:"required,max=255"`
	Content  string `json:"content" validate:"required,max=60000"`
	Category string `json:"category" validate:"required,max=255"`
	Status   string `json:"status" validate:"required,oneof=draft published deleted"`
}

// PostValidator checks admin submissions, collecting every field error before
// reporting.
type PostValidator struct {
	v *validator.Validate
}

// NewPostValidator builds a validator that names fields by their json tag.
func NewPostValidator() *PostValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &PostValidator{v: v}
}

// Validate returns a normalized record or a *ValidationError listing all
// rejected fields.
func (pv *PostValidator) Validate(in PostInput) (*PostRecord, error) {
	// required and max apply to what is stored, so markup is stripped first
	fields := postFields{
		Title:    strings.TrimSpace(utils.SanitizeText(in.Title)),
		Content:  strings.TrimSpace(utils.Sanitize(in.Content)),
		Category: strings.TrimSpace(utils.SanitizeText(in.Category)),
		Status:   normalizeStatus(in.Status),
	}
	errs := map[string]string{}
	pv.collect(fields, errs)

	rec := &PostRecord{
		Title:    fields.Title,
		Content:  fields.Content,
		Category: fields.Category,
		Status:   models.PostStatus(fields.Status),
	}

	if in.Subscription != nil {
		b, ok := parseBool(*in.Subscription)
		if !ok {
			errs["subscription"] = "The subscription field must be true or false."
		}
		rec.Subscription = b
		rec.SubscriptionSet = true
	}

	if in.Image != nil {
		if msg := checkImage(in.Image); msg != "" {
			errs["image"] = msg
		}
		rec.Image = in.Image
	}
	if in.File != nil {
		if in.File.Size > maxFileBytes {
			errs["file"] = "The file field must not be greater than 10240 kilobytes."
		}
		rec.File = in.File
	}

	if len(errs) > 0 {
		return nil, &ValidationError{Fields: errs}
	}
	return rec, nil
}

// ValidateStatus checks a bare status change request.
func (pv *PostValidator) ValidateStatus(raw string) (models.PostStatus, error) {
	st := normalizeStatus(raw)
	errs := map[string]string{}
	if err := pv.v.Var(st, "required,oneof=draft published deleted"); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) && len(ve) > 0 {
			errs["status"] = fieldMessage("status", ve[0])
		} else {
			errs["status"] = err.Error()
		}
		return "", &ValidationError{Fields: errs}
	}
	return models.PostStatus(st), nil
}

func (pv *PostValidator) collect(fields postFields, errs map[string]string) {
	err := pv.v.Struct(fields)
	if err == nil {
		return
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		errs["_"] = err.Error()
		return
	}
	for _, fe := range ve {
		if _, seen := errs[fe.Field()]; !seen {
			errs[fe.Field()] = fieldMessage(fe.Field(), fe)
		}
	}
}

func fieldMessage(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("The %s field is required.", field)
	case "max":
		return fmt.Sprintf("The %s field must not be greater than %s characters.", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("The selected %s is invalid.", field)
	default:
		return fmt.Sprintf("The %s field is invalid.", field)
	}
}

func checkImage(u *Upload) string {
	if u.Size > maxImageBytes {
		return "The image field must not be greater than 2048 kilobytes."
	}
	if u.Open == nil {
		return "The image field must be an image."
	}
	r, err := u.Open()
	if err != nil {
		return "The image failed to upload."
	}
	defer r.Close()
	mt, err := mimetype.DetectReader(r)
	if err != nil || !mimetype.EqualsAny(mt.String(), allowedImageTypes...) {
		return "The image field must be a file of type: jpeg, png, jpg, gif."
	}
	return ""
}

// normalizeStatus maps accepted spellings to the canonical literal and leaves
// anything else untouched so the oneof rule rejects it.
func normalizeStatus(raw string) string {
	if st, ok := models.ParseStatus(raw); ok {
		return string(st)
	}
	return strings.TrimSpace(raw)
}

func parseBool(raw string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "on", "yes":
		return true, true
	case "0", "false", "off", "no", "":
		return false, true
	default:
		return false, false
	}
}
