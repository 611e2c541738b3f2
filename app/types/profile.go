package types

import (
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/vibast-solutions/ms-go-accounts/app/service"
)

const dateLayout = "2006-01-02"

// UpdateProfileRequest accepts JSON or a multipart form carrying an avatar
// file. An empty string clears a field.
type UpdateProfileRequest struct {
	Bio         *string `json:"bio" validate:"omitempty,max=1000"`
	Phone       *string `json:"phone" validate:"omitempty,max=20"`
	Gender      *string `json:"gender" validate:"omitempty,oneof=male female other"`
	DateOfBirth *string `json:"dob" validate:"omitempty,datetime=2006-01-02"`
	Country     *string `json:"country" validate:"omitempty,max=100"`
	City        *string `json:"city" validate:"omitempty,max=100"`

	Avatar *service.AvatarUpload `json:"-"`
}

var profileFormFields = []string{"bio", "phone", "gender", "dob", "country", "city"}

func NewUpdateProfileRequestFromContext(ctx echo.Context) (*UpdateProfileRequest, error) {
	var body UpdateProfileRequest

	contentType := ctx.Request().Header.Get(echo.HeaderContentType)
	if strings.HasPrefix(contentType, echo.MIMEMultipartForm) {
		form, err := ctx.MultipartForm()
		if err != nil {
			return nil, err
		}
		body.bindForm(form)
		if files := form.File["avatar"]; len(files) > 0 {
			avatar, err := readAvatar(files[0])
			if err != nil {
				return nil, err
			}
			body.Avatar = avatar
		}
	} else if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	for _, field := range []**string{&body.Bio, &body.Phone, &body.Gender, &body.DateOfBirth, &body.Country, &body.City} {
		*field = trimmed(*field)
	}
	// clearing the date of birth is not supported
	if body.DateOfBirth != nil && *body.DateOfBirth == "" {
		body.DateOfBirth = nil
	}

	return &body, nil
}

func (r *UpdateProfileRequest) bindForm(form *multipart.Form) {
	targets := map[string]**string{
		"bio":     &r.Bio,
		"phone":   &r.Phone,
		"gender":  &r.Gender,
		"dob":     &r.DateOfBirth,
		"country": &r.Country,
		"city":    &r.City,
	}
	for _, name := range profileFormFields {
		if values, ok := form.Value[name]; ok && len(values) > 0 {
			value := values[0]
			*targets[name] = &value
		}
	}
}

// readAvatar reads at most one byte past the size limit so oversized uploads
// are rejected without buffering them whole.
func readAvatar(header *multipart.FileHeader) (*service.AvatarUpload, error) {
	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, service.MaxAvatarBytes+1))
	if err != nil {
		return nil, err
	}
	return &service.AvatarUpload{Data: data}, nil
}

func (r *UpdateProfileRequest) Validate() error {
	check := *r
	if check.Gender != nil && *check.Gender == "" {
		check.Gender = nil // "" clears the gender
	}
	if err := validateStruct(&check); err != nil {
		return err
	}
	if r.Avatar != nil {
		if len(r.Avatar.Data) == 0 || len(r.Avatar.Data) > service.MaxAvatarBytes {
			return fieldError("avatar", "must be at most 2048 KB")
		}
		if ct := http.DetectContentType(r.Avatar.Data); ct != "image/jpeg" && ct != "image/png" {
			return fieldError("avatar", "must be a jpeg or png image")
		}
	}
	return nil
}

func (r *UpdateProfileRequest) ToInput() (service.UpdateProfileInput, error) {
	in := service.UpdateProfileInput{
		Bio:     r.Bio,
		Phone:   r.Phone,
		Gender:  r.Gender,
		Country: r.Country,
		City:    r.City,
	}
	if r.DateOfBirth != nil {
		dob, err := time.ParseInLocation(dateLayout, *r.DateOfBirth, time.Local)
		if err != nil {
			return in, fieldError("dob", "must be a date formatted as YYYY-MM-DD")
		}
		in.DateOfBirth = &dob
	}
	return in, nil
}
