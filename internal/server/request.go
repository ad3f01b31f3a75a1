package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

// flexInt accepts a JSON number or a numeric string. Form posts from the
// site send ratings and ids as strings.
type flexInt int64

func (n *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		return nil
	}
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unquoted)
		if s == "" {
			return nil
		}
	}

	v, err := parseWhole(s)
	if err != nil {
		return err
	}
	*n = flexInt(v)
	return nil
}

func parseWhole(s string) (int64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, fmt.Errorf("%q is not a number", s)
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("%q is not a whole number", s)
	}
	return int64(f), nil
}

// looseID is a review id that never fails to decode. Anything that is not a
// whole number reads as 0, which matches no review.
type looseID string

func (id *looseID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*id = looseID(s)
		return nil
	}
	*id = looseID(b)
	return nil
}

// Int64 returns the id, or 0 when it is not a whole number
func (id looseID) Int64() int64 {
	v, err := parseWhole(strings.TrimSpace(string(id)))
	if err != nil {
		return 0
	}
	return v
}

// honeypotField accepts any JSON value. Strings keep their text; any other
// non-null value keeps its raw JSON so it still reads as filled.
type honeypotField string

func (h *honeypotField) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*h = honeypotField(s)
		return nil
	}
	*h = honeypotField(b)
	return nil
}

type contactRequest struct {
	Name    string `json:"name" form:"name"`
	Email   string `json:"email" form:"email"`
	Title   string `json:"title" form:"title"`
	Message string `json:"message" form:"message"`
	// Website is the honeypot field
	Website honeypotField `json:"website" form:"website"`
}

type createReviewRequest struct {
	Name    string  `json:"name" form:"name"`
	Rating  flexInt `json:"rating" form:"rating"`
	Message string  `json:"message" form:"message"`
}

type deleteReviewRequest struct {
	ID          looseID `json:"id" form:"id"`
	DeleteToken string  `json:"delete_token" form:"delete_token"`
}

type adminLoginRequest struct {
	Password string `json:"password" form:"password"`
}

type adminRequest struct {
	ID    flexInt `json:"id" form:"id"`
	Token string  `json:"token" form:"token"`
}

func isFormPost(c *gin.Context) bool {
	switch c.ContentType() {
	case binding.MIMEPOSTForm, binding.MIMEMultipartPOSTForm:
		return true
	}
	return false
}

// bindBody binds a JSON or form-encoded body
func bindBody(c *gin.Context, dst any) error {
	if isFormPost(c) {
		return c.ShouldBindWith(dst, binding.Form)
	}
	return c.ShouldBindJSON(dst)
}

// bindOptionalBody is bindBody treating an empty body as empty input
func bindOptionalBody(c *gin.Context, dst any) error {
	if err := bindBody(c, dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// bindContact decodes a contact post. When a JSON body has badly typed
// fields but a filled honeypot, only the honeypot is returned so the bot
// is answered like any other sender.
func bindContact(c *gin.Context) (contactRequest, error) {
	var req contactRequest
	if isFormPost(c) {
		err := c.ShouldBindWith(&req, binding.Form)
		return req, err
	}

	body, err := c.GetRawData()
	if err != nil {
		return req, err
	}
	// A type mismatch still decodes every other field, website included
	if err := json.Unmarshal(body, &req); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && strings.TrimSpace(string(req.Website)) != "" {
			return contactRequest{Website: req.Website}, nil
		}
		return contactRequest{}, err
	}
	return req, nil
}
