package httpserver

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"
)

const (
	flashCookie = "flash"
	ctxFlashKey = "flashes"

	FlashSuccess = "Success"
	FlashError   = "Error"
)

type Flash struct {
	Category string `json:"c"`
	Message  string `json:"m"`
}

// addFlash queues a message for the next page shown to the user: the page
// rendered by this request, or the one reached after a redirect.
func addFlash(c echo.Context, category, message string) {
	pending, _ := c.Get(ctxFlashKey).([]Flash)
	c.Set(ctxFlashKey, append(pending, Flash{Category: category, Message: message}))
}

// takeFlashes returns the messages carried over from the previous request
// plus those queued by this one, and clears the carrier cookie.
func takeFlashes(c echo.Context, secure bool) []Flash {
	var out []Flash
	if ck, err := c.Cookie(flashCookie); err == nil && ck.Value != "" {
		out = decodeFlashes(ck.Value)
		c.SetCookie(flashCarrier("", secure))
	}
	pending, _ := c.Get(ctxFlashKey).([]Flash)
	c.Set(ctxFlashKey, nil)
	return append(out, pending...)
}

// persistFlashes moves the queued messages into the carrier cookie before a redirect.
func persistFlashes(c echo.Context, secure bool) {
	pending, _ := c.Get(ctxFlashKey).([]Flash)
	if len(pending) == 0 {
		return
	}
	if ck, err := c.Cookie(flashCookie); err == nil && ck.Value != "" {
		pending = append(decodeFlashes(ck.Value), pending...)
	}
	raw, err := json.Marshal(pending)
	if err != nil {
		return
	}
	c.SetCookie(flashCarrier(base64.RawURLEncoding.EncodeToString(raw), secure))
	c.Set(ctxFlashKey, nil)
}

func decodeFlashes(v string) []Flash {
	raw, err := base64.RawURLEncoding.DecodeString(v)
	if err != nil {
		return nil
	}
	var out []Flash
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

func flashCarrier(value string, secure bool) *http.Cookie {
	ck := &http.Cookie{
		Name:     flashCookie,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	if value == "" {
		ck.MaxAge = -1
	}
	return ck
}
