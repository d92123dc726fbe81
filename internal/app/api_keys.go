package app

import (
	"crypto/subtle"
	"net/http"
)

// ClockControlOpen reports whether clock control needs no key.
func (app *Application) ClockControlOpen() bool {
	return len(app.Config.ApiKeys) == 0
}

func (app *Application) RequestHasInvalidAPIKey(r *http.Request) bool {
	if app.ClockControlOpen() {
		return false
	}
	key := r.URL.Query().Get("key")
	if key == "" {
		key = r.Header.Get("X-API-Key")
	}
	return app.IsInvalidAPIKey(key)
}

func (app *Application) IsInvalidAPIKey(key string) bool {
	if key == "" {
		return true
	}

	for _, validKey := range app.Config.ApiKeys {
		if subtle.ConstantTimeCompare([]byte(key), []byte(validKey)) == 1 {
			return false
		}
	}

	return true
}
