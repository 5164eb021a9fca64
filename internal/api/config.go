package api

import (
	"net/http"

	"github.com/munipolis/vasefirma-ai/internal/log"
)

// widgetConfig is the branding payload the embeddable widget loads on boot.
type widgetConfig struct {
	PrimaryColor       string   `json:"primaryColor"`
	Logo               string   `json:"logo"`
	LogoBackground     string   `json:"logoBackground"`
	LogoZoom           int      `json:"logoZoom"`
	LogoPosition       int      `json:"logoPosition"`
	CoverPhoto         string   `json:"coverPhoto"`
	CoverPhotoPosition int      `json:"coverPhotoPosition"`
	CoverPhotoZoom     int      `json:"coverPhotoZoom"`
	Position           string   `json:"position"`
	WelcomeHeadline    string   `json:"welcomeHeadline"`
	WelcomeMessage     string   `json:"welcomeMessage"`
	QuickReplies       []string `json:"quickReplies"`
	AutoPopupDelay     int      `json:"autoPopupDelay"`
	EnablePulse        bool     `json:"enablePulse"`
}

type configResponse struct {
	Name         string       `json:"name"`
	WidgetConfig widgetConfig `json:"widgetConfig"`
}

type configHandler struct {
	logger log.Logger
}

// handle returns the widget branding. Asset URLs are derived from the
// forwarded proto/host so they resolve behind the deployment's proxy.
func (h *configHandler) handle(w http.ResponseWriter, r *http.Request) {
	base := baseURL(r)

	writeJSON(w, http.StatusOK, configResponse{
		Name: "Vaše Firma",
		WidgetConfig: widgetConfig{
			PrimaryColor:       "#564fd8",
			Logo:               base + "/logo.png",
			LogoBackground:     "#ffffff",
			LogoZoom:           80,
			LogoPosition:       50,
			CoverPhoto:         base + "/cover.jpg",
			CoverPhotoPosition: 50,
			CoverPhotoZoom:     200,
			Position:           "bottom-right",
			WelcomeHeadline:    "Jak vám mohu pomoci?",
			WelcomeMessage:     "Zeptejte se mě na cokoliv ohledně zaměstnanecké aplikace, benefitů, směrnic nebo firemních procesů.",
			QuickReplies: []string{
				"Jaké moduly aplikace nabízí?",
				"Jak fungují benefity?",
				"Jak nahlásit podnět?",
				"Jak funguje whistleblowing?",
			},
			AutoPopupDelay: 8000,
			EnablePulse:    true,
		},
	}, h.logger)
}

func baseURL(r *http.Request) string {
	proto := r.Header.Get("X-Forwarded-Proto")
	if proto == "" {
		proto = "https"
	}
	host := r.Header.Get("X-Forwarded-Host")
	if host == "" {
		host = r.Host
	}
	return proto + "://" + host
}
