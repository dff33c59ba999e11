package bridge

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// URLLink describes a url card to send.
type URLLink struct {
	URL         string
	Title       string
	Description string
	ThumbURL    string
}

// Envelope renders the app-message envelope for a url card.
func (l *URLLink) Envelope() string {
	return fmt.Sprintf(
		`<appmsg appid="" sdkver="0"><title>%s</title><des>%s</des><type>5</type><url>%s</url><thumburl>%s</thumburl></appmsg>`,
		escapeXML(l.Title), escapeXML(l.Description), escapeXML(l.URL), escapeXML(l.ThumbURL),
	)
}

// MiniProgram describes a mini program card to send.
type MiniProgram struct {
	AppID       string
	Username    string
	Title       string
	Description string
	PagePath    string
	IconURL     string
	ThumbURL    string
}

// Envelope renders the app-message envelope for a mini program card.
func (m *MiniProgram) Envelope() string {
	return fmt.Sprintf(
		`<appmsg appid="%s" sdkver="0"><title>%s</title><des>%s</des><type>33</type><url>%s</url>`+
			`<weappinfo><username>%s</username><appid>%s</appid><pagepath>%s</pagepath><weappiconurl>%s</weappiconurl></weappinfo></appmsg>`,
		escapeXML(m.AppID), escapeXML(m.Title), escapeXML(m.Description), escapeXML(m.ThumbURL),
		escapeXML(m.Username), escapeXML(m.AppID), escapeXML(m.PagePath), escapeXML(m.IconURL),
	)
}

func escapeXML(s string) string {
	var b strings.Builder
	if err := xml.EscapeText(&b, []byte(s)); err != nil {
		return s
	}
	return b.String()
}
