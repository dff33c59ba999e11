package bridge

import (
	"strings"
	"testing"
)

func TestURLLink_Envelope(t *testing.T) {
	l := &URLLink{
		URL:         "https://example.com/a?b=1&c=2",
		Title:       "Title <b>",
		Description: "desc",
	}
	env := l.Envelope()

	if !strings.Contains(env, "<type>5</type>") {
		t.Errorf("missing url type: %s", env)
	}
	if !strings.Contains(env, "https://example.com/a?b=1&amp;c=2") {
		t.Errorf("url not escaped: %s", env)
	}
	if !strings.Contains(env, "Title &lt;b&gt;") {
		t.Errorf("title not escaped: %s", env)
	}
}

func TestMiniProgram_Envelope(t *testing.T) {
	m := &MiniProgram{
		AppID:    "wx123",
		Username: "gh_app@app",
		Title:    "Shop",
		PagePath: "pages/index.html",
	}
	env := m.Envelope()

	if !strings.Contains(env, "<type>33</type>") {
		t.Errorf("missing mini program type: %s", env)
	}
	if !strings.Contains(env, "<username>gh_app@app</username>") {
		t.Errorf("missing weapp username: %s", env)
	}
	if !strings.Contains(env, `appid="wx123"`) {
		t.Errorf("missing appid attr: %s", env)
	}
}
