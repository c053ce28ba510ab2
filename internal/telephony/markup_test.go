package telephony

import (
	"encoding/xml"
	"strings"
	"testing"
	"time"

	"agri-ivr/internal/ivr"
)

var testGather = GatherOptions{Action: "https://ivr.example.com/webhooks/twilio/voice", Timeout: 5 * time.Second, Language: "en-IN"}

func TestTwilioRender_GatherWrapsSay(t *testing.T) {
	out, err := Twilio.Render(ivr.Reply{Message: "Please say your PIN.", Gather: true}, testGather)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	gather := strings.Index(out, "<Gather")
	say := strings.Index(out, "<Say")
	end := strings.Index(out, "</Gather>")
	if gather < 0 || say < gather || end < say {
		t.Fatalf("expected Say nested in Gather: %s", out)
	}
	for _, want := range []string{`input="speech dtmf"`, `timeout="5"`, `language="en-IN"`, `action="https://ivr.example.com/webhooks/twilio/voice"`, `actionOnEmptyResult="true"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in markup: %s", want, out)
		}
	}
	if strings.Contains(out, "<Hangup") {
		t.Fatalf("did not expect hangup: %s", out)
	}
}

func TestTwilioRender_Hangup(t *testing.T) {
	out, err := Twilio.Render(ivr.Reply{Message: "Verification failed. Goodbye.", Hangup: true}, testGather)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if strings.Contains(out, "<Gather") {
		t.Fatalf("did not expect gather: %s", out)
	}
	say := strings.Index(out, "Verification failed. Goodbye.")
	hang := strings.Index(out, "<Hangup")
	if say < 0 || hang < say {
		t.Fatalf("expected Say then Hangup: %s", out)
	}
}

func TestExotelRender_GetSpeechFollowsSay(t *testing.T) {
	out, err := Exotel.Render(ivr.Reply{Message: "Please say your username.", Gather: true}, testGather)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	sayEnd := strings.Index(out, "</Say>")
	get := strings.Index(out, "<GetSpeech")
	if sayEnd < 0 || get < sayEnd {
		t.Fatalf("expected GetSpeech after Say: %s", out)
	}
	if strings.Contains(out, "<Hangup") {
		t.Fatalf("did not expect hangup: %s", out)
	}
}

func TestExotelRender_Hangup(t *testing.T) {
	out, err := Exotel.Render(ivr.Reply{Message: "Thank you for calling. Have a good day.", Hangup: true}, testGather)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if strings.Contains(out, "<GetSpeech") || !strings.Contains(out, "<Hangup") {
		t.Fatalf("unexpected markup: %s", out)
	}
}

func TestRender_EscapesMessage(t *testing.T) {
	msg := `Use N&P <10%> "urea" isn't bad`
	for _, d := range []Dialect{Twilio, Exotel} {
		out, err := d.Render(ivr.Reply{Message: msg, Gather: true}, testGather)
		if err != nil {
			t.Fatalf("%s: expected no error, got %v", d.Name, err)
		}
		if strings.Contains(out, msg) {
			t.Fatalf("%s: message was not escaped: %s", d.Name, out)
		}
		for _, want := range []string{"N&amp;P", "&lt;10%&gt;", "&#34;urea&#34;", "isn&#39;t"} {
			if !strings.Contains(out, want) {
				t.Fatalf("%s: expected %q in markup: %s", d.Name, want, out)
			}
		}
	}
}

func TestRender_SayRoundTripsMessage(t *testing.T) {
	msg := "Use N&P <10%> \"urea\" isn't bad.\nगेहूं: 40 kg/acre"
	for _, d := range []Dialect{Twilio, Exotel} {
		for _, reply := range []ivr.Reply{{Message: msg, Gather: true}, {Message: msg, Hangup: true}} {
			out, err := d.Render(reply, testGather)
			if err != nil {
				t.Fatalf("%s: expected no error, got %v", d.Name, err)
			}
			if got := sayText(t, out); got != msg {
				t.Fatalf("%s: expected Say to decode to %q, got %q", d.Name, msg, got)
			}
		}
	}
}

// sayText decodes the first <Say> element of rendered markup.
func sayText(t *testing.T, markup string) string {
	t.Helper()
	dec := xml.NewDecoder(strings.NewReader(markup))
	for {
		tok, err := dec.Token()
		if err != nil {
			t.Fatalf("no <Say> in markup %q: %v", markup, err)
		}
		if se, ok := tok.(xml.StartElement); ok && se.Name.Local == "Say" {
			var say struct {
				Text string `xml:",chardata"`
			}
			if err := dec.DecodeElement(&say, &se); err != nil {
				t.Fatalf("decode <Say>: %v", err)
			}
			return say.Text
		}
	}
}

func TestRender_DefaultTimeout(t *testing.T) {
	out, err := Twilio.Render(ivr.Reply{Message: "x", Gather: true}, GatherOptions{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !strings.Contains(out, `timeout="5"`) {
		t.Fatalf("expected default timeout: %s", out)
	}
	if strings.Contains(out, "action=") {
		t.Fatalf("expected action omitted when empty: %s", out)
	}
}
